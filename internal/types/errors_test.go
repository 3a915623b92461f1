package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("%w: project 7", ErrNotFound), "NotFound"},
		{fmt.Errorf("%w: branch %q", ErrDuplicateName, "main"), "DuplicateName"},
		{fmt.Errorf("%w: branch_id is required", ErrValidation), "ValidationError"},
		{fmt.Errorf("%w: not a STEP file", ErrExtraction), "ExtractionError"},
		{fmt.Errorf("%w: closed 2 of 3 rows", ErrConflict), "ConflictError"},
		{fmt.Errorf("%w: ping", ErrStore), "StoreError"},
		{context.Canceled, "Cancelled"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), "Cancelled"},
		{errors.New("something else"), "StoreError"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, Kind(tc.err), "error: %v", tc.err)
	}
}
