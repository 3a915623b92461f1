package types

import (
	"context"
	"errors"
)

// Sentinel errors classifying every failure the engine surfaces. Callers
// wrap them with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrValidation    = errors.New("validation failed")
	ErrExtraction    = errors.New("extraction failed")
	ErrStore         = errors.New("store failure")
	ErrConflict      = errors.New("conflict")
)

// Kind maps an error to its wire kind string. Unrecognised errors are
// reported as StoreError rather than leaking internals.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicateName):
		return "DuplicateName"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrExtraction):
		return "ExtractionError"
	case errors.Is(err, ErrConflict):
		return "ConflictError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	default:
		return "StoreError"
	}
}
