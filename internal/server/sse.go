package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/types"
)

// Stream event payloads. Each event type carries exactly its own fields;
// a start event with zero products still says "total": 0.
type sseStart struct {
	Type  string `json:"type"`
	Total int    `json:"total"`
}

type sseProduct struct {
	Type    string      `json:"type"`
	Current int         `json:"current"`
	Product *productDTO `json:"product"`
}

type sseEnd struct {
	Type string `json:"type"`
}

type sseError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleStreamProducts streams the filtered products of one revision as
// server-sent events: a start event with the total, one event per product
// with a 1-based counter, and a terminal end event. Failures after the
// stream has started become a terminal error event because the 200 header
// is already on the wire. Products are pulled from the database row-at-a-
// time; the client's read pace is the only buffer.
func (s *Server) handleStreamProducts(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	rev, err := queryOptInt64(r, "revision")
	if err != nil {
		s.writeError(w, err)
		return
	}
	filter := productFilterFromQuery(r)

	ctx := r.Context()
	resolved, err := s.query.ResolveRevision(ctx, branchID, rev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total, err := s.query.CountProducts(ctx, branchID, resolved, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: streaming unsupported by connection", types.ErrStore))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	emit := func(ev any) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	start := time.Now()
	if err := emit(&sseStart{Type: "start", Total: total}); err != nil {
		s.log.Debug("stream client gone before start", zap.Error(err))
		return
	}

	current := 0
	err = s.query.StreamProducts(ctx, branchID, resolved, filter, func(p *types.Product) error {
		current++
		return emit(&sseProduct{Type: "product", Current: current, Product: toProductDTO(p)})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.Debug("stream cancelled by client",
				zap.Int64("branch_id", branchID), zap.Int("delivered", current))
			return
		}
		s.log.Warn("product stream failed", zap.Error(err))
		emit(&sseError{Type: "error", Message: err.Error()})
		return
	}

	if err := emit(&sseEnd{Type: "end"}); err != nil {
		return
	}
	s.metrics.RecordStream(ctx, current, time.Since(start))
}
