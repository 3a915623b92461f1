// Package server exposes the engine over HTTP: project and branch
// management, IFC upload, revision-scoped product and topology reads, and an
// SSE product stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/query"
	"github.com/bimatlas/bimatlas/internal/storage"
	"github.com/bimatlas/bimatlas/internal/telemetry"
	"github.com/bimatlas/bimatlas/internal/types"
)

// Server is the HTTP front of the engine.
type Server struct {
	store   storage.Store
	query   *query.Service
	log     *zap.Logger
	metrics *telemetry.Metrics
	router  *mux.Router
}

// New builds the server and its route table.
func New(store storage.Store, qs *query.Service, log *zap.Logger, metrics *telemetry.Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store:   store,
		query:   qs,
		log:     log,
		metrics: metrics,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)
	r.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", s.handleDeleteProject).Methods(http.MethodDelete)
	r.HandleFunc("/projects/{id}/branches", s.handleCreateBranch).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id}/branches", s.handleListBranches).Methods(http.MethodGet)

	r.HandleFunc("/upload-ifc", s.handleUploadIFC).Methods(http.MethodPost)

	r.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/{global_id}", s.handleGetProduct).Methods(http.MethodGet)
	r.HandleFunc("/spatial-tree", s.handleSpatialTree).Methods(http.MethodGet)
	r.HandleFunc("/revisions", s.handleListRevisions).Methods(http.MethodGet)
	r.HandleFunc("/revision-diff", s.handleRevisionDiff).Methods(http.MethodGet)

	r.HandleFunc("/stream/products", s.handleStreamProducts).Methods(http.MethodGet)
}

// Handler returns the root http.Handler. CORS wraps the router from
// outside so preflight requests are answered even for routes registered
// with other methods.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorBody is the uniform error payload: an error kind and a message,
// never a stack trace.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

// statusClientClosedRequest mirrors the nginx convention for a request the
// client abandoned.
const statusClientClosedRequest = 499

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := types.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "NotFound":
		status = http.StatusNotFound
	case "DuplicateName", "ConflictError":
		status = http.StatusConflict
	case "ValidationError":
		status = http.StatusBadRequest
	case "ExtractionError":
		status = http.StatusUnprocessableEntity
	case "Cancelled":
		status = statusClientClosedRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorBody{Kind: kind, Message: err.Error()})
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// pathID parses the {id} route variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", types.ErrValidation, name)
	}
	return id, nil
}

// queryInt64 parses a required int64 query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", types.ErrValidation, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", types.ErrValidation, name)
	}
	return v, nil
}

// queryOptInt64 parses an optional int64 query parameter, nil when absent.
func queryOptInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", types.ErrValidation, name)
	}
	return &v, nil
}
