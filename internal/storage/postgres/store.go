// Package postgres implements the BimAtlas store on PostgreSQL with the
// Apache AGE extension. The relational side (projects, branches, revisions,
// ifc_products) is authoritative; the property graph mirrors topology and is
// written best-effort after the relational transaction commits.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/graph"
	"github.com/bimatlas/bimatlas/internal/ifc"
	"github.com/bimatlas/bimatlas/internal/types"
)

const (
	maxRetries     = 3
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// Store is the PostgreSQL-backed implementation of storage.Store.
type Store struct {
	db        *sql.DB
	graph     *graph.Client
	extractor *ifc.Extractor
	log       *zap.Logger
}

// Options tunes the connection pool and graph wiring.
type Options struct {
	GraphName    string
	MaxOpenConns int
	MaxIdleConns int
	Logger       *zap.Logger
}

// Open connects to Postgres, verifies connectivity, ensures the schema and
// the AGE graph exist, and returns a ready store.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if opts.GraphName == "" {
		opts.GraphName = "bimatlas"
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 16
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 4
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", types.ErrStore, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", types.ErrStore, err)
	}

	s := &Store{
		db:        db,
		graph:     graph.New(db, opts.GraphName, log),
		extractor: ifc.NewExtractor(),
		log:       log,
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.graph.EnsureGraph(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Graph exposes the underlying graph client for read queries.
func (s *Store) Graph() *graph.Client {
	return s.graph
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// withRetry retries fn on transient database errors with exponential
// backoff. Non-retryable errors return immediately.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialBackoff
	bo.MaxInterval = maxBackoff

	var attempt int
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		s.log.Warn("retrying database operation",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

// isRetryableError reports whether an error is worth retrying: connection
// failures, serialization failures, and deadlocks.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"53300", // too_many_connections
			"57P03", // cannot_connect_now
			"08000", "08003", "08006": // connection exceptions
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether err is a foreign-key violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// execContext runs a statement with retry on transient errors.
func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := s.withRetry(ctx, "exec", func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// queryContext runs a query with retry on transient errors. The caller owns
// the returned rows.
func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := s.withRetry(ctx, "query", func() error {
		var err error
		rows, err = s.db.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStore, op, err)
}
