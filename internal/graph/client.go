// Package graph talks to the Apache AGE property graph through its SQL
// interface. Nodes are labeled by IFC class, edges by IFC relationship
// entity; both carry {branch_id, valid_from_rev, valid_to_rev} with -1 as
// the open sentinel (AGE does not support NULL properties). The sentinel
// never leaves this package.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/types"
)

// Client executes parameter-safe Cypher against one named AGE graph.
// It is safe for concurrent use; the label cache is process-wide state
// shared by all callers of one Client.
type Client struct {
	db     *sql.DB
	graph  string
	labels *labelCache
	log    *zap.Logger
}

// New creates a graph client for the named graph.
func New(db *sql.DB, graphName string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		db:     db,
		graph:  graphName,
		labels: newLabelCache(),
		log:    log,
	}
}

// EnsureGraph creates the named graph if it does not exist yet and
// pre-creates the fixed edge labels, keeping the first ingestion off the
// label-creation path. Vertex labels stay lazy: the set of IFC classes a
// model uses is open-ended.
func (c *Client) EnsureGraph(ctx context.Context) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var one int
	err = conn.QueryRowContext(ctx,
		"SELECT 1 FROM ag_catalog.ag_graph WHERE name = $1", c.graph).Scan(&one)
	if err == sql.ErrNoRows {
		if _, err := conn.ExecContext(ctx, "SELECT create_graph($1)", c.graph); err != nil {
			return fmt.Errorf("%w: create graph %s: %w", types.ErrStore, c.graph, err)
		}
		c.log.Info("created graph", zap.String("graph", c.graph))
	} else if err != nil {
		return fmt.Errorf("%w: check graph %s: %w", types.ErrStore, c.graph, err)
	}

	for _, rel := range types.RelationshipTypes {
		if err := c.ensureEdgeLabel(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

// conn returns a pooled connection prepared for AGE: the extension loaded
// and ag_catalog on the search path. AGE requires both per session.
func (c *Client) conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire graph connection: %w", types.ErrStore, err)
	}
	if _, err := conn.ExecContext(ctx, "LOAD 'age'"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: load age: %w", types.ErrStore, err)
	}
	if _, err := conn.ExecContext(ctx, `SET search_path = ag_catalog, "$user", public`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set search_path: %w", types.ErrStore, err)
	}
	return conn, nil
}

// execCypher runs a read Cypher query and returns rows of parsed agtype
// scalars, one slice per row in column order.
func (c *Client) execCypher(ctx context.Context, cypher string, cols []string) ([][]any, error) {
	conn, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	colSpec := ""
	for i, col := range cols {
		if i > 0 {
			colSpec += ", "
		}
		colSpec += col + " agtype"
	}
	query := fmt.Sprintf("SELECT * FROM cypher('%s', $CYPHER$ %s $CYPHER$) AS (%s)",
		c.graph, cypher, colSpec)

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: cypher query: %w", types.ErrStore, err)
	}
	defer rows.Close()

	var out [][]any
	raw := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan agtype row: %w", types.ErrStore, err)
		}
		parsed := make([]any, len(cols))
		for i, ns := range raw {
			if ns.Valid {
				parsed[i] = parseAgtype(ns.String)
			}
		}
		out = append(out, parsed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: cypher rows: %w", types.ErrStore, err)
	}
	return out, nil
}

// execCypherWrite runs a write Cypher statement. Every write must carry a
// RETURN clause so the AS (v agtype) column spec is satisfied; statements
// that match nothing simply return zero rows.
func (c *Client) execCypherWrite(ctx context.Context, cypher string) error {
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	query := fmt.Sprintf("SELECT * FROM cypher('%s', $CYPHER$ %s $CYPHER$) AS (v agtype)",
		c.graph, cypher)
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%w: cypher write: %w", types.ErrStore, err)
	}
	return nil
}

// parseAgtype decodes a raw agtype column. Scalar agtype follows JSON
// encoding (strings double-quoted, numbers bare); anything that does not
// parse comes back as the raw string.
func parseAgtype(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func agString(v any) string {
	s, _ := v.(string)
	return s
}
