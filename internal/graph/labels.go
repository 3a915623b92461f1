package graph

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/bimatlas/bimatlas/internal/types"
)

// labelCache remembers which vertex/edge labels already exist in the graph.
// AGE requires labels to be created before use; without the cache every node
// or edge write would pay a catalog round-trip. The process sees all label
// creations it performs, so entries never need invalidation; labels created
// by another process are discovered on the first (cheap) catalog miss.
type labelCache struct {
	mu      sync.RWMutex
	vlabels map[string]bool
	elabels map[string]bool
}

func newLabelCache() *labelCache {
	return &labelCache{
		vlabels: make(map[string]bool),
		elabels: make(map[string]bool),
	}
}

func (c *labelCache) has(label string, edge bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if edge {
		return c.elabels[label]
	}
	return c.vlabels[label]
}

func (c *labelCache) add(label string, edge bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if edge {
		c.elabels[label] = true
	} else {
		c.vlabels[label] = true
	}
}

// ensureVertexLabel creates the vertex label if missing. Unknown IFC classes
// arrive here lazily the first time a model uses them.
func (c *Client) ensureVertexLabel(ctx context.Context, label string) error {
	return c.ensureLabel(ctx, label, false)
}

// ensureEdgeLabel creates the edge label if missing.
func (c *Client) ensureEdgeLabel(ctx context.Context, label string) error {
	return c.ensureLabel(ctx, label, true)
}

func (c *Client) ensureLabel(ctx context.Context, label string, edge bool) error {
	if c.labels.has(label, edge) {
		return nil
	}
	if err := ValidateLabel(label); err != nil {
		return err
	}

	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	kind := "v"
	createFn := "create_vlabel"
	if edge {
		kind = "e"
		createFn = "create_elabel"
	}

	var one int
	err = conn.QueryRowContext(ctx,
		`SELECT 1 FROM ag_catalog.ag_label
		 WHERE name = $1
		   AND graph = (SELECT graphid FROM ag_catalog.ag_graph WHERE name = $2)
		   AND kind = $3`,
		label, c.graph, kind).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf("SELECT %s($1, $2)", createFn), c.graph, label); err != nil {
			return fmt.Errorf("%w: create label %s: %w", types.ErrStore, label, err)
		}
	case err != nil:
		return fmt.Errorf("%w: check label %s: %w", types.ErrStore, label, err)
	}

	c.labels.add(label, edge)
	return nil
}
