package graph

import (
	"context"
	"fmt"
)

// CreateNode creates a branch-scoped, revision-tagged node labeled by its
// IFC class. The node opens at rev with valid_to_rev = -1.
func (c *Client) CreateNode(ctx context.Context, ifcClass, globalID, name string, rev, branchID int64) error {
	if err := c.ensureVertexLabel(ctx, ifcClass); err != nil {
		return err
	}
	if err := ValidateGlobalID(globalID); err != nil {
		return err
	}
	cypher := fmt.Sprintf(
		"CREATE (n:%s {global_id: '%s', name: '%s', branch_id: %d, valid_from_rev: %d, valid_to_rev: -1}) RETURN id(n)",
		ifcClass, globalID, EscapeString(name), branchID, rev)
	return c.execCypherWrite(ctx, cypher)
}

// CloseNode marks the current version of a node as superseded at rev.
// Close-if-open: when no open node matches (graph drift after a partial
// mirror), the statement matches nothing and succeeds.
func (c *Client) CloseNode(ctx context.Context, globalID string, rev, branchID int64) error {
	if err := ValidateGlobalID(globalID); err != nil {
		return err
	}
	cypher := fmt.Sprintf(
		"MATCH (n {global_id: '%s', branch_id: %d, valid_to_rev: -1}) SET n.valid_to_rev = %d RETURN id(n)",
		globalID, branchID, rev)
	return c.execCypherWrite(ctx, cypher)
}

// CreateEdge creates a revision-tagged edge between the current versions of
// two nodes. When either endpoint has no open node the MATCH finds nothing
// and the write is a no-op; the caller decides whether that is a dangling
// reference worth surfacing.
func (c *Client) CreateEdge(ctx context.Context, fromGID, toGID, relType string, rev, branchID int64) error {
	if err := c.ensureEdgeLabel(ctx, relType); err != nil {
		return err
	}
	if err := ValidateGlobalID(fromGID); err != nil {
		return err
	}
	if err := ValidateGlobalID(toGID); err != nil {
		return err
	}
	cypher := fmt.Sprintf(
		"MATCH (a {global_id: '%s', branch_id: %d, valid_to_rev: -1}), "+
			"(b {global_id: '%s', branch_id: %d, valid_to_rev: -1}) "+
			"CREATE (a)-[r:%s {branch_id: %d, valid_from_rev: %d, valid_to_rev: -1}]->(b) "+
			"RETURN id(r)",
		fromGID, branchID, toGID, branchID, relType, branchID, rev)
	return c.execCypherWrite(ctx, cypher)
}

// CloseEdgesForNode closes every open edge touching a node, both
// directions. Called before CloseNode so the MATCH still finds the node.
func (c *Client) CloseEdgesForNode(ctx context.Context, globalID string, rev, branchID int64) error {
	if err := ValidateGlobalID(globalID); err != nil {
		return err
	}
	out := fmt.Sprintf(
		"MATCH ({global_id: '%s', branch_id: %d})-[r {branch_id: %d, valid_to_rev: -1}]->() "+
			"SET r.valid_to_rev = %d RETURN id(r)",
		globalID, branchID, branchID, rev)
	if err := c.execCypherWrite(ctx, out); err != nil {
		return err
	}
	in := fmt.Sprintf(
		"MATCH ({global_id: '%s', branch_id: %d})<-[r {branch_id: %d, valid_to_rev: -1}]-() "+
			"SET r.valid_to_rev = %d RETURN id(r)",
		globalID, branchID, branchID, rev)
	return c.execCypherWrite(ctx, in)
}
