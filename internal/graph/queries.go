package graph

import (
	"context"
	"fmt"

	"github.com/bimatlas/bimatlas/internal/types"
)

// Node is a graph node projection: identity, class and display name.
type Node struct {
	GlobalID string
	IfcClass string
	Name     string
}

// Relations returns outgoing and incoming neighbors of a node visible at
// (rev, branch), de-duplicated by (neighbor, relationship, direction).
func (c *Client) Relations(ctx context.Context, globalID string, rev, branchID int64) ([]*types.RelatedProduct, error) {
	if err := ValidateGlobalID(globalID); err != nil {
		return nil, err
	}
	cols := []string{"gid", "lbl", "name", "rel"}

	type tpl struct {
		pattern   string
		direction string
	}
	templates := []tpl{
		{"MATCH (n {global_id: '%s'})-[r]->(m) WHERE %s AND %s AND %s " +
			"RETURN m.global_id AS gid, label(m) AS lbl, m.name AS name, type(r) AS rel", "out"},
		{"MATCH (n {global_id: '%s'})<-[r]-(m) WHERE %s AND %s AND %s " +
			"RETURN m.global_id AS gid, label(m) AS lbl, m.name AS name, type(r) AS rel", "in"},
	}

	var results []*types.RelatedProduct
	seen := make(map[string]bool)
	for _, t := range templates {
		cypher := fmt.Sprintf(t.pattern, globalID,
			revFilter("n", rev, branchID), revFilter("r", rev, branchID), revFilter("m", rev, branchID))
		rows, err := c.execCypher(ctx, cypher, cols)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			rp := &types.RelatedProduct{
				GlobalID:     agString(row[0]),
				IfcClass:     agString(row[1]),
				Name:         agString(row[2]),
				Relationship: agString(row[3]),
				Direction:    t.direction,
			}
			key := rp.GlobalID + "|" + rp.Relationship + "|" + rp.Direction
			if !seen[key] {
				seen[key] = true
				results = append(results, rp)
			}
		}
	}
	return results, nil
}

// SpatialRoots returns IfcProject nodes visible at (rev, branch).
func (c *Client) SpatialRoots(ctx context.Context, rev, branchID int64) ([]*Node, error) {
	cypher := fmt.Sprintf(
		"MATCH (p:IfcProject) WHERE %s RETURN p.global_id AS gid, label(p) AS lbl, p.name AS name",
		revFilter("p", rev, branchID))
	return c.nodeQuery(ctx, cypher)
}

// SpatialChildren returns direct children of a spatial node via outgoing
// IfcRelAggregates edges.
func (c *Client) SpatialChildren(ctx context.Context, globalID string, rev, branchID int64) ([]*Node, error) {
	if err := ValidateGlobalID(globalID); err != nil {
		return nil, err
	}
	cypher := fmt.Sprintf(
		"MATCH (parent {global_id: '%s'})-[r:IfcRelAggregates]->(child) "+
			"WHERE %s AND %s AND %s "+
			"RETURN child.global_id AS gid, label(child) AS lbl, child.name AS name",
		globalID,
		revFilter("parent", rev, branchID), revFilter("r", rev, branchID), revFilter("child", rev, branchID))
	return c.nodeQuery(ctx, cypher)
}

// ContainedElements returns the elements contained in a spatial node.
// Edge direction is element -> container, per the ingestion model.
func (c *Client) ContainedElements(ctx context.Context, spatialGID string, rev, branchID int64) ([]*Node, error) {
	if err := ValidateGlobalID(spatialGID); err != nil {
		return nil, err
	}
	cypher := fmt.Sprintf(
		"MATCH (spatial {global_id: '%s'})<-[r:IfcRelContainedInSpatialStructure]-(elem) "+
			"WHERE %s AND %s AND %s "+
			"RETURN elem.global_id AS gid, label(elem) AS lbl, elem.name AS name",
		spatialGID,
		revFilter("spatial", rev, branchID), revFilter("r", rev, branchID), revFilter("elem", rev, branchID))
	return c.nodeQuery(ctx, cypher)
}

// SpatialTree builds the full spatial decomposition tree at (rev, branch):
// roots recursively expanded through SpatialChildren and ContainedElements.
func (c *Client) SpatialTree(ctx context.Context, rev, branchID int64) ([]*types.SpatialNode, error) {
	roots, err := c.SpatialRoots(ctx, rev, branchID)
	if err != nil {
		return nil, err
	}
	tree := make([]*types.SpatialNode, 0, len(roots))
	for _, root := range roots {
		node, err := c.buildSubtree(ctx, root, rev, branchID, 0)
		if err != nil {
			return nil, err
		}
		tree = append(tree, node)
	}
	return tree, nil
}

// maxTreeDepth bounds recursion against pathological aggregation cycles.
const maxTreeDepth = 32

func (c *Client) buildSubtree(ctx context.Context, n *Node, rev, branchID int64, depth int) (*types.SpatialNode, error) {
	node := &types.SpatialNode{
		GlobalID:          n.GlobalID,
		IfcClass:          n.IfcClass,
		Name:              n.Name,
		Children:          []*types.SpatialNode{},
		ContainedElements: []*types.RelatedProduct{},
	}
	if depth >= maxTreeDepth {
		return node, nil
	}

	children, err := c.SpatialChildren(ctx, n.GlobalID, rev, branchID)
	if err != nil {
		return nil, err
	}
	for _, ch := range children {
		sub, err := c.buildSubtree(ctx, ch, rev, branchID, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}

	contained, err := c.ContainedElements(ctx, n.GlobalID, rev, branchID)
	if err != nil {
		return nil, err
	}
	for _, el := range contained {
		node.ContainedElements = append(node.ContainedElements, &types.RelatedProduct{
			GlobalID:     el.GlobalID,
			IfcClass:     el.IfcClass,
			Name:         el.Name,
			Relationship: types.RelContainedInSpatial,
			Direction:    "in",
		})
	}
	return node, nil
}

func (c *Client) nodeQuery(ctx context.Context, cypher string) ([]*Node, error) {
	rows, err := c.execCypher(ctx, cypher, []string{"gid", "lbl", "name"})
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, &Node{
			GlobalID: agString(row[0]),
			IfcClass: agString(row[1]),
			Name:     agString(row[2]),
		})
	}
	return nodes, nil
}
