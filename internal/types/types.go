// Package types defines core data structures for the BimAtlas versioned
// ingestion and query engine.
package types

import "time"

// Project groups branches. Creating a project also creates its "main" branch.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Branches    []*Branch `json:"branches,omitempty"`
}

// Branch is an independent timeline of revisions within a project.
type Branch struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Revision identifies one ingestion snapshot. Ids are globally monotonic;
// ordering within a branch follows id order.
type Revision struct {
	ID             int64     `json:"id"`
	BranchID       int64     `json:"branch_id"`
	Label          string    `json:"label,omitempty"`
	SourceFilename string    `json:"source_filename"`
	CreatedAt      time.Time `json:"created_at"`
}

// Product is one SCD2 row of the ifc_products table. A nil ValidTo means
// the row is open (currently visible on its branch).
type Product struct {
	RowID       int64
	BranchID    int64
	GlobalID    string
	IfcClass    string
	Name        string
	Description string
	ObjectType  string
	Tag         string
	ContainedIn string // GlobalId of the spatial container, empty when none
	Vertices    []byte // float32 little-endian triples
	Normals     []byte // float32 little-endian triples
	Faces       []byte // uint32 little-endian indices
	Matrix      []byte // float64 little-endian 4x4, row-major
	ContentHash string
	ValidFrom   int64
	ValidTo     *int64
}

// HasGeometry reports whether the product carries a renderable mesh.
func (p *Product) HasGeometry() bool {
	return len(p.Vertices) > 0 && len(p.Faces) > 0
}

// ProductRecord is the extractor's output for one IFC product, storage-ready
// but not yet bound to a branch or revision.
type ProductRecord struct {
	GlobalID    string
	IfcClass    string
	Name        string
	Description string
	ObjectType  string
	Tag         string
	ContainedIn string
	Vertices    []byte
	Normals     []byte
	Faces       []byte
	Matrix      []byte
	ContentHash string
}

// RelationshipRecord is a directed IFC objectified relationship destined to
// become a graph edge. Direction follows IFC semantics:
//
//	IfcRelAggregates                    parent -> child
//	IfcRelContainedInSpatialStructure   element -> spatial container
//	IfcRelVoidsElement                  building element -> opening
//	IfcRelFillsElement                  opening -> filling element
//	IfcRelConnectsElements              relating -> related
type RelationshipRecord struct {
	FromGlobalID     string
	ToGlobalID       string
	RelationshipType string
}

// IngestionResult summarises a completed ingestion run.
type IngestionResult struct {
	RevisionID    int64 `json:"revision_id"`
	BranchID      int64 `json:"branch_id"`
	TotalProducts int   `json:"total_products"`
	Added         int   `json:"added"`
	Modified      int   `json:"modified"`
	Deleted       int   `json:"deleted"`
	Unchanged     int   `json:"unchanged"`
	EdgesCreated  int   `json:"edges_created"`
}

// RelatedProduct is one graph neighbor of a product.
type RelatedProduct struct {
	GlobalID     string `json:"globalId"`
	IfcClass     string `json:"ifcClass"`
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship"`
	Direction    string `json:"direction"` // "out" or "in"
}

// SpatialNode is one node of the spatial decomposition tree.
type SpatialNode struct {
	GlobalID          string            `json:"globalId"`
	IfcClass          string            `json:"ifcClass"`
	Name              string            `json:"name,omitempty"`
	Children          []*SpatialNode    `json:"children"`
	ContainedElements []*RelatedProduct `json:"containedElements"`
}

// ChangeType classifies one entry of a revision diff.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// DiffEntry is one changed product in a revision diff.
type DiffEntry struct {
	GlobalID   string     `json:"globalId"`
	IfcClass   string     `json:"ifcClass"`
	Name       string     `json:"name,omitempty"`
	ChangeType ChangeType `json:"changeType"`
}

// RevisionDiff compares visible state between two revisions of one branch.
type RevisionDiff struct {
	FromRevision int64        `json:"fromRevision"`
	ToRevision   int64        `json:"toRevision"`
	Added        []*DiffEntry `json:"added"`
	Modified     []*DiffEntry `json:"modified"`
	Deleted      []*DiffEntry `json:"deleted"`
}

// ProductFilter narrows product listings and the product stream. All supplied
// predicates must match. IfcClasses holds exact class names; hierarchy
// expansion happens before the filter reaches storage.
type ProductFilter struct {
	IfcClasses  []string
	ContainedIn string
	GlobalID    string
	Name        string // substring, case-insensitive
	ObjectType  string
	Tag         string
	Description string
}

// Empty reports whether the filter matches everything.
func (f ProductFilter) Empty() bool {
	return len(f.IfcClasses) == 0 && f.ContainedIn == "" && f.GlobalID == "" &&
		f.Name == "" && f.ObjectType == "" && f.Tag == "" && f.Description == ""
}
