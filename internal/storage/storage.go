// Package storage defines the store interface for the BimAtlas engine.
//
// The concrete implementation lives in the postgres sub-package. Consumers
// depend on this interface rather than on the concrete type so that
// alternative implementations (mocks, proxies) can be substituted.
package storage

import (
	"context"

	"github.com/bimatlas/bimatlas/internal/types"
)

// Store is the interface satisfied by *postgres.Store.
type Store interface {
	// Project / branch catalog
	CreateProject(ctx context.Context, name, description string) (*types.Project, error)
	GetProject(ctx context.Context, id int64) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	CreateBranch(ctx context.Context, projectID int64, name string) (*types.Branch, error)
	GetBranch(ctx context.Context, id int64) (*types.Branch, error)
	ListBranches(ctx context.Context, projectID int64) ([]*types.Branch, error)

	// Revisions
	ListRevisions(ctx context.Context, branchID int64) ([]*types.Revision, error)
	LatestRevision(ctx context.Context, branchID int64) (int64, error)

	// Revision-scoped product reads
	ProductAt(ctx context.Context, branchID int64, globalID string, rev int64) (*types.Product, error)
	ProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter) ([]*types.Product, error)
	CountProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter) (int, error)
	StreamProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter, fn func(*types.Product) error) error

	// Revision diff
	RevisionDiff(ctx context.Context, branchID, fromRev, toRev int64) (*types.RevisionDiff, error)

	// Ingestion (revision writer)
	Ingest(ctx context.Context, branchID int64, ifcPath, label string) (*types.IngestionResult, error)

	// Lifecycle
	Close() error
}
