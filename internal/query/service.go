// Package query is the read side of the engine: it resolves revisions,
// expands class filters over the IFC hierarchy, and joins relational product
// rows with graph topology. Consumers never see the graph's -1 sentinel or
// raw Cypher.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/ifc"
	"github.com/bimatlas/bimatlas/internal/storage"
	"github.com/bimatlas/bimatlas/internal/types"
)

// GraphReader is the slice of the graph client the query layer needs.
type GraphReader interface {
	Relations(ctx context.Context, globalID string, rev, branchID int64) ([]*types.RelatedProduct, error)
	SpatialTree(ctx context.Context, rev, branchID int64) ([]*types.SpatialNode, error)
}

// Service answers revision-scoped read queries.
type Service struct {
	store storage.Store
	graph GraphReader
	log   *zap.Logger
}

// New creates a query service.
func New(store storage.Store, graph GraphReader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, graph: graph, log: log}
}

// ProductDetail is one product joined with its graph neighborhood.
type ProductDetail struct {
	Product   *types.Product
	Relations []*types.RelatedProduct
}

// ResolveRevision returns rev when non-nil, otherwise the branch's latest
// revision. A branch without revisions yields ErrNotFound.
func (s *Service) ResolveRevision(ctx context.Context, branchID int64, rev *int64) (int64, error) {
	if rev != nil {
		if *rev <= 0 {
			return 0, fmt.Errorf("%w: revision must be positive", types.ErrValidation)
		}
		return *rev, nil
	}
	return s.store.LatestRevision(ctx, branchID)
}

// expandFilter widens the class filter over the fixed IFC hierarchy so that
// abstract classes match their concrete subtypes.
func expandFilter(filter types.ProductFilter) types.ProductFilter {
	if filter.Empty() {
		return filter
	}
	if len(filter.IfcClasses) > 0 {
		filter.IfcClasses = types.ExpandClasses(filter.IfcClasses)
	}
	return filter
}

// Products lists the products visible at the resolved revision.
func (s *Service) Products(ctx context.Context, branchID int64, rev *int64, filter types.ProductFilter) ([]*types.Product, int64, error) {
	r, err := s.ResolveRevision(ctx, branchID, rev)
	if err != nil {
		return nil, 0, err
	}
	products, err := s.store.ProductsAt(ctx, branchID, r, expandFilter(filter))
	if err != nil {
		return nil, 0, err
	}
	return products, r, nil
}

// Product returns one product joined with its graph relations. A graph
// failure degrades to relations-only loss, logged, because the relational
// row is authoritative.
func (s *Service) Product(ctx context.Context, branchID int64, globalID string, rev *int64) (*ProductDetail, int64, error) {
	if !ifc.IsGlobalID(globalID) {
		return nil, 0, fmt.Errorf("%w: malformed GlobalId %q", types.ErrValidation, globalID)
	}
	r, err := s.ResolveRevision(ctx, branchID, rev)
	if err != nil {
		return nil, 0, err
	}
	p, err := s.store.ProductAt(ctx, branchID, globalID, r)
	if err != nil {
		return nil, 0, err
	}

	relations, err := s.graph.Relations(ctx, globalID, r, branchID)
	if err != nil {
		s.log.Warn("graph relations unavailable",
			zap.String("global_id", globalID),
			zap.Int64("branch_id", branchID),
			zap.Int64("revision", r),
			zap.Error(err))
		relations = []*types.RelatedProduct{}
	}
	return &ProductDetail{Product: p, Relations: relations}, r, nil
}

// SpatialTree returns the spatial decomposition at the resolved revision.
func (s *Service) SpatialTree(ctx context.Context, branchID int64, rev *int64) ([]*types.SpatialNode, int64, error) {
	r, err := s.ResolveRevision(ctx, branchID, rev)
	if err != nil {
		return nil, 0, err
	}
	tree, err := s.graph.SpatialTree(ctx, r, branchID)
	if err != nil {
		return nil, 0, err
	}
	return tree, r, nil
}

// Revisions lists the revisions of a branch, oldest first.
func (s *Service) Revisions(ctx context.Context, branchID int64) ([]*types.Revision, error) {
	if _, err := s.store.GetBranch(ctx, branchID); err != nil {
		return nil, err
	}
	return s.store.ListRevisions(ctx, branchID)
}

// RevisionDiff compares visible state between two revisions of one branch.
func (s *Service) RevisionDiff(ctx context.Context, branchID, fromRev, toRev int64) (*types.RevisionDiff, error) {
	return s.store.RevisionDiff(ctx, branchID, fromRev, toRev)
}

// CountProducts counts the products a stream with the same arguments will
// deliver.
func (s *Service) CountProducts(ctx context.Context, branchID int64, rev int64, filter types.ProductFilter) (int, error) {
	return s.store.CountProductsAt(ctx, branchID, rev, expandFilter(filter))
}

// StreamProducts walks the filtered products at rev without buffering the
// result set.
func (s *Service) StreamProducts(ctx context.Context, branchID, rev int64, filter types.ProductFilter, fn func(*types.Product) error) error {
	return s.store.StreamProductsAt(ctx, branchID, rev, expandFilter(filter), fn)
}
