package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimatlas/bimatlas/internal/storage"
	"github.com/bimatlas/bimatlas/internal/types"
)

const wallGID = "2O2Fr$t4X7Zf8NOew3FL9r"

// fakeStore implements the store methods the query layer touches; the
// embedded interface panics on anything unexpected.
type fakeStore struct {
	storage.Store
	latest     int64
	latestErr  error
	product    *types.Product
	productErr error
	products   []*types.Product
	lastFilter types.ProductFilter
	branchErr  error
	revisions  []*types.Revision
	diff       *types.RevisionDiff
}

func (f *fakeStore) LatestRevision(ctx context.Context, branchID int64) (int64, error) {
	return f.latest, f.latestErr
}

func (f *fakeStore) ProductAt(ctx context.Context, branchID int64, globalID string, rev int64) (*types.Product, error) {
	return f.product, f.productErr
}

func (f *fakeStore) ProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter) ([]*types.Product, error) {
	f.lastFilter = filter
	return f.products, nil
}

func (f *fakeStore) CountProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter) (int, error) {
	f.lastFilter = filter
	return len(f.products), nil
}

func (f *fakeStore) StreamProductsAt(ctx context.Context, branchID, rev int64, filter types.ProductFilter, fn func(*types.Product) error) error {
	f.lastFilter = filter
	for _, p := range f.products {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) GetBranch(ctx context.Context, id int64) (*types.Branch, error) {
	if f.branchErr != nil {
		return nil, f.branchErr
	}
	return &types.Branch{ID: id, ProjectID: 1, Name: "main"}, nil
}

func (f *fakeStore) ListRevisions(ctx context.Context, branchID int64) ([]*types.Revision, error) {
	return f.revisions, nil
}

func (f *fakeStore) RevisionDiff(ctx context.Context, branchID, fromRev, toRev int64) (*types.RevisionDiff, error) {
	return f.diff, nil
}

type fakeGraph struct {
	relations []*types.RelatedProduct
	tree      []*types.SpatialNode
	err       error
}

func (g *fakeGraph) Relations(ctx context.Context, globalID string, rev, branchID int64) ([]*types.RelatedProduct, error) {
	return g.relations, g.err
}

func (g *fakeGraph) SpatialTree(ctx context.Context, rev, branchID int64) ([]*types.SpatialNode, error) {
	return g.tree, g.err
}

func int64p(v int64) *int64 { return &v }

func TestResolveRevision(t *testing.T) {
	s := New(&fakeStore{latest: 9}, &fakeGraph{}, nil)
	ctx := context.Background()

	rev, err := s.ResolveRevision(ctx, 1, int64p(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), rev)

	rev, err = s.ResolveRevision(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), rev)

	_, err = s.ResolveRevision(ctx, 1, int64p(0))
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestResolveRevisionEmptyBranch(t *testing.T) {
	s := New(&fakeStore{latestErr: types.ErrNotFound}, &fakeGraph{}, nil)
	_, err := s.ResolveRevision(context.Background(), 1, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestProductsExpandsClassFilter(t *testing.T) {
	store := &fakeStore{latest: 2}
	s := New(store, &fakeGraph{}, nil)

	_, rev, err := s.Products(context.Background(), 1, nil,
		types.ProductFilter{IfcClasses: []string{"IfcWall"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
	assert.Equal(t, []string{"IfcWall", "IfcWallStandardCase"}, store.lastFilter.IfcClasses)
}

func TestProductJoinsGraphRelations(t *testing.T) {
	store := &fakeStore{
		latest:  3,
		product: &types.Product{GlobalID: wallGID, IfcClass: "IfcWall", Name: "Wall A"},
	}
	graph := &fakeGraph{relations: []*types.RelatedProduct{
		{GlobalID: "1XS$$$$$$$$$$$$$$$$$$$", IfcClass: "IfcBuildingStorey",
			Relationship: types.RelContainedInSpatial, Direction: "out"},
	}}
	s := New(store, graph, nil)

	detail, rev, err := s.Product(context.Background(), 1, wallGID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)
	assert.Equal(t, "Wall A", detail.Product.Name)
	require.Len(t, detail.Relations, 1)
	assert.Equal(t, "out", detail.Relations[0].Direction)
}

func TestProductGraphFailureDegrades(t *testing.T) {
	store := &fakeStore{
		latest:  1,
		product: &types.Product{GlobalID: wallGID, IfcClass: "IfcWall"},
	}
	s := New(store, &fakeGraph{err: errors.New("age exploded")}, nil)

	detail, _, err := s.Product(context.Background(), 1, wallGID, nil)
	require.NoError(t, err)
	assert.Empty(t, detail.Relations)
}

func TestProductRejectsMalformedGlobalID(t *testing.T) {
	s := New(&fakeStore{}, &fakeGraph{}, nil)
	_, _, err := s.Product(context.Background(), 1, "not-a-gid", nil)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestProductNotFoundPropagates(t *testing.T) {
	s := New(&fakeStore{latest: 1, productErr: types.ErrNotFound}, &fakeGraph{}, nil)
	_, _, err := s.Product(context.Background(), 1, wallGID, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRevisionsChecksBranch(t *testing.T) {
	s := New(&fakeStore{branchErr: types.ErrNotFound}, &fakeGraph{}, nil)
	_, err := s.Revisions(context.Background(), 42)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSpatialTree(t *testing.T) {
	graph := &fakeGraph{tree: []*types.SpatialNode{
		{GlobalID: "GIDPROJECT000000000001", IfcClass: "IfcProject"},
	}}
	s := New(&fakeStore{latest: 5}, graph, nil)

	tree, rev, err := s.SpatialTree(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rev)
	require.Len(t, tree, 1)
	assert.Equal(t, "IfcProject", tree[0].IfcClass)
}

func TestStreamProductsExpandsFilter(t *testing.T) {
	store := &fakeStore{products: []*types.Product{
		{GlobalID: wallGID, IfcClass: "IfcWall"},
	}}
	s := New(store, &fakeGraph{}, nil)

	var seen int
	err := s.StreamProducts(context.Background(), 1, 2,
		types.ProductFilter{IfcClasses: []string{"IfcElement"}},
		func(p *types.Product) error {
			seen++
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	assert.Contains(t, store.lastFilter.IfcClasses, "IfcBeam")
	assert.Contains(t, store.lastFilter.IfcClasses, "IfcWindow")
}
