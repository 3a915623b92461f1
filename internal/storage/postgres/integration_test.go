package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bimatlas/bimatlas/internal/types"
)

// Integration tests need a PostgreSQL instance with the AGE extension.
// They are skipped unless BIMATLAS_TEST_DSN points at one, e.g.
//
//	BIMATLAS_TEST_DSN="host=localhost dbname=bimatlas_test user=postgres sslmode=disable" go test ./...

const (
	wallGID   = "2O2Fr$t4X7Zf8NOew3FL9r"
	storeyGID = "1XS$$$$$$$$$$$$$$$$$$$"
	beamGID   = "3ABCDEFGHIJKLMNOPQRS$0"
)

const modelHeader = `ISO-10303-21;
HEADER;
FILE_SCHEMA(('IFC4X3'));
ENDSEC;
DATA;
`

const modelFooter = `ENDSEC;
END-ISO-10303-21;
`

// storeyAndWall is the scenario model: one storey containing one wall with
// an extruded box body. The wall's name is a parameter so revisions can
// rename it.
func storeyAndWall(wallName string) string {
	return modelHeader + fmt.Sprintf(`#4=IFCBUILDINGSTOREY('%s',$,'Level 1',$,$,$,$,$,$,$);
#10=IFCCARTESIANPOINT((0.0,0.0,0.0));
#11=IFCAXIS2PLACEMENT3D(#10,$,$);
#12=IFCLOCALPLACEMENT($,#11);
#13=IFCRECTANGLEPROFILEDEF(.AREA.,$,$,4.0,0.3);
#14=IFCDIRECTION((0.,0.,1.));
#15=IFCEXTRUDEDAREASOLID(#13,$,#14,3.0);
#16=IFCSHAPEREPRESENTATION($,'Body','SweptSolid',(#15));
#17=IFCPRODUCTDEFINITIONSHAPE($,$,(#16));
#20=IFCWALL('%s',$,'%s',$,$,#12,#17,'W-01');
#33=IFCRELCONTAINEDINSPATIALSTRUCTURE('GIDRELCONT000000000104',$,$,$,(#20),#4);
`, storeyGID, wallGID, wallName) + modelFooter
}

func storeyOnly() string {
	return modelHeader + fmt.Sprintf(
		"#4=IFCBUILDINGSTOREY('%s',$,'Level 1',$,$,$,$,$,$,$);\n", storeyGID) + modelFooter
}

func beamOnly() string {
	return modelHeader + fmt.Sprintf(
		"#5=IFCBEAM('%s',$,'Beam B1',$,$,$,$,$);\n", beamGID) + modelFooter
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("BIMATLAS_TEST_DSN")
	if dsn == "" {
		t.Skip("BIMATLAS_TEST_DSN not set")
	}
	graphName := os.Getenv("BIMATLAS_TEST_GRAPH")
	if graphName == "" {
		graphName = "bimatlas_test"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn, Options{
		GraphName: graphName,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestProject(t *testing.T, s *Store) *types.Project {
	t.Helper()
	name := fmt.Sprintf("it-%s-%d", t.Name(), time.Now().UnixNano())
	p, err := s.CreateProject(context.Background(), name, "integration test")
	require.NoError(t, err)
	t.Cleanup(func() { s.DeleteProject(context.Background(), p.ID) })
	return p
}

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.ifc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIntegrationEmptyBranchTimeTravel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	branch := p.Branches[0]

	_, err := s.LatestRevision(ctx, branch.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	revisions, err := s.ListRevisions(ctx, branch.ID)
	require.NoError(t, err)
	assert.Empty(t, revisions)

	_, err = s.ProductAt(ctx, branch.ID, wallGID, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestIntegrationIngestionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	branch := p.Branches[0]

	// Revision 1: storey + wall.
	r1, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyAndWall("Wall A")), "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, r1.TotalProducts)
	assert.Equal(t, 2, r1.Added)
	assert.Equal(t, 0, r1.Modified)
	assert.Equal(t, 0, r1.Deleted)
	assert.Equal(t, 0, r1.Unchanged)
	assert.Equal(t, 1, r1.EdgesCreated)

	wall, err := s.ProductAt(ctx, branch.ID, wallGID, r1.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, "Wall A", wall.Name)
	assert.Equal(t, storeyGID, wall.ContainedIn)
	assert.True(t, wall.HasGeometry())
	assert.Nil(t, wall.ValidTo)

	// Revision 2: wall renamed.
	r2, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyAndWall("Wall A''")), "v2")
	require.NoError(t, err)
	assert.Equal(t, 0, r2.Added)
	assert.Equal(t, 1, r2.Modified)
	assert.Equal(t, 0, r2.Deleted)
	assert.Equal(t, 1, r2.Unchanged)

	// Time travel: the old name at r1, the new name at r2.
	wallAtR1, err := s.ProductAt(ctx, branch.ID, wallGID, r1.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, "Wall A", wallAtR1.Name)
	require.NotNil(t, wallAtR1.ValidTo)
	assert.Equal(t, r2.RevisionID, *wallAtR1.ValidTo)

	wallAtR2, err := s.ProductAt(ctx, branch.ID, wallGID, r2.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, "Wall A'", wallAtR2.Name)
	assert.Nil(t, wallAtR2.ValidTo)

	// Open-window uniqueness for the wall.
	var openRows int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM ifc_products
		 WHERE branch_id = $1 AND global_id = $2 AND valid_to_rev IS NULL`,
		branch.ID, wallGID).Scan(&openRows))
	assert.Equal(t, 1, openRows)

	// Revision 3: wall deleted.
	r3, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyOnly()), "v3")
	require.NoError(t, err)
	assert.Equal(t, 0, r3.Added)
	assert.Equal(t, 0, r3.Modified)
	assert.Equal(t, 1, r3.Deleted)
	assert.Equal(t, 1, r3.Unchanged)

	_, err = s.ProductAt(ctx, branch.ID, wallGID, r3.RevisionID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	// History survives the delete.
	wallAtR2, err = s.ProductAt(ctx, branch.ID, wallGID, r2.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, "Wall A'", wallAtR2.Name)

	// Diff r1 -> r3: the wall is gone, the storey untouched.
	diff, err := s.RevisionDiff(ctx, branch.ID, r1.RevisionID, r3.RevisionID)
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Modified)
	require.Len(t, diff.Deleted, 1)
	assert.Equal(t, wallGID, diff.Deleted[0].GlobalID)

	// Diff symmetry.
	reverse, err := s.RevisionDiff(ctx, branch.ID, r3.RevisionID, r1.RevisionID)
	require.NoError(t, err)
	require.Len(t, reverse.Added, 1)
	assert.Equal(t, wallGID, reverse.Added[0].GlobalID)
	assert.Empty(t, reverse.Deleted)
}

func TestIntegrationIdempotentReingestion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	branch := p.Branches[0]

	model := storeyAndWall("Wall A")
	r1, err := s.Ingest(ctx, branch.ID, writeModel(t, model), "")
	require.NoError(t, err)
	r2, err := s.Ingest(ctx, branch.ID, writeModel(t, model), "")
	require.NoError(t, err)

	assert.Equal(t, 0, r2.Added)
	assert.Equal(t, 0, r2.Modified)
	assert.Equal(t, 0, r2.Deleted)
	assert.Equal(t, 2, r2.Unchanged)
	// A new revision row is still written.
	assert.Greater(t, r2.RevisionID, r1.RevisionID)

	diff, err := s.RevisionDiff(ctx, branch.ID, r1.RevisionID, r2.RevisionID)
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Modified)
	assert.Empty(t, diff.Deleted)
}

func TestIntegrationBranchIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	main := p.Branches[0]

	structural, err := s.CreateBranch(ctx, p.ID, "structural")
	require.NoError(t, err)

	rMain, err := s.Ingest(ctx, main.ID, writeModel(t, storeyOnly()), "")
	require.NoError(t, err)
	rStruct, err := s.Ingest(ctx, structural.ID, writeModel(t, beamOnly()), "")
	require.NoError(t, err)

	onMain, err := s.ProductsAt(ctx, main.ID, rMain.RevisionID, types.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, onMain, 1)
	assert.Equal(t, storeyGID, onMain[0].GlobalID)

	onStruct, err := s.ProductsAt(ctx, structural.ID, rStruct.RevisionID, types.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, onStruct, 1)
	assert.Equal(t, beamGID, onStruct[0].GlobalID)
}

func TestIntegrationGraphTopology(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	branch := p.Branches[0]

	r1, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyAndWall("Wall A")), "")
	require.NoError(t, err)

	relations, err := s.Graph().Relations(ctx, wallGID, r1.RevisionID, branch.ID)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, storeyGID, relations[0].GlobalID)
	assert.Equal(t, types.RelContainedInSpatial, relations[0].Relationship)
	assert.Equal(t, "out", relations[0].Direction)

	contained, err := s.Graph().ContainedElements(ctx, storeyGID, r1.RevisionID, branch.ID)
	require.NoError(t, err)
	require.Len(t, contained, 1)
	assert.Equal(t, wallGID, contained[0].GlobalID)

	// After deleting the wall the edge and node are closed: nothing is
	// contained at the new revision, history intact at r1.
	r2, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyOnly()), "")
	require.NoError(t, err)

	containedNow, err := s.Graph().ContainedElements(ctx, storeyGID, r2.RevisionID, branch.ID)
	require.NoError(t, err)
	assert.Empty(t, containedNow)

	containedThen, err := s.Graph().ContainedElements(ctx, storeyGID, r1.RevisionID, branch.ID)
	require.NoError(t, err)
	assert.Len(t, containedThen, 1)
}

func TestIntegrationGraphMirrorRepair(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	branch := p.Branches[0]

	r1, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyAndWall("Wall A")), "")
	require.NoError(t, err)
	require.Equal(t, 1, r1.EdgesCreated)

	// Simulate a mirror that half-ran: the wall's edges and node were
	// closed but the replacement version was never created. The relational
	// side stays authoritative and untouched.
	require.NoError(t, s.Graph().CloseEdgesForNode(ctx, wallGID, r1.RevisionID, branch.ID))
	require.NoError(t, s.Graph().CloseNode(ctx, wallGID, r1.RevisionID, branch.ID))

	drifted, err := s.Graph().ContainedElements(ctx, storeyGID, r1.RevisionID, branch.ID)
	require.NoError(t, err)
	assert.Empty(t, drifted, "graph must be drifted before the repairing ingestion")

	// Closing again matches nothing and must succeed.
	require.NoError(t, s.Graph().CloseEdgesForNode(ctx, wallGID, r1.RevisionID, branch.ID))
	require.NoError(t, s.Graph().CloseNode(ctx, wallGID, r1.RevisionID, branch.ID))

	// The next ingestion modifies the wall: the close phase finds no open
	// node and no-ops, then the create phase writes the new version and its
	// containment edge, healing the drift.
	r2, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyAndWall("Wall B")), "")
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Modified)
	assert.Equal(t, 1, r2.EdgesCreated)

	contained, err := s.Graph().ContainedElements(ctx, storeyGID, r2.RevisionID, branch.ID)
	require.NoError(t, err)
	require.Len(t, contained, 1)
	assert.Equal(t, wallGID, contained[0].GlobalID)

	relations, err := s.Graph().Relations(ctx, wallGID, r2.RevisionID, branch.ID)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, storeyGID, relations[0].GlobalID)
}

func TestIntegrationCatalogDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	_, err := s.CreateProject(ctx, p.Name, "")
	assert.ErrorIs(t, err, types.ErrDuplicateName)

	_, err = s.CreateBranch(ctx, p.ID, "main")
	assert.ErrorIs(t, err, types.ErrDuplicateName)

	_, err = s.CreateBranch(ctx, 999999999, "orphan")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestIntegrationStreamFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	branch := p.Branches[0]

	r1, err := s.Ingest(ctx, branch.ID, writeModel(t, storeyAndWall("Wall A")), "")
	require.NoError(t, err)

	var got []*types.Product
	err = s.StreamProductsAt(ctx, branch.ID, r1.RevisionID,
		types.ProductFilter{IfcClasses: []string{"IfcWall"}},
		func(pr *types.Product) error {
			got = append(got, pr)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, wallGID, got[0].GlobalID)
	assert.Equal(t, "IfcWall", got[0].IfcClass)
}
