package ifc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimatlas/bimatlas/internal/types"
)

const minimalSTEP = `ISO-10303-21;
HEADER;
FILE_DESCRIPTION((''),'2;1');
FILE_NAME('demo.ifc','2024-01-01',(''),(''),'','','');
FILE_SCHEMA(('IFC4X3'));
ENDSEC;
DATA;
#1=IFCPROJECT('GIDPROJECT000000000001',$,'It''s a project',$,$,$,$,$,$);
#2=IFCCARTESIANPOINT((1.5,-2.0,3.0E1));
#3=IFCRECTANGLEPROFILEDEF(.AREA.,$,$,IFCLENGTHMEASURE(4.0),0.3);
#4=IFCWALL('GIDWALL000000000000010',$,'Wall \\ A',$,$,$,$,'W-01');
ENDSEC;
END-ISO-10303-21;
`

func TestParseMinimalFile(t *testing.T) {
	f, err := Parse([]byte(minimalSTEP))
	require.NoError(t, err)
	assert.Equal(t, "IFC4X3", f.Schema)
	assert.Len(t, f.Entities(), 4)
}

func TestParseStringDecoding(t *testing.T) {
	f, err := Parse([]byte(minimalSTEP))
	require.NoError(t, err)

	project := f.ByID(1)
	require.NotNil(t, project)
	assert.Equal(t, "IfcProject", project.Type)
	assert.Equal(t, "It's a project", project.String(2))

	wall := f.ByID(4)
	require.NotNil(t, wall)
	assert.Equal(t, `Wall \ A`, wall.String(2))
	assert.Equal(t, "W-01", wall.String(7))
}

func TestParseNumbersAndLists(t *testing.T) {
	f, err := Parse([]byte(minimalSTEP))
	require.NoError(t, err)

	pt := f.ByID(2)
	require.NotNil(t, pt)
	coords := pt.ListAt(0)
	require.Len(t, coords, 3)
	assert.Equal(t, 1.5, coords[0].Num)
	assert.Equal(t, -2.0, coords[1].Num)
	assert.Equal(t, 30.0, coords[2].Num)
}

func TestParseTypedMeasureUnwraps(t *testing.T) {
	f, err := Parse([]byte(minimalSTEP))
	require.NoError(t, err)

	profile := f.ByID(3)
	require.NotNil(t, profile)
	assert.Equal(t, ArgEnum, profile.Args[0].Kind)
	assert.Equal(t, "AREA", profile.Args[0].Str)

	xdim, ok := profile.FloatAt(3)
	require.True(t, ok)
	assert.Equal(t, 4.0, xdim)
	ydim, ok := profile.FloatAt(4)
	require.True(t, ok)
	assert.Equal(t, 0.3, ydim)
}

func TestParseByTypeIsCaseInsensitive(t *testing.T) {
	f, err := Parse([]byte(minimalSTEP))
	require.NoError(t, err)
	assert.Len(t, f.ByType("IfcWall"), 1)
	assert.Len(t, f.ByType("IFCWALL"), 1)
	assert.Empty(t, f.ByType("IfcSlab"))
}

func TestParseRejectsNonSTEP(t *testing.T) {
	_, err := Parse([]byte("this is not a STEP file"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtraction)
}

func TestParseRejectsTruncatedData(t *testing.T) {
	truncated := `ISO-10303-21;
DATA;
#1=IFCPROJECT('GIDPROJECT000000000001',$,'P',$,$,$,$,$,$);
`
	_, err := Parse([]byte(truncated))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtraction)
}

func TestNormalizeTypeNameFallback(t *testing.T) {
	assert.Equal(t, "IfcWall", normalizeTypeName("IFCWALL"))
	assert.Equal(t, "IfcBuildingStorey", normalizeTypeName("IFCBUILDINGSTOREY"))
	// Unknown classes keep the Ifc prefix and title-case the rest.
	assert.Equal(t, "IfcSensor", normalizeTypeName("IFCSENSOR"))
}

func TestDerefDanglingReference(t *testing.T) {
	f, err := Parse([]byte(minimalSTEP))
	require.NoError(t, err)
	assert.Nil(t, f.Deref(Arg{Kind: ArgRef, Ref: 999}))
	assert.Nil(t, f.Deref(Arg{Kind: ArgNull}))
}
