package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSpatialClass(t *testing.T) {
	for _, c := range []string{"IfcProject", "IfcSite", "IfcBuilding", "IfcBuildingStorey", "IfcSpace"} {
		assert.True(t, IsSpatialClass(c), c)
	}
	assert.False(t, IsSpatialClass("IfcWall"))
	assert.False(t, IsSpatialClass(""))
}

func TestExpandClassesConcretePassThrough(t *testing.T) {
	assert.Equal(t, []string{"IfcDoor", "IfcSlab"}, ExpandClasses([]string{"IfcSlab", "IfcDoor"}))
}

func TestExpandClassesAbstract(t *testing.T) {
	out := ExpandClasses([]string{"IfcWall"})
	assert.Equal(t, []string{"IfcWall", "IfcWallStandardCase"}, out)

	out = ExpandClasses([]string{"IfcSpatialStructureElement"})
	assert.Contains(t, out, "IfcSpatialStructureElement")
	assert.Contains(t, out, "IfcBuildingStorey")
	assert.Contains(t, out, "IfcSpace")
	assert.Len(t, out, 6)
}

func TestExpandClassesDeduplicates(t *testing.T) {
	out := ExpandClasses([]string{"IfcWall", "IfcWallStandardCase", "IfcBuildingElement"})
	seen := make(map[string]int)
	for _, c := range out {
		seen[c]++
	}
	for c, n := range seen {
		assert.Equal(t, 1, n, c)
	}
	assert.Contains(t, out, "IfcWindow")
}

func TestExpandClassesEmpty(t *testing.T) {
	assert.Empty(t, ExpandClasses(nil))
}

func TestProductHasGeometry(t *testing.T) {
	p := &Product{}
	assert.False(t, p.HasGeometry())
	p.Vertices = []byte{1}
	assert.False(t, p.HasGeometry())
	p.Faces = []byte{2}
	assert.True(t, p.HasGeometry())
}

func TestProductFilterEmpty(t *testing.T) {
	assert.True(t, ProductFilter{}.Empty())
	assert.False(t, ProductFilter{Name: "wall"}.Empty())
	assert.False(t, ProductFilter{IfcClasses: []string{"IfcWall"}}.Empty())
}
