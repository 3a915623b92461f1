package ifc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bimatlas/bimatlas/internal/types"
)

func sampleRecord() *types.ProductRecord {
	return &types.ProductRecord{
		GlobalID:    "GIDWALL000000000000010",
		IfcClass:    "IfcWall",
		Name:        "Wall A",
		Description: "South wall",
		ObjectType:  "Basic",
		Tag:         "W-01",
		ContainedIn: "GIDSTOREY0000000000004",
		Vertices:    []byte{1, 2, 3},
		Normals:     []byte{4, 5, 6},
		Faces:       []byte{7, 8},
		Matrix:      []byte{9},
	}
}

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash(sampleRecord())
	b := ContentHash(sampleRecord())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex SHA-256
}

func TestContentHashSensitivity(t *testing.T) {
	base := ContentHash(sampleRecord())

	mutations := map[string]func(*types.ProductRecord){
		"name":         func(r *types.ProductRecord) { r.Name = "Wall B" },
		"description":  func(r *types.ProductRecord) { r.Description = "North wall" },
		"object_type":  func(r *types.ProductRecord) { r.ObjectType = "Curtain" },
		"tag":          func(r *types.ProductRecord) { r.Tag = "W-02" },
		"contained_in": func(r *types.ProductRecord) { r.ContainedIn = "GIDSTOREY0000000000005" },
		"ifc_class":    func(r *types.ProductRecord) { r.IfcClass = "IfcSlab" },
		"vertices":     func(r *types.ProductRecord) { r.Vertices = []byte{9, 9, 9} },
		"normals":      func(r *types.ProductRecord) { r.Normals = []byte{9, 9, 9} },
		"faces":        func(r *types.ProductRecord) { r.Faces = []byte{9, 9} },
		"matrix":       func(r *types.ProductRecord) { r.Matrix = []byte{0} },
	}
	for field, mutate := range mutations {
		r := sampleRecord()
		mutate(r)
		assert.NotEqual(t, base, ContentHash(r), "field %s must affect the hash", field)
	}
}

func TestContentHashIgnoresGlobalID(t *testing.T) {
	// Identity is the key, not part of the content.
	a := sampleRecord()
	b := sampleRecord()
	b.GlobalID = "GIDWALL000000000000099"
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHashFieldBoundaries(t *testing.T) {
	// Separators keep adjacent fields from bleeding into each other.
	a := sampleRecord()
	a.Name = "AB"
	a.Description = "C"
	b := sampleRecord()
	b.Name = "A"
	b.Description = "BC"
	assert.NotEqual(t, ContentHash(a), ContentHash(b))
}
