package ifc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Mesh is a triangulated product shape in world coordinates.
type Mesh struct {
	Vertices []float32   // x,y,z triples
	Normals  []float32   // x,y,z triples, one per vertex
	Faces    []uint32    // vertex indices, three per triangle
	Matrix   [16]float64 // row-major 4x4 placement
}

// Tessellator turns a product's shape representation into a triangle mesh.
// The engine treats tessellation as a black box: a nil mesh with a nil error
// means the product has no shape, and an error means the shape exists but
// could not be tessellated (the product is still ingested, without geometry).
type Tessellator interface {
	Tessellate(f *File, product *Entity) (*Mesh, error)
}

// VerticesBytes serialises the vertex buffer as little-endian float32.
func (m *Mesh) VerticesBytes() []byte { return float32Bytes(m.Vertices) }

// NormalsBytes serialises the normal buffer as little-endian float32.
func (m *Mesh) NormalsBytes() []byte { return float32Bytes(m.Normals) }

// FacesBytes serialises the index buffer as little-endian uint32.
func (m *Mesh) FacesBytes() []byte {
	if len(m.Faces) == 0 {
		return nil
	}
	out := make([]byte, 4*len(m.Faces))
	for i, v := range m.Faces {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// MatrixBytes serialises the placement matrix as little-endian float64.
func (m *Mesh) MatrixBytes() []byte {
	out := make([]byte, 8*len(m.Matrix))
	for i, v := range m.Matrix {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

func float32Bytes(vals []float32) []byte {
	if len(vals) == 0 {
		return nil
	}
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func identityMatrix() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// ExtrusionTessellator is the built-in tessellator. It handles
// IfcExtrudedAreaSolid over IfcRectangleProfileDef (the overwhelmingly common
// case for walls, slabs and columns in simple models), producing an
// axis-aligned box with world placement baked into the vertices. Any other
// representation yields an error so the extractor can record a diagnostic.
type ExtrusionTessellator struct{}

func (ExtrusionTessellator) Tessellate(f *File, product *Entity) (*Mesh, error) {
	solid := findExtrudedSolid(f, product)
	if solid == nil {
		if productShape(f, product) == nil {
			return nil, nil // no shape at all
		}
		return nil, fmt.Errorf("unsupported representation for %s #%d", product.Type, product.ID)
	}

	profile := f.Deref(argOrNull(solid.Args, 0))
	if profile == nil || profile.Type != "IfcRectangleProfileDef" {
		return nil, fmt.Errorf("unsupported profile for solid #%d", solid.ID)
	}
	xdim, okX := profile.FloatAt(3)
	ydim, okY := profile.FloatAt(4)
	depth, okD := solid.FloatAt(3)
	if !okX || !okY || !okD || xdim <= 0 || ydim <= 0 || depth <= 0 {
		return nil, fmt.Errorf("degenerate extrusion for solid #%d", solid.ID)
	}

	// World offset: accumulate the local placement chain translations.
	// Rotations are not applied; models beyond that need a real geometry
	// kernel plugged in via the Tessellator interface.
	ox, oy, oz := placementOffset(f, product)

	return boxMesh(ox, oy, oz, xdim, ydim, depth), nil
}

func argOrNull(args []Arg, i int) Arg {
	if i < 0 || i >= len(args) {
		return Arg{Kind: ArgNull}
	}
	return args[i]
}

// productShape resolves the IfcProductDefinitionShape of a product, if any.
// For every IfcProduct subtype the Representation attribute sits at index 6
// (after GlobalId, OwnerHistory, Name, Description, ObjectType, ObjectPlacement).
func productShape(f *File, product *Entity) *Entity {
	shape := f.Deref(argOrNull(product.Args, 6))
	if shape == nil || shape.Type != "IfcProductDefinitionShape" {
		return nil
	}
	return shape
}

func findExtrudedSolid(f *File, product *Entity) *Entity {
	shape := productShape(f, product)
	if shape == nil {
		return nil
	}
	for _, repArg := range shape.ListAt(2) {
		rep := f.Deref(repArg)
		if rep == nil || rep.Type != "IfcShapeRepresentation" {
			continue
		}
		for _, itemArg := range rep.ListAt(3) {
			item := f.Deref(itemArg)
			if item != nil && item.Type == "IfcExtrudedAreaSolid" {
				return item
			}
		}
	}
	return nil
}

// placementOffset walks the IfcLocalPlacement chain of a product and sums
// the translation components of each IfcAxis2Placement3D.
func placementOffset(f *File, product *Entity) (x, y, z float64) {
	placement := f.Deref(argOrNull(product.Args, 5))
	for depth := 0; placement != nil && placement.Type == "IfcLocalPlacement" && depth < 64; depth++ {
		if axis := f.Deref(argOrNull(placement.Args, 1)); axis != nil && axis.Type == "IfcAxis2Placement3D" {
			if pt := f.Deref(argOrNull(axis.Args, 0)); pt != nil && pt.Type == "IfcCartesianPoint" {
				coords := pt.ListAt(0)
				if len(coords) > 0 && coords[0].Kind == ArgNumber {
					x += coords[0].Num
				}
				if len(coords) > 1 && coords[1].Kind == ArgNumber {
					y += coords[1].Num
				}
				if len(coords) > 2 && coords[2].Kind == ArgNumber {
					z += coords[2].Num
				}
			}
		}
		placement = f.Deref(argOrNull(placement.Args, 0))
	}
	return x, y, z
}

// boxMesh builds a box centred on (ox,oy) spanning [oz, oz+depth] with
// per-face flat normals. 24 vertices, 12 triangles.
func boxMesh(ox, oy, oz, xdim, ydim, depth float64) *Mesh {
	hx, hy := float32(xdim/2), float32(ydim/2)
	x0, y0, z0 := float32(ox), float32(oy), float32(oz)
	z1 := z0 + float32(depth)

	type face struct {
		n [3]float32
		v [4][3]float32
	}
	faces := []face{
		{n: [3]float32{0, 0, -1}, v: [4][3]float32{{x0 - hx, y0 - hy, z0}, {x0 + hx, y0 - hy, z0}, {x0 + hx, y0 + hy, z0}, {x0 - hx, y0 + hy, z0}}},
		{n: [3]float32{0, 0, 1}, v: [4][3]float32{{x0 - hx, y0 - hy, z1}, {x0 + hx, y0 - hy, z1}, {x0 + hx, y0 + hy, z1}, {x0 - hx, y0 + hy, z1}}},
		{n: [3]float32{0, -1, 0}, v: [4][3]float32{{x0 - hx, y0 - hy, z0}, {x0 + hx, y0 - hy, z0}, {x0 + hx, y0 - hy, z1}, {x0 - hx, y0 - hy, z1}}},
		{n: [3]float32{0, 1, 0}, v: [4][3]float32{{x0 - hx, y0 + hy, z0}, {x0 + hx, y0 + hy, z0}, {x0 + hx, y0 + hy, z1}, {x0 - hx, y0 + hy, z1}}},
		{n: [3]float32{-1, 0, 0}, v: [4][3]float32{{x0 - hx, y0 - hy, z0}, {x0 - hx, y0 + hy, z0}, {x0 - hx, y0 + hy, z1}, {x0 - hx, y0 - hy, z1}}},
		{n: [3]float32{1, 0, 0}, v: [4][3]float32{{x0 + hx, y0 - hy, z0}, {x0 + hx, y0 + hy, z0}, {x0 + hx, y0 + hy, z1}, {x0 + hx, y0 - hy, z1}}},
	}

	m := &Mesh{Matrix: identityMatrix()}
	for _, fc := range faces {
		base := uint32(len(m.Vertices) / 3)
		for _, v := range fc.v {
			m.Vertices = append(m.Vertices, v[0], v[1], v[2])
			m.Normals = append(m.Normals, fc.n[0], fc.n[1], fc.n[2])
		}
		m.Faces = append(m.Faces, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}
