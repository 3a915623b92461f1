package ifc

import (
	"fmt"
	"strings"

	"github.com/bimatlas/bimatlas/internal/types"
)

// Extraction is the full output of parsing one IFC file: product records in
// file order (spatial elements included), directed relationship records, and
// per-element diagnostics for shapes the tessellator could not handle.
type Extraction struct {
	Products      []*types.ProductRecord
	Relationships []*types.RelationshipRecord
	Diagnostics   []string
}

// ProductsByGID indexes the extracted products by GlobalId.
func (x *Extraction) ProductsByGID() map[string]*types.ProductRecord {
	m := make(map[string]*types.ProductRecord, len(x.Products))
	for _, p := range x.Products {
		m[p.GlobalID] = p
	}
	return m
}

// Extractor turns IFC files into product and relationship records without
// touching storage.
type Extractor struct {
	Tess Tessellator
}

// NewExtractor returns an extractor using the built-in extrusion tessellator.
func NewExtractor() *Extractor {
	return &Extractor{Tess: ExtrusionTessellator{}}
}

// ExtractFile opens and extracts an IFC file from disk.
func (x *Extractor) ExtractFile(path string) (*Extraction, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	return x.Extract(f)
}

// Extract walks an already-parsed model. Products that cannot be
// tessellated are emitted with empty geometry and a diagnostic; they are
// never dropped.
func (x *Extractor) Extract(f *File) (*Extraction, error) {
	out := &Extraction{}
	containment := buildContainmentMap(f)

	for _, e := range f.Entities() {
		if !isProductEntity(e) {
			continue
		}
		gid := e.String(0)
		rec := &types.ProductRecord{
			GlobalID:    gid,
			IfcClass:    e.Type,
			Name:        e.String(2),
			Description: e.String(3),
			ObjectType:  e.String(4),
			ContainedIn: containment[gid],
		}
		if !types.IsSpatialClass(e.Type) {
			// IfcElement.Tag sits after ObjectPlacement and Representation.
			rec.Tag = e.String(7)
		}

		mesh, err := x.Tess.Tessellate(f, e)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("tessellation failed for %s %s: %v", e.Type, gid, err))
		} else if mesh != nil {
			rec.Vertices = mesh.VerticesBytes()
			rec.Normals = mesh.NormalsBytes()
			rec.Faces = mesh.FacesBytes()
			rec.Matrix = mesh.MatrixBytes()
		}

		rec.ContentHash = ContentHash(rec)
		out.Products = append(out.Products, rec)
	}

	out.Relationships = extractRelationships(f)
	return out, nil
}

// buildContainmentMap maps element GlobalId -> enclosing spatial container
// GlobalId. Physical elements get their IfcRelContainedInSpatialStructure
// container (per IFC 4.3 each element has at most one); spatial elements get
// their aggregation parent when that parent is itself spatial.
func buildContainmentMap(f *File) map[string]string {
	containment := make(map[string]string)

	for _, rel := range f.ByType(types.RelContainedInSpatial) {
		container := f.Deref(argOrNull(rel.Args, 5))
		if container == nil {
			continue
		}
		cgid := container.String(0)
		if cgid == "" {
			continue
		}
		for _, ea := range rel.ListAt(4) {
			if elem := f.Deref(ea); elem != nil {
				if gid := elem.String(0); gid != "" {
					containment[gid] = cgid
				}
			}
		}
	}

	for _, rel := range f.ByType(types.RelAggregates) {
		parent := f.Deref(argOrNull(rel.Args, 4))
		if parent == nil || !types.IsSpatialClass(parent.Type) {
			continue
		}
		pgid := parent.String(0)
		if pgid == "" {
			continue
		}
		for _, ca := range rel.ListAt(5) {
			child := f.Deref(ca)
			if child == nil || !types.IsSpatialClass(child.Type) {
				continue
			}
			if gid := child.String(0); gid != "" {
				containment[gid] = pgid
			}
		}
	}

	return containment
}

// nonProductClasses carry a GlobalId but are not IfcProduct subtypes.
var nonProductClasses = map[string]bool{
	"IfcPropertySet":     true,
	"IfcElementQuantity": true,
}

// isProductEntity reports whether an entity should become a product record:
// it must carry a well-formed GlobalId as its first attribute and not be an
// objectified relationship, a property definition, or a type/style object.
func isProductEntity(e *Entity) bool {
	if !IsGlobalID(e.String(0)) {
		return false
	}
	if strings.HasPrefix(e.Type, "IfcRel") {
		return false
	}
	if nonProductClasses[e.Type] {
		return false
	}
	// Case-insensitive: unknown type objects normalise to e.g. "IfcWalltype".
	lower := strings.ToLower(e.Type)
	if strings.HasSuffix(lower, "type") || strings.HasSuffix(lower, "style") {
		return false
	}
	return true
}

// IsGlobalID reports whether s is a well-formed IFC GlobalId: 22 characters
// of the IFC base64 alphabet (A-Za-z0-9_$).
func IsGlobalID(s string) bool {
	if len(s) != 22 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '_', c == '$':
		default:
			return false
		}
	}
	return true
}

// extractRelationships walks the five objectified relationship entities and
// emits directed (from, to, type) triples. Only endpoints with a GlobalId
// participate; dangling references are skipped.
func extractRelationships(f *File) []*types.RelationshipRecord {
	var rels []*types.RelationshipRecord
	add := func(from, to *Entity, relType string) {
		if from == nil || to == nil {
			return
		}
		fgid, tgid := from.String(0), to.String(0)
		if fgid == "" || tgid == "" {
			return
		}
		rels = append(rels, &types.RelationshipRecord{
			FromGlobalID:     fgid,
			ToGlobalID:       tgid,
			RelationshipType: relType,
		})
	}

	// IfcRelAggregates: parent -> each child.
	for _, rel := range f.ByType(types.RelAggregates) {
		parent := f.Deref(argOrNull(rel.Args, 4))
		for _, ca := range rel.ListAt(5) {
			add(parent, f.Deref(ca), types.RelAggregates)
		}
	}

	// IfcRelContainedInSpatialStructure: each element -> container.
	for _, rel := range f.ByType(types.RelContainedInSpatial) {
		container := f.Deref(argOrNull(rel.Args, 5))
		for _, ea := range rel.ListAt(4) {
			add(f.Deref(ea), container, types.RelContainedInSpatial)
		}
	}

	// IfcRelVoidsElement: building element -> opening.
	for _, rel := range f.ByType(types.RelVoidsElement) {
		add(f.Deref(argOrNull(rel.Args, 4)), f.Deref(argOrNull(rel.Args, 5)), types.RelVoidsElement)
	}

	// IfcRelFillsElement: opening -> filling element.
	for _, rel := range f.ByType(types.RelFillsElement) {
		add(f.Deref(argOrNull(rel.Args, 4)), f.Deref(argOrNull(rel.Args, 5)), types.RelFillsElement)
	}

	// IfcRelConnectsElements: relating -> related (after ConnectionGeometry).
	for _, rel := range f.ByType(types.RelConnectsElements) {
		add(f.Deref(argOrNull(rel.Args, 5)), f.Deref(argOrNull(rel.Args, 6)), types.RelConnectsElements)
	}

	return rels
}
