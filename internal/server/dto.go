package server

import (
	"encoding/base64"

	"github.com/bimatlas/bimatlas/internal/types"
)

// meshDTO carries the raw geometry buffers base64-encoded: little-endian
// float32 vertex and normal triples, uint32 face indices, and a row-major
// float64 4x4 placement matrix.
type meshDTO struct {
	Vertices string `json:"vertices"`
	Normals  string `json:"normals"`
	Faces    string `json:"faces"`
	Matrix   string `json:"matrix"`
}

// productDTO is the wire shape of one product version.
type productDTO struct {
	GlobalID     string   `json:"globalId"`
	IfcClass     string   `json:"ifcClass"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	ObjectType   string   `json:"objectType,omitempty"`
	Tag          string   `json:"tag,omitempty"`
	ContainedIn  string   `json:"containedIn,omitempty"`
	Mesh         *meshDTO `json:"mesh,omitempty"`
	ValidFromRev int64    `json:"validFromRev"`
	ValidToRev   *int64   `json:"validToRev,omitempty"`
}

// productDetailDTO embeds the graph neighborhood into a single-product
// response.
type productDetailDTO struct {
	productDTO
	Relations []*types.RelatedProduct `json:"relations"`
}

func toProductDTO(p *types.Product) *productDTO {
	dto := &productDTO{
		GlobalID:     p.GlobalID,
		IfcClass:     p.IfcClass,
		Name:         p.Name,
		Description:  p.Description,
		ObjectType:   p.ObjectType,
		Tag:          p.Tag,
		ContainedIn:  p.ContainedIn,
		ValidFromRev: p.ValidFrom,
		ValidToRev:   p.ValidTo,
	}
	if p.HasGeometry() {
		dto.Mesh = &meshDTO{
			Vertices: base64.StdEncoding.EncodeToString(p.Vertices),
			Normals:  base64.StdEncoding.EncodeToString(p.Normals),
			Faces:    base64.StdEncoding.EncodeToString(p.Faces),
			Matrix:   base64.StdEncoding.EncodeToString(p.Matrix),
		}
	}
	return dto
}

// productListDTO wraps a product listing with its resolved revision.
type productListDTO struct {
	BranchID int64         `json:"branchId"`
	Revision int64         `json:"revision"`
	Total    int           `json:"total"`
	Products []*productDTO `json:"products"`
}

// spatialTreeDTO wraps the spatial tree with its resolved revision.
type spatialTreeDTO struct {
	BranchID int64                `json:"branchId"`
	Revision int64                `json:"revision"`
	Roots    []*types.SpatialNode `json:"roots"`
}
