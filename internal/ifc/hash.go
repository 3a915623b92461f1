package ifc

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bimatlas/bimatlas/internal/types"
)

// ContentHash computes the SHA-256 change-detection hash of a product
// record over every mutable field in a fixed order. Text fields are
// NUL-separated so that ("ab","c") and ("a","bc") hash differently; binary
// buffers are already fixed little-endian so they are hashed as-is.
func ContentHash(r *types.ProductRecord) string {
	h := sha256.New()
	for _, s := range []string{
		r.IfcClass, r.Name, r.Description, r.ObjectType, r.Tag, r.ContainedIn,
	} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write(r.Vertices)
	h.Write([]byte{0})
	h.Write(r.Normals)
	h.Write([]byte{0})
	h.Write(r.Faces)
	h.Write([]byte{0})
	h.Write(r.Matrix)
	return hex.EncodeToString(h.Sum(nil))
}
