package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bimatlas/bimatlas/internal/types"
)

func TestValidateGlobalID(t *testing.T) {
	assert.NoError(t, ValidateGlobalID("GIDWALL000000000000010"))
	assert.NoError(t, ValidateGlobalID("0$abc_DEF-9"))

	for _, bad := range []string{
		"",
		"has space",
		"quote'inject",
		`back\slash`,
		"curly{brace}",
		"semi;colon",
	} {
		err := ValidateGlobalID(bad)
		assert.ErrorIs(t, err, types.ErrValidation, bad)
	}
}

func TestValidateLabel(t *testing.T) {
	assert.NoError(t, ValidateLabel("IfcWall"))
	assert.NoError(t, ValidateLabel("IfcRelAggregates"))
	assert.NoError(t, ValidateLabel("IfcAxis2Placement3D"))

	for _, bad := range []string{"", "9Lives", "Ifc Wall", "Ifc-Wall", "Ifc'Wall"} {
		assert.ErrorIs(t, ValidateLabel(bad), types.ErrValidation, bad)
	}
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, `Wall A`, EscapeString("Wall A"))
	assert.Equal(t, `It\'s`, EscapeString("It's"))
	assert.Equal(t, `a\\b`, EscapeString(`a\b`))
	assert.Equal(t, `line\nbreak`, EscapeString("line\nbreak"))
	// Backslash escapes before quote so the two do not interleave.
	assert.Equal(t, `\\\'`, EscapeString(`\'`))
}

func TestRevFilter(t *testing.T) {
	got := revFilter("n", 7, 3)
	assert.Equal(t,
		"n.branch_id = 3 AND n.valid_from_rev <= 7 AND (n.valid_to_rev = -1 OR n.valid_to_rev > 7)",
		got)
}
