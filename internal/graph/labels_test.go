package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelCacheSeparatesKinds(t *testing.T) {
	c := newLabelCache()

	assert.False(t, c.has("IfcWall", false))
	assert.False(t, c.has("IfcWall", true))

	c.add("IfcWall", false)
	assert.True(t, c.has("IfcWall", false))
	assert.False(t, c.has("IfcWall", true), "vertex label must not satisfy edge lookup")

	c.add("IfcRelAggregates", true)
	assert.True(t, c.has("IfcRelAggregates", true))
	assert.False(t, c.has("IfcRelAggregates", false))
}
