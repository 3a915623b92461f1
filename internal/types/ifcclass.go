package types

import "sort"

// IFC 4.3 objectified relationship entities used as graph edge labels.
const (
	RelAggregates         = "IfcRelAggregates"
	RelContainedInSpatial = "IfcRelContainedInSpatialStructure"
	RelConnectsElements   = "IfcRelConnectsElements"
	RelVoidsElement       = "IfcRelVoidsElement"
	RelFillsElement       = "IfcRelFillsElement"
)

// RelationshipTypes lists every relationship entity the extractor emits.
var RelationshipTypes = []string{
	RelAggregates,
	RelContainedInSpatial,
	RelConnectsElements,
	RelVoidsElement,
	RelFillsElement,
}

// spatialClasses are the IfcSpatialStructureElement subtypes. They form the
// spatial decomposition tree and are stored without geometry unless the
// tessellator produces some.
var spatialClasses = map[string]bool{
	"IfcProject":        true,
	"IfcSite":           true,
	"IfcBuilding":       true,
	"IfcBuildingStorey": true,
	"IfcSpace":          true,
}

// IsSpatialClass reports whether class is a spatial structure element.
func IsSpatialClass(class string) bool {
	return spatialClasses[class]
}

// classHierarchy maps abstract IFC classes to their concrete descendants.
// This is the fixed subset the engine understands; filtering by an abstract
// class expands to its leaves client-side because the store keeps only the
// concrete class per row.
var classHierarchy = map[string][]string{
	"IfcSpatialStructureElement": {
		"IfcProject", "IfcSite", "IfcBuilding", "IfcBuildingStorey", "IfcSpace",
	},
	"IfcBuildingElement": {
		"IfcBeam", "IfcColumn", "IfcCovering", "IfcCurtainWall", "IfcDoor",
		"IfcFooting", "IfcMember", "IfcPile", "IfcPlate", "IfcRailing",
		"IfcRoof", "IfcSlab", "IfcStair", "IfcWall", "IfcWallStandardCase",
		"IfcWindow",
	},
	"IfcWall": {"IfcWallStandardCase"},
	"IfcElement": {
		"IfcBeam", "IfcColumn", "IfcCovering", "IfcCurtainWall",
		"IfcDistributionElement", "IfcDoor", "IfcFooting",
		"IfcFurnishingElement", "IfcMember", "IfcOpeningElement", "IfcPile",
		"IfcPlate", "IfcRailing", "IfcRoof", "IfcSlab", "IfcStair", "IfcWall",
		"IfcWallStandardCase", "IfcWindow",
	},
}

// ExpandClasses expands abstract IFC class names to the set of concrete
// classes they cover, keeping concrete names as-is. The result is sorted and
// de-duplicated; an abstract class always includes itself so rows stored
// under the abstract name still match.
func ExpandClasses(classes []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range classes {
		add(c)
		for _, d := range classHierarchy[c] {
			add(d)
		}
	}
	sort.Strings(out)
	return out
}
