package ifc

// canonicalClassNames maps STEP all-caps entity names to their IFC schema
// spelling. Covers every class the engine treats specially; anything else
// falls back to best-effort title casing in normalizeTypeName.
var canonicalClassNames = map[string]string{
	// Spatial structure
	"IFCPROJECT":        "IfcProject",
	"IFCSITE":           "IfcSite",
	"IFCBUILDING":       "IfcBuilding",
	"IFCBUILDINGSTOREY": "IfcBuildingStorey",
	"IFCSPACE":          "IfcSpace",

	// Building elements
	"IFCBEAM":                "IfcBeam",
	"IFCCOLUMN":              "IfcColumn",
	"IFCCOVERING":            "IfcCovering",
	"IFCCURTAINWALL":         "IfcCurtainWall",
	"IFCDISTRIBUTIONELEMENT": "IfcDistributionElement",
	"IFCDOOR":                "IfcDoor",
	"IFCFOOTING":             "IfcFooting",
	"IFCFURNISHINGELEMENT":   "IfcFurnishingElement",
	"IFCMEMBER":              "IfcMember",
	"IFCOPENINGELEMENT":      "IfcOpeningElement",
	"IFCPILE":                "IfcPile",
	"IFCPLATE":               "IfcPlate",
	"IFCRAILING":             "IfcRailing",
	"IFCROOF":                "IfcRoof",
	"IFCSLAB":                "IfcSlab",
	"IFCSTAIR":               "IfcStair",
	"IFCWALL":                "IfcWall",
	"IFCWALLSTANDARDCASE":    "IfcWallStandardCase",
	"IFCWINDOW":              "IfcWindow",

	// Objectified relationships
	"IFCRELAGGREGATES":                  "IfcRelAggregates",
	"IFCRELCONTAINEDINSPATIALSTRUCTURE": "IfcRelContainedInSpatialStructure",
	"IFCRELCONNECTSELEMENTS":            "IfcRelConnectsElements",
	"IFCRELVOIDSELEMENT":                "IfcRelVoidsElement",
	"IFCRELFILLSELEMENT":                "IfcRelFillsElement",
	"IFCRELDEFINESBYPROPERTIES":         "IfcRelDefinesByProperties",
	"IFCRELDEFINESBYTYPE":               "IfcRelDefinesByType",
	"IFCRELASSOCIATESMATERIAL":          "IfcRelAssociatesMaterial",

	// Geometry and placement (used by the tessellator)
	"IFCPRODUCTDEFINITIONSHAPE": "IfcProductDefinitionShape",
	"IFCSHAPEREPRESENTATION":    "IfcShapeRepresentation",
	"IFCEXTRUDEDAREASOLID":      "IfcExtrudedAreaSolid",
	"IFCRECTANGLEPROFILEDEF":    "IfcRectangleProfileDef",
	"IFCAXIS2PLACEMENT3D":       "IfcAxis2Placement3D",
	"IFCLOCALPLACEMENT":         "IfcLocalPlacement",
	"IFCCARTESIANPOINT":         "IfcCartesianPoint",
	"IFCDIRECTION":              "IfcDirection",

	// Common non-products that carry a GlobalId
	"IFCPROPERTYSET":                    "IfcPropertySet",
	"IFCELEMENTQUANTITY":                "IfcElementQuantity",
	"IFCOWNERHISTORY":                   "IfcOwnerHistory",
	"IFCPERSON":                         "IfcPerson",
	"IFCORGANIZATION":                   "IfcOrganization",
	"IFCAPPLICATION":                    "IfcApplication",
	"IFCUNITASSIGNMENT":                 "IfcUnitAssignment",
	"IFCGEOMETRICREPRESENTATIONCONTEXT": "IfcGeometricRepresentationContext",
}
