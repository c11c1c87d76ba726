// Package shapes is a small metamodel used as a fixture by package tests.
package shapes

import "github.com/danmuck/treesync/internal/meta"

// Language is a fresh instance of the shapes language with every feature resolved.
type Language struct {
	Lang     *meta.Language
	Registry *meta.Registry

	Geometry       *meta.Classifier
	GeometryShapes *meta.Feature
	GeometryDoc    *meta.Feature
	GeometryFavs   *meta.Feature
	GeometryPinned *meta.Feature

	Line      *meta.Classifier
	LineName  *meta.Feature
	LineStart *meta.Feature
	LineEnd   *meta.Feature

	Circle       *meta.Classifier
	CircleName   *meta.Feature
	CircleRadius *meta.Feature
	CircleState  *meta.Feature
	CircleCenter *meta.Feature

	Group          *meta.Classifier
	GroupName      *meta.Feature
	GroupParts     *meta.Feature
	GroupDisabled  *meta.Feature
	GroupSource    *meta.Feature
	GroupAltSource *meta.Feature

	Coord  *meta.Classifier
	CoordX *meta.Feature
	CoordY *meta.Feature

	Documentation *meta.Classifier
	DocText       *meta.Feature
	DocTechnical  *meta.Feature

	BillOfMaterials *meta.Classifier
	BoMMaterials    *meta.Feature
	BoMNote         *meta.Feature

	MatterState *meta.Enumeration
}

// New builds the shapes language and its registry.
func New() *Language {
	lang := meta.NewLanguage("shapes", "1", "Shapes")
	s := &Language{Lang: lang}

	s.MatterState = lang.Enumeration("MatterState", "MatterState",
		meta.EnumLiteral{Key: "MatterState-solid", Name: "solid"},
		meta.EnumLiteral{Key: "MatterState-liquid", Name: "liquid"},
		meta.EnumLiteral{Key: "MatterState-gas", Name: "gas"},
	)

	s.Geometry = lang.PartitionConcept("Geometry", "Geometry")
	s.GeometryShapes = s.Geometry.Containment("Geometry-shapes", "shapes", true)
	s.GeometryDoc = s.Geometry.Containment("Geometry-documentation", "documentation", false)
	s.GeometryFavs = s.Geometry.Reference("Geometry-favorites", "favorites", true)
	s.GeometryPinned = s.Geometry.Reference("Geometry-pinned", "pinned", true)

	s.Coord = lang.Concept("Coord", "Coord")
	s.CoordX = s.Coord.Property("Coord-x", "x", meta.PrimitiveInteger)
	s.CoordY = s.Coord.Property("Coord-y", "y", meta.PrimitiveInteger)

	s.Line = lang.Concept("Line", "Line")
	s.LineName = s.Line.Property("Line-name", "name", meta.PrimitiveString)
	s.LineStart = s.Line.Containment("Line-start", "start", false)
	s.LineEnd = s.Line.Containment("Line-end", "end", false)

	s.Circle = lang.Concept("Circle", "Circle")
	s.CircleName = s.Circle.Property("Circle-name", "name", meta.PrimitiveString)
	s.CircleRadius = s.Circle.Property("Circle-r", "r", meta.PrimitiveInteger)
	s.CircleState = s.Circle.EnumProperty("Circle-state", "state", s.MatterState)
	s.CircleCenter = s.Circle.Containment("Circle-center", "center", false)

	s.Group = lang.Concept("Group", "Group")
	s.GroupName = s.Group.Property("Group-name", "name", meta.PrimitiveString)
	s.GroupParts = s.Group.Containment("Group-parts", "parts", true)
	s.GroupDisabled = s.Group.Containment("Group-disabledParts", "disabledParts", true)
	s.GroupSource = s.Group.Reference("Group-source", "source", false)
	s.GroupAltSource = s.Group.Reference("Group-altSource", "altSource", false)

	s.Documentation = lang.Concept("Documentation", "Documentation")
	s.DocText = s.Documentation.Property("Documentation-text", "text", meta.PrimitiveString)
	s.DocTechnical = s.Documentation.Property("Documentation-technical", "technical", meta.PrimitiveBoolean)

	s.BillOfMaterials = lang.AnnotationType("BillOfMaterials", "BillOfMaterials")
	s.BoMMaterials = s.BillOfMaterials.Reference("BillOfMaterials-materials", "materials", true)
	s.BoMNote = s.BillOfMaterials.Property("BillOfMaterials-note", "note", meta.PrimitiveString)

	reg, err := meta.NewRegistry(lang)
	if err != nil {
		panic(err)
	}
	s.Registry = reg
	return s
}
