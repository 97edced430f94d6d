package ifc

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Supported schema identifiers
const (
	SchemaIFC2X3 = "IFC2X3"
	SchemaIFC4   = "IFC4"
)

var ErrUnsupportedSchema = errors.New("unsupported IFC schema")

// DetectSchema reads the header section and returns the FILE_SCHEMA
// identifier. IFC2X3_TC1 is reported as IFC2X3.
func DetectSchema(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read header: %w", err)
	}
	h, err := readHeader(data)
	if err != nil {
		return "", err
	}
	return h.schema()
}

// header holds the entries of a HEADER section by upper case name
type header struct {
	entries map[string][]Value
	// dataStart is the offset just past the DATA keyword, -1 without one
	dataStart int
}

// readHeader parses the HEADER section entry by entry, so text inside
// quoted strings never ends the section early
func readHeader(src []byte) (*header, error) {
	p := &stepParser{src: src}
	p.skipSpace()
	if p.hasPrefix("ISO-10303-21") {
		p.pos += len("ISO-10303-21")
		p.skipSpace()
		if !p.consume(';') {
			return nil, p.errorf("expected ';' after ISO-10303-21")
		}
		p.skipSpace()
	}
	if !p.keyword("HEADER") {
		return nil, p.errorf("expected HEADER section")
	}

	h := &header{entries: make(map[string][]Value), dataStart: -1}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated HEADER section")
		}
		if p.keyword("ENDSEC") {
			break
		}
		name := strings.ToUpper(p.parseIdent())
		if name == "" {
			return nil, p.errorf("expected header entry")
		}
		p.skipSpace()
		args, err := p.parseList()
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", name, err)
		}
		p.skipSpace()
		if !p.consume(';') {
			return nil, p.errorf("expected ';' after %s", name)
		}
		h.entries[name] = args
	}

	p.skipSpace()
	if p.keyword("DATA") {
		h.dataStart = p.pos
	}
	return h, nil
}

func (h *header) schema() (string, error) {
	args, ok := h.entries["FILE_SCHEMA"]
	if !ok {
		return "", fmt.Errorf("%w: no FILE_SCHEMA in header", ErrUnsupportedSchema)
	}
	if len(args) == 0 {
		return "", fmt.Errorf("%w: malformed FILE_SCHEMA", ErrUnsupportedSchema)
	}
	names, ok := args[0].Texts()
	if !ok || len(names) == 0 {
		return "", fmt.Errorf("%w: malformed FILE_SCHEMA", ErrUnsupportedSchema)
	}

	name := strings.ToUpper(strings.TrimSpace(names[0]))
	switch name {
	case "IFC2X3", "IFC2X3_TC1":
		return SchemaIFC2X3, nil
	case "IFC4":
		return SchemaIFC4, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedSchema, name)
}

// product attributes shared by every IfcProduct subtype
var productAttrs = []string{
	"GlobalId", "OwnerHistory", "Name", "Description", "ObjectType",
	"ObjectPlacement", "Representation",
}

func withProduct(extra ...string) []string {
	out := make([]string, 0, len(productAttrs)+len(extra))
	out = append(out, productAttrs...)
	return append(out, extra...)
}

// attributeNames binds positional STEP arguments to attribute names for the
// entity types the converter reads. Other types keep positional args only.
var attributeNames = map[string][]string{
	"IFCPROJECT": {"GlobalId", "OwnerHistory", "Name", "Description", "ObjectType",
		"LongName", "Phase", "RepresentationContexts", "UnitsInContext"},
	"IFCSITE": withProduct("LongName", "CompositionType", "RefLatitude", "RefLongitude",
		"RefElevation", "LandTitleNumber", "SiteAddress"),
	"IFCBUILDING": withProduct("LongName", "CompositionType", "ElevationOfRefHeight",
		"ElevationOfTerrain", "BuildingAddress"),
	"IFCBUILDINGSTOREY": withProduct("LongName", "CompositionType", "Elevation"),
	"IFCSPACE":          withProduct("LongName", "CompositionType", "PredefinedType", "ElevationWithFlooring"),

	"IFCSLAB":                 withProduct("Tag", "PredefinedType"),
	"IFCSLABSTANDARDCASE":     withProduct("Tag", "PredefinedType"),
	"IFCSLABELEMENTEDCASE":    withProduct("Tag", "PredefinedType"),
	"IFCWALL":                 withProduct("Tag", "PredefinedType"),
	"IFCWALLSTANDARDCASE":     withProduct("Tag", "PredefinedType"),
	"IFCWALLELEMENTEDCASE":    withProduct("Tag", "PredefinedType"),
	"IFCCOLUMN":               withProduct("Tag", "PredefinedType"),
	"IFCCOLUMNSTANDARDCASE":   withProduct("Tag", "PredefinedType"),
	"IFCDOOR":                 withProduct("Tag", "OverallHeight", "OverallWidth", "PredefinedType", "OperationType", "UserDefinedOperationType"),
	"IFCDOORSTANDARDCASE":     withProduct("Tag", "OverallHeight", "OverallWidth", "PredefinedType", "OperationType", "UserDefinedOperationType"),
	"IFCWINDOW":               withProduct("Tag", "OverallHeight", "OverallWidth", "PredefinedType", "PartitioningType", "UserDefinedPartitioningType"),
	"IFCWINDOWSTANDARDCASE":   withProduct("Tag", "OverallHeight", "OverallWidth", "PredefinedType", "PartitioningType", "UserDefinedPartitioningType"),
	"IFCSTAIR":                withProduct("Tag", "PredefinedType"),
	"IFCSTAIRFLIGHT":          withProduct("Tag", "NumberOfRiser", "NumberOfTreads", "RiserHeight", "TreadLength", "PredefinedType"),
	"IFCOPENINGELEMENT":       withProduct("Tag", "PredefinedType"),
	"IFCBUILDINGELEMENTPROXY": withProduct("Tag", "PredefinedType"),

	"IFCRELCONTAINEDINSPATIALSTRUCTURE": {"GlobalId", "OwnerHistory", "Name", "Description",
		"RelatedElements", "RelatingStructure"},

	"IFCUNITASSIGNMENT":      {"Units"},
	"IFCSIUNIT":              {"Dimensions", "UnitType", "Prefix", "Name"},
	"IFCCONVERSIONBASEDUNIT": {"Dimensions", "UnitType", "Name", "ConversionFactor"},

	"IFCGEOMETRICREPRESENTATIONCONTEXT": {"ContextIdentifier", "ContextType",
		"CoordinateSpaceDimension", "Precision", "WorldCoordinateSystem", "TrueNorth"},
	"IFCGEOMETRICREPRESENTATIONSUBCONTEXT": {"ContextIdentifier", "ContextType",
		"CoordinateSpaceDimension", "Precision", "WorldCoordinateSystem", "TrueNorth",
		"ParentContext", "TargetScale", "TargetView", "UserDefinedTargetView"},

	"IFCLOCALPLACEMENT":   {"PlacementRelTo", "RelativePlacement"},
	"IFCAXIS2PLACEMENT3D": {"Location", "Axis", "RefDirection"},
	"IFCAXIS2PLACEMENT2D": {"Location", "RefDirection"},
	"IFCCARTESIANPOINT":   {"Coordinates"},
	"IFCDIRECTION":        {"DirectionRatios"},

	"IFCPRODUCTDEFINITIONSHAPE": {"Name", "Description", "Representations"},
	"IFCSHAPEREPRESENTATION":    {"ContextOfItems", "RepresentationIdentifier", "RepresentationType", "Items"},

	"IFCEXTRUDEDAREASOLID":            {"SweptArea", "Position", "ExtrudedDirection", "Depth"},
	"IFCARBITRARYCLOSEDPROFILEDEF":    {"ProfileType", "ProfileName", "OuterCurve"},
	"IFCARBITRARYPROFILEDEFWITHVOIDS": {"ProfileType", "ProfileName", "OuterCurve", "InnerCurves"},
	"IFCRECTANGLEPROFILEDEF":          {"ProfileType", "ProfileName", "Position", "XDim", "YDim"},
	"IFCPOLYLINE":                     {"Points"},
	"IFCINDEXEDPOLYCURVE":             {"Points", "Segments", "SelfIntersect"},
	"IFCCARTESIANPOINTLIST2D":         {"CoordList", "TagList"},
	"IFCCARTESIANPOINTLIST3D":         {"CoordList", "TagList"},
	"IFCBOUNDINGBOX":                  {"Corner", "XDim", "YDim", "ZDim"},
	"IFCBOOLEANRESULT":                {"Operator", "FirstOperand", "SecondOperand"},
	"IFCBOOLEANCLIPPINGRESULT":        {"Operator", "FirstOperand", "SecondOperand"},
	"IFCMAPPEDITEM":                   {"MappingSource", "MappingTarget"},
	"IFCREPRESENTATIONMAP":            {"MappingOrigin", "MappedRepresentation"},
	"IFCFACETEDBREP":                  {"Outer"},
	"IFCCLOSEDSHELL":                  {"CfsFaces"},
	"IFCFACE":                         {"Bounds"},
	"IFCFACEOUTERBOUND":               {"Bound", "Orientation"},
	"IFCFACEBOUND":                    {"Bound", "Orientation"},
	"IFCPOLYLOOP":                     {"Polygon"},
}

// schemaOverrides holds positional names that differ between schemas
var schemaOverrides = map[string]map[string][]string{
	SchemaIFC2X3: {
		"IFCSTAIR": withProduct("Tag", "ShapeType"),
	},
}

// attributeNamesFor returns the positional attribute names of a type
func attributeNamesFor(schema, typeName string) []string {
	if overrides, ok := schemaOverrides[schema]; ok {
		if names, ok := overrides[typeName]; ok {
			return names
		}
	}
	return attributeNames[typeName]
}
