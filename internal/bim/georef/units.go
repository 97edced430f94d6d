package georef

import (
	"strings"

	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
)

// Units are the declared length and plane angle units of a model
type Units struct {
	Length geomath.LengthUnit
	Angle  geomath.AngleUnit
}

// ReadUnits scans the unit assignment of the model. Undeclared units default
// to metre and radian. Length prefixes other than CENTI and MILLI are read as
// metre.
func ReadUnits(g *ifc.Graph) Units {
	u := Units{Length: geomath.Metre, Angle: geomath.Radian}

	assignments := g.OfType("IFCUNITASSIGNMENT")
	if len(assignments) == 0 {
		return u
	}
	units, ok := g.DerefList(assignments[0], "Units")
	if !ok {
		return u
	}

	for _, unit := range units {
		unitType := enum(g, unit, "UnitType")
		name := enum(g, unit, "Name")

		switch {
		case unit.Is("IFCSIUNIT") && unitType == "LENGTHUNIT" && name == "METRE":
			switch enum(g, unit, "Prefix") {
			case "CENTI":
				u.Length = geomath.Centimetre
			case "MILLI":
				u.Length = geomath.Millimetre
			default:
				u.Length = geomath.Metre
			}
		case unitType == "PLANEANGLEUNIT" && name == "RADIAN":
			u.Angle = geomath.Radian
		case unitType == "PLANEANGLEUNIT" && name == "DEGREE":
			u.Angle = geomath.Degree
		}
	}
	return u
}

// enum reads a label or enumeration attribute without dots or quotes
func enum(g *ifc.Graph, e *ifc.Entity, name string) string {
	text, ok := g.Text(e, name)
	if !ok {
		return ""
	}
	return strings.ToUpper(strings.Trim(text, ".'\" "))
}
