package shape

import (
	"fmt"
	"strings"

	"bim2osm/internal/ifc"
)

// Kind is the extraction strategy a shape representation supports
type Kind int

const (
	KindOther Kind = iota
	KindBody
	KindBox
	KindAxis
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindBox:
		return "box"
	case KindAxis:
		return "axis"
	}
	return "other"
}

// representation types readable per identifier
var readableTypes = map[Kind][]string{
	KindBody: {"SWEPTSOLID", "MAPPEDREPRESENTATION", "CLIPPING", "BREP"},
	KindBox:  {"BOUNDINGBOX"},
	KindAxis: {"CURVE2D", "CURVE3D", "CURVE"},
}

// Representation is one IfcShapeRepresentation of an element with the
// strategy it maps to
type Representation struct {
	Kind   Kind
	Entity *ifc.Entity
}

// Representations returns the identified shape representations of a product.
// A representation without identifier or type fails the whole element.
func Representations(g *ifc.Graph, element *ifc.Entity) ([]Representation, error) {
	pds, ok := g.Deref(element, "Representation")
	if !ok {
		return nil, fmt.Errorf("%w: #%d has no representation", ErrIncompleteShape, element.ID)
	}
	reps, ok := g.DerefList(pds, "Representations")
	if !ok {
		return nil, fmt.Errorf("%w: unreadable representations at #%d", ErrIncompleteShape, pds.ID)
	}

	out := make([]Representation, 0, len(reps))
	for _, rep := range reps {
		kind, err := Identify(g, rep)
		if err != nil {
			return nil, err
		}
		out = append(out, Representation{Kind: kind, Entity: rep})
	}
	return out, nil
}

// Identify maps a shape representation to an extraction strategy from its
// RepresentationIdentifier and RepresentationType labels
func Identify(g *ifc.Graph, rep *ifc.Entity) (Kind, error) {
	ident, ok := label(g, rep, "RepresentationIdentifier")
	if !ok {
		return KindOther, fmt.Errorf("%w: #%d has no representation identifier", ErrIncompleteShape, rep.ID)
	}
	typ, ok := label(g, rep, "RepresentationType")
	if !ok {
		return KindOther, fmt.Errorf("%w: #%d has no representation type", ErrIncompleteShape, rep.ID)
	}

	var kind Kind
	switch ident {
	case "BODY":
		kind = KindBody
	case "BOX":
		kind = KindBox
	case "AXIS":
		kind = KindAxis
	default:
		return KindOther, nil
	}
	for _, t := range readableTypes[kind] {
		if t == typ {
			return kind, nil
		}
	}
	return KindOther, nil
}

func label(g *ifc.Graph, e *ifc.Entity, name string) (string, bool) {
	text, ok := g.Text(e, name)
	if !ok {
		return "", false
	}
	return strings.ToUpper(strings.Trim(text, "'")), true
}

// first returns the first representation of a kind
func first(reps []Representation, kind Kind) (*ifc.Entity, bool) {
	for _, r := range reps {
		if r.Kind == kind {
			return r.Entity, true
		}
	}
	return nil, false
}
