package shape

import (
	"errors"
	"fmt"

	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

var ErrIncompleteShape = errors.New("incomplete shape")

// maxNesting bounds mapped item and boolean operand recursion
const maxNesting = 32

// bodyFallback lists roles whose body solid does not reduce to a usable
// footprint; they go straight to box and axis
var bodyFallback = map[model.Role]bool{
	model.RoleWall: true,
	model.RoleDoor: true,
}

// Extract returns the local outline of an element: one point list in which
// separate loops are divided by geomath.LoopBreak. Body is preferred over
// box, box over axis. A strategy that cannot be read hands over to the next.
func Extract(g *ifc.Graph, element *ifc.Entity, role model.Role) ([]geomath.Point3D, error) {
	reps, err := Representations(g, element)
	if err != nil {
		return nil, err
	}

	lastErr := fmt.Errorf("%w: #%d has no usable representation", ErrIncompleteShape, element.ID)

	if rep, ok := first(reps, KindBody); ok && !bodyFallback[role] {
		points, err := extractBody(g, rep)
		if err == nil && hasPoints(points) {
			return points, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if rep, ok := first(reps, KindBox); ok {
		points, err := extractBox(g, rep)
		if err == nil {
			return points, nil
		}
		lastErr = err
	}
	if rep, ok := first(reps, KindAxis); ok {
		points, err := extractAxis(g, rep)
		if err == nil && hasPoints(points) {
			return points, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}

// SplitLoops cuts a point list at every LoopBreak. Empty runs are dropped.
func SplitLoops(points []geomath.Point3D) [][]geomath.Point3D {
	var loops [][]geomath.Point3D
	var current []geomath.Point3D
	for _, p := range points {
		if p.IsBreak() {
			if len(current) > 0 {
				loops = append(loops, current)
			}
			current = nil
			continue
		}
		current = append(current, p)
	}
	if len(current) > 0 {
		loops = append(loops, current)
	}
	return loops
}

func hasPoints(points []geomath.Point3D) bool {
	for _, p := range points {
		if !p.IsBreak() {
			return true
		}
	}
	return false
}

// appendLoop appends loop to points, separated by a break if points is not
// empty
func appendLoop(points, loop []geomath.Point3D) []geomath.Point3D {
	if len(loop) == 0 {
		return points
	}
	if len(points) > 0 {
		points = append(points, geomath.LoopBreak)
	}
	return append(points, loop...)
}

func extractBody(g *ifc.Graph, rep *ifc.Entity) ([]geomath.Point3D, error) {
	items, ok := g.DerefList(rep, "Items")
	if !ok {
		return nil, fmt.Errorf("%w: unreadable items at #%d", ErrIncompleteShape, rep.ID)
	}
	var points []geomath.Point3D
	for _, item := range items {
		loop, err := bodyItem(g, item, 0)
		if err != nil {
			return nil, err
		}
		points = appendLoop(points, loop)
	}
	return points, nil
}

func bodyItem(g *ifc.Graph, item *ifc.Entity, depth int) ([]geomath.Point3D, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("%w: nesting too deep at #%d", ErrIncompleteShape, item.ID)
	}

	switch item.Type {
	case "IFCEXTRUDEDAREASOLID":
		return extrudedArea(g, item)

	case "IFCMAPPEDITEM":
		source, ok := g.Deref(item, "MappingSource")
		if !ok {
			return nil, fmt.Errorf("%w: mapped item #%d has no source", ErrIncompleteShape, item.ID)
		}
		mapped, ok := g.Deref(source, "MappedRepresentation")
		if !ok {
			return nil, fmt.Errorf("%w: representation map #%d is empty", ErrIncompleteShape, source.ID)
		}
		inner, ok := g.DerefList(mapped, "Items")
		if !ok {
			return nil, fmt.Errorf("%w: unreadable items at #%d", ErrIncompleteShape, mapped.ID)
		}
		var points []geomath.Point3D
		for _, it := range inner {
			loop, err := bodyItem(g, it, depth+1)
			if err != nil {
				return nil, err
			}
			points = appendLoop(points, loop)
		}
		return points, nil

	case "IFCBOOLEANCLIPPINGRESULT", "IFCBOOLEANRESULT":
		operand, ok := g.Deref(item, "FirstOperand")
		if !ok {
			return nil, fmt.Errorf("%w: boolean #%d has no first operand", ErrIncompleteShape, item.ID)
		}
		return bodyItem(g, operand, depth+1)

	case "IFCFACETEDBREP":
		return facetedBrep(g, item)
	}
	return nil, fmt.Errorf("%w: unsupported body item %s #%d", ErrIncompleteShape, item.Type, item.ID)
}

// extrudedArea returns the swept profile outline moved to the solid's
// position. Profile voids follow the outer loop, each after a break.
func extrudedArea(g *ifc.Graph, solid *ifc.Entity) ([]geomath.Point3D, error) {
	var offset geomath.Point3D
	if pos, ok := g.Deref(solid, "Position"); ok {
		loc, err := placementLocation(g, pos)
		if err != nil {
			return nil, err
		}
		offset = loc
	}

	profile, ok := g.Deref(solid, "SweptArea")
	if !ok {
		return nil, fmt.Errorf("%w: solid #%d has no swept area", ErrIncompleteShape, solid.ID)
	}

	var points []geomath.Point3D
	switch profile.Type {
	case "IFCARBITRARYCLOSEDPROFILEDEF", "IFCARBITRARYPROFILEDEFWITHVOIDS":
		outer, ok := g.Deref(profile, "OuterCurve")
		if !ok {
			return nil, fmt.Errorf("%w: profile #%d has no outer curve", ErrIncompleteShape, profile.ID)
		}
		loop, err := curvePoints(g, outer)
		if err != nil {
			return nil, err
		}
		points = appendLoop(points, loop)

		if profile.Type == "IFCARBITRARYPROFILEDEFWITHVOIDS" {
			inner, _ := g.DerefList(profile, "InnerCurves")
			for _, c := range inner {
				loop, err := curvePoints(g, c)
				if err != nil {
					return nil, err
				}
				points = appendLoop(points, loop)
			}
		}

	case "IFCRECTANGLEPROFILEDEF":
		loop, err := rectangleProfile(g, profile)
		if err != nil {
			return nil, err
		}
		points = loop

	default:
		return nil, fmt.Errorf("%w: unsupported profile %s #%d", ErrIncompleteShape, profile.Type, profile.ID)
	}

	for i, p := range points {
		if !p.IsBreak() {
			points[i] = p.Add(offset)
		}
	}
	return points, nil
}

// rectangleProfile returns the closed outline of a rectangle centred on the
// profile position
func rectangleProfile(g *ifc.Graph, profile *ifc.Entity) ([]geomath.Point3D, error) {
	x, okX := g.Real(profile, "XDim")
	y, okY := g.Real(profile, "YDim")
	if !okX || !okY {
		return nil, fmt.Errorf("%w: rectangle #%d without dimensions", ErrIncompleteShape, profile.ID)
	}
	var centre geomath.Point3D
	if pos, ok := g.Deref(profile, "Position"); ok {
		loc, err := placementLocation(g, pos)
		if err != nil {
			return nil, err
		}
		centre = loc
	}
	corner := centre.Sub(geomath.Point3D{X: x / 2, Y: y / 2})
	return rectangle(corner, x, y), nil
}

func rectangle(corner geomath.Point3D, x, y float64) []geomath.Point3D {
	return []geomath.Point3D{
		corner,
		corner.Add(geomath.Point3D{X: x}),
		corner.Add(geomath.Point3D{X: x, Y: y}),
		corner.Add(geomath.Point3D{Y: y}),
		corner,
	}
}

func facetedBrep(g *ifc.Graph, brep *ifc.Entity) ([]geomath.Point3D, error) {
	shell, ok := g.Deref(brep, "Outer")
	if !ok {
		return nil, fmt.Errorf("%w: brep #%d has no shell", ErrIncompleteShape, brep.ID)
	}
	faces, ok := g.DerefList(shell, "CfsFaces")
	if !ok {
		return nil, fmt.Errorf("%w: unreadable faces at #%d", ErrIncompleteShape, shell.ID)
	}

	var points []geomath.Point3D
	for _, face := range faces {
		bounds, ok := g.DerefList(face, "Bounds")
		if !ok {
			return nil, fmt.Errorf("%w: unreadable bounds at #%d", ErrIncompleteShape, face.ID)
		}
		for _, b := range bounds {
			polyLoop, ok := g.Deref(b, "Bound")
			if !ok {
				return nil, fmt.Errorf("%w: face bound #%d has no loop", ErrIncompleteShape, b.ID)
			}
			pts, ok := g.DerefList(polyLoop, "Polygon")
			if !ok {
				return nil, fmt.Errorf("%w: unreadable polygon at #%d", ErrIncompleteShape, polyLoop.ID)
			}
			loop, err := cartesianPoints(g, pts)
			if err != nil {
				return nil, err
			}
			points = appendLoop(points, loop)
		}
	}
	return points, nil
}

func extractBox(g *ifc.Graph, rep *ifc.Entity) ([]geomath.Point3D, error) {
	items, ok := g.DerefList(rep, "Items")
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: box representation #%d has no items", ErrIncompleteShape, rep.ID)
	}
	box := items[0]
	if !box.Is("IFCBOUNDINGBOX") {
		return nil, fmt.Errorf("%w: unexpected box item %s #%d", ErrIncompleteShape, box.Type, box.ID)
	}

	cornerPt, ok := g.Deref(box, "Corner")
	if !ok {
		return nil, fmt.Errorf("%w: bounding box #%d has no corner", ErrIncompleteShape, box.ID)
	}
	corner, err := cartesianPoint(g, cornerPt)
	if err != nil {
		return nil, err
	}
	x, okX := g.Real(box, "XDim")
	y, okY := g.Real(box, "YDim")
	if !okX || !okY {
		return nil, fmt.Errorf("%w: bounding box #%d without dimensions", ErrIncompleteShape, box.ID)
	}
	return rectangle(corner, x, y), nil
}

func extractAxis(g *ifc.Graph, rep *ifc.Entity) ([]geomath.Point3D, error) {
	items, ok := g.DerefList(rep, "Items")
	if !ok {
		return nil, fmt.Errorf("%w: unreadable items at #%d", ErrIncompleteShape, rep.ID)
	}
	var points []geomath.Point3D
	for _, item := range items {
		loop, err := curvePoints(g, item)
		if err != nil {
			return nil, err
		}
		points = appendLoop(points, loop)
	}
	return points, nil
}

// curvePoints reads the vertices of a polyline or an indexed poly curve
func curvePoints(g *ifc.Graph, curve *ifc.Entity) ([]geomath.Point3D, error) {
	switch curve.Type {
	case "IFCPOLYLINE":
		pts, ok := g.DerefList(curve, "Points")
		if !ok {
			return nil, fmt.Errorf("%w: unreadable polyline #%d", ErrIncompleteShape, curve.ID)
		}
		return cartesianPoints(g, pts)

	case "IFCINDEXEDPOLYCURVE":
		list, ok := g.Deref(curve, "Points")
		if !ok {
			return nil, fmt.Errorf("%w: poly curve #%d has no point list", ErrIncompleteShape, curve.ID)
		}
		return pointList(list)
	}
	return nil, fmt.Errorf("%w: unsupported curve %s #%d", ErrIncompleteShape, curve.Type, curve.ID)
}

// pointList reads the CoordList of an IfcCartesianPointList2D/3D
func pointList(list *ifc.Entity) ([]geomath.Point3D, error) {
	v, ok := list.Attr("CoordList")
	if !ok {
		return nil, fmt.Errorf("%w: point list #%d has no coordinates", ErrIncompleteShape, list.ID)
	}
	rows, ok := v.Items()
	if !ok {
		return nil, fmt.Errorf("%w: unreadable coordinates at #%d", ErrIncompleteShape, list.ID)
	}

	out := make([]geomath.Point3D, 0, len(rows))
	for _, row := range rows {
		texts, ok := row.Texts()
		if !ok {
			return nil, fmt.Errorf("%w: unreadable coordinate row at #%d", ErrIncompleteShape, list.ID)
		}
		coords := make([]float64, len(texts))
		for i, text := range texts {
			f, err := ifc.ParseReal(text)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrIncompleteShape, err)
			}
			coords[i] = f
		}
		p, ok := geomath.PointFromSlice(coords)
		if !ok {
			return nil, fmt.Errorf("%w: %d coordinates in row at #%d", ErrIncompleteShape, len(coords), list.ID)
		}
		out = append(out, p)
	}
	return out, nil
}

func cartesianPoints(g *ifc.Graph, pts []*ifc.Entity) ([]geomath.Point3D, error) {
	out := make([]geomath.Point3D, 0, len(pts))
	for _, pt := range pts {
		p, err := cartesianPoint(g, pt)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func cartesianPoint(g *ifc.Graph, pt *ifc.Entity) (geomath.Point3D, error) {
	coords, ok := g.Reals(pt, "Coordinates")
	if !ok {
		return geomath.Point3D{}, fmt.Errorf("%w: unreadable coordinates at #%d", ErrIncompleteShape, pt.ID)
	}
	p, ok := geomath.PointFromSlice(coords)
	if !ok {
		return geomath.Point3D{}, fmt.Errorf("%w: #%d has %d coordinates", ErrIncompleteShape, pt.ID, len(coords))
	}
	return p, nil
}

// placementLocation reads the Location of an IfcAxis2Placement2D/3D
func placementLocation(g *ifc.Graph, placement *ifc.Entity) (geomath.Point3D, error) {
	pt, ok := g.Deref(placement, "Location")
	if !ok {
		return geomath.Point3D{}, fmt.Errorf("%w: placement #%d has no location", ErrIncompleteShape, placement.ID)
	}
	return cartesianPoint(g, pt)
}
