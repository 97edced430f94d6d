package georef

import (
	"errors"
	"fmt"

	"bim2osm/internal/bim/shape"
	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

var ErrNoGeodeticOrigin = errors.New("site has no geodetic reference")

// Context is the building level transform shared by every element
type Context struct {
	Origin   geomath.LatLon
	Unit     geomath.LengthUnit
	North    geomath.Matrix3
	HasNorth bool
}

// NewContext reads the site origin and the north correction of a model
func NewContext(g *ifc.Graph, site *ifc.Entity, unit geomath.LengthUnit) (*Context, error) {
	origin, err := SiteOrigin(g, site, unit)
	if err != nil {
		return nil, err
	}
	north, ok := NorthCorrection(g)
	return &Context{Origin: origin, Unit: unit, North: north, HasNorth: ok}, nil
}

// SiteOrigin returns the geodetic position of the building origin from the
// site's RefLatitude and RefLongitude. When the site has a bounding box whose
// corner is off the origin, the corner offset is subtracted.
func SiteOrigin(g *ifc.Graph, site *ifc.Entity, unit geomath.LengthUnit) (geomath.LatLon, error) {
	if site == nil {
		return geomath.LatLon{}, fmt.Errorf("%w: no site", ErrNoGeodeticOrigin)
	}
	lat, ok := dms(g, site, "RefLatitude")
	if !ok {
		return geomath.LatLon{}, fmt.Errorf("%w: #%d RefLatitude", ErrNoGeodeticOrigin, site.ID)
	}
	lon, ok := dms(g, site, "RefLongitude")
	if !ok {
		return geomath.LatLon{}, fmt.Errorf("%w: #%d RefLongitude", ErrNoGeodeticOrigin, site.ID)
	}
	origin := geomath.LatLon{Lat: lat, Lon: lon}

	if offset, ok := siteOffset(g, site); ok && (offset.X != 0 || offset.Y != 0) {
		origin = geomath.CartesianToGeodetic(geomath.Point3D{}, offset, origin, unit)
	}
	return origin, nil
}

func dms(g *ifc.Graph, site *ifc.Entity, name string) (float64, bool) {
	parts, ok := g.Reals(site, name)
	if !ok {
		return 0, false
	}
	return geomath.DMSToDecimal(parts...)
}

// siteOffset reads the corner of the site's bounding box representation
func siteOffset(g *ifc.Graph, site *ifc.Entity) (geomath.Point3D, bool) {
	if _, ok := site.Attr("Representation"); !ok {
		return geomath.Point3D{}, false
	}
	reps, err := shape.Representations(g, site)
	if err != nil {
		return geomath.Point3D{}, false
	}
	for _, rep := range reps {
		if rep.Kind != shape.KindBox {
			continue
		}
		items, ok := g.DerefList(rep.Entity, "Items")
		if !ok || len(items) == 0 {
			return geomath.Point3D{}, false
		}
		corner, ok := g.Deref(items[0], "Corner")
		if !ok {
			return geomath.Point3D{}, false
		}
		coords, ok := g.Reals(corner, "Coordinates")
		if !ok {
			return geomath.Point3D{}, false
		}
		return geomath.PointFromSlice(coords)
	}
	return geomath.Point3D{}, false
}

// NorthCorrection returns the rotation about Z by the angle between the
// model's true north and its project north. ok is false when either vector
// is not declared.
func NorthCorrection(g *ifc.Graph) (geomath.Matrix3, bool) {
	trueNorth, projectNorth, ok := northVectors(g)
	if !ok {
		return geomath.Identity(), false
	}
	angle, ok := geomath.AngleBetween(trueNorth, projectNorth)
	if !ok {
		return geomath.Identity(), false
	}
	return geomath.RotationZ(angle), true
}

// northVectors reads TrueNorth and the world coordinate system RefDirection
// of the first representation context of the project
func northVectors(g *ifc.Graph) (geomath.Point3D, geomath.Point3D, bool) {
	projects := g.OfType("IFCPROJECT")
	if len(projects) == 0 {
		return geomath.Point3D{}, geomath.Point3D{}, false
	}
	contexts, ok := g.DerefList(projects[0], "RepresentationContexts")
	if !ok || len(contexts) == 0 {
		return geomath.Point3D{}, geomath.Point3D{}, false
	}
	ctx := contexts[0]

	trueNorth, ok := direction(g, ctx, "TrueNorth")
	if !ok {
		return geomath.Point3D{}, geomath.Point3D{}, false
	}
	wcs, ok := g.Deref(ctx, "WorldCoordinateSystem")
	if !ok {
		return geomath.Point3D{}, geomath.Point3D{}, false
	}
	projectNorth, ok := direction(g, wcs, "RefDirection")
	if !ok {
		return geomath.Point3D{}, geomath.Point3D{}, false
	}
	return trueNorth, projectNorth, true
}

func direction(g *ifc.Graph, e *ifc.Entity, name string) (geomath.Point3D, bool) {
	d, ok := g.Deref(e, name)
	if !ok {
		return geomath.Point3D{}, false
	}
	ratios, ok := g.Reals(d, "DirectionRatios")
	if !ok {
		return geomath.Point3D{}, false
	}
	return geomath.PointFromSlice(ratios)
}

// Project maps a point of the building frame to geodetic coordinates: north
// correction first, then the tangent plane projection at the site origin
func (c *Context) Project(p geomath.Point3D) geomath.LatLon {
	if c.HasNorth {
		p = c.North.Apply(p)
	}
	return geomath.CartesianToGeodetic(p, geomath.Point3D{}, c.Origin, c.Unit)
}

// Georeference projects every prepared object. Levels start unassigned.
func (c *Context) Georeference(objs []model.PreparedObject) []model.GeoObject {
	out := make([]model.GeoObject, 0, len(objs))
	for _, obj := range objs {
		if len(obj.Points) == 0 {
			continue
		}
		points := make([]geomath.LatLon, len(obj.Points))
		for i, p := range obj.Points {
			points[i] = c.Project(p)
		}
		out = append(out, model.GeoObject{
			EntityID: obj.EntityID,
			Role:     obj.Role,
			Points:   points,
			Level:    model.Unassigned,
		})
	}
	return out
}
