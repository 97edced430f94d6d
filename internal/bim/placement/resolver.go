package placement

import (
	"errors"
	"fmt"

	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
)

var (
	ErrIncompletePlacement = errors.New("incomplete placement")
	ErrCyclicPlacement     = errors.New("placement chain does not reach the root")
)

// MaxDepth bounds the number of hops walked from an element to the root
const MaxDepth = 256

// Options tune how strictly placement chains are read
type Options struct {
	// LenientDirections treats a missing RefDirection as the default X axis
	// (1,0,0) instead of failing the element
	LenientDirections bool
}

// Resolved is the accumulated transform of one element relative to the root
type Resolved struct {
	Translation geomath.Point3D
	Rotation    geomath.Matrix3
	RefAngle    float64 // summed RefDirection angle, rotation about Z
	AxisAngle   float64 // summed Axis angle, rotation about Y
}

// Apply rotates p and then translates it into the root frame
func (r Resolved) Apply(p geomath.Point3D) geomath.Point3D {
	return r.Rotation.Apply(p).Add(r.Translation)
}

// Resolver walks IfcLocalPlacement chains up to a fixed root placement
type Resolver struct {
	g      *ifc.Graph
	rootID int
	opts   Options
}

func NewResolver(g *ifc.Graph, rootID int, opts Options) *Resolver {
	return &Resolver{g: g, rootID: rootID, opts: opts}
}

// RootID returns the id of the placement of the site, the frame every other
// chain ends in
func RootID(g *ifc.Graph, site *ifc.Entity) (int, bool) {
	p, ok := g.Deref(site, "ObjectPlacement")
	if !ok {
		return 0, false
	}
	return p.ID, true
}

// ResolveElement resolves the ObjectPlacement of a product
func (r *Resolver) ResolveElement(e *ifc.Entity) (Resolved, error) {
	p, ok := r.g.Deref(e, "ObjectPlacement")
	if !ok {
		return Resolved{}, fmt.Errorf("%w: #%d has no object placement", ErrIncompletePlacement, e.ID)
	}
	return r.Resolve(p)
}

// Resolve sums the locations and direction angles of every relative
// placement between placement and the root. The root's own placement is not
// part of the sum. Translations are summed without rotating each hop into
// its parent frame.
func (r *Resolver) Resolve(placement *ifc.Entity) (Resolved, error) {
	chain, err := r.Chain(placement)
	if err != nil {
		return Resolved{}, err
	}

	res := Resolved{Rotation: geomath.Identity()}
	for _, rel := range chain {
		loc, err := r.location(rel)
		if err != nil {
			return Resolved{}, err
		}
		res.Translation = res.Translation.Add(loc)
	}

	if res.RefAngle, err = r.sumAngles(chain, "RefDirection", false); err != nil {
		return Resolved{}, err
	}
	if res.AxisAngle, err = r.sumAngles(chain, "Axis", true); err != nil {
		return Resolved{}, err
	}

	res.Rotation = geomath.RotationZ(res.RefAngle).Mul(geomath.RotationY(res.AxisAngle))
	return res, nil
}

// Chain returns the relative placements (IfcAxis2Placement2D/3D) from
// placement up to, but excluding, the root
func (r *Resolver) Chain(placement *ifc.Entity) ([]*ifc.Entity, error) {
	if placement == nil {
		return nil, fmt.Errorf("%w: nil placement", ErrIncompletePlacement)
	}

	var chain []*ifc.Entity
	visited := make(map[int]bool)

	current := placement
	for current.ID != r.rootID {
		if visited[current.ID] || len(chain) >= MaxDepth {
			return nil, fmt.Errorf("%w: loop at #%d", ErrCyclicPlacement, current.ID)
		}
		visited[current.ID] = true

		rel, ok := r.g.Deref(current, "RelativePlacement")
		if !ok {
			return nil, fmt.Errorf("%w: #%d has no relative placement", ErrIncompletePlacement, current.ID)
		}
		chain = append(chain, rel)

		next, ok := r.g.Deref(current, "PlacementRelTo")
		if !ok {
			return nil, fmt.Errorf("%w: chain ends at #%d before the root #%d", ErrIncompletePlacement, current.ID, r.rootID)
		}
		current = next
	}
	return chain, nil
}

func (r *Resolver) location(rel *ifc.Entity) (geomath.Point3D, error) {
	pt, ok := r.g.Deref(rel, "Location")
	if !ok {
		return geomath.Point3D{}, fmt.Errorf("%w: #%d has no location", ErrIncompletePlacement, rel.ID)
	}
	coords, ok := r.g.Reals(pt, "Coordinates")
	if !ok {
		return geomath.Point3D{}, fmt.Errorf("%w: unreadable coordinates at #%d", ErrIncompletePlacement, pt.ID)
	}
	p, ok := geomath.PointFromSlice(coords)
	if !ok {
		return geomath.Point3D{}, fmt.Errorf("%w: #%d has %d coordinates", ErrIncompletePlacement, pt.ID, len(coords))
	}
	return p, nil
}

// sumAngles adds the angles between the direction attribute of consecutive
// hops. The running sum is wrapped into [-2π, 2π] after every hop.
// Axis only exists on 3D placements; hops without one do not contribute.
func (r *Resolver) sumAngles(chain []*ifc.Entity, attr string, only3D bool) (float64, error) {
	var sum float64
	var parent *geomath.Point3D

	for _, rel := range chain {
		if only3D && !rel.Is("IFCAXIS2PLACEMENT3D") {
			continue
		}

		dir, ok, err := r.direction(rel, attr)
		if err != nil {
			return 0, err
		}
		if !ok {
			if only3D {
				continue
			}
			if !r.opts.LenientDirections {
				return 0, fmt.Errorf("%w: #%d has no %s", ErrIncompletePlacement, rel.ID, attr)
			}
			dir = geomath.Point3D{X: 1}
		}

		if parent != nil {
			angle, ok := geomath.AngleBetween(*parent, dir)
			if !ok {
				return 0, fmt.Errorf("%w: zero-length %s at #%d", ErrIncompletePlacement, attr, rel.ID)
			}
			sum = geomath.NormalizeAngle(sum + angle)
		}
		d := dir
		parent = &d
	}
	return sum, nil
}

// direction reads an IfcDirection attribute. ok is false when the attribute
// is absent; a present but unreadable direction is an error.
func (r *Resolver) direction(rel *ifc.Entity, attr string) (geomath.Point3D, bool, error) {
	v, present := rel.Attr(attr)
	if !present || v.IsNull() {
		return geomath.Point3D{}, false, nil
	}
	d, ok := r.g.Deref(rel, attr)
	if !ok {
		return geomath.Point3D{}, false, fmt.Errorf("%w: dangling %s at #%d", ErrIncompletePlacement, attr, rel.ID)
	}
	ratios, ok := r.g.Reals(d, "DirectionRatios")
	if !ok {
		return geomath.Point3D{}, false, fmt.Errorf("%w: unreadable direction ratios at #%d", ErrIncompletePlacement, d.ID)
	}
	p, ok := geomath.PointFromSlice(ratios)
	if !ok {
		return geomath.Point3D{}, false, fmt.Errorf("%w: #%d has %d direction ratios", ErrIncompletePlacement, d.ID, len(ratios))
	}
	return p, true, nil
}
