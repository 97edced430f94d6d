package converter

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"bim2osm/internal/bim/catalog"
	"bim2osm/internal/bim/georef"
	"bim2osm/internal/bim/level"
	"bim2osm/internal/bim/placement"
	"bim2osm/internal/bim/shape"
	"bim2osm/internal/geomath"
	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
	"bim2osm/internal/osmdata"

	"github.com/sourcegraph/conc/iter"
)

var (
	// ErrFatal marks model level failures: no output is produced
	ErrFatal = errors.New("model cannot be converted")

	ErrNoSite          = errors.New("model has no site")
	ErrNoRootPlacement = errors.New("site has no placement")
)

// CorruptionMessage is reported when elements were dropped
const CorruptionMessage = "Imported data might include errors"

// Options configure a conversion
type Options struct {
	// Workers bounds the goroutines preparing elements; 0 means GOMAXPROCS
	Workers           int
	LenientDirections bool
	// Tags supplies the tags of each role; nil uses the built-in catalog
	Tags osmdata.Tagger
}

// Drop records an element that did not make it into the output
type Drop struct {
	EntityID int        `json:"entity_id"`
	Role     model.Role `json:"-"`
	Reason   string     `json:"reason"`
}

// Result is the output of one conversion
type Result struct {
	Data    *osmdata.Result
	Objects []model.GeoObject

	Units  georef.Units
	Origin geomath.LatLon
	// Elevations are the distinct storey elevations, ascending
	Elevations []float64

	Classified int // elements found in the model
	Prepared   int // elements with at least one prepared loop
	Drops      []Drop

	Corrupt bool
	Message string
}

// Converter runs the placement, shape, georeference, level and assembly
// stages over one loaded model
type Converter struct {
	opts Options
}

func New(opts Options) *Converter {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Tags == nil {
		opts.Tags = catalog.DefaultTagCatalog()
	}
	return &Converter{opts: opts}
}

// prepared is the outcome of one element
type prepared struct {
	objects []model.PreparedObject
	err     error
}

// Convert maps every classified element of g to OSM ways. Per element
// failures drop the element and raise the corruption flag; a missing site,
// site placement or geodetic origin fails the whole conversion with ErrFatal.
func (c *Converter) Convert(g *ifc.Graph) (*Result, error) {
	totalStart := time.Now()
	log.Println("=== Starting conversion ===")

	// Step 1: Classify entities
	log.Println("Step 1: Classifying entities...")
	classified := catalog.Classify(g)
	if classified.Site == nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, ErrNoSite)
	}
	rootID, ok := placement.RootID(g, classified.Site)
	if !ok {
		return nil, fmt.Errorf("%w: %w: #%d", ErrFatal, ErrNoRootPlacement, classified.Site.ID)
	}
	elements := classified.Elements()
	log.Printf("Classified %d elements, site #%d, root placement #%d", len(elements), classified.Site.ID, rootID)

	// Step 2: Read units and the building transform
	log.Println("Step 2: Reading units and site origin...")
	units := georef.ReadUnits(g)
	geoCtx, err := georef.NewContext(g, classified.Site, units.Length)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	log.Printf("Units %s/%s, origin (%.7f, %.7f), north correction: %v",
		units.Length, units.Angle, geoCtx.Origin.Lat, geoCtx.Origin.Lon, geoCtx.HasNorth)

	// Step 3: Resolve placements and extract shapes
	log.Printf("Step 3: Preparing elements with %d workers...", c.opts.Workers)
	prepStart := time.Now()
	resolver := placement.NewResolver(g, rootID, placement.Options{LenientDirections: c.opts.LenientDirections})
	mapper := iter.Mapper[catalog.Element, prepared]{MaxGoroutines: c.opts.Workers}
	outcomes := mapper.Map(elements, func(el *catalog.Element) prepared {
		objs, err := prepareElement(g, resolver, *el)
		return prepared{objects: objs, err: err}
	})

	res := &Result{Units: units, Origin: geoCtx.Origin, Classified: len(elements)}
	var objects []model.PreparedObject
	for i, out := range outcomes {
		if out.err != nil {
			res.Drops = append(res.Drops, Drop{EntityID: elements[i].Entity.ID, Role: elements[i].Role, Reason: out.err.Error()})
			continue
		}
		res.Prepared++
		objects = append(objects, out.objects...)
	}
	log.Printf("Prepared %d/%d elements into %d objects in %v", res.Prepared, res.Classified, len(objects), time.Since(prepStart))

	// Step 4: Georeference
	log.Println("Step 4: Georeferencing...")
	res.Objects = geoCtx.Georeference(objects)

	// Step 5: Assign levels
	log.Println("Step 5: Assigning levels...")
	levels := level.NewClassifier(g)
	levels.Assign(res.Objects)
	res.Elevations = levels.Table().Elevations()
	log.Printf("Found %d storey elevations", len(res.Elevations))

	// Step 6: Assemble nodes and ways
	log.Println("Step 6: Assembling OSM data...")
	res.Data = osmdata.Assemble(res.Objects, c.opts.Tags)

	if res.Prepared != res.Classified || len(res.Objects) != len(objects) {
		res.Corrupt = true
		res.Message = fmt.Sprintf("%s: %d of %d elements converted", CorruptionMessage, res.Prepared, res.Classified)
		log.Printf("WARNING: %s", res.Message)
	}

	log.Printf("=== Conversion completed in %v: %d nodes, %d ways ===",
		time.Since(totalStart), len(res.Data.Nodes), len(res.Data.Ways))
	return res, nil
}

// prepareElement places every loop of an element's shape into the building
// frame. Each loop becomes its own object.
func prepareElement(g *ifc.Graph, resolver *placement.Resolver, el catalog.Element) ([]model.PreparedObject, error) {
	resolved, err := resolver.ResolveElement(el.Entity)
	if err != nil {
		return nil, err
	}
	points, err := shape.Extract(g, el.Entity, el.Role)
	if err != nil {
		return nil, err
	}

	loops := shape.SplitLoops(points)
	if len(loops) == 0 {
		return nil, fmt.Errorf("%w: #%d has an empty outline", shape.ErrIncompleteShape, el.Entity.ID)
	}

	objs := make([]model.PreparedObject, 0, len(loops))
	for _, loop := range loops {
		placed := make([]geomath.Point3D, len(loop))
		for i, p := range loop {
			placed[i] = resolved.Apply(p)
		}
		objs = append(objs, model.PreparedObject{EntityID: el.Entity.ID, Role: el.Role, Points: placed})
	}
	return objs, nil
}
