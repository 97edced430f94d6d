package level

import (
	"math"
	"sort"

	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
)

// Table maps storey elevations to integer levels. The elevation nearest to
// zero is level 0; the others count up and down from it in sorted order.
type Table struct {
	elevations []float64
	levels     map[float64]model.Level
}

// NewTable builds a table from storey elevations. Duplicates collapse into a
// single level, so storeys sharing an elevation never leave gaps in the
// numbering: 0,0,3,3,6 gives levels 0,1,2.
func NewTable(elevations []float64) *Table {
	seen := make(map[float64]bool, len(elevations))
	sorted := make([]float64, 0, len(elevations))
	for _, e := range elevations {
		if !seen[e] {
			seen[e] = true
			sorted = append(sorted, e)
		}
	}
	sort.Float64s(sorted)

	zeroIdx := 0
	nearest := math.Inf(1)
	for i, e := range sorted {
		if d := math.Abs(e); d < nearest {
			nearest = d
			zeroIdx = i
		}
	}

	t := &Table{elevations: sorted, levels: make(map[float64]model.Level, len(sorted))}
	for i, e := range sorted {
		t.levels[e] = model.Level(i - zeroIdx)
	}
	return t
}

// BuildTable collects the elevations of every storey that contains elements
func BuildTable(g *ifc.Graph) *Table {
	var elevations []float64
	for _, rel := range g.OfType("IFCRELCONTAINEDINSPATIALSTRUCTURE") {
		storey, ok := g.Deref(rel, "RelatingStructure")
		if !ok || !storey.Is("IFCBUILDINGSTOREY") {
			continue
		}
		if e, ok := g.Real(storey, "Elevation"); ok {
			elevations = append(elevations, e)
		}
	}
	return NewTable(elevations)
}

// Level returns the level of an exact elevation
func (t *Table) Level(elevation float64) (model.Level, bool) {
	l, ok := t.levels[elevation]
	return l, ok
}

// Elevations returns the distinct elevations in ascending order
func (t *Table) Elevations() []float64 {
	out := make([]float64, len(t.elevations))
	copy(out, t.elevations)
	return out
}

func (t *Table) Len() int { return len(t.elevations) }

// Classifier assigns levels to elements through their containment relations
type Classifier struct {
	g          *ifc.Graph
	table      *Table
	containers map[int][]*ifc.Entity // element id -> relating structures, relation order
}

func NewClassifier(g *ifc.Graph) *Classifier {
	c := &Classifier{
		g:          g,
		table:      BuildTable(g),
		containers: make(map[int][]*ifc.Entity),
	}
	for _, rel := range g.OfType("IFCRELCONTAINEDINSPATIALSTRUCTURE") {
		structure, ok := g.Deref(rel, "RelatingStructure")
		if !ok {
			continue
		}
		v, ok := rel.Attr("RelatedElements")
		if !ok {
			continue
		}
		items, _ := v.Items()
		for _, item := range items {
			if id, ok := item.RefID(); ok {
				c.containers[id] = append(c.containers[id], structure)
			}
		}
	}
	return c
}

func (c *Classifier) Table() *Table { return c.table }

// LevelOf returns the level of an element. Every containing relation is
// visited and the last match wins: a container that is not a storey gives
// level 0, a storey gives its table level, and a storey elevation missing
// from the table leaves the previous result.
func (c *Classifier) LevelOf(entityID int) model.Level {
	level := model.Unassigned
	for _, structure := range c.containers[entityID] {
		if !structure.Is("IFCBUILDINGSTOREY") {
			level = 0
			continue
		}
		elevation, ok := c.g.Real(structure, "Elevation")
		if !ok {
			continue
		}
		if l, ok := c.table.Level(elevation); ok {
			level = l
		}
	}
	return level
}

// Assign sets the level of every object in place
func (c *Classifier) Assign(objs []model.GeoObject) {
	for i := range objs {
		objs[i].Level = c.LevelOf(objs[i].EntityID)
	}
}
