package osmdata

import (
	"strconv"

	"bim2osm/internal/geomath"
	"bim2osm/internal/model"

	"github.com/paulmach/osm"
)

// Tagger supplies the tags of a role
type Tagger interface {
	Tags(role model.Role) osm.Tags
}

// Result is the flat OSM data produced from a model. New objects carry
// negative ids, the JOSM convention for data not yet uploaded.
type Result struct {
	Nodes osm.Nodes
	Ways  osm.Ways
	// Roles holds the element role behind each way
	Roles map[osm.WayID]model.Role
}

// Assemble turns georeferenced objects into nodes and ways. A loop whose
// first and last points coincide becomes a closed way: the duplicate end
// point gets no node of its own and the way refers back to its first node.
func Assemble(objs []model.GeoObject, tagger Tagger) *Result {
	r := &Result{Roles: make(map[osm.WayID]model.Role, len(objs))}

	var nextNode osm.NodeID
	var nextWay osm.WayID

	for _, obj := range objs {
		points := obj.Points
		if len(points) == 0 {
			continue
		}
		closed := isClosed(points)
		if closed {
			points = points[:len(points)-1]
		}

		nextWay--
		way := &osm.Way{
			ID:      nextWay,
			Visible: true,
			Nodes:   make(osm.WayNodes, 0, len(points)+1),
			Tags:    tagger.Tags(obj.Role),
		}
		if obj.Level != model.Unassigned {
			way.Tags = append(way.Tags, osm.Tag{Key: "level", Value: strconv.Itoa(int(obj.Level))})
		}

		for _, p := range points {
			nextNode--
			r.Nodes = append(r.Nodes, &osm.Node{
				ID:      nextNode,
				Lat:     p.Lat,
				Lon:     p.Lon,
				Visible: true,
			})
			way.Nodes = append(way.Nodes, osm.WayNode{ID: nextNode, Lat: p.Lat, Lon: p.Lon})
		}
		if closed {
			way.Nodes = append(way.Nodes, way.Nodes[0])
		}

		r.Ways = append(r.Ways, way)
		r.Roles[way.ID] = obj.Role
	}
	return r
}

func isClosed(points []geomath.LatLon) bool {
	return len(points) > 1 && points[0] == points[len(points)-1]
}

// IsClosedWay reports whether a way ends on its first node
func IsClosedWay(w *osm.Way) bool {
	n := len(w.Nodes)
	return n > 1 && w.Nodes[0].ID == w.Nodes[n-1].ID
}
