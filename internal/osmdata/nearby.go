package osmdata

import (
	"fmt"
	"io"
	"runtime"
	"sort"

	"bim2osm/internal/geomath"
	"bim2osm/internal/util"

	"github.com/paulmach/orb"
	"github.com/qedus/osmpbf"
)

// Building is an existing mapped building close to a converted site
type Building struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name,omitempty"`
	Centroid geomath.LatLon `json:"centroid"`
	Distance float64        `json:"distance_m"`
}

// NearbyBuildings scans an OSM PBF extract for building ways whose centroid
// lies within radius metres of center, nearest first. It is used to check
// the georeferencing of a model against what is already on the map.
func NearbyBuildings(r io.Reader, center geomath.LatLon, radius float64) ([]Building, error) {
	decoder := osmpbf.NewDecoder(r)
	decoder.SetBufferSize(osmpbf.MaxBlobSize)
	if err := decoder.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return nil, fmt.Errorf("failed to start PBF decoder: %w", err)
	}

	// ways crossing the edge of the search circle still need all their nodes
	window := searchWindow(center, 2*radius)
	nodeCache := make(map[int64]geomath.LatLon)

	var buildings []Building
	for {
		object, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding PBF: %w", err)
		}

		switch o := object.(type) {
		case *osmpbf.Node:
			if window.Contains(orb.Point{o.Lon, o.Lat}) {
				nodeCache[o.ID] = geomath.LatLon{Lat: o.Lat, Lon: o.Lon}
			}
		case *osmpbf.Way:
			if _, ok := o.Tags["building"]; !ok {
				continue
			}
			centroid, ok := wayCentroid(o.NodeIDs, nodeCache)
			if !ok {
				continue
			}
			d := util.HaversineDistance(center.Lat, center.Lon, centroid.Lat, centroid.Lon)
			if d > radius {
				continue
			}
			buildings = append(buildings, Building{
				ID:       o.ID,
				Name:     o.Tags["name"],
				Centroid: centroid,
				Distance: d,
			})
		}
	}

	sort.Slice(buildings, func(i, j int) bool { return buildings[i].Distance < buildings[j].Distance })
	return buildings, nil
}

// searchWindow returns the lon/lat box reaching size metres from center in
// every direction
func searchWindow(center geomath.LatLon, size float64) orb.Bound {
	sw := geomath.CartesianToGeodetic(geomath.Point3D{X: -size, Y: -size}, geomath.Point3D{}, center, geomath.Metre)
	ne := geomath.CartesianToGeodetic(geomath.Point3D{X: size, Y: size}, geomath.Point3D{}, center, geomath.Metre)
	return orb.Bound{Min: orb.Point{sw.Lon, sw.Lat}, Max: orb.Point{ne.Lon, ne.Lat}}
}

// wayCentroid averages the vertices of a way. The closing node of a closed
// way is counted once. It fails if any node is unknown.
func wayCentroid(ids []int64, nodes map[int64]geomath.LatLon) (geomath.LatLon, bool) {
	if len(ids) > 1 && ids[0] == ids[len(ids)-1] {
		ids = ids[:len(ids)-1]
	}
	if len(ids) == 0 {
		return geomath.LatLon{}, false
	}
	var sum geomath.LatLon
	for _, id := range ids {
		n, ok := nodes[id]
		if !ok {
			return geomath.LatLon{}, false
		}
		sum.Lat += n.Lat
		sum.Lon += n.Lon
	}
	k := float64(len(ids))
	return geomath.LatLon{Lat: sum.Lat / k, Lon: sum.Lon / k}, true
}
