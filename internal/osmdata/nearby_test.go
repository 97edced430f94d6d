package osmdata

import (
	"math"
	"testing"

	"bim2osm/internal/geomath"
	"bim2osm/internal/util"

	"github.com/paulmach/orb"
)

func TestWayCentroid(t *testing.T) {
	nodes := map[int64]geomath.LatLon{
		1: {Lat: 0, Lon: 0},
		2: {Lat: 0, Lon: 2},
		3: {Lat: 2, Lon: 2},
		4: {Lat: 2, Lon: 0},
	}

	got, ok := wayCentroid([]int64{1, 2, 3, 4, 1}, nodes)
	if !ok || got.Lat != 1 || got.Lon != 1 {
		t.Errorf("closed way: got %+v,%v, want (1,1)", got, ok)
	}
	if _, ok := wayCentroid([]int64{1, 5}, nodes); ok {
		t.Error("unknown node should fail")
	}
	if _, ok := wayCentroid(nil, nodes); ok {
		t.Error("empty way should fail")
	}
}

func TestSearchWindow(t *testing.T) {
	center := geomath.LatLon{Lat: 48.2, Lon: 16.37}
	b := searchWindow(center, 500)

	if !b.Contains(orb.Point{center.Lon, center.Lat}) {
		t.Fatal("window does not contain its centre")
	}
	north := util.HaversineDistance(center.Lat, center.Lon, b.Max.Lat(), center.Lon)
	east := util.HaversineDistance(center.Lat, center.Lon, center.Lat, b.Max.Lon())
	if math.Abs(north-500) > 1 || math.Abs(east-500) > 1 {
		t.Errorf("window reaches %.2f m north and %.2f m east, want 500", north, east)
	}
}
