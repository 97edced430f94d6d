package osmdata

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"bim2osm/internal/geomath"
	"bim2osm/internal/model"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
)

// Generator is written into the generator attribute of exported files
const Generator = "bim2osm"

// OSM wraps the result into an OSM 0.6 document
func (r *Result) OSM() *osm.OSM {
	return &osm.OSM{
		Version:   "0.6",
		Generator: Generator,
		Nodes:     r.Nodes,
		Ways:      r.Ways,
	}
}

// WriteOSM writes the result as OSM XML
func WriteOSM(w io.Writer, r *Result) error {
	data, err := xml.MarshalIndent(r.OSM(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal OSM XML: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Geometry returns a closed way as a polygon and an open way as a line
func Geometry(w *osm.Way) orb.Geometry {
	ls := make(orb.LineString, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		ls = append(ls, orb.Point{n.Lon, n.Lat}) // [lon, lat] for GeoJSON
	}
	if IsClosedWay(w) && len(ls) >= 4 {
		return orb.Polygon{orb.Ring(ls)}
	}
	return ls
}

// FeatureCollection converts every way into a GeoJSON feature carrying its
// tags, its role and its footprint area or length in metres
func FeatureCollection(r *Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, w := range r.Ways {
		geom := Geometry(w)
		feature := geojson.NewFeature(geom)
		feature.ID = int64(w.ID)

		for _, t := range w.Tags {
			feature.Properties[t.Key] = t.Value
		}
		if role, ok := r.Roles[w.ID]; ok {
			feature.Properties["role"] = role.String()
		}

		switch g := geom.(type) {
		case orb.Polygon:
			feature.Properties["area_m2"] = geo.Area(g)
		case orb.LineString:
			feature.Properties["length_m"] = geo.Length(g)
		}
		fc.Append(feature)
	}
	return fc
}

// WriteGeoJSON writes the result as an indented GeoJSON feature collection
func WriteGeoJSON(w io.Writer, r *Result) error {
	data, err := json.MarshalIndent(FeatureCollection(r), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Bound returns the bounding box of all nodes
func (r *Result) Bound() orb.Bound {
	var b orb.Bound
	for i, n := range r.Nodes {
		p := orb.Point{n.Lon, n.Lat}
		if i == 0 {
			b = p.Bound()
			continue
		}
		b = b.Extend(p)
	}
	return b
}

// Records flattens the ways into storable records. The level tag, when
// present, is lifted into Level.
func (r *Result) Records() []model.WayRecord {
	records := make([]model.WayRecord, 0, len(r.Ways))
	for _, w := range r.Ways {
		rec := model.WayRecord{
			ID:     int64(w.ID),
			Tags:   w.Tags.Map(),
			Points: make([]geomath.LatLon, 0, len(w.Nodes)),
			Closed: IsClosedWay(w),
		}
		if role, ok := r.Roles[w.ID]; ok {
			rec.Role = role.String()
		}
		if v := w.Tags.Find("level"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				rec.Level = &n
			}
		}
		for _, n := range w.Nodes {
			rec.Points = append(rec.Points, geomath.LatLon{Lat: n.Lat, Lon: n.Lon})
		}
		records = append(records, rec)
	}
	return records
}
