package model

import (
	"encoding/json"
	"fmt"
	"time"

	"bim2osm/internal/geomath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gorm.io/gorm"
)

// WayRecord is one produced way in a storable form
type WayRecord struct {
	ID     int64             `json:"id"`
	Role   string            `json:"role"`
	Level  *int              `json:"level,omitempty"`
	Tags   map[string]string `json:"tags"`
	Points []geomath.LatLon  `json:"points"`
	Closed bool              `json:"closed"`
}

// Geometry returns the way as a polygon when closed, a line otherwise
func (w *WayRecord) Geometry() orb.Geometry {
	ls := make(orb.LineString, len(w.Points))
	for i, p := range w.Points {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	if w.Closed && len(ls) >= 4 {
		return orb.Polygon{orb.Ring(ls)}
	}
	return ls
}

// Bound returns the lon/lat bounding box of the way
func (w *WayRecord) Bound() orb.Bound {
	return w.Geometry().Bound()
}

// Conversion is the in-memory record of one converted model
type Conversion struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	InputHash string         `json:"input_hash"`
	Schema    string         `json:"schema"`
	Origin    geomath.LatLon `json:"origin"`

	LengthUnit string    `json:"length_unit"`
	AngleUnit  string    `json:"angle_unit"`
	Elevations []float64 `json:"elevations"`

	Classified int    `json:"classified"`
	Prepared   int    `json:"prepared"`
	Corrupt    bool   `json:"corrupt"`
	Message    string `json:"message,omitempty"`

	Ways    []WayRecord `json:"-"`
	OSM     []byte      `json:"-"`
	GeoJSON []byte      `json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversionPG model for PostgreSQL storage
type ConversionPG struct {
	ID         string  `gorm:"primaryKey"`
	Name       string  `gorm:"size:255;not null"`
	InputHash  string  `gorm:"size:64;not null;index"`
	Schema     string  `gorm:"size:16;not null"`
	OriginLat  float64 `gorm:"not null"`
	OriginLon  float64 `gorm:"not null"`
	LengthUnit string  `gorm:"size:8"`
	AngleUnit  string  `gorm:"size:8"`
	Elevations string  `gorm:"type:text"`
	Classified int
	Prepared   int
	Corrupt    bool
	Message    string  `gorm:"type:text"`
	OSM        string  `gorm:"type:text"`
	GeoJSON    string  `gorm:"type:text"`
	Ways       []WayPG `gorm:"foreignKey:ConversionID;constraint:OnDelete:CASCADE"`

	UpdatedAt time.Time      `gorm:"column:updated_at"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the table name
func (ConversionPG) TableName() string {
	return "conversions"
}

// WayPG stores one way with its geometry as WKT
type WayPG struct {
	ConversionID string `gorm:"primaryKey;size:64"`
	OSMID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Role         string `gorm:"size:16;not null;index"`
	Level        *int
	Tags         string `gorm:"type:text"`
	Closed       bool
	Geometry     string `gorm:"type:text;not null"`
}

// TableName overrides the table name
func (WayPG) TableName() string {
	return "conversion_ways"
}

// ConversionRedis is the summary cached in Redis, keyed by input hash
type ConversionRedis struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	InputHash string    `json:"input_hash"`
	Corrupt   bool      `json:"corrupt"`
	Ways      int       `json:"ways"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToPG converts the in-memory record to its PostgreSQL model
func (c *Conversion) ToPG() (*ConversionPG, error) {
	elevations, err := json.Marshal(c.Elevations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal elevations of %s: %w", c.ID, err)
	}
	pg := &ConversionPG{
		ID:         c.ID,
		Name:       c.Name,
		InputHash:  c.InputHash,
		Schema:     c.Schema,
		OriginLat:  c.Origin.Lat,
		OriginLon:  c.Origin.Lon,
		LengthUnit: c.LengthUnit,
		AngleUnit:  c.AngleUnit,
		Elevations: string(elevations),
		Classified: c.Classified,
		Prepared:   c.Prepared,
		Corrupt:    c.Corrupt,
		Message:    c.Message,
		OSM:        string(c.OSM),
		GeoJSON:    string(c.GeoJSON),
		UpdatedAt:  c.UpdatedAt,
		CreatedAt:  c.CreatedAt,
		Ways:       make([]WayPG, 0, len(c.Ways)),
	}
	for i := range c.Ways {
		w := &c.Ways[i]
		tags, err := json.Marshal(w.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags of way %d: %w", w.ID, err)
		}
		pg.Ways = append(pg.Ways, WayPG{
			ConversionID: c.ID,
			OSMID:        w.ID,
			Role:         w.Role,
			Level:        w.Level,
			Tags:         string(tags),
			Closed:       w.Closed,
			Geometry:     wkt.MarshalString(w.Geometry()),
		})
	}
	return pg, nil
}

// ConversionFromPG creates a Conversion from ConversionPG
func ConversionFromPG(pg *ConversionPG) (*Conversion, error) {
	c := &Conversion{
		ID:         pg.ID,
		Name:       pg.Name,
		InputHash:  pg.InputHash,
		Schema:     pg.Schema,
		Origin:     geomath.LatLon{Lat: pg.OriginLat, Lon: pg.OriginLon},
		LengthUnit: pg.LengthUnit,
		AngleUnit:  pg.AngleUnit,
		Classified: pg.Classified,
		Prepared:   pg.Prepared,
		Corrupt:    pg.Corrupt,
		Message:    pg.Message,
		OSM:        []byte(pg.OSM),
		GeoJSON:    []byte(pg.GeoJSON),
		UpdatedAt:  pg.UpdatedAt,
		CreatedAt:  pg.CreatedAt,
	}
	if pg.Elevations != "" {
		if err := json.Unmarshal([]byte(pg.Elevations), &c.Elevations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal elevations of %s: %w", pg.ID, err)
		}
	}

	for _, w := range pg.Ways {
		rec, err := wayFromPG(w)
		if err != nil {
			return nil, fmt.Errorf("conversion %s: %w", pg.ID, err)
		}
		c.Ways = append(c.Ways, rec)
	}
	return c, nil
}

func wayFromPG(w WayPG) (WayRecord, error) {
	geom, err := wkt.Unmarshal(w.Geometry)
	if err != nil {
		return WayRecord{}, fmt.Errorf("failed to read geometry of way %d: %w", w.OSMID, err)
	}
	rec := WayRecord{ID: w.OSMID, Role: w.Role, Level: w.Level, Closed: w.Closed}
	if w.Tags != "" {
		if err := json.Unmarshal([]byte(w.Tags), &rec.Tags); err != nil {
			return WayRecord{}, fmt.Errorf("failed to unmarshal tags of way %d: %w", w.OSMID, err)
		}
	}

	var ls orb.LineString
	switch g := geom.(type) {
	case orb.Polygon:
		if len(g) > 0 {
			ls = orb.LineString(g[0])
		}
		rec.Closed = true
	case orb.LineString:
		ls = g
	}
	for _, p := range ls {
		rec.Points = append(rec.Points, geomath.LatLon{Lat: p.Lat(), Lon: p.Lon()})
	}
	return rec, nil
}

// ToRedis returns the cached summary
func (c *Conversion) ToRedis() *ConversionRedis {
	return &ConversionRedis{
		ID:        c.ID,
		Name:      c.Name,
		InputHash: c.InputHash,
		Corrupt:   c.Corrupt,
		Ways:      len(c.Ways),
		UpdatedAt: c.UpdatedAt,
	}
}
