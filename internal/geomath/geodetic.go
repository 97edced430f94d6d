package geomath

import (
	"math"

	"github.com/golang/geo/s1"
)

// EarthRadiusMeters is the mean earth radius used by the local tangent plane
// projection and by distance checks
const EarthRadiusMeters = 6371000.0

// LengthUnit is the declared length unit of a model
type LengthUnit int

const (
	Metre LengthUnit = iota
	Centimetre
	Millimetre
)

// Meters returns the factor converting the unit into metres
func (u LengthUnit) Meters() float64 {
	switch u {
	case Centimetre:
		return 0.01
	case Millimetre:
		return 0.001
	}
	return 1
}

func (u LengthUnit) String() string {
	switch u {
	case Centimetre:
		return "cm"
	case Millimetre:
		return "mm"
	}
	return "m"
}

// AngleUnit is the declared plane angle unit of a model
type AngleUnit int

const (
	Radian AngleUnit = iota
	Degree
)

// Radians converts a plane angle measure expressed in u into radians
func (u AngleUnit) Radians(v float64) float64 {
	if u == Degree {
		return (s1.Angle(v) * s1.Degree).Radians()
	}
	return v
}

func (u AngleUnit) String() string {
	if u == Degree {
		return "deg"
	}
	return "rad"
}

// LatLon is a geodetic coordinate in decimal degrees
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DMSToDecimal converts degrees, minutes, seconds to decimal degrees:
// deg + min/60 + sec/3600. An optional fourth component holds millionths of
// a second.
func DMSToDecimal(parts ...float64) (float64, bool) {
	if len(parts) < 3 {
		return 0, false
	}
	v := parts[0] + parts[1]/60 + parts[2]/3600
	if len(parts) > 3 {
		v += parts[3] / 3600e6
	}
	return v, true
}

// CartesianToGeodetic projects a point of the local building frame onto the
// ellipsoid with an equirectangular approximation around origin. offset is
// subtracted from the point first; both are in unit and scaled to metres.
func CartesianToGeodetic(p, offset Point3D, origin LatLon, unit LengthUnit) LatLon {
	scale := unit.Meters()
	east := (p.X - offset.X) * scale
	north := (p.Y - offset.Y) * scale

	latRad := (s1.Angle(origin.Lat) * s1.Degree).Radians()
	dLat := s1.Angle(north / EarthRadiusMeters).Degrees()
	dLon := s1.Angle(east / (EarthRadiusMeters * math.Cos(latRad))).Degrees()

	return LatLon{Lat: origin.Lat + dLat, Lon: origin.Lon + dLon}
}
