package geomath

import "math"

// Point3D is a point or vector in a Cartesian frame
type Point3D struct {
	X, Y, Z float64
}

// LoopBreak separates loops packed into one point list. It never occurs as
// a real coordinate.
var LoopBreak = Point3D{X: math.MaxFloat64, Y: -math.MaxFloat64, Z: math.MaxFloat64}

// IsBreak reports whether p is the loop separator
func (p Point3D) IsBreak() bool {
	return p == LoopBreak
}

// Add returns p + q
func (p Point3D) Add(q Point3D) Point3D {
	return Point3D{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub returns p - q
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Scale returns p * s
func (p Point3D) Scale(s float64) Point3D {
	return Point3D{p.X * s, p.Y * s, p.Z * s}
}

// Dot returns the dot product of p and q
func (p Point3D) Dot(q Point3D) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Length returns the Euclidean length of the vector
func (p Point3D) Length() float64 {
	return math.Sqrt(p.Dot(p))
}

// PointFromSlice builds a point from 2 or 3 components. A missing third
// component is zero.
func PointFromSlice(c []float64) (Point3D, bool) {
	switch len(c) {
	case 2:
		return Point3D{c[0], c[1], 0}, true
	case 3:
		return Point3D{c[0], c[1], c[2]}, true
	}
	return Point3D{}, false
}

// AngleBetween returns the unsigned angle in radians between a and b,
// acos(a·b / (|a||b|)). The cosine is clamped so rounding never yields NaN.
// It fails for zero-length vectors.
func AngleBetween(a, b Point3D) (float64, bool) {
	la, lb := a.Length(), b.Length()
	if la < 1e-12 || lb < 1e-12 {
		return 0, false
	}
	c := a.Dot(b) / (la * lb)
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c), true
}

// NormalizeAngle wraps a running angle sum back into [-2π, 2π]. Values
// already inside the range are returned unchanged.
func NormalizeAngle(a float64) float64 {
	const fullTurn = 2 * math.Pi
	for a > fullTurn {
		a -= fullTurn
	}
	for a < -fullTurn {
		a += fullTurn
	}
	return a
}
