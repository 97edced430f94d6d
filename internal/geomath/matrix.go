package geomath

import "math"

// Matrix3 is a row-major 3x3 rotation matrix
type Matrix3 [3][3]float64

// Identity returns the identity matrix
func Identity() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// RotationX returns the rotation about the X axis by angle radians
func RotationX(angle float64) Matrix3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix3{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

// RotationY returns the rotation about the Y axis by angle radians
func RotationY(angle float64) Matrix3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix3{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

// RotationZ returns the rotation about the Z axis by angle radians
func RotationZ(angle float64) Matrix3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix3{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// Mul returns m · n, the transform that applies n first and m second
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// Apply rotates p by m
func (m Matrix3) Apply(p Point3D) Point3D {
	return Point3D{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z,
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z,
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z,
	}
}
