package geometry

import "github.com/chewxy/math32"

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

func NewVector3(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func (v3 Vector3) IsZero() bool {
	return v3.X == 0 && v3.Y == 0 && v3.Z == 0
}

func (v3 Vector3) Add(v Vector3) Vector3 {
	return Vector3{v3.X + v.X, v3.Y + v.Y, v3.Z + v.Z}
}

func (v3 Vector3) Subtract(v Vector3) Vector3 {
	return Vector3{v3.X - v.X, v3.Y - v.Y, v3.Z - v.Z}
}

func (v3 Vector3) Scale(s float32) Vector3 {
	return Vector3{v3.X * s, v3.Y * s, v3.Z * s}
}

func (v3 Vector3) Dot(v Vector3) float32 {
	return v3.X*v.X +
		v3.Y*v.Y +
		v3.Z*v.Z
}

func (v3 Vector3) Cross(v Vector3) Vector3 {
	return Vector3{
		X: v3.Y*v.Z - v3.Z*v.Y,
		Y: v3.Z*v.X - v3.X*v.Z,
		Z: v3.X*v.Y - v3.Y*v.X,
	}
}

func (v3 Vector3) Length() float32 {
	return math32.Sqrt(v3.Dot(v3))
}

// Normalize returns v3 scaled to unit length. The zero vector stays zero.
func (v3 Vector3) Normalize() Vector3 {
	l := v3.Length()
	if l < Epsilon {
		return Vector3{}
	}
	return v3.Scale(1 / l)
}

// ApproxEqual compares component wise within tolerance.
func (v3 Vector3) ApproxEqual(v Vector3, tolerance float32) bool {
	return math32.Abs(v3.X-v.X) <= tolerance &&
		math32.Abs(v3.Y-v.Y) <= tolerance &&
		math32.Abs(v3.Z-v.Z) <= tolerance
}

// FromSpherical returns the unit direction for polar angle theta, measured
// from +Y, and azimuth phi, measured from +X towards +Z.
func FromSpherical(theta, phi float32) Vector3 {
	st, ct := math32.Sincos(theta)
	sp, cp := math32.Sincos(phi)
	return Vector3{X: st * cp, Y: ct, Z: st * sp}
}
