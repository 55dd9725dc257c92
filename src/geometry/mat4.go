package geometry

import (
	"encoding/binary"

	"github.com/chewxy/math32"
)

// Mat4 is a column major 4x4 matrix, laid out the way shaders read a mat4.
type Mat4 [16]float32

// Mat4Size is the byte size of a Mat4 in a buffer.
const Mat4Size = 16 * 4

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at column col, row row.
func (m *Mat4) At(col, row int) float32 { return m[col*4+row] }

func (m *Mat4) set(col, row int, v float32) { m[col*4+row] = v }

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m.At(k, r) * o.At(c, k)
			}
			out.set(c, r, sum)
		}
	}
	return out
}

// Transform applies m to the point p (w = 1) and divides by w.
func (m Mat4) Transform(p Vector3) Vector3 {
	x := m.At(0, 0)*p.X + m.At(1, 0)*p.Y + m.At(2, 0)*p.Z + m.At(3, 0)
	y := m.At(0, 1)*p.X + m.At(1, 1)*p.Y + m.At(2, 1)*p.Z + m.At(3, 1)
	z := m.At(0, 2)*p.X + m.At(1, 2)*p.Y + m.At(2, 2)*p.Z + m.At(3, 2)
	w := m.At(0, 3)*p.X + m.At(1, 3)*p.Y + m.At(2, 3)*p.Z + m.At(3, 3)
	if w != 0 && w != 1 {
		x, y, z = x/w, y/w, z/w
	}
	return Vector3{x, y, z}
}

// LookAt builds a right handed view matrix looking from eye at center.
func LookAt(eye, center, up Vector3) Mat4 {
	f := center.Subtract(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)

	m := Identity()
	m.set(0, 0, s.X)
	m.set(1, 0, s.Y)
	m.set(2, 0, s.Z)
	m.set(0, 1, u.X)
	m.set(1, 1, u.Y)
	m.set(2, 1, u.Z)
	m.set(0, 2, -f.X)
	m.set(1, 2, -f.Y)
	m.set(2, 2, -f.Z)
	m.set(3, 0, -s.Dot(eye))
	m.set(3, 1, -u.Dot(eye))
	m.set(3, 2, f.Dot(eye))
	return m
}

// Perspective builds a right handed projection with depth mapped to [0, 1].
// fovy is in radians.
func Perspective(fovy, aspect, near, far float32) Mat4 {
	tanHalf := math32.Tan(fovy / 2)
	var m Mat4
	m.set(0, 0, 1/(aspect*tanHalf))
	m.set(1, 1, 1/tanHalf)
	m.set(2, 2, far/(near-far))
	m.set(2, 3, -1)
	m.set(3, 2, -(far*near)/(far-near))
	return m
}

// Put writes m into b in little endian order. b must hold Mat4Size bytes.
func (m *Mat4) Put(b []byte) {
	_ = b[Mat4Size-1]
	for i, v := range m {
		binary.LittleEndian.PutUint32(b[i*4:], math32.Float32bits(v))
	}
}
