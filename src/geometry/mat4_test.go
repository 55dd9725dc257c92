package geometry

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"
)

func TestLookAt(t *testing.T) {
	for idx, tc := range []struct {
		eye, center Vector3
	}{
		{Zero, UnitX},
		{Zero, UnitZ.Scale(-1)},
		{NewVector3(1, 2, 3), NewVector3(-4, 0.5, 7)},
		{NewVector3(0, 5, 0), NewVector3(1, 0, 1)},
	} {
		t.Run(fmt.Sprintf("%d", idx), func(t *testing.T) {
			m := LookAt(tc.eye, tc.center, WorldUp)

			// The rotation part is orthonormal.
			rows := [3]Vector3{}
			for r := 0; r < 3; r++ {
				rows[r] = NewVector3(m.At(0, r), m.At(1, r), m.At(2, r))
				require.InDelta(t, 1, rows[r].Length(), 1e-5)
			}
			require.InDelta(t, 0, rows[0].Dot(rows[1]), 1e-5)
			require.InDelta(t, 0, rows[0].Dot(rows[2]), 1e-5)
			require.InDelta(t, 0, rows[1].Dot(rows[2]), 1e-5)

			// The eye maps to the origin and the target onto -Z.
			require.True(t, m.Transform(tc.eye).ApproxEqual(Zero, 1e-5))
			dist := tc.center.Subtract(tc.eye).Length()
			got := m.Transform(tc.center)
			require.True(t, got.ApproxEqual(NewVector3(0, 0, -dist), 1e-4), "got %v", got)
		})
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(Pi/3, 16.0/9, 0.1, 100)
	require.InDelta(t, 0, p.Transform(NewVector3(0, 0, -0.1)).Z, 1e-5)
	require.InDelta(t, 1, p.Transform(NewVector3(0, 0, -100)).Z, 1e-4)
	require.InDelta(t, 1/math32.Tan(Pi/6), p.At(1, 1), 1e-5)
	require.Equal(t, float32(-1), p.At(2, 3))
}

func TestMulIdentity(t *testing.T) {
	m := LookAt(NewVector3(1, 2, 3), Zero, WorldUp)
	require.Equal(t, m, m.Mul(Identity()))
	require.Equal(t, m, Identity().Mul(m))

	p := NewVector3(0.5, -1, 2)
	pv := Perspective(1, 1, 0.1, 10)
	require.True(t, pv.Mul(m).Transform(p).ApproxEqual(pv.Transform(m.Transform(p)), 1e-5))
}

func TestPut(t *testing.T) {
	m := Identity()
	m[13] = -2.5
	b := make([]byte, Mat4Size)
	m.Put(b)
	require.Equal(t, math32.Float32bits(1), binary.LittleEndian.Uint32(b[0:]))
	require.Equal(t, math32.Float32bits(-2.5), binary.LittleEndian.Uint32(b[13*4:]))
	require.Panics(t, func() { m.Put(b[:10]) })
}
