package geometry

import "github.com/chewxy/math32"

const (
	Epsilon = 1.19209e-07 // float32 machine epsilon
	Pi      = math32.Pi
)

var (
	Zero    = Vector3{}
	UnitX   = Vector3{X: 1}
	UnitY   = Vector3{Y: 1}
	UnitZ   = Vector3{Z: 1}
	WorldUp = UnitY
)
