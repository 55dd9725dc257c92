// Package camera provides a keyboard driven fly camera. W and S move along
// the view direction, the arrow keys turn it. Once per frame the view and
// projection matrices are written to a uniform buffer of the resource store.
package camera

import (
	"fmt"

	"github.com/HugoPeters1024/LovelyVulkan/src/ext/store"
	"github.com/HugoPeters1024/LovelyVulkan/src/geometry"
	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

const (
	MoveSpeed = 0.02
	RotSpeed  = 0.01

	// UniformSize is the size of the buffer the camera writes: view then
	// projection.
	UniformSize = 2 * geometry.Mat4Size
)

// Key is the capability key of the camera.
var Key = render.NewKey[*Camera, struct{}]("Camera")

type Button int

const (
	Forward Button = iota
	Backward
	TurnUp
	TurnDown
	TurnLeft
	TurnRight
)

// Input reports the buttons held down.
type Input interface {
	Pressed(b Button) bool
}

type Info struct {
	// Slot is the store buffer the matrices go to.
	Slot uint32
	// FovY is the vertical field of view in radians.
	FovY      float32
	Near, Far float32
}

type Camera struct {
	info  Info
	input Input

	eye        geometry.Vector3
	theta, phi float32
	aspect     float32
	moved      bool
}

// Register adds a camera to b. The resource store must be registered before
// the camera and define info.Slot.
func Register(b *render.Builder, info Info) error {
	if info.FovY <= 0 || info.Near <= 0 || info.Far <= info.Near {
		return fmt.Errorf("%w: camera fov %v near %v far %v", render.ErrInvalidConfig, info.FovY, info.Near, info.Far)
	}
	return render.Register(b, Key, render.Requirements{}, func(ctx *render.Context) (*Camera, error) {
		if !render.Built(ctx, store.Key) {
			return nil, fmt.Errorf("%w: camera needs the resource store", render.ErrInvalidConfig)
		}
		return New(info), nil
	})
}

// New returns a camera at the origin looking down +X.
func New(info Info) *Camera {
	return &Camera{
		info:   info,
		theta:  geometry.Pi / 2,
		aspect: 1,
	}
}

// SetInput connects the camera to a keyboard. Without input Update does
// nothing.
func (c *Camera) SetInput(in Input) { c.input = in }

// SetViewport updates the aspect ratio of the projection.
func (c *Camera) SetViewport(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) Eye() geometry.Vector3 { return c.eye }

// HasMoved reports whether the last Update changed the camera.
func (c *Camera) HasMoved() bool { return c.moved }

func (c *Camera) ViewDir() geometry.Vector3 {
	return geometry.FromSpherical(c.theta, c.phi)
}

func (c *Camera) View() geometry.Mat4 {
	return geometry.LookAt(c.eye, c.eye.Add(c.ViewDir()), geometry.WorldUp)
}

func (c *Camera) Projection() geometry.Mat4 {
	return geometry.Perspective(c.info.FovY, c.aspect, c.info.Near, c.info.Far)
}

// Update applies one step of input.
func (c *Camera) Update() {
	c.moved = false
	if c.input == nil {
		return
	}
	dir := c.ViewDir()
	step := func(b Button, fn func()) {
		if c.input.Pressed(b) {
			fn()
			c.moved = true
		}
	}
	step(Forward, func() { c.eye = c.eye.Add(dir.Scale(MoveSpeed)) })
	step(Backward, func() { c.eye = c.eye.Subtract(dir.Scale(MoveSpeed)) })
	step(TurnUp, func() { c.theta += RotSpeed })
	step(TurnDown, func() { c.theta -= RotSpeed })
	step(TurnLeft, func() { c.phi -= RotSpeed })
	step(TurnRight, func() { c.phi += RotSpeed })
}

// Record writes the matrices to the store buffer of frame.
func (c *Camera) Record(frame *render.FrameContext) error {
	data := render.FrameData(frame, store.Key).Buffer(c.info.Slot).Mapped()
	view, proj := c.View(), c.Projection()
	view.Put(data)
	proj.Put(data[geometry.Mat4Size:])
	return nil
}

// Embellish checks that the frame has room for the matrices.
func (c *Camera) Embellish(frame *render.FrameContext) error {
	buf, ok := render.FrameData(frame, store.Key).Lookup(c.info.Slot)
	if !ok {
		return fmt.Errorf("%w: camera buffer slot %d not defined", render.ErrInvalidConfig, c.info.Slot)
	}
	if buf.Size() < UniformSize {
		return fmt.Errorf("%w: camera buffer slot %d holds %d bytes, need %d",
			render.ErrInvalidConfig, c.info.Slot, buf.Size(), UniformSize)
	}
	return nil
}

func (c *Camera) Cleanup(*render.FrameContext) {}

func (c *Camera) Destroy() {}
