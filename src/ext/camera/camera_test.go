package camera_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoPeters1024/LovelyVulkan/src/ext/camera"
	"github.com/HugoPeters1024/LovelyVulkan/src/ext/store"
	"github.com/HugoPeters1024/LovelyVulkan/src/geometry"
	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
)

const uboSlot = 1

var lens = camera.Info{Slot: uboSlot, FovY: geometry.Pi / 3, Near: 0.1, Far: 100}

type keyboard map[camera.Button]bool

func (k keyboard) Pressed(b camera.Button) bool { return k[b] }

func TestStartsLookingDownX(t *testing.T) {
	c := camera.New(lens)
	require.True(t, c.ViewDir().ApproxEqual(geometry.UnitX, 1e-6))
	require.Equal(t, geometry.Zero, c.Eye())

	c.Update()
	require.False(t, c.HasMoved())
}

func TestUpdate(t *testing.T) {
	for _, tc := range []struct {
		name string
		held keyboard
		eye  geometry.Vector3
		dir  geometry.Vector3
	}{
		{"idle", keyboard{}, geometry.Zero, geometry.UnitX},
		{"forward", keyboard{camera.Forward: true}, geometry.NewVector3(camera.MoveSpeed, 0, 0), geometry.UnitX},
		{"backward", keyboard{camera.Backward: true}, geometry.NewVector3(-camera.MoveSpeed, 0, 0), geometry.UnitX},
		{"both", keyboard{camera.Forward: true, camera.Backward: true}, geometry.Zero, geometry.UnitX},
		{"right", keyboard{camera.TurnRight: true}, geometry.Zero, geometry.FromSpherical(geometry.Pi/2, camera.RotSpeed)},
		{"left", keyboard{camera.TurnLeft: true}, geometry.Zero, geometry.FromSpherical(geometry.Pi/2, -camera.RotSpeed)},
		{"up", keyboard{camera.TurnUp: true}, geometry.Zero, geometry.FromSpherical(geometry.Pi/2+camera.RotSpeed, 0)},
		{"down", keyboard{camera.TurnDown: true}, geometry.Zero, geometry.FromSpherical(geometry.Pi/2-camera.RotSpeed, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := camera.New(lens)
			c.SetInput(tc.held)
			c.Update()
			require.Equal(t, len(tc.held) > 0, c.HasMoved())
			require.True(t, c.Eye().ApproxEqual(tc.eye, 1e-6), "eye %v", c.Eye())
			require.True(t, c.ViewDir().ApproxEqual(tc.dir, 1e-6), "dir %v", c.ViewDir())

			c.SetInput(keyboard{})
			c.Update()
			require.False(t, c.HasMoved())
		})
	}
}

func TestMovesAlongViewDir(t *testing.T) {
	c := camera.New(lens)
	c.SetInput(keyboard{camera.TurnRight: true})
	for i := 0; i < 157; i++ {
		c.Update()
	}
	c.SetInput(keyboard{camera.Forward: true})
	for i := 0; i < 50; i++ {
		c.Update()
	}
	// Turned roughly a quarter circle towards +Z, then one unit forward.
	require.True(t, c.Eye().ApproxEqual(geometry.UnitZ, 1e-2), "eye %v", c.Eye())
}

func build(t *testing.T, size int) (*render.Context, error) {
	t.Helper()
	var si store.Info
	si.DefineBuffer(uboSlot, render.BufferUniform, size)
	b := render.NewBuilder(render.Info{AppName: "camera"})
	require.NoError(t, store.Register(b, si))
	require.NoError(t, camera.Register(b, lens))
	return b.Build(&headless.Driver{})
}

func TestRecordWritesMatrices(t *testing.T) {
	ctx, err := build(t, camera.UniformSize)
	require.NoError(t, err)
	defer ctx.Destroy()
	w, err := render.NewWindow(ctx, render.WindowInfo{Title: "camera", Width: 200, Height: 100, FramesInFlight: 2})
	require.NoError(t, err)

	c := render.Get(ctx, camera.Key)
	c.SetViewport(w.Extent())
	c.SetInput(keyboard{camera.Forward: true})

	var data []byte
	require.NoError(t, w.NextFrame(func(f *render.FrameContext) error {
		c.Update()
		data = render.FrameData(f, store.Key).Buffer(uboSlot).Mapped()
		return c.Record(f)
	}))

	want := make([]byte, camera.UniformSize)
	view, proj := c.View(), c.Projection()
	view.Put(want)
	proj.Put(want[geometry.Mat4Size:])
	require.Equal(t, want, data)
	require.Equal(t, geometry.Perspective(lens.FovY, 2, lens.Near, lens.Far), proj)
}

func TestBufferTooSmall(t *testing.T) {
	ctx, err := build(t, geometry.Mat4Size)
	require.NoError(t, err)
	defer ctx.Destroy()
	_, err = render.NewFrameManager(ctx, render.FrameInfo{Frames: 2, FramesInFlight: 1})
	require.ErrorIs(t, err, render.ErrInvalidConfig)
}

func TestSlotNotDefined(t *testing.T) {
	b := render.NewBuilder(render.Info{})
	var si store.Info
	si.DefineBuffer(uboSlot+1, render.BufferUniform, camera.UniformSize)
	require.NoError(t, store.Register(b, si))
	require.NoError(t, camera.Register(b, lens))
	ctx, err := b.Build(&headless.Driver{})
	require.NoError(t, err)
	defer ctx.Destroy()
	_, err = render.NewFrameManager(ctx, render.FrameInfo{Frames: 1, FramesInFlight: 1})
	require.ErrorIs(t, err, render.ErrInvalidConfig)
}

func TestNeedsStoreFirst(t *testing.T) {
	b := render.NewBuilder(render.Info{})
	require.NoError(t, camera.Register(b, lens))
	require.NoError(t, store.Register(b, store.Info{}))
	_, err := b.Build(&headless.Driver{})
	require.ErrorIs(t, err, render.ErrInvalidConfig)
}

func TestRegisterRejectsLens(t *testing.T) {
	for _, info := range []camera.Info{
		{FovY: 0, Near: 0.1, Far: 10},
		{FovY: 1, Near: 0, Far: 10},
		{FovY: 1, Near: 1, Far: 1},
	} {
		require.ErrorIs(t, camera.Register(render.NewBuilder(render.Info{}), info), render.ErrInvalidConfig)
	}
}
