package render_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
)

func openWindow(t *testing.T, drv *headless.Driver, j *journal, inFlight int) (*render.Context, *render.Window, *headless.Surface) {
	t.Helper()
	ctx := buildRecorders(t, drv, j)
	w, err := render.NewWindow(ctx, render.WindowInfo{Title: "test", Width: 640, Height: 480, FramesInFlight: inFlight})
	require.NoError(t, err)
	return ctx, w, w.Surface().(*headless.Surface)
}

func nop(*render.FrameContext) error { return nil }

func TestWindowFramesFollowImages(t *testing.T) {
	for _, tc := range []struct {
		name             string
		images, inFlight int
		wantK            int
	}{
		{"fewer in flight", 3, 2, 2},
		{"clamped", 3, 5, 3},
		{"single image", 1, 2, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, w, _ := openWindow(t, &headless.Driver{Images: tc.images}, &journal{}, tc.inFlight)
			defer ctx.Destroy()
			require.Equal(t, tc.images, w.Frames())
			require.Equal(t, tc.wantK, w.FramesInFlight())
			for i := 0; i < tc.images; i++ {
				img := w.Frame(i).Target().(*headless.Image)
				require.Equal(t, i, img.Index())
			}
			for i := 0; i < 10; i++ {
				require.NoError(t, w.NextFrame(nop))
			}
		})
	}
}

func TestWindowInvalidInfo(t *testing.T) {
	ctx := buildRecorders(t, &headless.Driver{}, &journal{})
	defer ctx.Destroy()
	_, err := render.NewWindow(ctx, render.WindowInfo{Width: 640, Height: 480})
	require.ErrorIs(t, err, render.ErrInvalidConfig)
	_, err = render.NewWindow(ctx, render.WindowInfo{Width: 0, Height: 480, FramesInFlight: 2})
	require.ErrorIs(t, err, render.ErrInvalidConfig)
}

type plainDriver struct{ headless.Driver }

type plainDevice struct{ render.Device }

func (d *plainDriver) Open(req render.Requirements) (render.Device, error) {
	dev, err := d.Driver.Open(req)
	if err != nil {
		return nil, err
	}
	return plainDevice{dev}, nil
}

func TestWindowNeedsSurfaceProvider(t *testing.T) {
	ctx := buildRecorders(t, &plainDriver{}, &journal{})
	defer ctx.Destroy()
	_, err := render.NewWindow(ctx, render.WindowInfo{Width: 640, Height: 480, FramesInFlight: 2})
	require.ErrorIs(t, err, render.ErrNoSurface)
}

func TestWindowPresentsEveryFrame(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()

	var images []int
	for i := 0; i < 6; i++ {
		require.NoError(t, w.NextFrame(func(f *render.FrameContext) error {
			images = append(images, f.Index())
			return nil
		}))
	}
	require.Equal(t, []int{0, 1, 2, 0, 1, 2}, images)
	require.Equal(t, 6, s.Presents())
	require.Equal(t, 6, s.Acquires())
	require.Zero(t, w.Rebuilds())
}

func TestAcquireOutOfDateRebuildsOnceAndRetries(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()
	require.NoError(t, w.NextFrame(nop))

	s.FailAcquire(render.ErrOutOfDate)
	calls := 0
	require.NoError(t, w.NextFrame(func(*render.FrameContext) error {
		calls++
		return nil
	}))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, w.Rebuilds())
	require.Equal(t, 2, s.Swapchains())
	require.Equal(t, 2, s.Acquires())
	require.Equal(t, 2, s.Presents())
}

func TestResizeRebuildsAtNewExtent(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()
	require.NoError(t, w.NextFrame(nop))

	s.Resize(800, 600)
	require.NoError(t, w.NextFrame(nop))
	width, height := w.Extent()
	require.EqualValues(t, 800, width)
	require.EqualValues(t, 600, height)
	require.Equal(t, 1, w.Rebuilds())

	// The resize callback arrives with the next poll and asks for one more
	// rebuild at the same size.
	w.PollEvents()
	require.NoError(t, w.NextFrame(nop))
	require.Equal(t, 2, w.Rebuilds())
	require.NoError(t, w.NextFrame(nop))
	require.Equal(t, 2, w.Rebuilds())
}

func TestMinimizedWindowWaitsForRestore(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()

	s.Minimize()
	require.NoError(t, w.NextFrame(nop))
	width, height := w.Extent()
	require.EqualValues(t, 640, width)
	require.EqualValues(t, 480, height)
	require.Equal(t, 1, w.Rebuilds())
}

func TestPresentOutOfDateDefersRebuild(t *testing.T) {
	for _, err := range []error{render.ErrOutOfDate, render.ErrSuboptimal} {
		t.Run(err.Error(), func(t *testing.T) {
			ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
			defer ctx.Destroy()

			s.FailPresent(err)
			require.NoError(t, w.NextFrame(nop))
			require.Zero(t, w.Rebuilds())
			require.Equal(t, 1, s.Presents())

			require.NoError(t, w.NextFrame(nop))
			require.Equal(t, 1, w.Rebuilds())
			require.NoError(t, w.NextFrame(nop))
			require.Equal(t, 1, w.Rebuilds())
		})
	}
}

func TestAcquireSuboptimalRendersThenRebuilds(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()

	s.FailAcquire(render.ErrSuboptimal)
	require.NoError(t, w.NextFrame(nop))
	require.Zero(t, w.Rebuilds())
	require.Equal(t, 1, s.Presents())

	require.NoError(t, w.NextFrame(nop))
	require.Equal(t, 1, w.Rebuilds())
}

func TestRebuildWithNewImageCount(t *testing.T) {
	j := &journal{}
	ctx, w, s := openWindow(t, &headless.Driver{Images: 3}, j, 3)
	defer ctx.Destroy()
	require.NoError(t, w.NextFrame(nop))
	j.reset()

	s.SetImageCount(2)
	s.FailAcquire(render.ErrOutOfDate)
	require.NoError(t, w.NextFrame(nop))

	require.Equal(t, 2, w.Frames())
	require.Equal(t, 2, w.FramesInFlight())
	require.Equal(t, []string{
		"cleanup Rasterizer 0",
		"cleanup RayTracer 0",
		"cleanup Rasterizer 1",
		"cleanup RayTracer 1",
		"cleanup Rasterizer 2",
		"cleanup RayTracer 2",
		"embellish RayTracer 0",
		"embellish Rasterizer 0",
		"embellish RayTracer 1",
		"embellish Rasterizer 1",
	}, j.events)
	for i := 0; i < 2; i++ {
		img := w.Frame(i).Target().(*headless.Image)
		require.Equal(t, 1, img.Swapchain())
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, w.NextFrame(nop))
	}
}

func TestRebuildRetargetsFrames(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()
	before := render.FrameData(w.Frame(0), rayTracerKey)

	s.FailAcquire(render.ErrOutOfDate)
	require.NoError(t, w.NextFrame(nop))

	require.Same(t, before, render.FrameData(w.Frame(0), rayTracerKey))
	for i := 0; i < w.Frames(); i++ {
		img := w.Frame(i).Target().(*headless.Image)
		require.Equal(t, 1, img.Swapchain())
		require.Equal(t, i, img.Index())
	}
	require.True(t, s.Current().ID() == 1)
}

func TestWindowPanicStillPresents(t *testing.T) {
	ctx, w, s := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()

	require.Panics(t, func() {
		_ = w.NextFrame(func(*render.FrameContext) error { panic("record failed") })
	})
	require.Equal(t, 1, s.Presents())
	require.NoError(t, w.NextFrame(nop))
}

func TestWindowClearsTarget(t *testing.T) {
	ctx, w, _ := openWindow(t, &headless.Driver{}, &journal{}, 2)
	defer ctx.Destroy()

	color := [4]float32{0.1, 0.2, 0.3, 1}
	require.NoError(t, w.NextFrame(func(f *render.FrameContext) error {
		return f.Commands().(render.ImageClearer).ClearImage(f.Target(), color)
	}))
	require.Equal(t, color, w.Frame(0).Target().(*headless.Image).Color())
	require.Equal(t, []string{"clear image 0"}, w.Frame(0).Commands().(*headless.CommandBuffer).Ops())
}

func TestWindowCloseAndDestroy(t *testing.T) {
	drv := &headless.Driver{}
	ctx, w, s := openWindow(t, drv, &journal{}, 2)

	require.False(t, w.ShouldClose())
	s.Close()
	require.False(t, w.ShouldClose())
	w.PollEvents()
	require.True(t, w.ShouldClose())

	require.NoError(t, w.NextFrame(nop))
	w.Destroy()
	ctx.Destroy()
	require.Zero(t, lastDevice(t, drv).Live())
}

func TestResizeSetsFramesUpAgain(t *testing.T) {
	j := &journal{}
	ctx, w, s := openWindow(t, &headless.Driver{Images: 2}, j, 2)
	defer ctx.Destroy()
	require.NoError(t, w.NextFrame(nop))
	j.reset()

	s.Resize(1024, 768)
	require.NoError(t, w.NextFrame(func(f *render.FrameContext) error {
		width, height := f.Target().(render.SizedImage).Extent()
		require.EqualValues(t, 1024, width)
		require.EqualValues(t, 768, height)
		return nil
	}))
	require.Equal(t, []string{
		"cleanup Rasterizer 0",
		"cleanup RayTracer 0",
		"cleanup Rasterizer 1",
		"cleanup RayTracer 1",
		"embellish RayTracer 0",
		"embellish Rasterizer 0",
		"embellish RayTracer 1",
		"embellish Rasterizer 1",
	}, j.events)
}
