package background_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoPeters1024/LovelyVulkan/src/ext/background"
	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
)

var navy = [4]float32{0, 0, 0.2, 1}

func build(t *testing.T) *render.Context {
	t.Helper()
	b := render.NewBuilder(render.Info{AppName: "background"})
	require.NoError(t, background.Register(b, navy))
	ctx, err := b.Build(&headless.Driver{})
	require.NoError(t, err)
	return ctx
}

func TestRecordClearsTarget(t *testing.T) {
	ctx := build(t)
	defer ctx.Destroy()
	w, err := render.NewWindow(ctx, render.WindowInfo{Title: "background", Width: 320, Height: 200, FramesInFlight: 2})
	require.NoError(t, err)
	bg := render.Get(ctx, background.Key)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.NextFrame(bg.Record))
	}
	for i := 0; i < w.Frames(); i++ {
		f := w.Frame(i)
		require.Equal(t, navy, f.Target().(*headless.Image).Color())
		require.Equal(t, 1, render.FrameData(f, background.Key).Clears)
	}
}

func TestSetColor(t *testing.T) {
	ctx := build(t)
	defer ctx.Destroy()
	w, err := render.NewWindow(ctx, render.WindowInfo{Title: "background", Width: 320, Height: 200, FramesInFlight: 1})
	require.NoError(t, err)
	bg := render.Get(ctx, background.Key)

	frames := make([]*render.FrameContext, w.Frames())
	for i := range frames {
		frames[i] = w.Frame(i)
	}
	red := [4]float32{1, 0, 0, 1}
	bg.SetColor(frames, red)
	require.Equal(t, red, bg.Color())

	var last *render.FrameContext
	require.NoError(t, w.NextFrame(func(f *render.FrameContext) error {
		last = f
		return bg.Record(f)
	}))
	require.Equal(t, red, last.Target().(*headless.Image).Color())
}

func TestRecordNeedsTarget(t *testing.T) {
	ctx := build(t)
	defer ctx.Destroy()
	fm, err := render.NewFrameManager(ctx, render.FrameInfo{Frames: 2, FramesInFlight: 1})
	require.NoError(t, err)
	bg := render.Get(ctx, background.Key)

	err = fm.NextFrame(bg.Record)
	require.ErrorIs(t, err, render.ErrUnsupported)
	require.False(t, render.IsFatal(err))
}
