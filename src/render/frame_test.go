package render_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
)

func TestFrameDataAccess(t *testing.T) {
	ctx := buildRecorders(t, &headless.Driver{}, &journal{})
	defer ctx.Destroy()
	fm, err := render.NewFrameManager(ctx, render.FrameInfo{Frames: 1, FramesInFlight: 1})
	require.NoError(t, err)

	f := fm.Frame(0)
	require.Equal(t, 0, f.Index())
	require.Equal(t, -1, f.InFlightSlot())
	require.Same(t, ctx, f.Context())
	require.Nil(t, f.Target())

	require.True(t, render.HasFrameData(f, rayTracerKey))
	require.True(t, render.HasFrameData(f, rasterizerKey))
	require.Panics(t, func() { render.HasFrameData(f, computeShaderKey) })
	require.Panics(t, func() { render.FrameData(f, computeShaderKey) })
	require.Panics(t, func() {
		render.Attach(f, rayTracerKey, &recorderFrame{})
	})

	d := render.Detach(f, rayTracerKey)
	require.Equal(t, 0, d.frame)
	require.False(t, render.HasFrameData(f, rayTracerKey))
	require.Panics(t, func() { render.FrameData(f, rayTracerKey) })

	// Put it back so Cleanup finds it.
	render.Attach(f, rayTracerKey, d)
	require.Same(t, d, render.FrameData(f, rayTracerKey))
}
