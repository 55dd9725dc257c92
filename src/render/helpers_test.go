package render_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
)

var errBoom = errors.New("boom")

type journal struct {
	events []string
}

func (j *journal) add(format string, args ...any) {
	j.events = append(j.events, fmt.Sprintf(format, args...))
}

func (j *journal) reset() { j.events = nil }

type recorderFrame struct {
	frame int
	uses  int
}

// recorder is an extension that logs every lifecycle call.
type recorder struct {
	name   string
	j      *journal
	failOn int

	attach func(*render.FrameContext, *recorderFrame)
	detach func(*render.FrameContext) *recorderFrame
}

func (p *recorder) Embellish(f *render.FrameContext) error {
	if p.failOn == f.Index() {
		return errBoom
	}
	p.attach(f, &recorderFrame{frame: f.Index()})
	p.j.add("embellish %s %d", p.name, f.Index())
	return nil
}

func (p *recorder) Cleanup(f *render.FrameContext) {
	p.detach(f)
	p.j.add("cleanup %s %d", p.name, f.Index())
}

func (p *recorder) Destroy() {
	p.j.add("destroy %s", p.name)
}

type rayTracer struct{ recorder }
type rasterizer struct{ recorder }
type computeShader struct{ recorder }

var (
	rayTracerKey     = render.NewKey[*rayTracer, *recorderFrame]("RayTracer")
	rasterizerKey    = render.NewKey[*rasterizer, *recorderFrame]("Rasterizer")
	computeShaderKey = render.NewKey[*computeShader, *recorderFrame]("ComputeShader")
)

func newRayTracer(j *journal) *rayTracer {
	e := &rayTracer{recorder{name: "RayTracer", j: j, failOn: -1}}
	e.attach = func(f *render.FrameContext, d *recorderFrame) { render.Attach(f, rayTracerKey, d) }
	e.detach = func(f *render.FrameContext) *recorderFrame { return render.Detach(f, rayTracerKey) }
	return e
}

func newRasterizer(j *journal) *rasterizer {
	e := &rasterizer{recorder{name: "Rasterizer", j: j, failOn: -1}}
	e.attach = func(f *render.FrameContext, d *recorderFrame) { render.Attach(f, rasterizerKey, d) }
	e.detach = func(f *render.FrameContext) *recorderFrame { return render.Detach(f, rasterizerKey) }
	return e
}

var rayTracingReq = render.Requirements{
	DeviceExtensions: []string{"VK_KHR_ray_tracing_pipeline", "VK_KHR_acceleration_structure"},
}

// buildRecorders builds a context with a RayTracer and a Rasterizer.
func buildRecorders(t *testing.T, drv render.Driver, j *journal) *render.Context {
	t.Helper()
	b := render.NewBuilder(render.Info{AppName: "recorders"})
	require.NoError(t, render.Register(b, rayTracerKey, rayTracingReq,
		func(*render.Context) (*rayTracer, error) { return newRayTracer(j), nil }))
	require.NoError(t, render.Register(b, rasterizerKey, render.Requirements{},
		func(*render.Context) (*rasterizer, error) { return newRasterizer(j), nil }))
	ctx, err := b.Build(drv)
	require.NoError(t, err)
	return ctx
}

func lastDevice(t *testing.T, drv *headless.Driver) *headless.Device {
	t.Helper()
	devs := drv.Devices()
	require.NotEmpty(t, devs)
	return devs[len(devs)-1]
}
