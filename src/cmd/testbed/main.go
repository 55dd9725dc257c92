// Command testbed opens a window and renders a cleared background with a
// fly camera. With -headless it runs the same loop on the simulated GPU.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/HugoPeters1024/LovelyVulkan/src/config"
	"github.com/HugoPeters1024/LovelyVulkan/src/ext/background"
	"github.com/HugoPeters1024/LovelyVulkan/src/ext/camera"
	"github.com/HugoPeters1024/LovelyVulkan/src/ext/camera/glfwinput"
	"github.com/HugoPeters1024/LovelyVulkan/src/ext/store"
	"github.com/HugoPeters1024/LovelyVulkan/src/geometry"
	"github.com/HugoPeters1024/LovelyVulkan/src/render"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/headless"
	"github.com/HugoPeters1024/LovelyVulkan/src/render/vkgpu"
)

// GLFW and the vulkan surface calls must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

const (
	cameraSlot     = 0
	accumSlot      = 1
	blueNoiseSlot  = 2
	blueNoiseSize  = 128
	headlessFrames = 120
	reportEvery    = 500
)

type options struct {
	headless bool
	// frames stops the loop after that many frames; 0 runs until the
	// window closes.
	frames int
}

func main() {
	configFile := flag.String("config", "", "TOML configuration `file`")
	headlessMode := flag.Bool("headless", false, "render on the simulated GPU instead of vulkan")
	frames := flag.Int("frames", 0, "stop after `n` frames")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Open(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	level, _ := cfg.LogLevel()
	render.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, options{headless: *headlessMode, frames: *frames}); err != nil {
		render.Logger().Error("testbed failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, opts options) (err error) {
	var drv render.Driver
	if opts.headless {
		drv = &headless.Driver{}
		if opts.frames == 0 {
			opts.frames = headlessFrames
		}
	} else {
		if err := vkgpu.Init(); err != nil {
			return err
		}
		defer vkgpu.Terminate()
		drv = &vkgpu.Driver{AppName: cfg.App.Name, Validation: cfg.App.Validation}
	}

	b := render.NewBuilder(cfg.RenderInfo())
	var si store.Info
	si.DefineBuffer(cameraSlot, render.BufferUniform, camera.UniformSize)
	si.DefineImage(accumSlot, store.TargetSize(uint32(cfg.Window.Width), uint32(cfg.Window.Height)),
		render.FormatRGBA32F, render.ImageStorage|render.ImageTransferSrc, render.LayoutGeneral)
	si.DefineStaticImage(blueNoiseSlot, blueNoiseSize, blueNoiseSize,
		render.FormatRGBA8, render.ImageSampled|render.ImageTransferDst, render.LayoutShaderReadOnly)
	if err := store.Register(b, si); err != nil {
		return err
	}
	if err := background.Register(b, cfg.Window.ClearColor); err != nil {
		return err
	}
	if err := camera.Register(b, camera.Info{Slot: cameraSlot, FovY: geometry.Pi / 3, Near: 0.1, Far: 100}); err != nil {
		return err
	}

	ctx, err := b.Build(drv)
	if err != nil {
		return err
	}
	defer ctx.Destroy()
	if dev, err := vkgpu.DeviceOf(ctx); err == nil {
		render.Logger().Info("gpu selected", "name", dev.Name(), "requirements", len(dev.Requirements().DeviceExtensions))
	}

	w, err := render.NewWindow(ctx, cfg.WindowInfo())
	if err != nil {
		return err
	}
	defer w.Destroy()

	cam := render.Get(ctx, camera.Key)
	bg := render.Get(ctx, background.Key)
	if s, ok := w.Surface().(*vkgpu.Surface); ok {
		cam.SetInput(glfwinput.New(s.Window()))
	}

	draw := func(f *render.FrameContext) error {
		if err := cam.Record(f); err != nil {
			return err
		}
		return bg.Record(f)
	}
	for !w.ShouldClose() && (opts.frames == 0 || w.FrameCount() < uint64(opts.frames)) {
		w.PollEvents()
		cam.SetViewport(w.Extent())
		cam.Update()
		if err := w.NextFrame(draw); err != nil {
			if render.IsFatal(err) {
				return err
			}
			render.Logger().Warn("frame failed", "frame", w.FrameCount(), "err", err)
		}
		if n := w.FrameCount(); n%reportEvery == 0 {
			render.Logger().Info("rendering", "frames", n, "rebuilds", w.Rebuilds())
		}
	}
	render.Logger().Info("done", "frames", w.FrameCount(), "rebuilds", w.Rebuilds())
	return nil
}
