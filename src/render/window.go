package render

import (
	"errors"
	"fmt"
)

// WindowInfo describes a presentable window.
type WindowInfo struct {
	Title          string
	Width          int
	Height         int
	FramesInFlight int
}

// Window is a FrameManager whose frames are the presentable images of a
// swapchain. NextFrame acquires the next image from the presentation engine
// instead of cycling, and presents the frame after submitting it.
type Window struct {
	*FrameManager

	info      WindowInfo
	surface   Surface
	swapchain Swapchain

	imageAvailable []Semaphore
	renderFinished []Semaphore

	dirty    bool
	rebuilds int
}

// NewWindow opens a surface on the context's device and builds one frame
// context per swapchain image. At most min(FramesInFlight, images) frames are
// recorded ahead of the GPU.
func NewWindow(ctx *Context, info WindowInfo) (*Window, error) {
	if info.Width < 1 || info.Height < 1 || info.FramesInFlight < 1 {
		return nil, fmt.Errorf("%w: window %dx%d with %d frames in flight",
			ErrInvalidConfig, info.Width, info.Height, info.FramesInFlight)
	}
	provider, ok := ctx.device.(SurfaceProvider)
	if !ok {
		return nil, ErrNoSurface
	}
	surface, err := provider.CreateSurface(SurfaceInfo{Title: info.Title, Width: info.Width, Height: info.Height})
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	swapchain, err := surface.CreateSwapchain(nil)
	if err != nil {
		surface.Destroy()
		return nil, fmt.Errorf("create swapchain: %w", err)
	}

	w := &Window{info: info, surface: surface, swapchain: swapchain}
	w.FrameManager = &FrameManager{ctx: ctx, policy: w}

	n := swapchain.ImageCount()
	if err := w.FrameManager.init(n, w.inFlightFor(n), swapchain.Image); err != nil {
		swapchain.Destroy()
		surface.Destroy()
		return nil, err
	}
	if err := w.createSemaphores(); err != nil {
		w.FrameManager.cleanupFrames()
		w.FrameManager.destroyFences()
		swapchain.Destroy()
		surface.Destroy()
		return nil, err
	}
	surface.OnResize(func(width, height int) {
		Logger().Debug("framebuffer resized", "width", width, "height", height)
		w.dirty = true
	})
	ctx.addManager(w.FrameManager)

	width, height := swapchain.Extent()
	Logger().Info("window created", "title", info.Title,
		"width", width, "height", height, "images", n, "inFlight", w.FramesInFlight())
	return w, nil
}

func (w *Window) inFlightFor(images int) int {
	if w.info.FramesInFlight < images {
		return w.info.FramesInFlight
	}
	return images
}

func (w *Window) createSemaphores() error {
	k := len(w.inFlight)
	w.imageAvailable = make([]Semaphore, 0, k)
	w.renderFinished = make([]Semaphore, 0, k)
	for i := 0; i < k; i++ {
		a, err := w.ctx.device.CreateSemaphore()
		if err != nil {
			w.destroySemaphores()
			return fmt.Errorf("create image available semaphore %d: %w", i, err)
		}
		w.imageAvailable = append(w.imageAvailable, a)
		r, err := w.ctx.device.CreateSemaphore()
		if err != nil {
			w.destroySemaphores()
			return fmt.Errorf("create render finished semaphore %d: %w", i, err)
		}
		w.renderFinished = append(w.renderFinished, r)
	}
	return nil
}

func (w *Window) destroySemaphores() {
	for _, s := range w.imageAvailable {
		s.Destroy()
	}
	for _, s := range w.renderFinished {
		s.Destroy()
	}
	w.imageAvailable = nil
	w.renderFinished = nil
}

// ShouldClose reports whether the user asked to close the window.
func (w *Window) ShouldClose() bool { return w.surface.ShouldClose() }

// PollEvents processes pending platform events.
func (w *Window) PollEvents() { w.surface.PollEvents() }

// Extent returns the size of the current swapchain images.
func (w *Window) Extent() (width, height uint32) { return w.swapchain.Extent() }

// Rebuilds returns how often the swapchain was recreated.
func (w *Window) Rebuilds() int { return w.rebuilds }

// Surface returns the platform surface.
func (w *Window) Surface() Surface { return w.surface }

// Swapchain returns the current swapchain. It changes on every rebuild.
func (w *Window) Swapchain() Swapchain { return w.swapchain }

func (w *Window) acquire(fm *FrameManager) (int, error) {
	if w.dirty {
		if err := w.rebuild(); err != nil {
			return 0, err
		}
	}
	for {
		idx, err := w.swapchain.Acquire(w.imageAvailable[fm.current])
		switch {
		case err == nil:
			return idx, nil
		case errors.Is(err, ErrSuboptimal):
			w.dirty = true
			return idx, nil
		case errors.Is(err, ErrOutOfDate):
			Logger().Debug("swapchain out of date on acquire")
			if err := w.rebuild(); err != nil {
				return 0, err
			}
		default:
			return 0, err
		}
	}
}

func (w *Window) submit(fm *FrameManager, frame *FrameContext) error {
	k := fm.current
	err := w.ctx.device.Submit(frame.cmd, SubmitInfo{
		Wait:   []Semaphore{w.imageAvailable[k]},
		Signal: []Semaphore{w.renderFinished[k]},
		Fence:  fm.inFlight[k],
	})
	if err != nil {
		return err
	}
	err = w.swapchain.Present(frame.idx, w.renderFinished[k])
	switch {
	case err == nil:
	case errors.Is(err, ErrOutOfDate), errors.Is(err, ErrSuboptimal):
		w.dirty = true
	default:
		return fmt.Errorf("present image %d: %w", frame.idx, err)
	}
	return nil
}

// rebuild recreates the swapchain for the current surface size. A minimized
// window blocks here until it has a non-zero framebuffer again.
func (w *Window) rebuild() error {
	for {
		width, height := w.surface.FramebufferSize()
		if width > 0 && height > 0 {
			break
		}
		w.surface.WaitEvents()
	}
	if err := w.ctx.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for device idle: %w", err)
	}

	oldWidth, oldHeight := w.swapchain.Extent()
	swapchain, err := w.surface.CreateSwapchain(w.swapchain)
	if err != nil {
		return fmt.Errorf("rebuild swapchain: %w", err)
	}
	w.swapchain.Destroy()
	w.swapchain = swapchain
	w.dirty = false
	w.rebuilds++

	n := swapchain.ImageCount()
	width, height := swapchain.Extent()
	// Extensions may size frame resources after the target, so a new extent
	// sets the frames up again like a new image count does.
	if n != len(w.frames) || width != oldWidth || height != oldHeight {
		w.cleanupFrames()
		if err := w.buildFrames(n, swapchain.Image); err != nil {
			return err
		}
		if k := w.inFlightFor(n); k != len(w.inFlight) {
			w.destroySemaphores()
			w.destroyFences()
			if err := w.createFences(k); err != nil {
				return err
			}
			if err := w.createSemaphores(); err != nil {
				return err
			}
		}
	} else {
		for i, frame := range w.frames {
			frame.target = swapchain.Image(i)
		}
	}

	Logger().Info("swapchain rebuilt", "width", width, "height", height,
		"images", n, "inFlight", len(w.inFlight), "rebuilds", w.rebuilds)
	return nil
}

func (w *Window) release(*FrameManager) {
	w.destroySemaphores()
	if w.swapchain != nil {
		w.swapchain.Destroy()
		w.swapchain = nil
	}
	if w.surface != nil {
		w.surface.Destroy()
		w.surface = nil
	}
}
