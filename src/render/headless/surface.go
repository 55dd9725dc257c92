package headless

import (
	"errors"
	"fmt"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Surface is a simulated window. Platform events queued by Resize, Minimize
// and Close are delivered by PollEvents or WaitEvents, like a real event
// loop.
type Surface struct {
	dev    *Device
	title  string
	width  int
	height int
	images int

	shouldClose bool
	onResize    []func(width, height int)
	events      []func()

	acquireErrs []error
	presentErrs []error

	current    *Swapchain
	swapchains int
	acquires   int
	presents   int
	destroyed  bool
}

func (d *Device) CreateSurface(info render.SurfaceInfo) (render.Surface, error) {
	if info.Width < 1 || info.Height < 1 {
		return nil, fmt.Errorf("%w: surface %dx%d", render.ErrInvalidConfig, info.Width, info.Height)
	}
	d.live++
	return &Surface{
		dev:    d,
		title:  info.Title,
		width:  info.Width,
		height: info.Height,
		images: d.images,
	}, nil
}

// Title returns the window title.
func (s *Surface) Title() string { return s.title }

// Acquires returns the number of successful image acquisitions.
func (s *Surface) Acquires() int { return s.acquires }

// Presents returns the number of presented images.
func (s *Surface) Presents() int { return s.presents }

// Swapchains returns how many swapchains were created on the surface.
func (s *Surface) Swapchains() int { return s.swapchains }

// Current returns the most recent swapchain.
func (s *Surface) Current() *Swapchain { return s.current }

// SetImageCount changes the image count of swapchains created from now on.
func (s *Surface) SetImageCount(n int) { s.images = n }

// FailAcquire makes the next acquisition report err. ErrSuboptimal still
// hands out an image; any other error does not.
func (s *Surface) FailAcquire(err error) { s.acquireErrs = append(s.acquireErrs, err) }

// FailPresent makes the next presentation report err after the image was
// queued.
func (s *Surface) FailPresent(err error) { s.presentErrs = append(s.presentErrs, err) }

// Resize changes the framebuffer size. The current swapchain goes out of
// date at once; resize callbacks run on the next event poll.
func (s *Surface) Resize(width, height int) {
	s.width, s.height = width, height
	if s.current != nil {
		s.current.stale = true
	}
	s.events = append(s.events, func() {
		for _, fn := range s.onResize {
			fn(width, height)
		}
	})
}

// Minimize shrinks the framebuffer to zero. The window is restored by the
// next WaitEvents.
func (s *Surface) Minimize() {
	width, height := s.width, s.height
	s.Resize(0, 0)
	s.events = append(s.events, func() { s.Resize(width, height) })
}

// Close asks the window to close on the next event poll.
func (s *Surface) Close() {
	s.events = append(s.events, func() { s.shouldClose = true })
}

func (s *Surface) FramebufferSize() (int, int) { return s.width, s.height }

func (s *Surface) ShouldClose() bool { return s.shouldClose }

func (s *Surface) OnResize(fn func(width, height int)) {
	s.onResize = append(s.onResize, fn)
}

func (s *Surface) PollEvents() {
	for len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		ev()
	}
}

func (s *Surface) WaitEvents() {
	if len(s.events) == 0 {
		render.Logger().Warn("headless surface waiting without pending events")
		return
	}
	s.PollEvents()
}

func (s *Surface) CreateSwapchain(old render.Swapchain) (render.Swapchain, error) {
	if s.width < 1 || s.height < 1 {
		return nil, fmt.Errorf("%w: swapchain for %dx%d surface", render.ErrInvalidConfig, s.width, s.height)
	}
	if old != nil {
		o, ok := old.(*Swapchain)
		if !ok || o.surface != s {
			return nil, fmt.Errorf("%w: foreign swapchain", ErrMisuse)
		}
		if o.retired {
			return nil, fmt.Errorf("%w: swapchain already retired", ErrMisuse)
		}
		o.retired = true
	}
	sc := &Swapchain{
		surface: s,
		id:      s.swapchains,
		width:   uint32(s.width),
		height:  uint32(s.height),
	}
	for i := 0; i < s.images; i++ {
		sc.images = append(sc.images, &Image{swapchain: sc.id, index: i, width: sc.width, height: sc.height})
		sc.available = append(sc.available, i)
	}
	sc.acquired = make([]bool, s.images)
	s.swapchains++
	s.current = sc
	s.dev.live++
	return sc, nil
}

func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.dev.live--
}

// Swapchain hands out images in the order they were presented.
type Swapchain struct {
	surface *Surface
	id      int
	width   uint32
	height  uint32
	images  []*Image

	available []int
	acquired  []bool

	stale     bool
	retired   bool
	destroyed bool
}

// ID is the creation index of the swapchain on its surface.
func (sc *Swapchain) ID() int { return sc.id }

// Retired reports whether a newer swapchain replaced this one.
func (sc *Swapchain) Retired() bool { return sc.retired }

func (sc *Swapchain) ImageCount() int { return len(sc.images) }

func (sc *Swapchain) Extent() (uint32, uint32) { return sc.width, sc.height }

func (sc *Swapchain) Image(i int) render.Image { return sc.images[i] }

func (sc *Swapchain) Acquire(signal render.Semaphore) (int, error) {
	if sc.retired || sc.destroyed {
		return 0, fmt.Errorf("%w: acquire from retired swapchain", ErrMisuse)
	}
	if sc.stale {
		return 0, render.ErrOutOfDate
	}
	var injected error
	if errs := sc.surface.acquireErrs; len(errs) > 0 {
		injected = errs[0]
		sc.surface.acquireErrs = errs[1:]
		if !errors.Is(injected, render.ErrSuboptimal) {
			return 0, injected
		}
	}
	sem, ok := signal.(*Semaphore)
	if !ok {
		return 0, fmt.Errorf("%w: acquire without semaphore", ErrMisuse)
	}
	if sem.signaled || sem.pendingBy != nil {
		return 0, fmt.Errorf("%w: acquire signals a semaphore already signaled", ErrMisuse)
	}
	if len(sc.available) == 0 {
		return 0, fmt.Errorf("%w: every image is acquired", ErrDeadlock)
	}
	idx := sc.available[0]
	sc.available = sc.available[1:]
	sc.acquired[idx] = true
	sem.signaled = true
	sc.surface.acquires++
	return idx, injected
}

func (sc *Swapchain) Present(i int, wait render.Semaphore) error {
	if sc.retired || sc.destroyed {
		return fmt.Errorf("%w: present to retired swapchain", ErrMisuse)
	}
	if i < 0 || i >= len(sc.images) || !sc.acquired[i] {
		return fmt.Errorf("%w: present of image %d that was not acquired", ErrMisuse, i)
	}
	sem, ok := wait.(*Semaphore)
	if !ok || (!sem.signaled && sem.pendingBy == nil) {
		return fmt.Errorf("%w: present waits on a semaphore nothing signals", ErrDeadlock)
	}
	sem.consume()
	sc.acquired[i] = false
	sc.available = append(sc.available, i)
	sc.surface.presents++

	if sc.stale {
		return render.ErrOutOfDate
	}
	if errs := sc.surface.presentErrs; len(errs) > 0 {
		sc.surface.presentErrs = errs[1:]
		return errs[0]
	}
	return nil
}

func (sc *Swapchain) Destroy() {
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	sc.surface.dev.live--
}

// Image is a simulated presentable image. It remembers the last colour it was
// cleared to.
type Image struct {
	swapchain     int
	index         int
	width, height uint32
	color         [4]float32
}

func (img *Image) Extent() (uint32, uint32) { return img.width, img.height }

func (img *Image) Swapchain() int { return img.swapchain }
func (img *Image) Index() int { return img.index }
func (img *Image) Color() [4]float32 { return img.color }
