package vkgpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Surface is a GLFW window with its vulkan surface.
type Surface struct {
	dev      *Device
	window   *glfw.Window
	handle   vk.Surface
	onResize []func(width, height int)
}

func (d *Device) CreateSurface(info render.SurfaceInfo) (_ render.Surface, err error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	defer glfw.DefaultWindowHints()
	window, err := glfw.CreateWindow(info.Width, info.Height, info.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	s := &Surface{dev: d, window: window}
	defer func() {
		if err != nil {
			s.Destroy()
		}
	}()

	surf, err := window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return nil, fmt.Errorf("create window surface: %w", err)
	}
	s.handle = vk.SurfaceFromPointer(surf)

	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(d.gpu, d.presentFamily, s.handle, &supported)
	if err := newError(ret); err != nil {
		return nil, err
	}
	if !supported.B() {
		return nil, fmt.Errorf("%w: queue family %d cannot present to %q",
			render.ErrUnsupported, d.presentFamily, info.Title)
	}

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		for _, fn := range s.onResize {
			fn(width, height)
		}
	})
	return s, nil
}

// Window returns the GLFW window, e.g. for input handling.
func (s *Surface) Window() *glfw.Window { return s.window }

// Handle returns the native surface.
func (s *Surface) Handle() vk.Surface { return s.handle }

func (s *Surface) FramebufferSize() (width, height int) { return s.window.GetFramebufferSize() }
func (s *Surface) ShouldClose() bool                    { return s.window.ShouldClose() }
func (s *Surface) PollEvents()                          { glfw.PollEvents() }
func (s *Surface) WaitEvents()                          { glfw.WaitEvents() }

func (s *Surface) OnResize(fn func(width, height int)) {
	s.onResize = append(s.onResize, fn)
}

func (s *Surface) Destroy() {
	if s.handle != vk.NullSurface {
		vk.DestroySurface(s.dev.instance, s.handle, nil)
		s.handle = vk.NullSurface
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
}
