package vkgpu

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Swapchain owns the presentable images of a Surface.
type Swapchain struct {
	dev     *Device
	handle  vk.Swapchain
	format  vk.SurfaceFormat
	extent  vk.Extent2D
	images  []*Image
	present vk.PresentMode
}

// Image is one swapchain image.
type Image struct {
	handle vk.Image
	index  int
	format vk.Format
	extent vk.Extent2D
}

func (i *Image) Handle() vk.Image  { return i.handle }
func (i *Image) Index() int        { return i.index }
func (i *Image) Format() vk.Format { return i.format }

func (i *Image) Extent() (width, height uint32) { return i.extent.Width, i.extent.Height }

func (s *Surface) CreateSwapchain(old render.Swapchain) (render.Swapchain, error) {
	sc := &Swapchain{dev: s.dev}
	if err := sc.build(s, old); err != nil {
		sc.Destroy()
		return nil, fmt.Errorf("create swapchain: %w", err)
	}
	render.Logger().Debug("swapchain created", "images", len(sc.images),
		"width", sc.extent.Width, "height", sc.extent.Height, "presentMode", sc.present)
	return sc, nil
}

func (sc *Swapchain) build(s *Surface, old render.Swapchain) (err error) {
	defer checkErr(&err)
	d := s.dev

	var caps vk.SurfaceCapabilities
	orPanic(newError(vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, s.handle, &caps)))
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	sc.format = s.chooseFormat()
	sc.extent = s.chooseExtent(caps)
	sc.present = s.choosePresentMode()

	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}

	transform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		transform = vk.SurfaceTransformIdentityBit
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.handle,
		MinImageCount:    count,
		ImageFormat:      sc.format.Format,
		ImageColorSpace:  sc.format.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     transform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.present,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if d.graphicsFamily != d.presentFamily {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{d.graphicsFamily, d.presentFamily}
	}
	if old != nil {
		info.OldSwapchain = old.(*Swapchain).handle
	}
	orPanic(newError(vk.CreateSwapchain(d.device, &info, nil, &sc.handle)))

	var n uint32
	orPanic(newError(vk.GetSwapchainImages(d.device, sc.handle, &n, nil)))
	handles := make([]vk.Image, n)
	orPanic(newError(vk.GetSwapchainImages(d.device, sc.handle, &n, handles)))
	for i, h := range handles {
		sc.images = append(sc.images, &Image{handle: h, index: i, format: sc.format.Format, extent: sc.extent})
	}

	// Every image starts out presentable so a frame that records nothing
	// can still be presented.
	orPanic(d.SingleTimeCommands(func(cmd render.CommandBuffer) error {
		cb := cmd.(*CommandBuffer)
		for _, img := range sc.images {
			cb.Barrier(img.handle, vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc,
				0, 0, vk.PipelineStageTopOfPipeBit, vk.PipelineStageBottomOfPipeBit)
		}
		return nil
	}))
	return err
}

func (s *Surface) chooseFormat() vk.SurfaceFormat {
	var count uint32
	orPanic(newError(vk.GetPhysicalDeviceSurfaceFormats(s.dev.gpu, s.handle, &count, nil)))
	if count == 0 {
		orPanic(errors.New("vulkan error: surface has no pixel formats"))
	}
	formats := make([]vk.SurfaceFormat, count)
	orPanic(newError(vk.GetPhysicalDeviceSurfaceFormats(s.dev.gpu, s.handle, &count, formats)))
	for i := range formats {
		formats[i].Deref()
		f := formats[i]
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

func (s *Surface) choosePresentMode() vk.PresentMode {
	var count uint32
	orPanic(newError(vk.GetPhysicalDeviceSurfacePresentModes(s.dev.gpu, s.handle, &count, nil)))
	modes := make([]vk.PresentMode, count)
	orPanic(newError(vk.GetPhysicalDeviceSurfacePresentModes(s.dev.gpu, s.handle, &count, modes)))
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	render.Logger().Warn("mailbox present mode unavailable, falling back to fifo")
	return vk.PresentModeFifo
}

func (s *Surface) chooseExtent(caps vk.SurfaceCapabilities) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	width, height := s.FramebufferSize()
	return vk.Extent2D{
		Width:  clamp(uint32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(uint32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Handle returns the native swapchain.
func (sc *Swapchain) Handle() vk.Swapchain { return sc.handle }

// Format returns the pixel format of the images.
func (sc *Swapchain) Format() vk.Format { return sc.format.Format }

func (sc *Swapchain) ImageCount() int                { return len(sc.images) }
func (sc *Swapchain) Extent() (width, height uint32) { return sc.extent.Width, sc.extent.Height }
func (sc *Swapchain) Image(i int) render.Image       { return sc.images[i] }

func (sc *Swapchain) Acquire(signal render.Semaphore) (int, error) {
	var idx uint32
	ret := vk.AcquireNextImage(sc.dev.device, sc.handle, vk.MaxUint64,
		signal.(*Semaphore).handle, vk.NullFence, &idx)
	switch ret {
	case vk.Success:
		return int(idx), nil
	case vk.Suboptimal:
		return int(idx), render.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return 0, render.ErrOutOfDate
	default:
		return 0, fmt.Errorf("acquire image: %w", newError(ret))
	}
}

func (sc *Swapchain) Present(i int, wait render.Semaphore) error {
	ret := vk.QueuePresent(sc.dev.present, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(*Semaphore).handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{uint32(i)},
	})
	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return render.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return render.ErrOutOfDate
	default:
		return fmt.Errorf("present image %d: %w", i, newError(ret))
	}
}

func (sc *Swapchain) Destroy() {
	if sc.handle == vk.NullSwapchain {
		return
	}
	vk.DestroySwapchain(sc.dev.device, sc.handle, nil)
	sc.handle = vk.NullSwapchain
	sc.images = nil
}
