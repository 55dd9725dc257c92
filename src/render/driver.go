package render

import "fmt"

// Requirements is the set of instance and device capabilities a Context is
// created with. Extensions declare theirs before the device exists; the
// builder folds them together and hands the union to the Driver.
type Requirements struct {
	APIVersion         uint32
	ValidationLayers   []string
	InstanceExtensions []string
	DeviceExtensions   []string
	// Features names optional device features, e.g. "samplerAnisotropy".
	Features []string
}

// Merge folds o into r. Lists keep first-seen order and never hold the same
// name twice; the higher API version wins.
func (r *Requirements) Merge(o Requirements) {
	if o.APIVersion > r.APIVersion {
		r.APIVersion = o.APIVersion
	}
	r.ValidationLayers = union(r.ValidationLayers, o.ValidationLayers)
	r.InstanceExtensions = union(r.InstanceExtensions, o.InstanceExtensions)
	r.DeviceExtensions = union(r.DeviceExtensions, o.DeviceExtensions)
	r.Features = union(r.Features, o.Features)
}

func union(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

// Driver brings up a device satisfying the requirements. A requirement the
// hardware cannot meet is reported with an error wrapping ErrUnsupported.
type Driver interface {
	Open(req Requirements) (Device, error)
}

// Device is the shared GPU context: queues, command pool, descriptor pool and
// allocator live behind it. All calls come from the render thread.
type Device interface {
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	AllocateCommandBuffer() (CommandBuffer, error)

	// Submit queues cmd on the graphics queue. Execution waits on
	// info.Wait, and signals info.Signal and info.Fence on completion.
	Submit(cmd CommandBuffer, info SubmitInfo) error

	// SingleTimeCommands records fn into a throwaway command buffer, submits
	// it and blocks until it has executed.
	SingleTimeCommands(fn func(cmd CommandBuffer) error) error

	WaitIdle() error
	Destroy()
}

// SubmitInfo carries the synchronization of one queue submission.
type SubmitInfo struct {
	Wait   []Semaphore
	Signal []Semaphore
	Fence  Fence
}

// Fence is a GPU to CPU completion signal.
type Fence interface {
	// Wait blocks until the fence is signaled. There is no timeout.
	Wait() error
	Reset() error
	Destroy()
}

// Semaphore is a GPU to GPU ordering signal.
type Semaphore interface {
	Destroy()
}

// CommandBuffer is one recording unit.
type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error
	Free()
}

// SurfaceProvider is implemented by devices that can present to a window.
type SurfaceProvider interface {
	CreateSurface(info SurfaceInfo) (Surface, error)
}

// SurfaceInfo describes the platform window backing a Surface.
type SurfaceInfo struct {
	Title  string
	Width  int
	Height int
}

// Surface is a presentable platform window.
type Surface interface {
	// CreateSwapchain builds a swapchain for the current surface size. old
	// may be nil; when set it is retired by the new swapchain and must not
	// be used afterwards except for Destroy.
	CreateSwapchain(old Swapchain) (Swapchain, error)
	FramebufferSize() (width, height int)
	ShouldClose() bool
	PollEvents()
	// WaitEvents blocks until at least one platform event arrived.
	WaitEvents()
	// OnResize registers fn to be called when the framebuffer size changes.
	OnResize(fn func(width, height int))
	Destroy()
}

// Swapchain is the set of presentable images of a Surface.
type Swapchain interface {
	ImageCount() int
	Extent() (width, height uint32)
	// Image returns the driver specific handle of presentable image i.
	Image(i int) Image
	// Acquire returns the index of the next presentable image; signal is
	// signaled once the image may be written. Errors wrapping ErrOutOfDate
	// mean the swapchain must be rebuilt; ErrSuboptimal comes with a valid
	// index.
	Acquire(signal Semaphore) (int, error)
	// Present queues image i for display once wait is signaled.
	Present(i int, wait Semaphore) error
	Destroy()
}

// Image is an opaque presentable image handle. Drivers expose accessors to
// get at the native object.
type Image interface{}

// BufferUsage tells the driver how a buffer will be bound.
type BufferUsage uint32

const (
	BufferUniform BufferUsage = 1 << iota
	BufferStorage
	BufferVertex
	BufferIndex
	BufferTransferSrc
	BufferTransferDst
)

// BufferInfo describes a host visible buffer.
type BufferInfo struct {
	Size  int
	Usage BufferUsage
}

// BufferAllocator is implemented by devices that can hand out host visible,
// persistently mapped buffers.
type BufferAllocator interface {
	CreateBuffer(info BufferInfo) (Buffer, error)
}

// Buffer is a persistently mapped host visible buffer. Writes through Mapped
// are seen by the GPU without an explicit flush.
type Buffer interface {
	Size() int
	Mapped() []byte
	Destroy()
}

// ImageClearer is implemented by command buffers that can record a full
// colour clear of a presentable image, leaving it ready for presentation.
type ImageClearer interface {
	ClearImage(target Image, color [4]float32) error
}

// SizedImage is implemented by images that know their dimensions, including
// the presentable images of both drivers.
type SizedImage interface {
	Extent() (width, height uint32)
}

// ImageFormat is the texel format of a device image.
type ImageFormat uint32

const (
	FormatRGBA8 ImageFormat = iota + 1
	FormatBGRA8
	FormatRGBA16F
	FormatRGBA32F
	FormatR32F
)

// ImageUsage tells the driver how an image will be accessed.
type ImageUsage uint32

const (
	ImageSampled ImageUsage = 1 << iota
	ImageStorage
	ImageColorAttachment
	ImageTransferSrc
	ImageTransferDst
)

// ImageLayout is the layout a new image is transitioned to before it is
// handed out.
type ImageLayout uint32

const (
	LayoutGeneral ImageLayout = iota
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutTransferSrc
	LayoutTransferDst
)

// ImageInfo describes a device local 2D colour image.
type ImageInfo struct {
	Width, Height uint32
	Format        ImageFormat
	Usage         ImageUsage
	Layout        ImageLayout
}

// Validate reports an ErrInvalidConfig for empty or unformatted images.
func (i ImageInfo) Validate() error {
	switch {
	case i.Width == 0 || i.Height == 0:
		return fmt.Errorf("%w: image %dx%d", ErrInvalidConfig, i.Width, i.Height)
	case i.Format == 0:
		return fmt.Errorf("%w: image without format", ErrInvalidConfig)
	case i.Usage == 0:
		return fmt.Errorf("%w: image without usage", ErrInvalidConfig)
	}
	return nil
}

// ImageAllocator is implemented by devices that can create device local
// images.
type ImageAllocator interface {
	CreateImage(info ImageInfo) (Texture, error)
}

// Texture is a device local image owned by an extension.
type Texture interface {
	SizedImage
	Info() ImageInfo
	Destroy()
}
