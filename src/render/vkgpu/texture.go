package vkgpu

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

var textureFormats = map[render.ImageFormat]vk.Format{
	render.FormatRGBA8:   vk.FormatR8g8b8a8Unorm,
	render.FormatBGRA8:   vk.FormatB8g8r8a8Unorm,
	render.FormatRGBA16F: vk.FormatR16g16b16a16Sfloat,
	render.FormatRGBA32F: vk.FormatR32g32b32a32Sfloat,
	render.FormatR32F:    vk.FormatR32Sfloat,
}

func imageUsage(u render.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&render.ImageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&render.ImageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if u&render.ImageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&render.ImageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if u&render.ImageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(flags)
}

// initialTransition moves a fresh image into layout before any frame uses it.
func initialTransition(layout render.ImageLayout) transition {
	t := transition{
		from:      vk.ImageLayoutUndefined,
		srcStage:  vk.PipelineStageTopOfPipeBit,
		dstStage:  vk.PipelineStageAllCommandsBit,
		dstAccess: vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit,
	}
	switch layout {
	case render.LayoutShaderReadOnly:
		t.to = vk.ImageLayoutShaderReadOnlyOptimal
	case render.LayoutColorAttachment:
		t.to = vk.ImageLayoutColorAttachmentOptimal
	case render.LayoutTransferSrc:
		t.to = vk.ImageLayoutTransferSrcOptimal
	case render.LayoutTransferDst:
		t.to = vk.ImageLayoutTransferDstOptimal
	default:
		t.to = vk.ImageLayoutGeneral
	}
	return t
}

// Texture is a device local 2D image with a view and, for storage or sampled
// usage, a descriptor set from the shared pool binding the view at 0.
type Texture struct {
	dev    *Device
	info   render.ImageInfo
	layout vk.ImageLayout
	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	set    vk.DescriptorSet
}

func (d *Device) CreateImage(info render.ImageInfo) (_ render.Texture, err error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	format, ok := textureFormats[info.Format]
	if !ok {
		return nil, fmt.Errorf("%w: image format %d", render.ErrUnsupported, info.Format)
	}
	t := &Texture{dev: d, info: info}
	defer func() {
		if err != nil {
			t.Destroy()
		}
	}()
	if err := t.create(format); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Texture) create(format vk.Format) (err error) {
	defer checkErr(&err)
	d := t.dev

	orPanic(newError(vk.CreateImage(d.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  t.info.Width,
			Height: t.info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(t.info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &t.handle)))

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, t.handle, &reqs)
	reqs.Deref()
	memType, err := d.findMemoryType(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	orPanic(err)
	orPanic(newError(vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &t.memory)))
	orPanic(newError(vk.BindImageMemory(d.device, t.handle, t.memory, 0)))

	orPanic(newError(vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange,
	}, nil, &t.view)))

	tr := initialTransition(t.info.Layout)
	orPanic(d.SingleTimeCommands(func(cmd render.CommandBuffer) error {
		cmd.(*CommandBuffer).transition(t.handle, tr)
		return nil
	}))
	t.layout = tr.to

	descType, layout := vk.DescriptorTypeSampledImage, d.sampledLayout
	switch {
	case t.info.Usage&render.ImageStorage != 0:
		descType, layout = vk.DescriptorTypeStorageImage, d.storageLayout
	case t.info.Usage&render.ImageSampled == 0:
		return nil
	}
	t.set, err = d.AllocateDescriptorSet(layout)
	orPanic(err)
	vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  descType,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   t.view,
			ImageLayout: t.layout,
		}},
	}}, 0, nil)
	return nil
}

// Handle returns the native image.
func (t *Texture) Handle() vk.Image { return t.handle }

// View returns the image view covering the whole image.
func (t *Texture) View() vk.ImageView { return t.view }

// Layout is the layout the image was left in after creation.
func (t *Texture) Layout() vk.ImageLayout { return t.layout }

// DescriptorSet binds the view at binding 0; see Device.ImageSetLayout. It
// is nil for textures that are neither sampled nor storage.
func (t *Texture) DescriptorSet() vk.DescriptorSet { return t.set }

func (t *Texture) Info() render.ImageInfo { return t.info }

func (t *Texture) Extent() (uint32, uint32) { return t.info.Width, t.info.Height }

func (t *Texture) Destroy() {
	d := t.dev
	if t.set != nil {
		d.FreeDescriptorSet(t.set)
		t.set = nil
	}
	if t.view != vk.NullImageView {
		vk.DestroyImageView(d.device, t.view, nil)
		t.view = vk.NullImageView
	}
	if t.handle != vk.NullImage {
		vk.DestroyImage(d.device, t.handle, nil)
		t.handle = vk.NullImage
	}
	if t.memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.device, t.memory, nil)
		t.memory = vk.NullDeviceMemory
	}
}
