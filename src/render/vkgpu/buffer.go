package vkgpu

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Buffer is a host visible, host coherent buffer that stays mapped for its
// whole life.
type Buffer struct {
	dev    *Device
	handle vk.Buffer
	memory vk.DeviceMemory
	mapped []byte
}

func bufferUsage(u render.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&render.BufferUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&render.BufferStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if u&render.BufferVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&render.BufferIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&render.BufferTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&render.BufferTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(flags)
}

func (d *Device) CreateBuffer(info render.BufferInfo) (_ render.Buffer, err error) {
	if info.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", render.ErrInvalidConfig, info.Size)
	}
	b := &Buffer{dev: d}
	defer func() {
		if err != nil {
			b.Destroy()
		}
	}()

	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       bufferUsage(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b.handle)
	if err := newError(ret); err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.handle, &reqs)
	reqs.Deref()
	memType, err := d.findMemoryType(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	ret = vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &b.memory)
	if err := newError(ret); err != nil {
		return nil, fmt.Errorf("allocate buffer memory: %w", err)
	}
	if err := newError(vk.BindBufferMemory(d.device, b.handle, b.memory, 0)); err != nil {
		return nil, fmt.Errorf("bind buffer memory: %w", err)
	}

	var data unsafe.Pointer
	if err := newError(vk.MapMemory(d.device, b.memory, 0, vk.DeviceSize(info.Size), 0, &data)); err != nil {
		return nil, fmt.Errorf("map buffer memory: %w", err)
	}
	b.mapped = unsafe.Slice((*byte)(data), info.Size)
	return b, nil
}

// Handle returns the native buffer for descriptor writes.
func (b *Buffer) Handle() vk.Buffer { return b.handle }

func (b *Buffer) Size() int      { return len(b.mapped) }
func (b *Buffer) Mapped() []byte { return b.mapped }

func (b *Buffer) Destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.dev.device, b.memory)
		b.mapped = nil
	}
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(b.dev.device, b.handle, nil)
		b.handle = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.dev.device, b.memory, nil)
		b.memory = vk.NullDeviceMemory
	}
}
