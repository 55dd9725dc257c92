package vkgpu

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// CommandBuffer is a primary command buffer from the device pool.
type CommandBuffer struct {
	dev    *Device
	handle vk.CommandBuffer
}

func (d *Device) AllocateCommandBuffer() (render.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := newError(ret); err != nil {
		return nil, fmt.Errorf("allocate command buffer: %w", err)
	}
	return &CommandBuffer{dev: d, handle: buffers[0]}, nil
}

// Handle returns the native command buffer for recording.
func (c *CommandBuffer) Handle() vk.CommandBuffer { return c.handle }

func (c *CommandBuffer) Reset() error {
	return newError(vk.ResetCommandBuffer(c.handle, 0))
}

func (c *CommandBuffer) Begin() error {
	return newError(vk.BeginCommandBuffer(c.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

func (c *CommandBuffer) End() error {
	return newError(vk.EndCommandBuffer(c.handle))
}

func (c *CommandBuffer) Free() {
	if c.handle == nil {
		return
	}
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	vk.FreeCommandBuffers(c.dev.device, c.dev.cmdPool, 1, []vk.CommandBuffer{c.handle})
	c.handle = nil
}

var colorRange = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

// Barrier records a layout transition of a whole colour image.
func (c *CommandBuffer) Barrier(img vk.Image, from, to vk.ImageLayout,
	srcAccess, dstAccess vk.AccessFlagBits, srcStage, dstStage vk.PipelineStageFlagBits) {
	vk.CmdPipelineBarrier(c.handle,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(srcAccess),
			DstAccessMask:       vk.AccessFlags(dstAccess),
			OldLayout:           from,
			NewLayout:           to,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange:    colorRange,
		}})
}

// transition is one whole-image layout change.
type transition struct {
	from, to             vk.ImageLayout
	srcAccess, dstAccess vk.AccessFlagBits
	srcStage, dstStage   vk.PipelineStageFlagBits
}

// waitStages is where submissions wait on their semaphores.
const waitStages = vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageTransferBit

// The acquire semaphore is waited on at the transfer stage, so the first
// transition of a swapchain image starts there.
var (
	clearBegin = transition{
		from: vk.ImageLayoutUndefined, to: vk.ImageLayoutTransferDstOptimal,
		dstAccess: vk.AccessTransferWriteBit,
		srcStage:  vk.PipelineStageTransferBit, dstStage: vk.PipelineStageTransferBit,
	}
	clearEnd = transition{
		from: vk.ImageLayoutTransferDstOptimal, to: vk.ImageLayoutPresentSrc,
		srcAccess: vk.AccessTransferWriteBit,
		srcStage:  vk.PipelineStageTransferBit, dstStage: vk.PipelineStageBottomOfPipeBit,
	}
)

func (c *CommandBuffer) transition(img vk.Image, t transition) {
	c.Barrier(img, t.from, t.to, t.srcAccess, t.dstAccess, t.srcStage, t.dstStage)
}

// ClearImage clears a swapchain image and leaves it in present layout.
func (c *CommandBuffer) ClearImage(target render.Image, color [4]float32) error {
	img, ok := target.(*Image)
	if !ok {
		return fmt.Errorf("%w: clear of %T", render.ErrUnsupported, target)
	}
	c.transition(img.handle, clearBegin)

	var clear vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&clear)) = color
	vk.CmdClearColorImage(c.handle, img.handle, vk.ImageLayoutTransferDstOptimal,
		&clear, 1, []vk.ImageSubresourceRange{colorRange})

	c.transition(img.handle, clearEnd)
	return nil
}

func (d *Device) Submit(cmd render.CommandBuffer, info render.SubmitInfo) error {
	wait := semaphores(info.Wait)
	stages := make([]vk.PipelineStageFlags, len(wait))
	for i := range stages {
		stages[i] = vk.PipelineStageFlags(waitStages)
	}
	signal := semaphores(info.Signal)
	fence := vk.NullFence
	if info.Fence != nil {
		fence = info.Fence.(*Fence).handle
	}
	ret := vk.QueueSubmit(d.graphics, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.(*CommandBuffer).handle},
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}, fence)
	return newError(ret)
}

func (d *Device) SingleTimeCommands(fn func(cmd render.CommandBuffer) error) error {
	cmd, err := d.AllocateCommandBuffer()
	if err != nil {
		return err
	}
	defer cmd.Free()
	fence, err := d.CreateFence(false)
	if err != nil {
		return err
	}
	defer fence.Destroy()

	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := fn(cmd); err != nil {
		return err
	}
	if err := cmd.End(); err != nil {
		return err
	}
	if err := d.Submit(cmd, render.SubmitInfo{Fence: fence}); err != nil {
		return err
	}
	return fence.Wait()
}
