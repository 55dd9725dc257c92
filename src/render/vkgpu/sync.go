package vkgpu

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Fence wraps a vk.Fence.
type Fence struct {
	dev    *Device
	handle vk.Fence
}

func (d *Device) CreateFence(signaled bool) (render.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := newError(vk.CreateFence(d.device, &info, nil, &fence)); err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	return &Fence{dev: d, handle: fence}, nil
}

// Handle returns the native fence.
func (f *Fence) Handle() vk.Fence { return f.handle }

func (f *Fence) Wait() error {
	ret := vk.WaitForFences(f.dev.device, 1, []vk.Fence{f.handle}, vk.True, vk.MaxUint64)
	return newError(ret)
}

func (f *Fence) Reset() error {
	return newError(vk.ResetFences(f.dev.device, 1, []vk.Fence{f.handle}))
}

func (f *Fence) Destroy() {
	if f.handle == vk.NullFence {
		return
	}
	vk.DestroyFence(f.dev.device, f.handle, nil)
	f.handle = vk.NullFence
}

// Semaphore wraps a binary vk.Semaphore.
type Semaphore struct {
	dev    *Device
	handle vk.Semaphore
}

func (d *Device) CreateSemaphore() (render.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := newError(ret); err != nil {
		return nil, fmt.Errorf("create semaphore: %w", err)
	}
	return &Semaphore{dev: d, handle: sem}, nil
}

// Handle returns the native semaphore.
func (s *Semaphore) Handle() vk.Semaphore { return s.handle }

func (s *Semaphore) Destroy() {
	if s.handle == vk.NullSemaphore {
		return
	}
	vk.DestroySemaphore(s.dev.device, s.handle, nil)
	s.handle = vk.NullSemaphore
}

func semaphores(list []render.Semaphore) []vk.Semaphore {
	out := make([]vk.Semaphore, len(list))
	for i, s := range list {
		out[i] = s.(*Semaphore).handle
	}
	return out
}
