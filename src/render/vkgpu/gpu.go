// Package vkgpu implements the render driver contract on Vulkan, with GLFW
// providing windows and surfaces.
package vkgpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// ValidationLayer is the Khronos validation layer name.
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

// Init initializes GLFW and loads the Vulkan entry points through it. It must
// be called from the main thread before Open.
func Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("%w: no vulkan loader found", render.ErrUnsupported)
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return fmt.Errorf("vulkan init: %w", err)
	}
	return nil
}

// Terminate shuts GLFW down. Call it last, from the main thread.
func Terminate() {
	glfw.Terminate()
}

// DeviceOf returns the vulkan device behind ctx.
func DeviceOf(ctx *render.Context) (*Device, error) {
	d, ok := ctx.Device().(*Device)
	if !ok {
		return nil, fmt.Errorf("%w: context runs on %T", render.ErrUnsupported, ctx.Device())
	}
	return d, nil
}

var (
	_ render.Driver          = (*Driver)(nil)
	_ render.Device          = (*Device)(nil)
	_ render.SurfaceProvider = (*Device)(nil)
	_ render.BufferAllocator = (*Device)(nil)
	_ render.ImageAllocator  = (*Device)(nil)
	_ render.ImageClearer    = (*CommandBuffer)(nil)
	_ render.SizedImage      = (*Image)(nil)
	_ render.Texture         = (*Texture)(nil)
)
