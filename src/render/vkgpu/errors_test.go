package vkgpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

func TestNewError(t *testing.T) {
	require.NoError(t, newError(vk.Success))

	err := newError(vk.ErrorOutOfDate)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TestNewError")
	require.Contains(t, err.Error(), "errors_test.go")
	require.True(t, isError(vk.ErrorDeviceLost))
	require.False(t, isError(vk.Success))
}

func TestOrPanicCheckErr(t *testing.T) {
	boom := errors.New("boom")
	var finalized []int
	run := func(in error) (err error) {
		defer checkErr(&err)
		orPanic(in, func() { finalized = append(finalized, 1) }, func() { finalized = append(finalized, 2) })
		return nil
	}

	require.NoError(t, run(nil))
	require.Empty(t, finalized)

	require.ErrorIs(t, run(boom), boom)
	require.Equal(t, []int{1, 2}, finalized)
}

func TestCheckErrNonError(t *testing.T) {
	run := func() (err error) {
		defer checkErr(&err)
		panic("not an error")
	}
	require.EqualError(t, run(), "not an error")
}

func TestMissing(t *testing.T) {
	has := []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
	require.Empty(t, missing([]string{"VK_KHR_surface\x00"}, has))
	require.Equal(t, "VK_EXT_debug_utils", missing([]string{"VK_KHR_surface", "VK_EXT_debug_utils"}, has))
	require.Equal(t, []string{"a\x00", "b\x00"}, safeStrings([]string{"a", "b\x00"}))
	require.True(t, contains(has, "VK_KHR_surface"))
}

func TestBufferUsage(t *testing.T) {
	require.Equal(t,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit|vk.BufferUsageTransferDstBit),
		bufferUsage(render.BufferUniform|render.BufferTransferDst))
	require.Zero(t, bufferUsage(0))
}
