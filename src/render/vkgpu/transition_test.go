package vkgpu

import (
	"testing"

	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

func TestClearTransitionsFollowAcquireWait(t *testing.T) {
	// The first barrier on an acquired image must start at a stage the
	// acquire semaphore is waited on, or the layout change can run before
	// the presentation engine released the image.
	require.NotZero(t, clearBegin.srcStage&waitStages)
	require.NotEqual(t, vk.PipelineStageTopOfPipeBit, clearBegin.srcStage)
	require.Equal(t, vk.ImageLayoutUndefined, clearBegin.from)
	require.Equal(t, vk.ImageLayoutTransferDstOptimal, clearBegin.to)

	require.Equal(t, clearBegin.to, clearEnd.from)
	require.Equal(t, vk.ImageLayoutPresentSrc, clearEnd.to)
	require.Equal(t, clearBegin.dstStage, clearEnd.srcStage)
}

func TestInitialTransition(t *testing.T) {
	for idx, tc := range []struct {
		layout render.ImageLayout
		want   vk.ImageLayout
	}{
		{render.LayoutGeneral, vk.ImageLayoutGeneral},
		{render.LayoutShaderReadOnly, vk.ImageLayoutShaderReadOnlyOptimal},
		{render.LayoutColorAttachment, vk.ImageLayoutColorAttachmentOptimal},
		{render.LayoutTransferSrc, vk.ImageLayoutTransferSrcOptimal},
		{render.LayoutTransferDst, vk.ImageLayoutTransferDstOptimal},
	} {
		tr := initialTransition(tc.layout)
		require.Equal(t, vk.ImageLayoutUndefined, tr.from, "case %d", idx)
		require.Equal(t, tc.want, tr.to, "case %d", idx)
	}
}

func TestImageUsage(t *testing.T) {
	require.Equal(t,
		vk.ImageUsageFlags(vk.ImageUsageStorageBit|vk.ImageUsageTransferSrcBit),
		imageUsage(render.ImageStorage|render.ImageTransferSrc))
	require.Zero(t, imageUsage(0))
}

func TestTextureFormats(t *testing.T) {
	for _, f := range []render.ImageFormat{
		render.FormatRGBA8, render.FormatBGRA8, render.FormatRGBA16F, render.FormatRGBA32F, render.FormatR32F,
	} {
		require.Contains(t, textureFormats, f)
	}
}
