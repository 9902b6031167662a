package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

func (d *Device) CreateFramebuffer(info *metadata.FramebufferCreateInfo) (metadata.Handle, error) {
	renderPass, err := lookup(d, d.renderPasses, "render pass", info.RenderPass)
	if err != nil {
		return metadata.NullHandle, err
	}
	attachments, err := lookupAll(d, d.imageViews, "image view", info.Attachments)
	if err != nil {
		return metadata.NullHandle, err
	}

	layers := info.Layers
	if layers == 0 {
		layers = 1
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          layers,
	}
	framebufferCreateInfo.Deref()

	var pFramebuffer vk.Framebuffer
	if err := d.locks.SafeCall(FramebufferManagement, func() error {
		result := vk.CreateFramebuffer(d.LogicalDevice, &framebufferCreateInfo, d.Allocator, &pFramebuffer)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateFramebuffer", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.framebuffers, pFramebuffer), nil
}
