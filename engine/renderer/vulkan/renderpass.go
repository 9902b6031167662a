package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

func attachmentFinalLayout(a metadata.Attachment) vk.ImageLayout {
	switch {
	case a.InitialLayout == metadata.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	case a.Format.IsDepthFormat():
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case a.Usage&metadata.ImageUsageSampled != 0, a.Usage&metadata.ImageUsageInputAttachment != 0:
		return vk.ImageLayoutShaderReadOnlyOptimal
	default:
		return vk.ImageLayoutColorAttachmentOptimal
	}
}

func attachmentDescriptions(info *metadata.RenderPassCreateInfo) []vk.AttachmentDescription {
	descriptions := make([]vk.AttachmentDescription, len(info.Attachments))
	for i, a := range info.Attachments {
		loadStore := metadata.LoadStoreInfo{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpStore}
		if i < len(info.LoadStoreInfos) {
			loadStore = info.LoadStoreInfos[i]
		}

		descriptions[i] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCountFlagBits(a.Samples),
			LoadOp:         vk.AttachmentLoadOp(loadStore.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(loadStore.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    attachmentFinalLayout(a),
		}
		if a.Format.IsDepthStencilFormat() {
			descriptions[i].StencilLoadOp = vk.AttachmentLoadOp(loadStore.LoadOp)
			descriptions[i].StencilStoreOp = vk.AttachmentStoreOp(loadStore.StoreOp)
		}
		descriptions[i].Deref()
	}
	return descriptions
}

func attachmentReferences(indices []uint32, layout vk.ImageLayout) []vk.AttachmentReference {
	if len(indices) == 0 {
		return nil
	}
	refs := make([]vk.AttachmentReference, len(indices))
	for i, index := range indices {
		refs[i] = vk.AttachmentReference{Attachment: index, Layout: layout}
		refs[i].Deref()
	}
	return refs
}

func (d *Device) CreateRenderPass(info *metadata.RenderPassCreateInfo) (metadata.Handle, error) {
	// The first depth attachment serves every subpass that keeps depth enabled.
	depthIndex := -1
	for i, a := range info.Attachments {
		if a.Format.IsDepthFormat() {
			depthIndex = i
			break
		}
	}

	subpasses := make([]vk.SubpassDescription, len(info.Subpasses))
	for i, sp := range info.Subpasses {
		for _, a := range sp.InputAttachments {
			if int(a) >= len(info.Attachments) {
				return metadata.NullHandle, fmt.Errorf("subpass %d reads attachment %d of %d", i, a, len(info.Attachments))
			}
		}
		for _, a := range sp.OutputAttachments {
			if int(a) >= len(info.Attachments) {
				return metadata.NullHandle, fmt.Errorf("subpass %d writes attachment %d of %d", i, a, len(info.Attachments))
			}
		}

		subpass := vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			InputAttachmentCount: uint32(len(sp.InputAttachments)),
			PInputAttachments:    attachmentReferences(sp.InputAttachments, vk.ImageLayoutShaderReadOnlyOptimal),
			ColorAttachmentCount: uint32(len(sp.OutputAttachments)),
			PColorAttachments:    attachmentReferences(sp.OutputAttachments, vk.ImageLayoutColorAttachmentOptimal),
		}
		if len(sp.ColorResolveAttachments) == len(sp.OutputAttachments) {
			subpass.PResolveAttachments = attachmentReferences(sp.ColorResolveAttachments, vk.ImageLayoutColorAttachmentOptimal)
		}
		if depthIndex >= 0 && !sp.DisableDepthStencilAttachment {
			depthReference := vk.AttachmentReference{
				Attachment: uint32(depthIndex),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
			depthReference.Deref()
			subpass.PDepthStencilAttachment = &depthReference
		}
		subpass.Deref()
		subpasses[i] = subpass
	}

	dependencies := subpassDependencies(len(subpasses))

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(info.Attachments)),
		PAttachments:    attachmentDescriptions(info),
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	renderpassCreateInfo.Deref()

	var pRenderPass vk.RenderPass
	if err := d.locks.SafeCall(RenderpassManagement, func() error {
		result := vk.CreateRenderPass(d.LogicalDevice, &renderpassCreateInfo, d.Allocator, &pRenderPass)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateRenderPass", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.renderPasses, pRenderPass), nil
}

// subpassDependencies chains each subpass to the previous one so color
// outputs are visible as input attachments.
func subpassDependencies(count int) []vk.SubpassDependency {
	dependencies := make([]vk.SubpassDependency, 0, count)

	external := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	external.Deref()
	dependencies = append(dependencies, external)

	for i := 1; i < count; i++ {
		dependency := vk.SubpassDependency{
			SrcSubpass:      uint32(i - 1),
			DstSubpass:      uint32(i),
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		}
		dependency.Deref()
		dependencies = append(dependencies, dependency)
	}
	return dependencies
}
