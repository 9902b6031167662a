package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// NOTE: 32 is the max number of ranges we can ever have, since spec only guarantees 128 bytes with 4-byte alignment.
const maxPushConstantRanges = 32

func (d *Device) CreatePipelineLayout(info *metadata.PipelineLayoutCreateInfo) (metadata.Handle, error) {
	setLayouts, err := lookupAll(d, d.descriptorSetLayouts, "descriptor set layout", info.SetLayouts)
	if err != nil {
		return metadata.NullHandle, err
	}
	if len(info.PushConstantRanges) > maxPushConstantRanges {
		return metadata.NullHandle, fmt.Errorf("cannot have more than %d push constant ranges. Passed count: %d", maxPushConstantRanges, len(info.PushConstantRanges))
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	// Push constants
	if len(info.PushConstantRanges) > 0 {
		ranges := make([]vk.PushConstantRange, len(info.PushConstantRanges))
		for i, r := range info.PushConstantRanges {
			ranges[i].StageFlags = vk.ShaderStageFlags(r.StageFlags)
			ranges[i].Offset = r.Offset
			ranges[i].Size = r.Size
			ranges[i].Deref()
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = uint32(len(ranges))
		pipelineLayoutCreateInfo.PPushConstantRanges = ranges
	}
	pipelineLayoutCreateInfo.Deref()

	var pPipelineLayout vk.PipelineLayout
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, d.Allocator, &pPipelineLayout)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreatePipelineLayout", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.pipelineLayouts, pPipelineLayout), nil
}

func stencilOpState(s metadata.StencilOpState) vk.StencilOpState {
	state := vk.StencilOpState{
		FailOp:      vk.StencilOp(s.FailOp),
		PassOp:      vk.StencilOp(s.PassOp),
		DepthFailOp: vk.StencilOp(s.DepthFailOp),
		CompareOp:   vk.CompareOp(s.CompareOp),
		CompareMask: ^uint32(0),
		WriteMask:   ^uint32(0),
	}
	state.Deref()
	return state
}

// fixedFunctionState converts the recorded fixed-function state. Viewport
// and scissor stay dynamic.
type fixedFunctionState struct {
	vertexInput   vk.PipelineVertexInputStateCreateInfo
	inputAssembly vk.PipelineInputAssemblyStateCreateInfo
	viewport      vk.PipelineViewportStateCreateInfo
	rasterization vk.PipelineRasterizationStateCreateInfo
	multisample   vk.PipelineMultisampleStateCreateInfo
	depthStencil  vk.PipelineDepthStencilStateCreateInfo
	colorBlend    vk.PipelineColorBlendStateCreateInfo
	dynamic       vk.PipelineDynamicStateCreateInfo
}

func newFixedFunctionState(info *metadata.GraphicsPipelineCreateInfo) *fixedFunctionState {
	s := &fixedFunctionState{}

	// Vertex input
	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexInput.Bindings))
	for i, b := range info.VertexInput.Bindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRate(b.InputRate),
		}
		bindings[i].Deref()
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexInput.Attributes))
	for i, a := range info.VertexInput.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
		attributes[i].Deref()
	}
	s.vertexInput = vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	s.vertexInput.Deref()

	// Input assembly
	s.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(info.InputAssembly.Topology),
		PrimitiveRestartEnable: toBool32(info.InputAssembly.PrimitiveRestartEnable),
	}
	s.inputAssembly.Deref()

	// Viewport state
	s.viewport = vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: info.Viewport.ViewportCount,
		ScissorCount:  info.Viewport.ScissorCount,
	}
	s.viewport.Deref()

	// Rasterizer
	s.rasterization = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        toBool32(info.Rasterization.DepthClampEnable),
		RasterizerDiscardEnable: toBool32(info.Rasterization.RasterizerDiscardEnable),
		PolygonMode:             vk.PolygonMode(info.Rasterization.PolygonMode),
		CullMode:                vk.CullModeFlags(info.Rasterization.CullMode),
		FrontFace:               vk.FrontFace(info.Rasterization.FrontFace),
		DepthBiasEnable:         toBool32(info.Rasterization.DepthBiasEnable),
		LineWidth:               1.0,
	}
	s.rasterization.Deref()

	// Multisampling.
	samples := info.Multisample.RasterizationSamples
	if samples == 0 {
		samples = metadata.SampleCount1
	}
	s.multisample = vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCountFlagBits(samples),
		SampleShadingEnable:   toBool32(info.Multisample.SampleShadingEnable),
		MinSampleShading:      info.Multisample.MinSampleShading,
		AlphaToCoverageEnable: toBool32(info.Multisample.AlphaToCoverageEnable),
		AlphaToOneEnable:      toBool32(info.Multisample.AlphaToOneEnable),
	}
	if info.Multisample.SampleMask != 0 {
		s.multisample.PSampleMask = []vk.SampleMask{vk.SampleMask(info.Multisample.SampleMask)}
	}
	s.multisample.Deref()

	// Depth and stencil testing.
	ds := info.DepthStencil
	s.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       toBool32(ds.DepthTestEnable),
		DepthWriteEnable:      toBool32(ds.DepthWriteEnable),
		DepthCompareOp:        vk.CompareOp(ds.DepthCompareOp),
		DepthBoundsTestEnable: toBool32(ds.DepthBoundsTestEnable),
		StencilTestEnable:     toBool32(ds.StencilTestEnable),
		Front:                 stencilOpState(ds.Front),
		Back:                  stencilOpState(ds.Back),
		MaxDepthBounds:        1.0,
	}
	s.depthStencil.Deref()

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(info.ColorBlend.Attachments))
	for i, a := range info.ColorBlend.Attachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         toBool32(a.BlendEnable),
			SrcColorBlendFactor: vk.BlendFactor(a.SrcColorBlendFactor),
			DstColorBlendFactor: vk.BlendFactor(a.DstColorBlendFactor),
			ColorBlendOp:        vk.BlendOp(a.ColorBlendOp),
			SrcAlphaBlendFactor: vk.BlendFactor(a.SrcAlphaBlendFactor),
			DstAlphaBlendFactor: vk.BlendFactor(a.DstAlphaBlendFactor),
			AlphaBlendOp:        vk.BlendOp(a.AlphaBlendOp),
			ColorWriteMask:      vk.ColorComponentFlags(a.ColorWriteMask),
		}
		blendAttachments[i].Deref()
	}
	s.colorBlend = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   toBool32(info.ColorBlend.LogicOpEnable),
		LogicOp:         vk.LogicOp(info.ColorBlend.LogicOp),
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}
	s.colorBlend.Deref()

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	s.dynamic = vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	s.dynamic.Deref()

	return s
}

func (d *Device) CreateGraphicsPipeline(info *metadata.GraphicsPipelineCreateInfo) (metadata.Handle, error) {
	layout, err := lookup(d, d.pipelineLayouts, "pipeline layout", info.Layout)
	if err != nil {
		return metadata.NullHandle, err
	}
	renderPass, err := lookup(d, d.renderPasses, "render pass", info.RenderPass)
	if err != nil {
		return metadata.NullHandle, err
	}
	pipelineCache, err := d.pipelineCache(info.PipelineCache)
	if err != nil {
		return metadata.NullHandle, err
	}

	specialization := specializationInfo(info.SpecializationConstants)
	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, stage := range info.Stages {
		if stages[i], err = d.shaderStage(stage, specialization); err != nil {
			return metadata.NullHandle, err
		}
	}

	state := newFixedFunctionState(info)

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &state.vertexInput,
		PInputAssemblyState: &state.inputAssembly,
		PViewportState:      &state.viewport,
		PRasterizationState: &state.rasterization,
		PMultisampleState:   &state.multisample,
		PDepthStencilState:  &state.depthStencil,
		PColorBlendState:    &state.colorBlend,
		PDynamicState:       &state.dynamic,
		PTessellationState:  nil,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             info.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelineCreateInfo.Deref()

	pPipelines := make([]vk.Pipeline, 1)
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			d.LogicalDevice,
			pipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			d.Allocator,
			pPipelines)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateGraphicsPipelines", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	core.LogDebug("Graphics pipeline created!")
	return store(d, d.pipelines, pPipelines[0]), nil
}

func (d *Device) CreateComputePipeline(info *metadata.ComputePipelineCreateInfo) (metadata.Handle, error) {
	layout, err := lookup(d, d.pipelineLayouts, "pipeline layout", info.Layout)
	if err != nil {
		return metadata.NullHandle, err
	}
	pipelineCache, err := d.pipelineCache(info.PipelineCache)
	if err != nil {
		return metadata.NullHandle, err
	}
	stage, err := d.shaderStage(info.Stage, specializationInfo(info.SpecializationConstants))
	if err != nil {
		return metadata.NullHandle, err
	}

	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stage,
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pipelineCreateInfo.Deref()

	pPipelines := make([]vk.Pipeline, 1)
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateComputePipelines(
			d.LogicalDevice,
			pipelineCache,
			1,
			[]vk.ComputePipelineCreateInfo{pipelineCreateInfo},
			d.Allocator,
			pPipelines)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateComputePipelines", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	core.LogDebug("Compute pipeline created!")
	return store(d, d.pipelines, pPipelines[0]), nil
}
