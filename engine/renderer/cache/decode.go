package cache

import (
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

type shaderModuleEntry struct {
	stage      metadata.ShaderStage
	source     metadata.ShaderSource
	entryPoint string
	variant    metadata.ShaderVariant
}

type renderPassEntry struct {
	attachments    []metadata.Attachment
	loadStoreInfos []metadata.LoadStoreInfo
	subpasses      []metadata.SubpassInfo
}

type pipelineEntry struct {
	layoutIndex     int
	renderPassIndex int
	state           *PipelineState
}

func decodeShaderModule(r *streamReader) shaderModuleEntry {
	var e shaderModuleEntry
	e.stage = metadata.ShaderStage(r.readUint32())
	e.source.Filename = r.readString()
	e.source.Data = r.readBytes()
	e.source.Resources = decodeResources(r)
	e.entryPoint = r.readString()
	e.variant.Preamble = r.readString()
	n := r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		e.variant.Processes = append(e.variant.Processes, r.readString())
	}
	return e
}

func decodeResources(r *streamReader) []metadata.ShaderResource {
	n := r.readCount()
	if n == 0 {
		return nil
	}
	resources := make([]metadata.ShaderResource, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		resources = append(resources, metadata.ShaderResource{
			Stages:               metadata.ShaderStage(r.readUint32()),
			Type:                 metadata.ShaderResourceType(r.readUint32()),
			Set:                  r.readUint32(),
			Binding:              r.readUint32(),
			Location:             r.readUint32(),
			InputAttachmentIndex: r.readUint32(),
			VecSize:              r.readUint32(),
			Columns:              r.readUint32(),
			ArraySize:            r.readUint32(),
			Offset:               r.readUint32(),
			Size:                 r.readUint32(),
			ConstantID:           r.readUint32(),
			Dynamic:              r.readBool(),
			Name:                 r.readString(),
		})
	}
	return resources
}

func decodePipelineLayout(r *streamReader) []int {
	n := r.readCount()
	indices := make([]int, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		indices = append(indices, int(r.readUint32()))
	}
	return indices
}

func decodeRenderPass(r *streamReader) renderPassEntry {
	var e renderPassEntry
	n := r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		e.attachments = append(e.attachments, metadata.Attachment{
			Format:        metadata.Format(r.readUint32()),
			Samples:       metadata.SampleCount(r.readUint32()),
			Usage:         metadata.ImageUsage(r.readUint32()),
			InitialLayout: metadata.ImageLayout(r.readUint32()),
		})
	}
	n = r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		e.loadStoreInfos = append(e.loadStoreInfos, metadata.LoadStoreInfo{
			LoadOp:  metadata.LoadOp(r.readUint32()),
			StoreOp: metadata.StoreOp(r.readUint32()),
		})
	}
	n = r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		e.subpasses = append(e.subpasses, metadata.SubpassInfo{
			InputAttachments:              r.readUint32s(),
			OutputAttachments:             r.readUint32s(),
			ColorResolveAttachments:       r.readUint32s(),
			DisableDepthStencilAttachment: r.readBool(),
			DepthStencilResolveAttachment: r.readUint32(),
			DebugName:                     r.readString(),
		})
	}
	return e
}

func decodeSpecializationConstants(r *streamReader, state *PipelineState) {
	n := r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		id := r.readUint32()
		state.SpecializationConstants[id] = r.readBytes()
	}
}

func decodeStencilOp(r *streamReader) metadata.StencilOpState {
	return metadata.StencilOpState{
		FailOp:      metadata.StencilOp(r.readUint32()),
		PassOp:      metadata.StencilOp(r.readUint32()),
		DepthFailOp: metadata.StencilOp(r.readUint32()),
		CompareOp:   metadata.CompareOp(r.readUint32()),
	}
}

func decodeGraphicsPipeline(r *streamReader) pipelineEntry {
	e := pipelineEntry{state: NewPipelineState()}
	e.layoutIndex = int(r.readUint32())
	e.renderPassIndex = int(r.readUint32())
	e.state.Subpass = r.readUint32()
	decodeSpecializationConstants(r, e.state)

	s := e.state
	n := r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		s.VertexInput.Bindings = append(s.VertexInput.Bindings, metadata.VertexInputBindingDescription{
			Binding:   r.readUint32(),
			Stride:    r.readUint32(),
			InputRate: metadata.VertexInputRate(r.readUint32()),
		})
	}
	n = r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		s.VertexInput.Attributes = append(s.VertexInput.Attributes, metadata.VertexInputAttributeDescription{
			Location: r.readUint32(),
			Binding:  r.readUint32(),
			Format:   metadata.Format(r.readUint32()),
			Offset:   r.readUint32(),
		})
	}

	s.InputAssembly = metadata.InputAssemblyState{
		Topology:               metadata.PrimitiveTopology(r.readUint32()),
		PrimitiveRestartEnable: r.readBool(),
	}
	s.Rasterization = metadata.RasterizationState{
		DepthClampEnable:        r.readBool(),
		RasterizerDiscardEnable: r.readBool(),
		PolygonMode:             metadata.PolygonMode(r.readUint32()),
		CullMode:                metadata.CullMode(r.readUint32()),
		FrontFace:               metadata.FrontFace(r.readUint32()),
		DepthBiasEnable:         r.readBool(),
	}
	s.Viewport = metadata.ViewportState{
		ViewportCount: r.readUint32(),
		ScissorCount:  r.readUint32(),
	}
	s.Multisample = metadata.MultisampleState{
		RasterizationSamples:  metadata.SampleCount(r.readUint32()),
		SampleShadingEnable:   r.readBool(),
		MinSampleShading:      r.readFloat32(),
		SampleMask:            r.readUint32(),
		AlphaToCoverageEnable: r.readBool(),
		AlphaToOneEnable:      r.readBool(),
	}
	s.DepthStencil = metadata.DepthStencilState{
		DepthTestEnable:       r.readBool(),
		DepthWriteEnable:      r.readBool(),
		DepthCompareOp:        metadata.CompareOp(r.readUint32()),
		DepthBoundsTestEnable: r.readBool(),
		StencilTestEnable:     r.readBool(),
		Front:                 decodeStencilOp(r),
		Back:                  decodeStencilOp(r),
	}

	s.ColorBlend = metadata.ColorBlendState{
		LogicOpEnable: r.readBool(),
		LogicOp:       r.readUint32(),
	}
	n = r.readCount()
	for i := 0; i < n && r.err == nil; i++ {
		s.ColorBlend.Attachments = append(s.ColorBlend.Attachments, metadata.ColorBlendAttachmentState{
			BlendEnable:         r.readBool(),
			SrcColorBlendFactor: metadata.BlendFactor(r.readUint32()),
			DstColorBlendFactor: metadata.BlendFactor(r.readUint32()),
			ColorBlendOp:        metadata.BlendOp(r.readUint32()),
			SrcAlphaBlendFactor: metadata.BlendFactor(r.readUint32()),
			DstAlphaBlendFactor: metadata.BlendFactor(r.readUint32()),
			AlphaBlendOp:        metadata.BlendOp(r.readUint32()),
			ColorWriteMask:      metadata.ColorComponent(r.readUint32()),
		})
	}
	return e
}

func decodeComputePipeline(r *streamReader) pipelineEntry {
	e := pipelineEntry{state: NewPipelineState(), renderPassIndex: -1}
	e.layoutIndex = int(r.readUint32())
	decodeSpecializationConstants(r, e.state)
	return e
}
