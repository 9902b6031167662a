package cache

import (
	"fmt"
	"slices"
	"sync"

	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// ResourceRecord is the append only log of first time constructions.
// Entries reference their dependencies by position within the creation
// sequence of the dependency's kind, so the log can be replayed in another
// process. The cache registers an object while holding the lock of its
// kind; the recorder mutex guards the stream shared by all kinds.
type ResourceRecord struct {
	mu     sync.Mutex
	stream []byte
	counts [metadata.ResourceKindCount]int

	shaderModuleIndices     map[uint64]int
	pipelineLayoutIndices   map[uint64]int
	renderPassIndices       map[uint64]int
	graphicsPipelineIndices map[uint64]int
	computePipelineIndices  map[uint64]int
}

func NewResourceRecord() *ResourceRecord {
	r := &ResourceRecord{}
	r.resetIndices()
	return r
}

func (r *ResourceRecord) resetIndices() {
	r.counts = [metadata.ResourceKindCount]int{}
	r.shaderModuleIndices = make(map[uint64]int)
	r.pipelineLayoutIndices = make(map[uint64]int)
	r.renderPassIndices = make(map[uint64]int)
	r.graphicsPipelineIndices = make(map[uint64]int)
	r.computePipelineIndices = make(map[uint64]int)
}

// Data returns a copy of the serialized stream.
func (r *ResourceRecord) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.stream)
}

// SetData replaces the stream. Positions of new entries continue after the
// entries found in data. Objects registered before the call keep their
// positions, so data is expected to start with the entries they were
// registered as.
func (r *ResourceRecord) SetData(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stream = slices.Clone(data)
	r.counts = [metadata.ResourceKindCount]int{}

	reader := newStreamReader(r.stream)
	for {
		f, ok := reader.nextFrame()
		if !ok {
			break
		}
		if f.kind.Valid() {
			r.counts[f.kind]++
		}
	}
}

// Count returns the number of entries of a kind in the stream.
func (r *ResourceRecord) Count(kind metadata.ResourceKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

func (r *ResourceRecord) append(kind metadata.ResourceKind, w *streamWriter) int {
	r.stream = appendFrame(r.stream, kind, w.buf)
	index := r.counts[kind]
	r.counts[kind]++
	return index
}

// lookup resolves a dependency. Registering an object before its
// dependencies is a programming error.
func lookup(indices map[uint64]int, kind metadata.ResourceKind, id uint64) int {
	index, ok := indices[id]
	if !ok {
		panic(fmt.Sprintf("resource record: %s #%d was never registered", kind, id))
	}
	return index
}

func (r *ResourceRecord) RegisterShaderModule(stage metadata.ShaderStage, source *metadata.ShaderSource, entryPoint string, variant *metadata.ShaderVariant) int {
	w := &streamWriter{}
	putUint(w, stage)
	w.putString(source.Filename)
	w.putBytes(source.Data)
	writeResources(w, source.Resources)
	w.putString(entryPoint)
	w.putString(variant.Preamble)
	w.putUvarint(uint64(len(variant.Processes)))
	for _, p := range variant.Processes {
		w.putString(p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(metadata.ResourceKindShaderModule, w)
}

func (r *ResourceRecord) RegisterPipelineLayout(modules []*ShaderModule) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &streamWriter{}
	w.putUvarint(uint64(len(modules)))
	for _, m := range modules {
		w.putUvarint(uint64(lookup(r.shaderModuleIndices, metadata.ResourceKindShaderModule, m.id)))
	}
	return r.append(metadata.ResourceKindPipelineLayout, w)
}

func (r *ResourceRecord) RegisterRenderPass(attachments []metadata.Attachment, loadStoreInfos []metadata.LoadStoreInfo, subpasses []metadata.SubpassInfo) int {
	w := &streamWriter{}
	w.putUvarint(uint64(len(attachments)))
	for _, a := range attachments {
		putUint(w, a.Format)
		putUint(w, a.Samples)
		putUint(w, a.Usage)
		putUint(w, a.InitialLayout)
	}
	w.putUvarint(uint64(len(loadStoreInfos)))
	for _, ls := range loadStoreInfos {
		putUint(w, ls.LoadOp)
		putUint(w, ls.StoreOp)
	}
	w.putUvarint(uint64(len(subpasses)))
	for _, sp := range subpasses {
		putUints(w, sp.InputAttachments)
		putUints(w, sp.OutputAttachments)
		putUints(w, sp.ColorResolveAttachments)
		w.putBool(sp.DisableDepthStencilAttachment)
		putUint(w, sp.DepthStencilResolveAttachment)
		w.putString(sp.DebugName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.append(metadata.ResourceKindRenderPass, w)
}

// RegisterGraphicsPipeline records the pipeline state. The pipeline cache
// handle is process local and is not recorded.
func (r *ResourceRecord) RegisterGraphicsPipeline(state *PipelineState) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &streamWriter{}
	w.putUvarint(uint64(lookup(r.pipelineLayoutIndices, metadata.ResourceKindPipelineLayout, state.PipelineLayout.id)))
	w.putUvarint(uint64(lookup(r.renderPassIndices, metadata.ResourceKindRenderPass, state.RenderPass.id)))
	putUint(w, state.Subpass)
	writeSpecializationConstants(w, state.SpecializationConstants)
	writeFixedFunctionState(w, state)
	return r.append(metadata.ResourceKindGraphicsPipeline, w)
}

func (r *ResourceRecord) RegisterComputePipeline(state *PipelineState) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &streamWriter{}
	w.putUvarint(uint64(lookup(r.pipelineLayoutIndices, metadata.ResourceKindPipelineLayout, state.PipelineLayout.id)))
	writeSpecializationConstants(w, state.SpecializationConstants)
	return r.append(metadata.ResourceKindComputePipeline, w)
}

func (r *ResourceRecord) SetShaderModule(index int, module *ShaderModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shaderModuleIndices[module.id] = index
}

func (r *ResourceRecord) SetPipelineLayout(index int, layout *PipelineLayout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineLayoutIndices[layout.id] = index
}

func (r *ResourceRecord) SetRenderPass(index int, renderPass *RenderPass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderPassIndices[renderPass.id] = index
}

func (r *ResourceRecord) SetGraphicsPipeline(index int, pipeline *GraphicsPipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphicsPipelineIndices[pipeline.id] = index
}

func (r *ResourceRecord) SetComputePipeline(index int, pipeline *ComputePipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.computePipelineIndices[pipeline.id] = index
}

func writeResources(w *streamWriter, resources []metadata.ShaderResource) {
	w.putUvarint(uint64(len(resources)))
	for _, res := range resources {
		putUint(w, res.Stages)
		putUint(w, res.Type)
		putUint(w, res.Set)
		putUint(w, res.Binding)
		putUint(w, res.Location)
		putUint(w, res.InputAttachmentIndex)
		putUint(w, res.VecSize)
		putUint(w, res.Columns)
		putUint(w, res.ArraySize)
		putUint(w, res.Offset)
		putUint(w, res.Size)
		putUint(w, res.ConstantID)
		w.putBool(res.Dynamic)
		w.putString(res.Name)
	}
}

func writeSpecializationConstants(w *streamWriter, constants map[uint32][]byte) {
	w.putUvarint(uint64(len(constants)))
	for _, id := range sortedKeys(constants) {
		putUint(w, id)
		w.putBytes(constants[id])
	}
}

func writeStencilOp(w *streamWriter, s metadata.StencilOpState) {
	putUint(w, s.FailOp)
	putUint(w, s.PassOp)
	putUint(w, s.DepthFailOp)
	putUint(w, s.CompareOp)
}

func writeFixedFunctionState(w *streamWriter, state *PipelineState) {
	w.putUvarint(uint64(len(state.VertexInput.Bindings)))
	for _, b := range state.VertexInput.Bindings {
		putUint(w, b.Binding)
		putUint(w, b.Stride)
		putUint(w, b.InputRate)
	}
	w.putUvarint(uint64(len(state.VertexInput.Attributes)))
	for _, a := range state.VertexInput.Attributes {
		putUint(w, a.Location)
		putUint(w, a.Binding)
		putUint(w, a.Format)
		putUint(w, a.Offset)
	}

	putUint(w, state.InputAssembly.Topology)
	w.putBool(state.InputAssembly.PrimitiveRestartEnable)

	rs := state.Rasterization
	w.putBool(rs.DepthClampEnable)
	w.putBool(rs.RasterizerDiscardEnable)
	putUint(w, rs.PolygonMode)
	putUint(w, rs.CullMode)
	putUint(w, rs.FrontFace)
	w.putBool(rs.DepthBiasEnable)

	putUint(w, state.Viewport.ViewportCount)
	putUint(w, state.Viewport.ScissorCount)

	ms := state.Multisample
	putUint(w, ms.RasterizationSamples)
	w.putBool(ms.SampleShadingEnable)
	w.putFloat32(ms.MinSampleShading)
	putUint(w, ms.SampleMask)
	w.putBool(ms.AlphaToCoverageEnable)
	w.putBool(ms.AlphaToOneEnable)

	ds := state.DepthStencil
	w.putBool(ds.DepthTestEnable)
	w.putBool(ds.DepthWriteEnable)
	putUint(w, ds.DepthCompareOp)
	w.putBool(ds.DepthBoundsTestEnable)
	w.putBool(ds.StencilTestEnable)
	writeStencilOp(w, ds.Front)
	writeStencilOp(w, ds.Back)

	cb := state.ColorBlend
	w.putBool(cb.LogicOpEnable)
	putUint(w, cb.LogicOp)
	w.putUvarint(uint64(len(cb.Attachments)))
	for _, a := range cb.Attachments {
		w.putBool(a.BlendEnable)
		putUint(w, a.SrcColorBlendFactor)
		putUint(w, a.DstColorBlendFactor)
		putUint(w, a.ColorBlendOp)
		putUint(w, a.SrcAlphaBlendFactor)
		putUint(w, a.DstAlphaBlendFactor)
		putUint(w, a.AlphaBlendOp)
		putUint(w, a.ColorWriteMask)
	}
}

// Index returns the position the object with the given id was registered
// at within its kind.
func (r *ResourceRecord) Index(kind metadata.ResourceKind, id uint64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var indices map[uint64]int
	switch kind {
	case metadata.ResourceKindShaderModule:
		indices = r.shaderModuleIndices
	case metadata.ResourceKindPipelineLayout:
		indices = r.pipelineLayoutIndices
	case metadata.ResourceKindRenderPass:
		indices = r.renderPassIndices
	case metadata.ResourceKindGraphicsPipeline:
		indices = r.graphicsPipelineIndices
	case metadata.ResourceKindComputePipeline:
		indices = r.computePipelineIndices
	default:
		return 0, false
	}
	index, ok := indices[id]
	return index, ok
}
