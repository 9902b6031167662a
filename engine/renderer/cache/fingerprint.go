package cache

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"golang.org/x/exp/constraints"
)

// Fingerprint is the content hash a cached object is keyed by. It only
// depends on construction arguments, never on addresses or ids, so equal
// arguments hash equally across processes.
type Fingerprint uint64

type hasher struct {
	digest *xxhash.Digest
	buf    [8]byte
}

func newHasher(kind metadata.ResourceKind) *hasher {
	h := &hasher{digest: xxhash.New()}
	h.writeByte(uint8(kind))
	return h
}

func (h *hasher) sum() Fingerprint {
	return Fingerprint(h.digest.Sum64())
}

func (h *hasher) writeByte(v uint8) {
	h.buf[0] = v
	h.digest.Write(h.buf[:1])
}

func (h *hasher) writeBool(v bool) {
	if v {
		h.writeByte(1)
		return
	}
	h.writeByte(0)
}

func (h *hasher) writeFloat32(v float32) {
	writeInt(h, math.Float32bits(v))
}

func (h *hasher) writeString(s string) {
	writeInt(h, len(s))
	h.digest.WriteString(s)
}

func (h *hasher) writeBytes(b []byte) {
	writeInt(h, len(b))
	h.digest.Write(b)
}

func (h *hasher) writeFingerprint(f Fingerprint) {
	writeInt(h, uint64(f))
}

// writeInt hashes any integer as a fixed width little endian word.
func writeInt[T constraints.Integer](h *hasher, v T) {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	h.digest.Write(h.buf[:])
}

func writeInts[T constraints.Integer](h *hasher, values []T) {
	writeInt(h, len(values))
	for _, v := range values {
		writeInt(h, v)
	}
}

func sortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func hashResources(h *hasher, resources []metadata.ShaderResource) {
	writeInt(h, len(resources))
	for _, r := range resources {
		writeInt(h, r.Stages)
		writeInt(h, r.Type)
		writeInt(h, r.Set)
		writeInt(h, r.Binding)
		writeInt(h, r.Location)
		writeInt(h, r.InputAttachmentIndex)
		writeInt(h, r.VecSize)
		writeInt(h, r.Columns)
		writeInt(h, r.ArraySize)
		writeInt(h, r.Offset)
		writeInt(h, r.Size)
		writeInt(h, r.ConstantID)
		h.writeBool(r.Dynamic)
		h.writeString(r.Name)
	}
}

func hashModules(h *hasher, modules []*ShaderModule) {
	writeInt(h, len(modules))
	for _, m := range modules {
		h.writeFingerprint(m.fingerprint)
	}
}

func fingerprintShaderModule(stage metadata.ShaderStage, source *metadata.ShaderSource, entryPoint string, variant *metadata.ShaderVariant) Fingerprint {
	h := newHasher(metadata.ResourceKindShaderModule)
	writeInt(h, stage)
	h.writeBytes(source.Data)
	hashResources(h, source.Resources)
	h.writeString(entryPoint)
	h.writeString(variant.Preamble)
	return h.sum()
}

func fingerprintPipelineLayout(modules []*ShaderModule) Fingerprint {
	h := newHasher(metadata.ResourceKindPipelineLayout)
	hashModules(h, modules)
	return h.sum()
}

func fingerprintDescriptorSetLayout(setIndex uint32, modules []*ShaderModule, resources []metadata.ShaderResource) Fingerprint {
	h := newHasher(metadata.ResourceKindDescriptorSetLayout)
	writeInt(h, setIndex)
	hashModules(h, modules)
	hashResources(h, resources)
	return h.sum()
}

func fingerprintDescriptorPool(layout *DescriptorSetLayout) Fingerprint {
	h := newHasher(metadata.ResourceKindDescriptorPool)
	h.writeFingerprint(layout.fingerprint)
	return h.sum()
}

func hashBindingMap[T any](h *hasher, infos metadata.BindingMap[T], each func(T)) {
	writeInt(h, len(infos))
	for _, binding := range sortedKeys(infos) {
		elements := infos[binding]
		writeInt(h, binding)
		writeInt(h, len(elements))
		for _, element := range sortedKeys(elements) {
			writeInt(h, element)
			each(elements[element])
		}
	}
}

func fingerprintDescriptorSet(layout *DescriptorSetLayout, bufferInfos metadata.BindingMap[metadata.DescriptorBufferInfo], imageInfos metadata.BindingMap[metadata.DescriptorImageInfo]) Fingerprint {
	h := newHasher(metadata.ResourceKindDescriptorSet)
	h.writeFingerprint(layout.fingerprint)
	hashBindingMap(h, bufferInfos, func(info metadata.DescriptorBufferInfo) {
		writeInt(h, info.Buffer)
		writeInt(h, info.Offset)
		writeInt(h, info.Range)
	})
	hashBindingMap(h, imageInfos, func(info metadata.DescriptorImageInfo) {
		writeInt(h, info.Sampler)
		writeInt(h, info.ImageView)
		writeInt(h, info.ImageLayout)
	})
	return h.sum()
}

func hashAttachments(h *hasher, attachments []metadata.Attachment) {
	writeInt(h, len(attachments))
	for _, a := range attachments {
		writeInt(h, a.Format)
		writeInt(h, a.Samples)
		writeInt(h, a.Usage)
		writeInt(h, a.InitialLayout)
	}
}

func fingerprintRenderPass(attachments []metadata.Attachment, loadStoreInfos []metadata.LoadStoreInfo, subpasses []metadata.SubpassInfo) Fingerprint {
	h := newHasher(metadata.ResourceKindRenderPass)
	hashAttachments(h, attachments)
	writeInt(h, len(loadStoreInfos))
	for _, ls := range loadStoreInfos {
		writeInt(h, ls.LoadOp)
		writeInt(h, ls.StoreOp)
	}
	writeInt(h, len(subpasses))
	for _, sp := range subpasses {
		writeInts(h, sp.InputAttachments)
		writeInts(h, sp.OutputAttachments)
		writeInts(h, sp.ColorResolveAttachments)
		h.writeBool(sp.DisableDepthStencilAttachment)
		writeInt(h, sp.DepthStencilResolveAttachment)
	}
	return h.sum()
}

func fingerprintFramebuffer(target *metadata.RenderTarget, renderPass *RenderPass) Fingerprint {
	h := newHasher(metadata.ResourceKindFramebuffer)
	h.writeFingerprint(renderPass.fingerprint)
	writeInt(h, target.Extent.Width)
	writeInt(h, target.Extent.Height)
	writeInts(h, target.Views)
	hashAttachments(h, target.Attachments)
	return h.sum()
}

func hashSpecializationConstants(h *hasher, constants map[uint32][]byte) {
	writeInt(h, len(constants))
	for _, id := range sortedKeys(constants) {
		writeInt(h, id)
		h.writeBytes(constants[id])
	}
}

func hashStencilOp(h *hasher, s metadata.StencilOpState) {
	writeInt(h, s.FailOp)
	writeInt(h, s.PassOp)
	writeInt(h, s.DepthFailOp)
	writeInt(h, s.CompareOp)
}

func fingerprintGraphicsPipeline(state *PipelineState) Fingerprint {
	h := newHasher(metadata.ResourceKindGraphicsPipeline)
	h.writeFingerprint(state.PipelineLayout.fingerprint)
	h.writeFingerprint(state.RenderPass.fingerprint)
	writeInt(h, state.Subpass)
	hashSpecializationConstants(h, state.SpecializationConstants)

	writeInt(h, len(state.VertexInput.Bindings))
	for _, b := range state.VertexInput.Bindings {
		writeInt(h, b.Binding)
		writeInt(h, b.Stride)
		writeInt(h, b.InputRate)
	}
	writeInt(h, len(state.VertexInput.Attributes))
	for _, a := range state.VertexInput.Attributes {
		writeInt(h, a.Location)
		writeInt(h, a.Binding)
		writeInt(h, a.Format)
		writeInt(h, a.Offset)
	}

	writeInt(h, state.InputAssembly.Topology)
	h.writeBool(state.InputAssembly.PrimitiveRestartEnable)

	r := state.Rasterization
	h.writeBool(r.DepthClampEnable)
	h.writeBool(r.RasterizerDiscardEnable)
	writeInt(h, r.PolygonMode)
	writeInt(h, r.CullMode)
	writeInt(h, r.FrontFace)
	h.writeBool(r.DepthBiasEnable)

	writeInt(h, state.Viewport.ViewportCount)
	writeInt(h, state.Viewport.ScissorCount)

	m := state.Multisample
	writeInt(h, m.RasterizationSamples)
	h.writeBool(m.SampleShadingEnable)
	h.writeFloat32(m.MinSampleShading)
	writeInt(h, m.SampleMask)
	h.writeBool(m.AlphaToCoverageEnable)
	h.writeBool(m.AlphaToOneEnable)

	ds := state.DepthStencil
	h.writeBool(ds.DepthTestEnable)
	h.writeBool(ds.DepthWriteEnable)
	writeInt(h, ds.DepthCompareOp)
	h.writeBool(ds.DepthBoundsTestEnable)
	h.writeBool(ds.StencilTestEnable)
	hashStencilOp(h, ds.Front)
	hashStencilOp(h, ds.Back)

	cb := state.ColorBlend
	h.writeBool(cb.LogicOpEnable)
	writeInt(h, cb.LogicOp)
	writeInt(h, len(cb.Attachments))
	for _, a := range cb.Attachments {
		h.writeBool(a.BlendEnable)
		writeInt(h, a.SrcColorBlendFactor)
		writeInt(h, a.DstColorBlendFactor)
		writeInt(h, a.ColorBlendOp)
		writeInt(h, a.SrcAlphaBlendFactor)
		writeInt(h, a.DstAlphaBlendFactor)
		writeInt(h, a.AlphaBlendOp)
		writeInt(h, a.ColorWriteMask)
	}
	return h.sum()
}

func fingerprintComputePipeline(state *PipelineState) Fingerprint {
	h := newHasher(metadata.ResourceKindComputePipeline)
	h.writeFingerprint(state.PipelineLayout.fingerprint)
	hashSpecializationConstants(h, state.SpecializationConstants)
	return h.sum()
}
