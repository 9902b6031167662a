package cache

import (
	"testing"

	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintEqualContent(t *testing.T) {
	a := vertexSource()
	b := vertexSource()
	b.Filename = "copy.vert"

	variant := metadata.NewShaderVariant("", nil)
	variant.AddDefine("HAS_NORMALS")
	other := metadata.NewShaderVariant("", nil)
	other.AddDefine("HAS_NORMALS")

	assert.Equal(t,
		fingerprintShaderModule(metadata.ShaderStageVertex, a, "main", variant),
		fingerprintShaderModule(metadata.ShaderStageVertex, b, "main", other))

	attachments, loadStore, subpasses := forwardAttachments()
	attachments2, loadStore2, subpasses2 := forwardAttachments()
	assert.Equal(t,
		fingerprintRenderPass(attachments, loadStore, subpasses),
		fingerprintRenderPass(attachments2, loadStore2, subpasses2))
}

func TestFingerprintDependenciesByContent(t *testing.T) {
	c1, _ := newTestCache(t, ResourceCacheConfig{})
	c2, _ := newTestCache(t, ResourceCacheConfig{})

	s1 := buildScene(t, c1)
	s2 := buildScene(t, c2)

	assert.NotZero(t, s1.layout.ID())
	assert.Equal(t, s1.layout.Fingerprint(), s2.layout.Fingerprint())
	assert.Equal(t, s1.pipeline.Fingerprint(), s2.pipeline.Fingerprint())
}

func TestFingerprintSpecializationConstantOrder(t *testing.T) {
	c, _ := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)

	a := s.state.Clone()
	a.SpecializationConstants = map[uint32][]byte{}
	SetSpecializationConstant(a, 1, float32(0.5))
	SetSpecializationConstant(a, 7, int32(-3))
	SetSpecializationBool(a, 3, true)

	b := s.state.Clone()
	b.SpecializationConstants = map[uint32][]byte{}
	SetSpecializationBool(b, 3, true)
	SetSpecializationConstant(b, 7, int32(-3))
	SetSpecializationConstant(b, 1, float32(0.5))

	assert.Equal(t, fingerprintGraphicsPipeline(a), fingerprintGraphicsPipeline(b))
}

func TestFingerprintNearMisses(t *testing.T) {
	c, _ := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)

	source := vertexSource()
	empty := &metadata.ShaderVariant{}
	defined := metadata.NewShaderVariant("", nil)
	defined.AddDefine("SKINNED")
	otherCode := vertexSource()
	otherCode.Data = []byte("vertex shader code v2")
	otherBinding := vertexSource()
	otherBinding.Resources[2].Binding = 1

	attachments, loadStore, subpasses := forwardAttachments()
	otherFormat, _, _ := forwardAttachments()
	otherFormat[0].Format = metadata.FormatB8G8R8A8Unorm
	otherOps := []metadata.LoadStoreInfo{loadStore[0], {LoadOp: metadata.LoadOpLoad, StoreOp: metadata.StoreOpDontCare}}
	otherSubpasses := []metadata.SubpassInfo{{OutputAttachments: []uint32{0}, DisableDepthStencilAttachment: true}}

	pipelineVariant := func(change func(*PipelineState)) Fingerprint {
		state := s.state.Clone()
		change(state)
		return fingerprintGraphicsPipeline(state)
	}

	fingerprints := map[string]Fingerprint{
		"module":            fingerprintShaderModule(metadata.ShaderStageVertex, source, "main", empty),
		"module stage":      fingerprintShaderModule(metadata.ShaderStageFragment, source, "main", empty),
		"module entry":      fingerprintShaderModule(metadata.ShaderStageVertex, source, "vs_main", empty),
		"module variant":    fingerprintShaderModule(metadata.ShaderStageVertex, source, "main", defined),
		"module code":       fingerprintShaderModule(metadata.ShaderStageVertex, otherCode, "main", empty),
		"module binding":    fingerprintShaderModule(metadata.ShaderStageVertex, otherBinding, "main", empty),
		"render pass":       fingerprintRenderPass(attachments, loadStore, subpasses),
		"render pass fmt":   fingerprintRenderPass(otherFormat, loadStore, subpasses),
		"render pass ops":   fingerprintRenderPass(attachments, otherOps, subpasses),
		"render pass sub":   fingerprintRenderPass(attachments, loadStore, otherSubpasses),
		"pipeline":          pipelineVariant(func(*PipelineState) {}),
		"pipeline subpass":  pipelineVariant(func(p *PipelineState) { p.Subpass = 1 }),
		"pipeline cull":     pipelineVariant(func(p *PipelineState) { p.Rasterization.CullMode = metadata.CullModeNone }),
		"pipeline topology": pipelineVariant(func(p *PipelineState) { p.InputAssembly.Topology = metadata.PrimitiveTopologyLineList }),
		"pipeline depth":    pipelineVariant(func(p *PipelineState) { p.DepthStencil.DepthCompareOp = metadata.CompareOpLess }),
		"pipeline blend":    pipelineVariant(func(p *PipelineState) { p.ColorBlend.Attachments[0].BlendEnable = true }),
		"pipeline spec":     pipelineVariant(func(p *PipelineState) { SetSpecializationConstant(p, 0, uint32(8)) }),
		"pipeline samples":  pipelineVariant(func(p *PipelineState) { p.Multisample.MinSampleShading = 0.25 }),
		"pipeline stride":   pipelineVariant(func(p *PipelineState) { p.VertexInput.Bindings[0].Stride = 16 }),
		"layout":            fingerprintPipelineLayout([]*ShaderModule{s.vertex, s.fragment}),
		"layout order":      fingerprintPipelineLayout([]*ShaderModule{s.fragment, s.vertex}),
		"layout vertex":     fingerprintPipelineLayout([]*ShaderModule{s.vertex}),
	}

	seen := make(map[Fingerprint]string)
	for name, fp := range fingerprints {
		other, dup := seen[fp]
		require.False(t, dup, "%s collides with %s", name, other)
		seen[fp] = name
	}
}

func TestFingerprintKindDiscriminator(t *testing.T) {
	assert.NotEqual(t, fingerprintPipelineLayout(nil), fingerprintRenderPass(nil, nil, nil))
}

func TestFingerprintIgnoresPipelineCache(t *testing.T) {
	c, device := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)

	c.SetPipelineCache(99)
	pipeline, err := c.RequestGraphicsPipeline(s.state)
	require.NoError(t, err)
	assert.Same(t, s.pipeline, pipeline)
	assert.Equal(t, 1, device.Created(metadata.ResourceKindGraphicsPipeline))
}
