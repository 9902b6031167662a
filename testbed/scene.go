package testbed

import (
	"fmt"

	"github.com/spaghettifunk/pipecache/engine/assets"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

const (
	ForwardShader   string = "forward"
	ParticlesShader string = "particles"

	alphaModeOpaque      uint32 = 0
	alphaModeTransparent uint32 = 1

	particleWorkgroupSize uint32 = 64
)

/** @brief Images and buffers the scene renders with. They are owned by the caller. */
type SceneConfig struct {
	Extent         metadata.Extent2D
	ColorFormat    metadata.Format
	DepthFormat    metadata.Format
	ColorViews     []metadata.Handle
	DepthView      metadata.Handle
	GlobalUniform  metadata.Handle
	ParticleBuffer metadata.Handle
	Sampler        metadata.Handle
	// one material per albedo view
	AlbedoViews []metadata.Handle
}

// DefaultSceneConfig describes a three image swapchain with made up
// handles, enough for a device that does not look at the images.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Extent:         metadata.Extent2D{Width: 1280, Height: 720},
		ColorFormat:    metadata.FormatB8G8R8A8Srgb,
		DepthFormat:    metadata.FormatD32Sfloat,
		ColorViews:     []metadata.Handle{0x1001, 0x1002, 0x1003},
		DepthView:      0x1100,
		GlobalUniform:  0x2001,
		ParticleBuffer: 0x2002,
		Sampler:        0x3001,
		AlbedoViews:    []metadata.Handle{0x4001, 0x4002, 0x4003},
	}
}

type Scene struct {
	config SceneConfig

	renderPass   *cache.RenderPass
	framebuffers []*cache.Framebuffer

	forwardLayout *cache.PipelineLayout
	opaque        *cache.GraphicsPipeline
	transparent   *cache.GraphicsPipeline

	globalSet    *cache.DescriptorSet
	materialSets []*cache.DescriptorSet

	particleLayout *cache.PipelineLayout
	particleSet    *cache.DescriptorSet
	particles      *cache.ComputePipeline
}

// BuildScene requests every object the forward pass and the particle
// simulation draw with. Calling it again with the same inputs only hits
// the cache.
func BuildScene(rc *cache.ResourceCache, sl *assets.ShaderLibrary, config SceneConfig) (*Scene, error) {
	if rc == nil || sl == nil {
		return nil, core.ErrNilDependency
	}
	s := &Scene{config: config}

	if err := s.buildForward(rc, sl); err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}
	if err := s.buildParticles(rc, sl); err != nil {
		return nil, fmt.Errorf("particles: %w", err)
	}
	return s, nil
}

func (s *Scene) buildRenderPass(rc *cache.ResourceCache) error {
	renderPass, err := rc.RequestRenderPass(
		[]metadata.Attachment{
			metadata.NewAttachment(s.config.ColorFormat, metadata.SampleCount1, metadata.ImageUsageColorAttachment),
			metadata.NewAttachment(s.config.DepthFormat, metadata.SampleCount1, metadata.ImageUsageDepthStencilAttachment),
		},
		[]metadata.LoadStoreInfo{
			{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpStore},
			{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpDontCare},
		},
		[]metadata.SubpassInfo{{OutputAttachments: []uint32{0}, DebugName: "forward"}},
	)
	if err != nil {
		return err
	}
	s.renderPass = renderPass
	return s.buildFramebuffers(rc)
}

func (s *Scene) buildFramebuffers(rc *cache.ResourceCache) error {
	s.framebuffers = make([]*cache.Framebuffer, 0, len(s.config.ColorViews))
	for _, view := range s.config.ColorViews {
		framebuffer, err := rc.RequestFramebuffer(&metadata.RenderTarget{
			Extent: s.config.Extent,
			Views:  []metadata.Handle{view, s.config.DepthView},
		}, s.renderPass)
		if err != nil {
			return err
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}
	return nil
}

func (s *Scene) buildForward(rc *cache.ResourceCache, sl *assets.ShaderLibrary) error {
	if err := s.buildRenderPass(rc); err != nil {
		return err
	}

	modules, err := sl.RequestModules(rc, ForwardShader)
	if err != nil {
		return err
	}
	layout, err := rc.RequestPipelineLayout(modules)
	if err != nil {
		return err
	}
	s.forwardLayout = layout

	state := cache.NewPipelineState()
	state.PipelineLayout = layout
	state.RenderPass = s.renderPass
	state.VertexInput = metadata.VertexInputState{
		Bindings: []metadata.VertexInputBindingDescription{
			{Binding: 0, Stride: 32, InputRate: metadata.VertexInputRateVertex},
		},
		Attributes: []metadata.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: metadata.FormatR32G32B32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: metadata.FormatR32G32B32Sfloat, Offset: 12},
			{Location: 2, Binding: 0, Format: metadata.FormatR32G32Sfloat, Offset: 24},
		},
	}
	state.ColorBlend.Attachments = []metadata.ColorBlendAttachmentState{metadata.DefaultColorBlendAttachmentState()}
	cache.SetSpecializationConstant(state, 0, alphaModeOpaque)

	if s.opaque, err = rc.RequestGraphicsPipeline(state); err != nil {
		return err
	}

	// Transparent geometry blends over the opaque pass without writing depth.
	state.DepthStencil.DepthWriteEnable = false
	state.ColorBlend.Attachments[0].BlendEnable = true
	state.ColorBlend.Attachments[0].SrcColorBlendFactor = metadata.BlendFactorSrcAlpha
	state.ColorBlend.Attachments[0].DstColorBlendFactor = metadata.BlendFactorOneMinusSrcAlpha
	cache.SetSpecializationConstant(state, 0, alphaModeTransparent)

	if s.transparent, err = rc.RequestGraphicsPipeline(state); err != nil {
		return err
	}

	return s.buildForwardSets(rc)
}

func (s *Scene) buildForwardSets(rc *cache.ResourceCache) error {
	globalLayout, ok := s.forwardLayout.DescriptorSetLayout(0)
	if !ok {
		return fmt.Errorf("shader '%s' has no global descriptor set", ForwardShader)
	}
	globalSet, err := rc.RequestDescriptorSet(globalLayout,
		metadata.BindingMap[metadata.DescriptorBufferInfo]{
			0: {0: {Buffer: s.config.GlobalUniform, Offset: 0, Range: 128}},
		}, nil)
	if err != nil {
		return err
	}
	s.globalSet = globalSet

	materialLayout, ok := s.forwardLayout.DescriptorSetLayout(1)
	if !ok {
		return fmt.Errorf("shader '%s' has no material descriptor set", ForwardShader)
	}
	s.materialSets = make([]*cache.DescriptorSet, 0, len(s.config.AlbedoViews))
	for _, view := range s.config.AlbedoViews {
		set, err := rc.RequestDescriptorSet(materialLayout, nil,
			metadata.BindingMap[metadata.DescriptorImageInfo]{
				0: {0: {Sampler: s.config.Sampler, ImageView: view, ImageLayout: metadata.ImageLayoutShaderReadOnlyOptimal}},
			})
		if err != nil {
			return err
		}
		s.materialSets = append(s.materialSets, set)
	}
	return nil
}

func (s *Scene) buildParticles(rc *cache.ResourceCache, sl *assets.ShaderLibrary) error {
	modules, err := sl.RequestModules(rc, ParticlesShader)
	if err != nil {
		return err
	}
	layout, err := rc.RequestPipelineLayout(modules)
	if err != nil {
		return err
	}
	s.particleLayout = layout

	setLayout, ok := layout.DescriptorSetLayout(0)
	if !ok {
		return fmt.Errorf("shader '%s' has no particle buffer set", ParticlesShader)
	}
	if s.particleSet, err = rc.RequestDescriptorSet(setLayout,
		metadata.BindingMap[metadata.DescriptorBufferInfo]{
			0: {0: {Buffer: s.config.ParticleBuffer, Offset: 0, Range: 1 << 20}},
		}, nil); err != nil {
		return err
	}

	state := cache.NewPipelineState()
	state.PipelineLayout = layout
	cache.SetSpecializationConstant(state, 0, particleWorkgroupSize)
	s.particles, err = rc.RequestComputePipeline(state)
	return err
}

// Resize drops every cached framebuffer and builds new ones over views.
func (s *Scene) Resize(rc *cache.ResourceCache, extent metadata.Extent2D, colorViews []metadata.Handle, depthView metadata.Handle) error {
	rc.ClearFramebuffers()
	s.config.Extent = extent
	s.config.ColorViews = colorViews
	s.config.DepthView = depthView
	return s.buildFramebuffers(rc)
}

// ReplaceTextures points the material sets at new albedo views, for
// example after a texture finished streaming in at a higher resolution.
func (s *Scene) ReplaceTextures(rc *cache.ResourceCache, oldViews, newViews []metadata.Handle) error {
	if err := rc.UpdateDescriptorSets(oldViews, newViews); err != nil {
		return err
	}
	for i, view := range s.config.AlbedoViews {
		for j, old := range oldViews {
			if view == old {
				s.config.AlbedoViews[i] = newViews[j]
			}
		}
	}
	return nil
}

func (s *Scene) RenderPass() *cache.RenderPass                { return s.renderPass }
func (s *Scene) Framebuffers() []*cache.Framebuffer           { return s.framebuffers }
func (s *Scene) OpaquePipeline() *cache.GraphicsPipeline      { return s.opaque }
func (s *Scene) TransparentPipeline() *cache.GraphicsPipeline { return s.transparent }
func (s *Scene) ParticlePipeline() *cache.ComputePipeline     { return s.particles }
func (s *Scene) GlobalSet() *cache.DescriptorSet              { return s.globalSet }
func (s *Scene) MaterialSets() []*cache.DescriptorSet         { return s.materialSets }
func (s *Scene) ParticleSet() *cache.DescriptorSet            { return s.particleSet }
