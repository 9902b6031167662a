package cache

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

const DefaultDescriptorPoolMaxSets uint32 = 16

type ResourceCacheConfig struct {
	// DescriptorPoolMaxSets is the number of sets each device pool holds.
	DescriptorPoolMaxSets uint32
	// DisableRecording turns the resource record off. Serialize then
	// returns nil and Warmup still works.
	DisableRecording bool
}

// ResourceCache hands out device objects keyed by the fingerprint of their
// construction arguments. Objects stay owned by the cache until a bulk
// clear; there is no eviction of single entries. All methods are safe for
// concurrent use except Warmup, which expects to run before the cache is
// shared.
type ResourceCache struct {
	device   Device
	config   ResourceCacheConfig
	ids      *core.Identifier
	metrics  *core.Metrics
	recorder *ResourceRecord

	pipelineCache atomic.Uint64

	shaderModules        *table[ShaderModule]
	pipelineLayouts      *table[PipelineLayout]
	descriptorSetLayouts *table[DescriptorSetLayout]
	descriptorPools      *table[DescriptorPool]
	descriptorSets       *table[DescriptorSet]
	renderPasses         *table[RenderPass]
	graphicsPipelines    *table[GraphicsPipeline]
	computePipelines     *table[ComputePipeline]
	framebuffers         *table[Framebuffer]
}

func NewResourceCache(device Device, config ResourceCacheConfig) (*ResourceCache, error) {
	if device == nil {
		return nil, core.ErrNilDevice
	}
	if config.DescriptorPoolMaxSets == 0 {
		config.DescriptorPoolMaxSets = DefaultDescriptorPoolMaxSets
	}

	c := &ResourceCache{
		device:               device,
		config:               config,
		ids:                  core.NewIdentifier(),
		metrics:              core.NewMetrics(),
		shaderModules:        newTable[ShaderModule](metadata.ResourceKindShaderModule),
		pipelineLayouts:      newTable[PipelineLayout](metadata.ResourceKindPipelineLayout),
		descriptorSetLayouts: newTable[DescriptorSetLayout](metadata.ResourceKindDescriptorSetLayout),
		descriptorPools:      newTable[DescriptorPool](metadata.ResourceKindDescriptorPool),
		descriptorSets:       newTable[DescriptorSet](metadata.ResourceKindDescriptorSet),
		renderPasses:         newTable[RenderPass](metadata.ResourceKindRenderPass),
		graphicsPipelines:    newTable[GraphicsPipeline](metadata.ResourceKindGraphicsPipeline),
		computePipelines:     newTable[ComputePipeline](metadata.ResourceKindComputePipeline),
		framebuffers:         newTable[Framebuffer](metadata.ResourceKindFramebuffer),
	}
	if !config.DisableRecording {
		c.recorder = NewResourceRecord()
	}
	return c, nil
}

func (c *ResourceCache) Device() Device {
	return c.device
}

func (c *ResourceCache) Metrics() *core.Metrics {
	return c.metrics
}

// Recorder returns the resource record, or nil when recording is disabled.
func (c *ResourceCache) Recorder() *ResourceRecord {
	return c.recorder
}

// SetPipelineCache sets the pipeline cache handle handed to every later
// pipeline construction. Cached pipelines are not affected.
func (c *ResourceCache) SetPipelineCache(handle metadata.Handle) {
	c.pipelineCache.Store(uint64(handle))
}

func (c *ResourceCache) PipelineCache() metadata.Handle {
	return metadata.Handle(c.pipelineCache.Load())
}

func nilDependency(kind metadata.ResourceKind, what string) error {
	return fmt.Errorf("could not create %s: %w: %s", kind, core.ErrNilDependency, what)
}

// RequestShaderModule returns the module for a stage of a shader source.
// An empty entry point means "main" and a nil variant the empty variant.
func (c *ResourceCache) RequestShaderModule(stage metadata.ShaderStage, source *metadata.ShaderSource, entryPoint string, variant *metadata.ShaderVariant) (*ShaderModule, error) {
	if source == nil {
		return nil, nilDependency(metadata.ResourceKindShaderModule, "shader source")
	}
	if entryPoint == "" {
		entryPoint = "main"
	}
	if variant == nil {
		variant = &metadata.ShaderVariant{}
	}

	fingerprint := fingerprintShaderModule(stage, source, entryPoint, variant)
	return requestResource(c, c.shaderModules, fingerprint,
		func(id uint64) (*ShaderModule, error) {
			module := &ShaderModule{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint},
				stage:        stage,
				source: metadata.ShaderSource{
					Filename:  source.Filename,
					Data:      slices.Clone(source.Data),
					Resources: slices.Clone(source.Resources),
				},
				entryPoint: entryPoint,
				variant: metadata.ShaderVariant{
					Preamble:  variant.Preamble,
					Processes: slices.Clone(variant.Processes),
				},
			}
			for _, res := range source.Resources {
				res.Stages |= stage
				module.resources = append(module.resources, res)
			}

			handle, err := c.device.CreateShaderModule(&metadata.ShaderModuleCreateInfo{
				Stage:      stage,
				Source:     &module.source,
				EntryPoint: entryPoint,
				Variant:    &module.variant,
			})
			if err != nil {
				return nil, err
			}
			module.handle = handle
			return module, nil
		},
		func(module *ShaderModule) {
			index := c.recorder.RegisterShaderModule(stage, &module.source, entryPoint, &module.variant)
			c.recorder.SetShaderModule(index, module)
		})
}

// mergeResources folds the resources of all modules into one list. Stage
// inputs and outputs are distinct per stage, every other resource is
// shared by name and its stage mask is the union over the modules.
func mergeResources(modules []*ShaderModule) []metadata.ShaderResource {
	var merged []metadata.ShaderResource
	byKey := make(map[string]int)
	for _, module := range modules {
		for _, res := range module.resources {
			key := res.Name
			if res.Type == metadata.ShaderResourceTypeInput || res.Type == metadata.ShaderResourceTypeOutput {
				key = fmt.Sprintf("%d_%s", module.stage, res.Name)
			}
			if i, ok := byKey[key]; ok {
				merged[i].Stages |= res.Stages
				continue
			}
			byKey[key] = len(merged)
			merged = append(merged, res)
		}
	}
	return merged
}

func (c *ResourceCache) RequestPipelineLayout(modules []*ShaderModule) (*PipelineLayout, error) {
	for _, m := range modules {
		if m == nil {
			return nil, nilDependency(metadata.ResourceKindPipelineLayout, "shader module")
		}
	}

	fingerprint := fingerprintPipelineLayout(modules)
	return requestResource(c, c.pipelineLayouts, fingerprint,
		func(id uint64) (*PipelineLayout, error) {
			layout := &PipelineLayout{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint},
				modules:      slices.Clone(modules),
				resources:    mergeResources(modules),
				setLayouts:   make(map[uint32]*DescriptorSetLayout),
			}

			perSet := make(map[uint32][]metadata.ShaderResource)
			for _, res := range layout.resources {
				switch {
				case res.Type == metadata.ShaderResourceTypePushConstant:
					layout.pushConstantRanges = append(layout.pushConstantRanges, metadata.PushConstantRange{
						StageFlags: res.Stages,
						Offset:     res.Offset,
						Size:       res.Size,
					})
				case res.Type.HasDescriptor():
					perSet[res.Set] = append(perSet[res.Set], res)
				}
			}

			info := &metadata.PipelineLayoutCreateInfo{PushConstantRanges: layout.pushConstantRanges}
			for _, set := range sortedKeys(perSet) {
				dsl, err := c.RequestDescriptorSetLayout(set, modules, perSet[set])
				if err != nil {
					return nil, err
				}
				layout.setLayouts[set] = dsl
				info.SetLayouts = append(info.SetLayouts, dsl.handle)
			}

			handle, err := c.device.CreatePipelineLayout(info)
			if err != nil {
				return nil, err
			}
			layout.handle = handle
			return layout, nil
		},
		func(layout *PipelineLayout) {
			index := c.recorder.RegisterPipelineLayout(layout.modules)
			c.recorder.SetPipelineLayout(index, layout)
		})
}

// RequestDescriptorSetLayout returns the layout of one descriptor set.
// Resources without a descriptor are ignored; resources sharing a binding
// share one layout binding.
func (c *ResourceCache) RequestDescriptorSetLayout(setIndex uint32, modules []*ShaderModule, resources []metadata.ShaderResource) (*DescriptorSetLayout, error) {
	for _, m := range modules {
		if m == nil {
			return nil, nilDependency(metadata.ResourceKindDescriptorSetLayout, "shader module")
		}
	}

	fingerprint := fingerprintDescriptorSetLayout(setIndex, modules, resources)
	return requestResource(c, c.descriptorSetLayouts, fingerprint,
		func(id uint64) (*DescriptorSetLayout, error) {
			layout := &DescriptorSetLayout{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint},
				setIndex:     setIndex,
				modules:      slices.Clone(modules),
				resources:    slices.Clone(resources),
				lookup:       make(map[uint32]metadata.DescriptorSetLayoutBinding),
			}
			for _, res := range resources {
				descriptorType, ok := metadata.DescriptorTypeOf(res)
				if !ok {
					continue
				}
				if existing, ok := layout.lookup[res.Binding]; ok {
					existing.StageFlags |= res.Stages
					layout.lookup[res.Binding] = existing
					continue
				}
				count := res.ArraySize
				if count == 0 {
					count = 1
				}
				layout.lookup[res.Binding] = metadata.DescriptorSetLayoutBinding{
					Binding:         res.Binding,
					DescriptorType:  descriptorType,
					DescriptorCount: count,
					StageFlags:      res.Stages,
				}
			}
			for _, binding := range sortedKeys(layout.lookup) {
				layout.bindings = append(layout.bindings, layout.lookup[binding])
			}

			handle, err := c.device.CreateDescriptorSetLayout(&metadata.DescriptorSetLayoutCreateInfo{
				SetIndex: setIndex,
				Bindings: layout.bindings,
			})
			if err != nil {
				return nil, err
			}
			layout.handle = handle
			return layout, nil
		}, nil)
}

// RequestDescriptorPool returns the pool sets of layout are allocated from.
func (c *ResourceCache) RequestDescriptorPool(layout *DescriptorSetLayout) (*DescriptorPool, error) {
	if layout == nil {
		return nil, nilDependency(metadata.ResourceKindDescriptorPool, "descriptor set layout")
	}

	fingerprint := fingerprintDescriptorPool(layout)
	return requestResource(c, c.descriptorPools, fingerprint,
		func(id uint64) (*DescriptorPool, error) {
			maxSets := c.config.DescriptorPoolMaxSets

			counts := make(map[metadata.DescriptorType]uint32)
			for _, b := range layout.bindings {
				counts[b.DescriptorType] += b.DescriptorCount
			}
			var sizes []metadata.DescriptorPoolSize
			for _, t := range sortedKeys(counts) {
				sizes = append(sizes, metadata.DescriptorPoolSize{Type: t, DescriptorCount: counts[t] * maxSets})
			}

			handle, err := c.device.CreateDescriptorPool(&metadata.DescriptorPoolCreateInfo{
				MaxSets:   maxSets,
				PoolSizes: sizes,
			})
			if err != nil {
				return nil, err
			}
			return &DescriptorPool{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint, handle: handle},
				layout:       layout,
				poolSizes:    sizes,
				maxSets:      maxSets,
				pools:        []metadata.Handle{handle},
				setCounts:    []uint32{0},
			}, nil
		}, nil)
}

// writes returns the device writes for every binding the layout knows.
// Bindings the layout does not use are skipped.
func (s *DescriptorSet) writes() []metadata.WriteDescriptorSet {
	var writes []metadata.WriteDescriptorSet
	for _, binding := range sortedKeys(s.bufferInfos) {
		layoutBinding, ok := s.layout.Binding(binding)
		if !ok {
			core.LogWarn("Shader layout set %d does not use buffer binding %d", s.layout.setIndex, binding)
			continue
		}
		elements := s.bufferInfos[binding]
		for _, element := range sortedKeys(elements) {
			info := elements[element]
			writes = append(writes, metadata.WriteDescriptorSet{
				DstSet:          s.handle,
				DstBinding:      binding,
				DstArrayElement: element,
				DescriptorType:  layoutBinding.DescriptorType,
				BufferInfo:      &info,
			})
		}
	}
	for _, binding := range sortedKeys(s.imageInfos) {
		layoutBinding, ok := s.layout.Binding(binding)
		if !ok {
			core.LogWarn("Shader layout set %d does not use image binding %d", s.layout.setIndex, binding)
			continue
		}
		elements := s.imageInfos[binding]
		for _, element := range sortedKeys(elements) {
			info := elements[element]
			writes = append(writes, metadata.WriteDescriptorSet{
				DstSet:          s.handle,
				DstBinding:      binding,
				DstArrayElement: element,
				DescriptorType:  layoutBinding.DescriptorType,
				ImageInfo:       &info,
			})
		}
	}
	return writes
}

// RequestDescriptorSet returns a set of layout with the given bindings
// written. Views and buffers referenced by the infos are owned by the caller.
func (c *ResourceCache) RequestDescriptorSet(layout *DescriptorSetLayout, bufferInfos metadata.BindingMap[metadata.DescriptorBufferInfo], imageInfos metadata.BindingMap[metadata.DescriptorImageInfo]) (*DescriptorSet, error) {
	if layout == nil {
		return nil, nilDependency(metadata.ResourceKindDescriptorSet, "descriptor set layout")
	}

	fingerprint := fingerprintDescriptorSet(layout, bufferInfos, imageInfos)
	return requestResource(c, c.descriptorSets, fingerprint,
		func(id uint64) (*DescriptorSet, error) {
			pool, err := c.RequestDescriptorPool(layout)
			if err != nil {
				return nil, err
			}
			handle, err := pool.allocate(c.device)
			if err != nil {
				return nil, err
			}

			set := &DescriptorSet{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint, handle: handle},
				layout:       layout,
				pool:         pool,
				bufferInfos:  cloneBindingMap(bufferInfos),
				imageInfos:   cloneBindingMap(imageInfos),
			}
			if writes := set.writes(); len(writes) > 0 {
				if err := c.device.UpdateDescriptorSets(writes); err != nil {
					return nil, err
				}
			}
			return set, nil
		}, nil)
}

func (c *ResourceCache) RequestRenderPass(attachments []metadata.Attachment, loadStoreInfos []metadata.LoadStoreInfo, subpasses []metadata.SubpassInfo) (*RenderPass, error) {
	fingerprint := fingerprintRenderPass(attachments, loadStoreInfos, subpasses)
	return requestResource(c, c.renderPasses, fingerprint,
		func(id uint64) (*RenderPass, error) {
			renderPass := &RenderPass{
				cachedObject:   cachedObject{id: id, fingerprint: fingerprint},
				attachments:    slices.Clone(attachments),
				loadStoreInfos: slices.Clone(loadStoreInfos),
				subpasses:      slices.Clone(subpasses),
			}

			// Without subpasses, a single one writes every color attachment.
			if len(renderPass.subpasses) == 0 {
				var outputs []uint32
				for i, a := range attachments {
					if !a.Format.IsDepthFormat() {
						outputs = append(outputs, uint32(i))
					}
				}
				renderPass.subpasses = []metadata.SubpassInfo{{OutputAttachments: outputs}}
			}
			for _, sp := range renderPass.subpasses {
				var count uint32
				for _, o := range sp.OutputAttachments {
					if int(o) < len(attachments) && !attachments[o].Format.IsDepthFormat() {
						count++
					}
				}
				renderPass.colorOutputCount = append(renderPass.colorOutputCount, count)
			}

			handle, err := c.device.CreateRenderPass(&metadata.RenderPassCreateInfo{
				Attachments:    renderPass.attachments,
				LoadStoreInfos: renderPass.loadStoreInfos,
				Subpasses:      renderPass.subpasses,
			})
			if err != nil {
				return nil, err
			}
			renderPass.handle = handle
			return renderPass, nil
		},
		func(renderPass *RenderPass) {
			index := c.recorder.RegisterRenderPass(attachments, loadStoreInfos, subpasses)
			c.recorder.SetRenderPass(index, renderPass)
		})
}

func shaderStages(layout *PipelineLayout) []metadata.PipelineShaderStage {
	stages := make([]metadata.PipelineShaderStage, 0, len(layout.modules))
	for _, m := range layout.modules {
		stages = append(stages, metadata.PipelineShaderStage{
			Stage:      m.stage,
			Module:     m.handle,
			EntryPoint: m.entryPoint,
		})
	}
	return stages
}

// RequestGraphicsPipeline returns the pipeline for state. The state is
// copied; the caller may keep changing it afterwards.
func (c *ResourceCache) RequestGraphicsPipeline(state *PipelineState) (*GraphicsPipeline, error) {
	switch {
	case state == nil:
		return nil, nilDependency(metadata.ResourceKindGraphicsPipeline, "pipeline state")
	case state.PipelineLayout == nil:
		return nil, nilDependency(metadata.ResourceKindGraphicsPipeline, "pipeline layout")
	case state.RenderPass == nil:
		return nil, nilDependency(metadata.ResourceKindGraphicsPipeline, "render pass")
	}

	fingerprint := fingerprintGraphicsPipeline(state)
	return requestResource(c, c.graphicsPipelines, fingerprint,
		func(id uint64) (*GraphicsPipeline, error) {
			pipeline := &GraphicsPipeline{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint},
				state:        *state.Clone(),
			}
			s := &pipeline.state
			handle, err := c.device.CreateGraphicsPipeline(&metadata.GraphicsPipelineCreateInfo{
				PipelineCache:           c.PipelineCache(),
				Layout:                  s.PipelineLayout.handle,
				RenderPass:              s.RenderPass.handle,
				Subpass:                 s.Subpass,
				Stages:                  shaderStages(s.PipelineLayout),
				SpecializationConstants: s.SpecializationConstants,
				VertexInput:             s.VertexInput,
				InputAssembly:           s.InputAssembly,
				Rasterization:           s.Rasterization,
				Viewport:                s.Viewport,
				Multisample:             s.Multisample,
				DepthStencil:            s.DepthStencil,
				ColorBlend:              s.ColorBlend,
			})
			if err != nil {
				return nil, err
			}
			pipeline.handle = handle
			return pipeline, nil
		},
		func(pipeline *GraphicsPipeline) {
			index := c.recorder.RegisterGraphicsPipeline(&pipeline.state)
			c.recorder.SetGraphicsPipeline(index, pipeline)
		})
}

// RequestComputePipeline returns the compute pipeline for state. The
// layout must hold a compute shader module.
func (c *ResourceCache) RequestComputePipeline(state *PipelineState) (*ComputePipeline, error) {
	switch {
	case state == nil:
		return nil, nilDependency(metadata.ResourceKindComputePipeline, "pipeline state")
	case state.PipelineLayout == nil:
		return nil, nilDependency(metadata.ResourceKindComputePipeline, "pipeline layout")
	}

	fingerprint := fingerprintComputePipeline(state)
	return requestResource(c, c.computePipelines, fingerprint,
		func(id uint64) (*ComputePipeline, error) {
			var stage *metadata.PipelineShaderStage
			for _, s := range shaderStages(state.PipelineLayout) {
				if s.Stage == metadata.ShaderStageCompute {
					stage = &s
					break
				}
			}
			if stage == nil {
				return nil, fmt.Errorf("pipeline layout #%d has no compute shader module", state.PipelineLayout.id)
			}

			pipeline := &ComputePipeline{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint},
				state:        *state.Clone(),
			}
			handle, err := c.device.CreateComputePipeline(&metadata.ComputePipelineCreateInfo{
				PipelineCache:           c.PipelineCache(),
				Layout:                  state.PipelineLayout.handle,
				Stage:                   *stage,
				SpecializationConstants: pipeline.state.SpecializationConstants,
			})
			if err != nil {
				return nil, err
			}
			pipeline.handle = handle
			return pipeline, nil
		},
		func(pipeline *ComputePipeline) {
			index := c.recorder.RegisterComputePipeline(&pipeline.state)
			c.recorder.SetComputePipeline(index, pipeline)
		})
}

// RequestFramebuffer returns a framebuffer over the views of target. The
// views are owned by the caller.
func (c *ResourceCache) RequestFramebuffer(target *metadata.RenderTarget, renderPass *RenderPass) (*Framebuffer, error) {
	switch {
	case target == nil:
		return nil, nilDependency(metadata.ResourceKindFramebuffer, "render target")
	case renderPass == nil:
		return nil, nilDependency(metadata.ResourceKindFramebuffer, "render pass")
	}

	fingerprint := fingerprintFramebuffer(target, renderPass)
	return requestResource(c, c.framebuffers, fingerprint,
		func(id uint64) (*Framebuffer, error) {
			framebuffer := &Framebuffer{
				cachedObject: cachedObject{id: id, fingerprint: fingerprint},
				renderPass:   renderPass,
				extent:       target.Extent,
				views:        slices.Clone(target.Views),
			}
			handle, err := c.device.CreateFramebuffer(&metadata.FramebufferCreateInfo{
				RenderPass:  renderPass.handle,
				Attachments: framebuffer.views,
				Extent:      target.Extent,
				Layers:      1,
			})
			if err != nil {
				return nil, err
			}
			framebuffer.handle = handle
			return framebuffer, nil
		}, nil)
}

// Serialize returns the resource record, nil when recording is disabled.
func (c *ResourceCache) Serialize() []byte {
	if c.recorder == nil {
		return nil
	}
	return c.recorder.Data()
}

// Warmup replays a serialized record into the cache. Objects built before
// an error stay cached and the rest is built lazily on first request.
func (c *ResourceCache) Warmup(data []byte) error {
	clock := core.NewClock()
	clock.Start()

	replay := NewResourceReplay()
	err := replay.Play(c, data)
	clock.Stop()

	core.LogInfo("Cache warmup replayed %d shader modules, %d pipeline layouts, %d render passes, %d graphics and %d compute pipelines in %.2fms",
		len(replay.shaderModules), len(replay.pipelineLayouts), len(replay.renderPasses),
		len(replay.graphicsPipelines), len(replay.computePipelines), clock.ElapsedMS())
	return err
}
