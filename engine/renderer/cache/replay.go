package cache

import (
	"fmt"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

type replayFunc func(cache *ResourceCache, r *streamReader) error

// ResourceReplay rebuilds the objects of a record against a cache, in
// record order. It keeps one table per referenceable kind so a position in
// the record resolves to the object rebuilt for it. A replay is meant to
// run once, before the cache is shared with other goroutines.
type ResourceReplay struct {
	shaderModules     []*ShaderModule
	pipelineLayouts   []*PipelineLayout
	renderPasses      []*RenderPass
	graphicsPipelines []*GraphicsPipeline
	computePipelines  []*ComputePipeline

	handlers map[metadata.ResourceKind]replayFunc
}

func NewResourceReplay() *ResourceReplay {
	r := &ResourceReplay{}
	r.handlers = map[metadata.ResourceKind]replayFunc{
		metadata.ResourceKindShaderModule:     r.createShaderModule,
		metadata.ResourceKindPipelineLayout:   r.createPipelineLayout,
		metadata.ResourceKindRenderPass:       r.createRenderPass,
		metadata.ResourceKindGraphicsPipeline: r.createGraphicsPipeline,
		metadata.ResourceKindComputePipeline:  r.createComputePipeline,
	}
	return r
}

// Play replays data into cache. Entries of unknown kind are skipped. A
// malformed entry, a dangling dependency or a failed construction stops
// the replay and is returned; objects built so far stay cached.
func (r *ResourceReplay) Play(cache *ResourceCache, data []byte) error {
	stream := newStreamReader(data)
	entry := 0
	for {
		f, ok := stream.nextFrame()
		if !ok {
			break
		}
		handler, ok := r.handlers[f.kind]
		if !ok {
			core.LogWarn("Replay command not supported: %s", f.kind)
			entry++
			continue
		}
		if err := handler(cache, newStreamReader(f.payload)); err != nil {
			return fmt.Errorf("replay entry %d (%s) at offset %d: %w", entry, f.kind, f.offset, err)
		}
		entry++
	}
	if stream.err != nil {
		return stream.err
	}
	core.LogDebug("Replayed %d resource record entries", entry)
	return nil
}

// ShaderModules returns the shader modules rebuilt so far, in record order.
func (r *ResourceReplay) ShaderModules() []*ShaderModule { return r.shaderModules }

func (r *ResourceReplay) PipelineLayouts() []*PipelineLayout { return r.pipelineLayouts }

func (r *ResourceReplay) RenderPasses() []*RenderPass { return r.renderPasses }

func (r *ResourceReplay) GraphicsPipelines() []*GraphicsPipeline { return r.graphicsPipelines }

func (r *ResourceReplay) ComputePipelines() []*ComputePipeline { return r.computePipelines }

func resolve[T any](table []*T, kind metadata.ResourceKind, index int) (*T, error) {
	if index < 0 || index >= len(table) {
		return nil, fmt.Errorf("%w: %s %d, only %d replayed", core.ErrDependencyIndex, kind, index, len(table))
	}
	return table[index], nil
}

func (r *ResourceReplay) createShaderModule(cache *ResourceCache, stream *streamReader) error {
	e := decodeShaderModule(stream)
	if stream.err != nil {
		return stream.err
	}
	module, err := cache.RequestShaderModule(e.stage, &e.source, e.entryPoint, &e.variant)
	if err != nil {
		return err
	}
	r.shaderModules = append(r.shaderModules, module)
	return nil
}

func (r *ResourceReplay) createPipelineLayout(cache *ResourceCache, stream *streamReader) error {
	indices := decodePipelineLayout(stream)
	if stream.err != nil {
		return stream.err
	}
	modules := make([]*ShaderModule, 0, len(indices))
	for _, index := range indices {
		module, err := resolve(r.shaderModules, metadata.ResourceKindShaderModule, index)
		if err != nil {
			return err
		}
		modules = append(modules, module)
	}
	layout, err := cache.RequestPipelineLayout(modules)
	if err != nil {
		return err
	}
	r.pipelineLayouts = append(r.pipelineLayouts, layout)
	return nil
}

func (r *ResourceReplay) createRenderPass(cache *ResourceCache, stream *streamReader) error {
	e := decodeRenderPass(stream)
	if stream.err != nil {
		return stream.err
	}
	renderPass, err := cache.RequestRenderPass(e.attachments, e.loadStoreInfos, e.subpasses)
	if err != nil {
		return err
	}
	r.renderPasses = append(r.renderPasses, renderPass)
	return nil
}

func (r *ResourceReplay) createGraphicsPipeline(cache *ResourceCache, stream *streamReader) error {
	e := decodeGraphicsPipeline(stream)
	if stream.err != nil {
		return stream.err
	}
	layout, err := resolve(r.pipelineLayouts, metadata.ResourceKindPipelineLayout, e.layoutIndex)
	if err != nil {
		return err
	}
	renderPass, err := resolve(r.renderPasses, metadata.ResourceKindRenderPass, e.renderPassIndex)
	if err != nil {
		return err
	}
	e.state.PipelineLayout = layout
	e.state.RenderPass = renderPass

	pipeline, err := cache.RequestGraphicsPipeline(e.state)
	if err != nil {
		return err
	}
	r.graphicsPipelines = append(r.graphicsPipelines, pipeline)
	return nil
}

func (r *ResourceReplay) createComputePipeline(cache *ResourceCache, stream *streamReader) error {
	e := decodeComputePipeline(stream)
	if stream.err != nil {
		return stream.err
	}
	layout, err := resolve(r.pipelineLayouts, metadata.ResourceKindPipelineLayout, e.layoutIndex)
	if err != nil {
		return err
	}
	e.state.PipelineLayout = layout

	pipeline, err := cache.RequestComputePipeline(e.state)
	if err != nil {
		return err
	}
	r.computePipelines = append(r.computePipelines, pipeline)
	return nil
}
