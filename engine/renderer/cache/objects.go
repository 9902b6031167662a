package cache

import (
	"maps"
	"slices"
	"sync"

	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// cachedObject is embedded by every object the cache owns.
type cachedObject struct {
	id          uint64
	fingerprint Fingerprint
	handle      metadata.Handle
}

// ID is the process unique id of the object. Ids are never reused.
func (o *cachedObject) ID() uint64 {
	return o.id
}

func (o *cachedObject) Fingerprint() Fingerprint {
	return o.fingerprint
}

// Handle is the device handle backing the object.
func (o *cachedObject) Handle() metadata.Handle {
	return o.handle
}

type ShaderModule struct {
	cachedObject
	stage      metadata.ShaderStage
	source     metadata.ShaderSource
	entryPoint string
	variant    metadata.ShaderVariant
	resources  []metadata.ShaderResource
}

func (m *ShaderModule) Stage() metadata.ShaderStage          { return m.stage }
func (m *ShaderModule) EntryPoint() string                   { return m.entryPoint }
func (m *ShaderModule) Source() *metadata.ShaderSource       { return &m.source }
func (m *ShaderModule) Variant() *metadata.ShaderVariant     { return &m.variant }
func (m *ShaderModule) Resources() []metadata.ShaderResource { return m.resources }

type DescriptorSetLayout struct {
	cachedObject
	setIndex  uint32
	modules   []*ShaderModule
	resources []metadata.ShaderResource
	bindings  []metadata.DescriptorSetLayoutBinding
	lookup    map[uint32]metadata.DescriptorSetLayoutBinding
}

func (l *DescriptorSetLayout) SetIndex() uint32                                { return l.setIndex }
func (l *DescriptorSetLayout) ShaderModules() []*ShaderModule                  { return l.modules }
func (l *DescriptorSetLayout) Resources() []metadata.ShaderResource            { return l.resources }
func (l *DescriptorSetLayout) Bindings() []metadata.DescriptorSetLayoutBinding { return l.bindings }

// Binding returns the layout binding with the given number.
func (l *DescriptorSetLayout) Binding(binding uint32) (metadata.DescriptorSetLayoutBinding, bool) {
	b, ok := l.lookup[binding]
	return b, ok
}

type PipelineLayout struct {
	cachedObject
	modules            []*ShaderModule
	resources          []metadata.ShaderResource
	setLayouts         map[uint32]*DescriptorSetLayout
	pushConstantRanges []metadata.PushConstantRange
}

func (l *PipelineLayout) ShaderModules() []*ShaderModule       { return l.modules }
func (l *PipelineLayout) Resources() []metadata.ShaderResource { return l.resources }
func (l *PipelineLayout) PushConstantRanges() []metadata.PushConstantRange {
	return l.pushConstantRanges
}

// DescriptorSetLayout returns the layout of the given set.
func (l *PipelineLayout) DescriptorSetLayout(set uint32) (*DescriptorSetLayout, bool) {
	dsl, ok := l.setLayouts[set]
	return dsl, ok
}

// SetIndices returns the descriptor set numbers used by the layout in ascending order.
func (l *PipelineLayout) SetIndices() []uint32 {
	return sortedKeys(l.setLayouts)
}

// ResourcesOfType filters the merged resources by type and stage. A zero
// stage matches every stage.
func (l *PipelineLayout) ResourcesOfType(t metadata.ShaderResourceType, stage metadata.ShaderStage) []metadata.ShaderResource {
	var found []metadata.ShaderResource
	for _, r := range l.resources {
		if r.Type == t && (stage == 0 || r.Stages&stage != 0) {
			found = append(found, r)
		}
	}
	return found
}

// DescriptorPool hands out descriptor sets of one layout. It grows by
// creating another device pool whenever the current one is full.
type DescriptorPool struct {
	cachedObject
	layout    *DescriptorSetLayout
	poolSizes []metadata.DescriptorPoolSize
	maxSets   uint32

	mu        sync.Mutex
	pools     []metadata.Handle
	setCounts []uint32
	current   int
}

func (p *DescriptorPool) Layout() *DescriptorSetLayout { return p.layout }
func (p *DescriptorPool) MaxSetsPerPool() uint32       { return p.maxSets }

// Pools returns the device pools created so far.
func (p *DescriptorPool) Pools() []metadata.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.pools)
}

func (p *DescriptorPool) allocate(device Device) (metadata.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.setCounts[p.current] >= p.maxSets {
		p.current++
		if p.current == len(p.pools) {
			handle, err := device.CreateDescriptorPool(&metadata.DescriptorPoolCreateInfo{
				MaxSets:   p.maxSets,
				PoolSizes: p.poolSizes,
			})
			if err != nil {
				p.current--
				return metadata.NullHandle, err
			}
			p.pools = append(p.pools, handle)
			p.setCounts = append(p.setCounts, 0)
		}
	}

	set, err := device.AllocateDescriptorSet(p.pools[p.current], p.layout.handle)
	if err != nil {
		return metadata.NullHandle, err
	}
	p.setCounts[p.current]++
	return set, nil
}

type DescriptorSet struct {
	cachedObject
	layout      *DescriptorSetLayout
	pool        *DescriptorPool
	bufferInfos metadata.BindingMap[metadata.DescriptorBufferInfo]
	imageInfos  metadata.BindingMap[metadata.DescriptorImageInfo]
}

func (s *DescriptorSet) Layout() *DescriptorSetLayout { return s.layout }
func (s *DescriptorSet) Pool() *DescriptorPool        { return s.pool }

func (s *DescriptorSet) BufferInfos() metadata.BindingMap[metadata.DescriptorBufferInfo] {
	return s.bufferInfos
}

func (s *DescriptorSet) ImageInfos() metadata.BindingMap[metadata.DescriptorImageInfo] {
	return s.imageInfos
}

func cloneBindingMap[T any](m metadata.BindingMap[T]) metadata.BindingMap[T] {
	if m == nil {
		return nil
	}
	out := make(metadata.BindingMap[T], len(m))
	for binding, elements := range m {
		out[binding] = maps.Clone(elements)
	}
	return out
}

type RenderPass struct {
	cachedObject
	attachments      []metadata.Attachment
	loadStoreInfos   []metadata.LoadStoreInfo
	subpasses        []metadata.SubpassInfo
	colorOutputCount []uint32
}

func (p *RenderPass) Attachments() []metadata.Attachment       { return p.attachments }
func (p *RenderPass) LoadStoreInfos() []metadata.LoadStoreInfo { return p.loadStoreInfos }
func (p *RenderPass) Subpasses() []metadata.SubpassInfo        { return p.subpasses }

// ColorOutputCount is the number of color attachments written by a subpass.
func (p *RenderPass) ColorOutputCount(subpass uint32) uint32 {
	if int(subpass) >= len(p.colorOutputCount) {
		return 0
	}
	return p.colorOutputCount[subpass]
}

type Framebuffer struct {
	cachedObject
	renderPass *RenderPass
	extent     metadata.Extent2D
	views      []metadata.Handle
}

func (f *Framebuffer) RenderPass() *RenderPass   { return f.renderPass }
func (f *Framebuffer) Extent() metadata.Extent2D { return f.extent }
func (f *Framebuffer) Views() []metadata.Handle  { return f.views }

type GraphicsPipeline struct {
	cachedObject
	state PipelineState
}

// State returns a copy of the state the pipeline was built from.
func (p *GraphicsPipeline) State() *PipelineState {
	return p.state.Clone()
}

type ComputePipeline struct {
	cachedObject
	state PipelineState
}

func (p *ComputePipeline) State() *PipelineState {
	return p.state.Clone()
}
