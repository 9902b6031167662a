package cache

import (
	"fmt"
	"slices"
	"sort"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// CacheState is the number of cached objects per kind.
type CacheState map[metadata.ResourceKind]int

func (c *ResourceCache) State() CacheState {
	return CacheState{
		metadata.ResourceKindShaderModule:        c.shaderModules.len(),
		metadata.ResourceKindPipelineLayout:      c.pipelineLayouts.len(),
		metadata.ResourceKindDescriptorSetLayout: c.descriptorSetLayouts.len(),
		metadata.ResourceKindDescriptorPool:      c.descriptorPools.len(),
		metadata.ResourceKindDescriptorSet:       c.descriptorSets.len(),
		metadata.ResourceKindRenderPass:          c.renderPasses.len(),
		metadata.ResourceKindFramebuffer:         c.framebuffers.len(),
		metadata.ResourceKindGraphicsPipeline:    c.graphicsPipelines.len(),
		metadata.ResourceKindComputePipeline:     c.computePipelines.len(),
	}
}

// Total returns the number of cached objects of every kind.
func (s CacheState) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

type handleOwner interface {
	Handle() metadata.Handle
}

func clearTable[T any, PT interface {
	*T
	handleOwner
}](c *ResourceCache, t *table[T]) {
	for _, obj := range t.drain() {
		c.device.DestroyHandle(t.kind, PT(obj).Handle())
	}
}

// ClearPipelines destroys every graphics and compute pipeline.
func (c *ResourceCache) ClearPipelines() {
	c.graphicsPipelines.mu.Lock()
	defer c.graphicsPipelines.mu.Unlock()
	c.computePipelines.mu.Lock()
	defer c.computePipelines.mu.Unlock()

	clearTable(c, c.graphicsPipelines)
	clearTable(c, c.computePipelines)
}

// ClearFramebuffers destroys every framebuffer, typically after a resize.
func (c *ResourceCache) ClearFramebuffers() {
	c.framebuffers.mu.Lock()
	defer c.framebuffers.mu.Unlock()

	clearTable(c, c.framebuffers)
}

// Clear destroys every cached object. Tables are locked dependents first,
// the same order requests nest in, and objects are destroyed in that order.
func (c *ResourceCache) Clear() {
	c.framebuffers.mu.Lock()
	defer c.framebuffers.mu.Unlock()
	c.graphicsPipelines.mu.Lock()
	defer c.graphicsPipelines.mu.Unlock()
	c.computePipelines.mu.Lock()
	defer c.computePipelines.mu.Unlock()
	c.descriptorSets.mu.Lock()
	defer c.descriptorSets.mu.Unlock()
	c.descriptorPools.mu.Lock()
	defer c.descriptorPools.mu.Unlock()
	c.pipelineLayouts.mu.Lock()
	defer c.pipelineLayouts.mu.Unlock()
	c.descriptorSetLayouts.mu.Lock()
	defer c.descriptorSetLayouts.mu.Unlock()
	c.renderPasses.mu.Lock()
	defer c.renderPasses.mu.Unlock()
	c.shaderModules.mu.Lock()
	defer c.shaderModules.mu.Unlock()

	clearTable(c, c.framebuffers)
	clearTable(c, c.graphicsPipelines)
	clearTable(c, c.computePipelines)
	// Sets go away with their pools.
	c.descriptorSets.drain()
	for _, pool := range c.descriptorPools.drain() {
		for _, handle := range pool.Pools() {
			c.device.DestroyHandle(metadata.ResourceKindDescriptorPool, handle)
		}
	}
	clearTable(c, c.pipelineLayouts)
	clearTable(c, c.descriptorSetLayouts)
	clearTable(c, c.renderPasses)
	clearTable(c, c.shaderModules)
}

type viewUpdate struct {
	set     *DescriptorSet
	binding uint32
	element uint32
	info    metadata.DescriptorImageInfo
}

// UpdateDescriptorSets points every cached descriptor set that references
// one of oldViews at the matching entry of newViews. The device is updated
// with a single batch and the touched sets move to the key of their new
// content. If that key is already taken, the existing set is kept and the
// moved one is dropped from the cache.
func (c *ResourceCache) UpdateDescriptorSets(oldViews, newViews []metadata.Handle) error {
	if len(oldViews) != len(newViews) {
		return fmt.Errorf("%w: %d old, %d new", core.ErrViewCountMismatch, len(oldViews), len(newViews))
	}

	t := c.descriptorSets
	t.mu.Lock()
	defer t.mu.Unlock()

	sets := make([]*DescriptorSet, 0, len(t.entries))
	for _, set := range t.entries {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].id < sets[j].id })

	var (
		updates []viewUpdate
		writes  []metadata.WriteDescriptorSet
		// index into updates of every write
		sources []int
		touched []*DescriptorSet
	)
	for _, set := range sets {
		before := len(updates)
		for _, binding := range sortedKeys(set.imageInfos) {
			elements := set.imageInfos[binding]
			for _, element := range sortedKeys(elements) {
				info := elements[element]
				i := slices.Index(oldViews, info.ImageView)
				if i < 0 {
					continue
				}
				info.ImageView = newViews[i]
				updates = append(updates, viewUpdate{set: set, binding: binding, element: element, info: info})

				// Bindings the layout does not use were never written.
				layoutBinding, ok := set.layout.Binding(binding)
				if !ok {
					continue
				}
				writes = append(writes, metadata.WriteDescriptorSet{
					DstSet:          set.handle,
					DstBinding:      binding,
					DstArrayElement: element,
					DescriptorType:  layoutBinding.DescriptorType,
				})
				sources = append(sources, len(updates)-1)
			}
		}
		if len(updates) > before {
			touched = append(touched, set)
		}
	}
	if len(updates) == 0 {
		return nil
	}

	if len(writes) > 0 {
		// updates is complete, its elements no longer move.
		for i := range writes {
			writes[i].ImageInfo = &updates[sources[i]].info
		}
		if err := c.device.UpdateDescriptorSets(writes); err != nil {
			return fmt.Errorf("could not update descriptor sets: %w", err)
		}
	}

	for _, u := range updates {
		u.set.imageInfos[u.binding][u.element] = u.info
	}
	for _, set := range touched {
		delete(t.entries, set.fingerprint)
	}
	for _, set := range touched {
		fingerprint := fingerprintDescriptorSet(set.layout, set.bufferInfos, set.imageInfos)
		if _, ok := t.entries[fingerprint]; ok {
			core.LogWarn("Descriptor set #%d dropped, its updated content is already cached", set.id)
			continue
		}
		set.fingerprint = fingerprint
		t.entries[fingerprint] = set
	}
	core.LogDebug("Updated %d descriptor writes in %d descriptor sets", len(writes), len(touched))
	return nil
}
