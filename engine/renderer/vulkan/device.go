package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

var (
	_ cache.Device              = (*Device)(nil)
	_ cache.PipelineCacheDevice = (*Device)(nil)
)

/**
 * @brief A cache device backed by an application owned Vulkan logical device.
 *
 * Objects created through the device are addressed by opaque handles. Image
 * views, buffers and samplers are owned by the application and must be
 * registered before they can be referenced by a framebuffer or a descriptor
 * write.
 */
type Device struct {
	/** @brief The logical device every object is created on. */
	LogicalDevice vk.Device
	/** @brief Allocation callbacks passed to every create and destroy call. */
	Allocator *vk.AllocationCallbacks

	locks *VulkanLockPool

	mu   sync.RWMutex
	next metadata.Handle

	shaderModules        map[metadata.Handle]vk.ShaderModule
	descriptorSetLayouts map[metadata.Handle]vk.DescriptorSetLayout
	pipelineLayouts      map[metadata.Handle]vk.PipelineLayout
	descriptorPools      map[metadata.Handle]vk.DescriptorPool
	descriptorSets       map[metadata.Handle]allocatedSet
	renderPasses         map[metadata.Handle]vk.RenderPass
	pipelines            map[metadata.Handle]vk.Pipeline
	framebuffers         map[metadata.Handle]vk.Framebuffer
	pipelineCaches       map[metadata.Handle]vk.PipelineCache

	imageViews map[metadata.Handle]vk.ImageView
	buffers    map[metadata.Handle]vk.Buffer
	samplers   map[metadata.Handle]vk.Sampler
}

func NewDevice(logicalDevice vk.Device, allocator *vk.AllocationCallbacks) *Device {
	return &Device{
		LogicalDevice:        logicalDevice,
		Allocator:            allocator,
		locks:                NewVulkanLockPool(),
		shaderModules:        make(map[metadata.Handle]vk.ShaderModule),
		descriptorSetLayouts: make(map[metadata.Handle]vk.DescriptorSetLayout),
		pipelineLayouts:      make(map[metadata.Handle]vk.PipelineLayout),
		descriptorPools:      make(map[metadata.Handle]vk.DescriptorPool),
		descriptorSets:       make(map[metadata.Handle]allocatedSet),
		renderPasses:         make(map[metadata.Handle]vk.RenderPass),
		pipelines:            make(map[metadata.Handle]vk.Pipeline),
		framebuffers:         make(map[metadata.Handle]vk.Framebuffer),
		pipelineCaches:       make(map[metadata.Handle]vk.PipelineCache),
		imageViews:           make(map[metadata.Handle]vk.ImageView),
		buffers:              make(map[metadata.Handle]vk.Buffer),
		samplers:             make(map[metadata.Handle]vk.Sampler),
	}
}

func store[T any](d *Device, table map[metadata.Handle]T, obj T) metadata.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	table[d.next] = obj
	return d.next
}

func lookup[T any](d *Device, table map[metadata.Handle]T, what string, handle metadata.Handle) (T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := table[handle]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s handle %d", what, handle)
	}
	return obj, nil
}

func lookupAll[T any](d *Device, table map[metadata.Handle]T, what string, handles []metadata.Handle) ([]T, error) {
	out := make([]T, len(handles))
	for i, h := range handles {
		obj, err := lookup(d, table, what, h)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

func take[T any](d *Device, table map[metadata.Handle]T, handle metadata.Handle) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := table[handle]
	delete(table, handle)
	return obj, ok
}

// RegisterImageView makes an application owned image view addressable by
// framebuffers and descriptor writes.
func (d *Device) RegisterImageView(view vk.ImageView) metadata.Handle {
	return store(d, d.imageViews, view)
}

func (d *Device) RegisterBuffer(buffer vk.Buffer) metadata.Handle {
	return store(d, d.buffers, buffer)
}

func (d *Device) RegisterSampler(sampler vk.Sampler) metadata.Handle {
	return store(d, d.samplers, sampler)
}

// Unregister forgets an application owned handle. The Vulkan object is not destroyed.
func (d *Device) Unregister(handle metadata.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.imageViews, handle)
	delete(d.buffers, handle)
	delete(d.samplers, handle)
}

// CreatePipelineCache creates a driver pipeline cache, optionally seeded
// with data from a previous GetPipelineCacheData call.
func (d *Device) CreatePipelineCache(initialData []byte) (metadata.Handle, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType:           vk.StructureTypePipelineCacheCreateInfo,
		InitialDataSize: uint64(len(initialData)),
	}
	if len(initialData) > 0 {
		createInfo.PInitialData = unsafe.Pointer(&initialData[0])
	}
	createInfo.Deref()

	var pCache vk.PipelineCache
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreatePipelineCache(d.LogicalDevice, &createInfo, d.Allocator, &pCache)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreatePipelineCache", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.pipelineCaches, pCache), nil
}

// GetPipelineCacheData returns the driver's serialized pipeline cache.
func (d *Device) GetPipelineCacheData(handle metadata.Handle) ([]byte, error) {
	pCache, err := lookup(d, d.pipelineCaches, "pipeline cache", handle)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = d.locks.SafeCall(PipelineManagement, func() error {
		var size uint64
		if result := vk.GetPipelineCacheData(d.LogicalDevice, pCache, &size, nil); !VulkanResultIsSuccess(result) {
			return resultError("vkGetPipelineCacheData", result)
		}
		if size == 0 {
			return nil
		}
		data = make([]byte, size)
		if result := vk.GetPipelineCacheData(d.LogicalDevice, pCache, &size, unsafe.Pointer(&data[0])); !VulkanResultIsSuccess(result) {
			return resultError("vkGetPipelineCacheData", result)
		}
		data = data[:size]
		return nil
	})
	return data, err
}

func (d *Device) DestroyPipelineCache(handle metadata.Handle) {
	if pCache, ok := take(d, d.pipelineCaches, handle); ok {
		_ = d.locks.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipelineCache(d.LogicalDevice, pCache, d.Allocator)
			return nil
		})
	}
}

func (d *Device) pipelineCache(handle metadata.Handle) (vk.PipelineCache, error) {
	if handle == metadata.NullHandle {
		return vk.NullPipelineCache, nil
	}
	return lookup(d, d.pipelineCaches, "pipeline cache", handle)
}

func (d *Device) DestroyHandle(kind metadata.ResourceKind, handle metadata.Handle) {
	var destroy func()
	var group LockGroup

	switch kind {
	case metadata.ResourceKindShaderModule:
		if obj, ok := take(d, d.shaderModules, handle); ok {
			group = ShaderManagement
			destroy = func() { vk.DestroyShaderModule(d.LogicalDevice, obj, d.Allocator) }
		}
	case metadata.ResourceKindDescriptorSetLayout:
		if obj, ok := take(d, d.descriptorSetLayouts, handle); ok {
			group = DescriptorManagement
			destroy = func() { vk.DestroyDescriptorSetLayout(d.LogicalDevice, obj, d.Allocator) }
		}
	case metadata.ResourceKindPipelineLayout:
		if obj, ok := take(d, d.pipelineLayouts, handle); ok {
			group = PipelineManagement
			destroy = func() { vk.DestroyPipelineLayout(d.LogicalDevice, obj, d.Allocator) }
		}
	case metadata.ResourceKindDescriptorPool:
		if obj, ok := take(d, d.descriptorPools, handle); ok {
			d.forgetSets(obj)
			group = DescriptorManagement
			destroy = func() { vk.DestroyDescriptorPool(d.LogicalDevice, obj, d.Allocator) }
		}
	case metadata.ResourceKindRenderPass:
		if obj, ok := take(d, d.renderPasses, handle); ok {
			group = RenderpassManagement
			destroy = func() { vk.DestroyRenderPass(d.LogicalDevice, obj, d.Allocator) }
		}
	case metadata.ResourceKindGraphicsPipeline, metadata.ResourceKindComputePipeline:
		if obj, ok := take(d, d.pipelines, handle); ok {
			group = PipelineManagement
			destroy = func() { vk.DestroyPipeline(d.LogicalDevice, obj, d.Allocator) }
		}
	case metadata.ResourceKindFramebuffer:
		if obj, ok := take(d, d.framebuffers, handle); ok {
			group = FramebufferManagement
			destroy = func() { vk.DestroyFramebuffer(d.LogicalDevice, obj, d.Allocator) }
		}
	}

	if destroy == nil {
		core.LogWarn("Destroying unknown %s handle %d", kind, handle)
		return
	}
	_ = d.locks.SafeCall(group, func() error {
		destroy()
		return nil
	})
}
