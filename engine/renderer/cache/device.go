package cache

import (
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// Device is the construction primitive the cache builds objects with. A
// device reports failure through the returned error and must not retain
// the create-info values after returning.
type Device interface {
	CreateShaderModule(info *metadata.ShaderModuleCreateInfo) (metadata.Handle, error)
	CreateDescriptorSetLayout(info *metadata.DescriptorSetLayoutCreateInfo) (metadata.Handle, error)
	CreatePipelineLayout(info *metadata.PipelineLayoutCreateInfo) (metadata.Handle, error)
	CreateDescriptorPool(info *metadata.DescriptorPoolCreateInfo) (metadata.Handle, error)
	// AllocateDescriptorSet allocates a set from pool. The device returns
	// an error when the pool is exhausted.
	AllocateDescriptorSet(pool, layout metadata.Handle) (metadata.Handle, error)
	UpdateDescriptorSets(writes []metadata.WriteDescriptorSet) error
	CreateRenderPass(info *metadata.RenderPassCreateInfo) (metadata.Handle, error)
	CreateGraphicsPipeline(info *metadata.GraphicsPipelineCreateInfo) (metadata.Handle, error)
	CreateComputePipeline(info *metadata.ComputePipelineCreateInfo) (metadata.Handle, error)
	CreateFramebuffer(info *metadata.FramebufferCreateInfo) (metadata.Handle, error)
	// DestroyHandle releases a handle created by this device. Descriptor
	// sets are released together with their pool and are never passed here.
	DestroyHandle(kind metadata.ResourceKind, handle metadata.Handle)
}

// PipelineCacheDevice is implemented by devices backed by a driver
// pipeline cache. The warmup system persists the cache data next to the
// resource record when the device provides it.
type PipelineCacheDevice interface {
	// CreatePipelineCache creates a cache seeded with data returned by an
	// earlier GetPipelineCacheData. Empty data creates an empty cache.
	CreatePipelineCache(initialData []byte) (metadata.Handle, error)
	GetPipelineCacheData(handle metadata.Handle) ([]byte, error)
	DestroyPipelineCache(handle metadata.Handle)
}
