package metadata

/** @brief Values match VkDescriptorType. */
type DescriptorType uint32

const (
	DescriptorTypeSampler              DescriptorType = 0
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeSampledImage         DescriptorType = 2
	DescriptorTypeStorageImage         DescriptorType = 3
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
	DescriptorTypeUniformBufferDynamic DescriptorType = 8
	DescriptorTypeStorageBufferDynamic DescriptorType = 9
	DescriptorTypeInputAttachment      DescriptorType = 10
)

// IsBuffer reports whether descriptors of this type point at buffers.
func (t DescriptorType) IsBuffer() bool {
	switch t {
	case DescriptorTypeUniformBuffer, DescriptorTypeStorageBuffer,
		DescriptorTypeUniformBufferDynamic, DescriptorTypeStorageBufferDynamic:
		return true
	}
	return false
}

// DescriptorTypeOf maps a shader resource to the descriptor type that binds it.
// The second return is false for resources that have no descriptor.
func DescriptorTypeOf(resource ShaderResource) (DescriptorType, bool) {
	switch resource.Type {
	case ShaderResourceTypeInputAttachment:
		return DescriptorTypeInputAttachment, true
	case ShaderResourceTypeImage:
		return DescriptorTypeSampledImage, true
	case ShaderResourceTypeImageSampler:
		return DescriptorTypeCombinedImageSampler, true
	case ShaderResourceTypeImageStorage:
		return DescriptorTypeStorageImage, true
	case ShaderResourceTypeSampler:
		return DescriptorTypeSampler, true
	case ShaderResourceTypeBufferUniform:
		if resource.Dynamic {
			return DescriptorTypeUniformBufferDynamic, true
		}
		return DescriptorTypeUniformBuffer, true
	case ShaderResourceTypeBufferStorage:
		if resource.Dynamic {
			return DescriptorTypeStorageBufferDynamic, true
		}
		return DescriptorTypeStorageBuffer, true
	}
	return 0, false
}

type DescriptorSetLayoutBinding struct {
	Binding         uint32
	DescriptorType  DescriptorType
	DescriptorCount uint32
	StageFlags      ShaderStage
}

/** @brief Everything a device needs to create a descriptor set layout. */
type DescriptorSetLayoutCreateInfo struct {
	SetIndex uint32
	Bindings []DescriptorSetLayoutBinding
}

type PushConstantRange struct {
	StageFlags ShaderStage
	Offset     uint32
	Size       uint32
}

/** @brief Everything a device needs to create a pipeline layout. */
type PipelineLayoutCreateInfo struct {
	SetLayouts         []Handle
	PushConstantRanges []PushConstantRange
}

type DescriptorPoolSize struct {
	Type            DescriptorType
	DescriptorCount uint32
}

/** @brief Everything a device needs to create a descriptor pool. */
type DescriptorPoolCreateInfo struct {
	MaxSets   uint32
	PoolSizes []DescriptorPoolSize
}

type DescriptorBufferInfo struct {
	Buffer Handle
	Offset uint64
	Range  uint64
}

type DescriptorImageInfo struct {
	Sampler     Handle
	ImageView   Handle
	ImageLayout ImageLayout
}

/** @brief Infos keyed by binding and then by array element. */
type BindingMap[T any] map[uint32]map[uint32]T

/** @brief One descriptor write. Exactly one of the info fields is set. */
type WriteDescriptorSet struct {
	DstSet          Handle
	DstBinding      uint32
	DstArrayElement uint32
	DescriptorType  DescriptorType
	BufferInfo      *DescriptorBufferInfo
	ImageInfo       *DescriptorImageInfo
}
