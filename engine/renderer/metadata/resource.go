package metadata

import "fmt"

/** @brief Opaque handle of an object owned by a device. Zero is the null handle. */
type Handle uint64

const NullHandle Handle = 0

/** @brief The fixed set of cacheable object kinds. The value doubles as the record tag. */
type ResourceKind uint8

const (
	ResourceKindShaderModule ResourceKind = iota
	ResourceKindPipelineLayout
	ResourceKindDescriptorSetLayout
	ResourceKindDescriptorPool
	ResourceKindDescriptorSet
	ResourceKindRenderPass
	ResourceKindFramebuffer
	ResourceKindGraphicsPipeline
	ResourceKindComputePipeline
	/** @brief Number of known kinds, not a kind itself. */
	ResourceKindCount
)

var resourceKindNames = [...]string{
	ResourceKindShaderModule:        "shader module",
	ResourceKindPipelineLayout:      "pipeline layout",
	ResourceKindDescriptorSetLayout: "descriptor set layout",
	ResourceKindDescriptorPool:      "descriptor pool",
	ResourceKindDescriptorSet:       "descriptor set",
	ResourceKindRenderPass:          "render pass",
	ResourceKindFramebuffer:         "framebuffer",
	ResourceKindGraphicsPipeline:    "graphics pipeline",
	ResourceKindComputePipeline:     "compute pipeline",
}

func (k ResourceKind) String() string {
	if k < ResourceKindCount {
		return resourceKindNames[k]
	}
	return fmt.Sprintf("unknown resource kind (%d)", uint8(k))
}

func (k ResourceKind) Valid() bool {
	return k < ResourceKindCount
}

/** @brief A two dimensional size in pixels. */
type Extent2D struct {
	Width  uint32
	Height uint32
}
