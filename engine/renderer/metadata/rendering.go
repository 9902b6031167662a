package metadata

/** @brief Pixel formats. Values match VkFormat for the formats in use. */
type Format uint32

const (
	FormatUndefined         Format = 0
	FormatR8G8B8A8Unorm     Format = 37
	FormatR8G8B8A8Srgb      Format = 43
	FormatB8G8R8A8Unorm     Format = 44
	FormatB8G8R8A8Srgb      Format = 50
	FormatA2B10G10R10Unorm  Format = 64
	FormatR16G16B16A16Float Format = 97
	FormatR32Uint           Format = 98
	FormatR32Sfloat         Format = 100
	FormatR32G32Sfloat      Format = 103
	FormatR32G32B32Sfloat   Format = 106
	FormatR32G32B32A32Float Format = 109
	FormatD16Unorm          Format = 124
	FormatD32Sfloat         Format = 126
	FormatD24UnormS8Uint    Format = 129
	FormatD32SfloatS8Uint   Format = 130
)

// IsDepthFormat reports whether the format carries a depth component.
func (f Format) IsDepthFormat() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// IsDepthStencilFormat reports whether the format carries a stencil component too.
func (f Format) IsDepthStencilFormat() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32SfloatS8Uint
}

/** @brief Values match VkSampleCountFlagBits. */
type SampleCount uint32

const (
	SampleCount1  SampleCount = 0x01
	SampleCount2  SampleCount = 0x02
	SampleCount4  SampleCount = 0x04
	SampleCount8  SampleCount = 0x08
	SampleCount16 SampleCount = 0x10
)

/** @brief Values match VkImageUsageFlagBits. */
type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
	ImageUsageTransientAttachment    ImageUsage = 0x40
	ImageUsageInputAttachment        ImageUsage = 0x80
)

/** @brief Values match VkImageLayout. */
type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

/** @brief Values match VkAttachmentLoadOp. */
type LoadOp uint32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

/** @brief Values match VkAttachmentStoreOp. */
type StoreOp uint32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

/** @brief Description of render pass attachments. */
type Attachment struct {
	Format        Format
	Samples       SampleCount
	Usage         ImageUsage
	InitialLayout ImageLayout
}

func NewAttachment(format Format, samples SampleCount, usage ImageUsage) Attachment {
	return Attachment{
		Format:        format,
		Samples:       samples,
		Usage:         usage,
		InitialLayout: ImageLayoutUndefined,
	}
}

/** @brief Load and store operations of one attachment. */
type LoadStoreInfo struct {
	LoadOp  LoadOp
	StoreOp StoreOp
}

/** @brief Attachment indices a subpass reads from and writes to. */
type SubpassInfo struct {
	InputAttachments              []uint32
	OutputAttachments             []uint32
	ColorResolveAttachments       []uint32
	DisableDepthStencilAttachment bool
	DepthStencilResolveAttachment uint32
	DebugName                     string
}

/** @brief Everything a device needs to create a render pass. */
type RenderPassCreateInfo struct {
	Attachments    []Attachment
	LoadStoreInfos []LoadStoreInfo
	Subpasses      []SubpassInfo
}

/**
 * @brief A set of image views rendered into. The views are owned by the
 * caller; the cache only references them.
 */
type RenderTarget struct {
	Extent      Extent2D
	Views       []Handle
	Attachments []Attachment
}

/** @brief Everything a device needs to create a framebuffer. */
type FramebufferCreateInfo struct {
	RenderPass  Handle
	Attachments []Handle
	Extent      Extent2D
	Layers      uint32
}
