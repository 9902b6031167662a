package metadata

/** @brief Values match VkVertexInputRate. */
type VertexInputRate uint32

const (
	VertexInputRateVertex   VertexInputRate = 0
	VertexInputRateInstance VertexInputRate = 1
)

type VertexInputBindingDescription struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

type VertexInputAttributeDescription struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type VertexInputState struct {
	Bindings   []VertexInputBindingDescription
	Attributes []VertexInputAttributeDescription
}

/** @brief Values match VkPrimitiveTopology. */
type PrimitiveTopology uint32

const (
	PrimitiveTopologyPointList     PrimitiveTopology = 0
	PrimitiveTopologyLineList      PrimitiveTopology = 1
	PrimitiveTopologyLineStrip     PrimitiveTopology = 2
	PrimitiveTopologyTriangleList  PrimitiveTopology = 3
	PrimitiveTopologyTriangleStrip PrimitiveTopology = 4
	PrimitiveTopologyTriangleFan   PrimitiveTopology = 5
)

type InputAssemblyState struct {
	Topology               PrimitiveTopology
	PrimitiveRestartEnable bool
}

func DefaultInputAssemblyState() InputAssemblyState {
	return InputAssemblyState{Topology: PrimitiveTopologyTriangleList}
}

/** @brief Values match VkPolygonMode. */
type PolygonMode uint32

const (
	PolygonModeFill  PolygonMode = 0
	PolygonModeLine  PolygonMode = 1
	PolygonModePoint PolygonMode = 2
)

/** @brief Values match VkCullModeFlagBits. */
type CullMode uint32

const (
	CullModeNone         CullMode = 0
	CullModeFront        CullMode = 1
	CullModeBack         CullMode = 2
	CullModeFrontAndBack CullMode = 3
)

/** @brief Values match VkFrontFace. */
type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type RasterizationState struct {
	DepthClampEnable        bool
	RasterizerDiscardEnable bool
	PolygonMode             PolygonMode
	CullMode                CullMode
	FrontFace               FrontFace
	DepthBiasEnable         bool
}

func DefaultRasterizationState() RasterizationState {
	return RasterizationState{
		PolygonMode: PolygonModeFill,
		CullMode:    CullModeBack,
		FrontFace:   FrontFaceCounterClockwise,
	}
}

type ViewportState struct {
	ViewportCount uint32
	ScissorCount  uint32
}

func DefaultViewportState() ViewportState {
	return ViewportState{ViewportCount: 1, ScissorCount: 1}
}

type MultisampleState struct {
	RasterizationSamples  SampleCount
	SampleShadingEnable   bool
	MinSampleShading      float32
	SampleMask            uint32
	AlphaToCoverageEnable bool
	AlphaToOneEnable      bool
}

func DefaultMultisampleState() MultisampleState {
	return MultisampleState{RasterizationSamples: SampleCount1}
}

/** @brief Values match VkCompareOp. */
type CompareOp uint32

const (
	CompareOpNever          CompareOp = 0
	CompareOpLess           CompareOp = 1
	CompareOpEqual          CompareOp = 2
	CompareOpLessOrEqual    CompareOp = 3
	CompareOpGreater        CompareOp = 4
	CompareOpNotEqual       CompareOp = 5
	CompareOpGreaterOrEqual CompareOp = 6
	CompareOpAlways         CompareOp = 7
)

/** @brief Values match VkStencilOp. */
type StencilOp uint32

const (
	StencilOpKeep    StencilOp = 0
	StencilOpZero    StencilOp = 1
	StencilOpReplace StencilOp = 2
)

type StencilOpState struct {
	FailOp      StencilOp
	PassOp      StencilOp
	DepthFailOp StencilOp
	CompareOp   CompareOp
}

func DefaultStencilOpState() StencilOpState {
	return StencilOpState{
		FailOp:      StencilOpReplace,
		PassOp:      StencilOpReplace,
		DepthFailOp: StencilOpReplace,
		CompareOp:   CompareOpNever,
	}
}

type DepthStencilState struct {
	DepthTestEnable       bool
	DepthWriteEnable      bool
	DepthCompareOp        CompareOp
	DepthBoundsTestEnable bool
	StencilTestEnable     bool
	Front                 StencilOpState
	Back                  StencilOpState
}

// DefaultDepthStencilState uses reversed depth: greater or equal passes.
func DefaultDepthStencilState() DepthStencilState {
	return DepthStencilState{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthCompareOp:   CompareOpGreaterOrEqual,
		Front:            DefaultStencilOpState(),
		Back:             DefaultStencilOpState(),
	}
}

/** @brief Values match VkBlendFactor for the factors in use. */
type BlendFactor uint32

const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
)

/** @brief Values match VkBlendOp. */
type BlendOp uint32

const (
	BlendOpAdd      BlendOp = 0
	BlendOpSubtract BlendOp = 1
)

/** @brief Values match VkColorComponentFlagBits. */
type ColorComponent uint32

const (
	ColorComponentR   ColorComponent = 0x1
	ColorComponentG   ColorComponent = 0x2
	ColorComponentB   ColorComponent = 0x4
	ColorComponentA   ColorComponent = 0x8
	ColorComponentAll ColorComponent = 0xF
)

type ColorBlendAttachmentState struct {
	BlendEnable         bool
	SrcColorBlendFactor BlendFactor
	DstColorBlendFactor BlendFactor
	ColorBlendOp        BlendOp
	SrcAlphaBlendFactor BlendFactor
	DstAlphaBlendFactor BlendFactor
	AlphaBlendOp        BlendOp
	ColorWriteMask      ColorComponent
}

func DefaultColorBlendAttachmentState() ColorBlendAttachmentState {
	return ColorBlendAttachmentState{
		SrcColorBlendFactor: BlendFactorOne,
		DstColorBlendFactor: BlendFactorZero,
		ColorBlendOp:        BlendOpAdd,
		SrcAlphaBlendFactor: BlendFactorOne,
		DstAlphaBlendFactor: BlendFactorZero,
		AlphaBlendOp:        BlendOpAdd,
		ColorWriteMask:      ColorComponentAll,
	}
}

type ColorBlendState struct {
	LogicOpEnable bool
	LogicOp       uint32
	Attachments   []ColorBlendAttachmentState
}

/** @brief A shader stage of a pipeline: the stage, its module and entry point. */
type PipelineShaderStage struct {
	Stage      ShaderStage
	Module     Handle
	EntryPoint string
}

/** @brief Everything a device needs to create a graphics pipeline. */
type GraphicsPipelineCreateInfo struct {
	PipelineCache           Handle
	Layout                  Handle
	RenderPass              Handle
	Subpass                 uint32
	Stages                  []PipelineShaderStage
	SpecializationConstants map[uint32][]byte
	VertexInput             VertexInputState
	InputAssembly           InputAssemblyState
	Rasterization           RasterizationState
	Viewport                ViewportState
	Multisample             MultisampleState
	DepthStencil            DepthStencilState
	ColorBlend              ColorBlendState
}

/** @brief Everything a device needs to create a compute pipeline. */
type ComputePipelineCreateInfo struct {
	PipelineCache           Handle
	Layout                  Handle
	Stage                   PipelineShaderStage
	SpecializationConstants map[uint32][]byte
}
