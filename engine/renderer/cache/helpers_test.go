package cache

import (
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/headless"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newTestCache(t *testing.T, config ResourceCacheConfig) (*ResourceCache, *headless.Device) {
	t.Helper()
	device := headless.NewDevice()
	c, err := NewResourceCache(device, config)
	require.NoError(t, err)
	return c, device
}

func vertexSource() *metadata.ShaderSource {
	return metadata.NewShaderSource("forward.vert", []byte("vertex shader code"),
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeInput, Location: 0, VecSize: 3, Name: "position"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeOutput, Location: 0, VecSize: 2, Name: "uv"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeBufferUniform, Set: 0, Binding: 0, Size: 64, Name: "GlobalUniform"},
	)
}

func fragmentSource() *metadata.ShaderSource {
	return metadata.NewShaderSource("forward.frag", []byte("fragment shader code"),
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeInput, Location: 0, VecSize: 2, Name: "uv"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeOutput, Location: 0, VecSize: 4, Name: "color"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeBufferUniform, Set: 0, Binding: 0, Size: 64, Name: "GlobalUniform"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeImageSampler, Set: 1, Binding: 0, Name: "albedo"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypePushConstant, Offset: 0, Size: 16, Name: "Material"},
	)
}

func computeSource() *metadata.ShaderSource {
	return metadata.NewShaderSource("particles.comp", []byte("compute shader code"),
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeBufferStorage, Set: 0, Binding: 0, Name: "Particles"},
		metadata.ShaderResource{Type: metadata.ShaderResourceTypeSpecializationConstant, ConstantID: 0, Size: 4, Name: "LOCAL_SIZE"},
	)
}

func forwardAttachments() ([]metadata.Attachment, []metadata.LoadStoreInfo, []metadata.SubpassInfo) {
	attachments := []metadata.Attachment{
		metadata.NewAttachment(metadata.FormatR8G8B8A8Srgb, metadata.SampleCount1, metadata.ImageUsageColorAttachment),
		metadata.NewAttachment(metadata.FormatD32Sfloat, metadata.SampleCount1, metadata.ImageUsageDepthStencilAttachment),
	}
	loadStore := []metadata.LoadStoreInfo{
		{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpStore},
		{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpDontCare},
	}
	subpasses := []metadata.SubpassInfo{{OutputAttachments: []uint32{0}, DebugName: "forward"}}
	return attachments, loadStore, subpasses
}

type testScene struct {
	vertex     *ShaderModule
	fragment   *ShaderModule
	layout     *PipelineLayout
	renderPass *RenderPass
	state      *PipelineState
	pipeline   *GraphicsPipeline
}

func forwardState(layout *PipelineLayout, renderPass *RenderPass) *PipelineState {
	state := NewPipelineState()
	state.PipelineLayout = layout
	state.RenderPass = renderPass
	state.VertexInput = metadata.VertexInputState{
		Bindings:   []metadata.VertexInputBindingDescription{{Binding: 0, Stride: 12}},
		Attributes: []metadata.VertexInputAttributeDescription{{Location: 0, Format: metadata.FormatR32G32B32Sfloat}},
	}
	state.ColorBlend.Attachments = []metadata.ColorBlendAttachmentState{metadata.DefaultColorBlendAttachmentState()}
	SetSpecializationConstant(state, 0, uint32(4))
	return state
}

func buildScene(t *testing.T, c *ResourceCache) *testScene {
	t.Helper()
	var (
		s   testScene
		err error
	)
	s.vertex, err = c.RequestShaderModule(metadata.ShaderStageVertex, vertexSource(), "main", nil)
	require.NoError(t, err)
	s.fragment, err = c.RequestShaderModule(metadata.ShaderStageFragment, fragmentSource(), "main", nil)
	require.NoError(t, err)
	s.layout, err = c.RequestPipelineLayout([]*ShaderModule{s.vertex, s.fragment})
	require.NoError(t, err)
	s.renderPass, err = c.RequestRenderPass(forwardAttachments())
	require.NoError(t, err)
	s.state = forwardState(s.layout, s.renderPass)
	s.pipeline, err = c.RequestGraphicsPipeline(s.state)
	require.NoError(t, err)
	return &s
}
