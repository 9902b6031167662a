package systems

import (
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/headless"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newCache(t *testing.T) (*cache.ResourceCache, *headless.Device) {
	t.Helper()
	device := headless.NewDevice()
	rc, err := cache.NewResourceCache(device, cache.ResourceCacheConfig{})
	require.NoError(t, err)
	return rc, device
}

// buildTriangle requests the objects of a single colored triangle pass.
func buildTriangle(t *testing.T, rc *cache.ResourceCache) {
	t.Helper()

	vert, err := rc.RequestShaderModule(metadata.ShaderStageVertex,
		metadata.NewShaderSource("triangle.vert", []byte("void main() {}"),
			metadata.ShaderResource{Type: metadata.ShaderResourceTypeInput, Location: 0, VecSize: 3, Name: "position"}),
		"main", nil)
	require.NoError(t, err)
	frag, err := rc.RequestShaderModule(metadata.ShaderStageFragment,
		metadata.NewShaderSource("triangle.frag", []byte("void main() { color = vec4(1); }"),
			metadata.ShaderResource{Type: metadata.ShaderResourceTypeOutput, Location: 0, VecSize: 4, Name: "color"}),
		"main", nil)
	require.NoError(t, err)

	layout, err := rc.RequestPipelineLayout([]*cache.ShaderModule{vert, frag})
	require.NoError(t, err)
	renderPass, err := rc.RequestRenderPass(
		[]metadata.Attachment{metadata.NewAttachment(metadata.FormatB8G8R8A8Srgb, metadata.SampleCount1, metadata.ImageUsageColorAttachment)},
		[]metadata.LoadStoreInfo{{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpStore}},
		nil)
	require.NoError(t, err)

	state := cache.NewPipelineState()
	state.PipelineLayout = layout
	state.RenderPass = renderPass
	state.DepthStencil.DepthTestEnable = false
	state.ColorBlend.Attachments = []metadata.ColorBlendAttachmentState{metadata.DefaultColorBlendAttachmentState()}
	_, err = rc.RequestGraphicsPipeline(state)
	require.NoError(t, err)
}
