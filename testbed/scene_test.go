package testbed

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/pipecache/engine"
	"github.com/spaghettifunk/pipecache/engine/assets"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/headless"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shaderDirectory = "assets/shaders"

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newScene(t *testing.T) (*Scene, *cache.ResourceCache, *headless.Device) {
	t.Helper()
	device := headless.NewDevice()
	rc, err := cache.NewResourceCache(device, cache.ResourceCacheConfig{DescriptorPoolMaxSets: 2})
	require.NoError(t, err)
	sl, err := assets.NewShaderLibrary(shaderDirectory)
	require.NoError(t, err)

	s, err := BuildScene(rc, sl, DefaultSceneConfig())
	require.NoError(t, err)
	return s, rc, device
}

func TestBuildScene(t *testing.T) {
	s, rc, device := newScene(t)

	state := rc.State()
	assert.Equal(t, 3, state[metadata.ResourceKindShaderModule])
	assert.Equal(t, 2, state[metadata.ResourceKindPipelineLayout])
	assert.Equal(t, 1, state[metadata.ResourceKindRenderPass])
	assert.Equal(t, 3, state[metadata.ResourceKindFramebuffer])
	assert.Equal(t, 2, state[metadata.ResourceKindGraphicsPipeline])
	assert.Equal(t, 1, state[metadata.ResourceKindComputePipeline])
	assert.Equal(t, 5, state[metadata.ResourceKindDescriptorSet])

	assert.NotSame(t, s.OpaquePipeline(), s.TransparentPipeline())
	assert.Same(t, s.RenderPass(), s.Framebuffers()[0].RenderPass())
	assert.Len(t, s.MaterialSets(), 3)

	// Three material sets from pools of two sets each.
	assert.Len(t, s.MaterialSets()[0].Pool().Pools(), 2)

	info, ok := device.ComputePipelineInfo(s.ParticlePipeline().Handle())
	require.True(t, ok)
	assert.Equal(t, metadata.ShaderStageCompute, info.Stage.Stage)
	assert.Equal(t, []byte{64, 0, 0, 0}, info.SpecializationConstants[0])

	opaque, ok := device.GraphicsPipelineInfo(s.OpaquePipeline().Handle())
	require.True(t, ok)
	assert.True(t, opaque.DepthStencil.DepthWriteEnable)
	transparent, ok := device.GraphicsPipelineInfo(s.TransparentPipeline().Handle())
	require.True(t, ok)
	assert.False(t, transparent.DepthStencil.DepthWriteEnable)
	assert.True(t, transparent.ColorBlend.Attachments[0].BlendEnable)
}

func TestBuildSceneTwiceHitsCache(t *testing.T) {
	s, rc, device := newScene(t)
	sl, err := assets.NewShaderLibrary(shaderDirectory)
	require.NoError(t, err)

	created := device.CreationOrder()
	again, err := BuildScene(rc, sl, DefaultSceneConfig())
	require.NoError(t, err)

	assert.Equal(t, created, device.CreationOrder())
	assert.Same(t, s.OpaquePipeline(), again.OpaquePipeline())
	assert.Same(t, s.ParticleSet(), again.ParticleSet())
}

func TestBuildSceneRequiresDependencies(t *testing.T) {
	_, err := BuildScene(nil, nil, DefaultSceneConfig())
	assert.ErrorIs(t, err, core.ErrNilDependency)
}

func TestSceneResize(t *testing.T) {
	s, rc, device := newScene(t)
	old := s.Framebuffers()

	require.NoError(t, s.Resize(rc, metadata.Extent2D{Width: 1920, Height: 1080}, []metadata.Handle{0x1201, 0x1202}, 0x1300))

	assert.Len(t, s.Framebuffers(), 2)
	assert.Equal(t, 2, rc.State()[metadata.ResourceKindFramebuffer])
	for _, fb := range old {
		assert.True(t, device.Destroyed(fb.Handle()))
	}
	assert.Equal(t, metadata.Extent2D{Width: 1920, Height: 1080}, s.Framebuffers()[0].Extent())
}

func TestSceneReplaceTextures(t *testing.T) {
	s, rc, device := newScene(t)
	before := len(device.Writes())

	require.NoError(t, s.ReplaceTextures(rc, []metadata.Handle{0x4002}, []metadata.Handle{0x5002}))

	writes := device.Writes()[before:]
	require.Len(t, writes, 1)
	assert.Equal(t, s.MaterialSets()[1].Handle(), writes[0].DstSet)
	assert.Equal(t, metadata.Handle(0x5002), writes[0].ImageInfo.ImageView)
	assert.Equal(t, metadata.Handle(0x5002), s.config.AlbedoViews[1])
}

func TestTestGameRestartIsWarm(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Warmup.Path = filepath.Join(t.TempDir(), "cache.data")
	cfg.Shaders.Directory = shaderDirectory

	run := func() (*TestGame, *engine.Engine) {
		tg := NewTestGame("", cfg)
		e, err := engine.New(tg.Game, headless.NewDevice())
		require.NoError(t, err)
		require.NoError(t, e.Initialize())
		require.NoError(t, e.Run())
		return tg, e
	}

	tg, e := run()
	require.NotNil(t, tg.Scene())
	assert.False(t, e.Warm())
	require.NoError(t, e.Shutdown())

	tg, e = run()
	assert.True(t, e.Warm())
	m := e.ResourceCache().Metrics().Snapshot(metadata.ResourceKindGraphicsPipeline.String())
	assert.EqualValues(t, 2, m.Misses)
	assert.EqualValues(t, 2, m.Hits)
	require.NotNil(t, tg.Scene())
	require.NoError(t, e.Shutdown())
	assert.Nil(t, tg.Scene())
}

func TestTestGameNeedsShaders(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Warmup.Enabled = false
	cfg.Shaders.Directory = ""

	tg := NewTestGame("", cfg)
	e, err := engine.New(tg.Game, headless.NewDevice())
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
}
