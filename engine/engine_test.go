package engine

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/headless"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Warmup.Path = filepath.Join(t.TempDir(), "warmup", "cache.data")
	cfg.Shaders.Directory = ""
	return cfg
}

func prepareTriangle(e *Engine) error {
	rc := e.ResourceCache()
	vert, err := rc.RequestShaderModule(metadata.ShaderStageVertex,
		metadata.NewShaderSource("triangle.vert", []byte("void main() {}")), "main", nil)
	if err != nil {
		return err
	}
	frag, err := rc.RequestShaderModule(metadata.ShaderStageFragment,
		metadata.NewShaderSource("triangle.frag", []byte("void main() { color = vec4(1); }"),
			metadata.ShaderResource{Type: metadata.ShaderResourceTypeOutput, Location: 0, VecSize: 4, Name: "color"}),
		"main", nil)
	if err != nil {
		return err
	}
	layout, err := rc.RequestPipelineLayout([]*cache.ShaderModule{vert, frag})
	if err != nil {
		return err
	}
	renderPass, err := rc.RequestRenderPass(
		[]metadata.Attachment{metadata.NewAttachment(metadata.FormatB8G8R8A8Srgb, metadata.SampleCount1, metadata.ImageUsageColorAttachment)},
		[]metadata.LoadStoreInfo{{LoadOp: metadata.LoadOpClear, StoreOp: metadata.StoreOpStore}},
		nil)
	if err != nil {
		return err
	}
	state := cache.NewPipelineState()
	state.PipelineLayout = layout
	state.RenderPass = renderPass
	state.ColorBlend.Attachments = []metadata.ColorBlendAttachmentState{metadata.DefaultColorBlendAttachmentState()}
	_, err = rc.RequestGraphicsPipeline(state)
	return err
}

func newGame(cfg *core.Config) *Game {
	return &Game{
		ApplicationConfig: &ApplicationConfig{Name: "test", Config: cfg},
		FnPrepare:         prepareTriangle,
	}
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, headless.NewDevice())
	assert.Error(t, err)

	_, err = New(newGame(testConfig(t)), nil)
	assert.ErrorIs(t, err, core.ErrNilDevice)
}

func TestEngineStages(t *testing.T) {
	e, err := New(newGame(testConfig(t)), headless.NewDevice())
	require.NoError(t, err)
	assert.Equal(t, EngineStageUninitialized, e.Stage())

	assert.ErrorIs(t, e.Run(), ErrEngineStage)
	assert.NoError(t, e.Shutdown())

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.ErrorIs(t, e.Initialize(), ErrEngineStage)

	require.NoError(t, e.Run())
	assert.Equal(t, EngineStageRunning, e.Stage())

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.NoError(t, e.Shutdown())
}

func TestEngineRestartIsWarm(t *testing.T) {
	cfg := testConfig(t)

	cold := headless.NewDevice()
	e, err := New(newGame(cfg), cold)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.False(t, e.Warm())
	require.NoError(t, e.Run())
	require.NoError(t, e.Shutdown())
	assert.FileExists(t, cfg.Warmup.Path)

	// Shutdown released everything the first engine built.
	assert.Zero(t, cold.Live())
	assert.Zero(t, cold.PipelineCaches())
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg.Warmup.Path), "pipeline_cache.data"))

	warm := headless.NewDevice()
	e, err = New(newGame(cfg), warm)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.True(t, e.Warm())

	// The pipeline exists before the application asks for it.
	assert.Equal(t, 1, e.ResourceCache().State()[metadata.ResourceKindGraphicsPipeline])
	assert.Equal(t, 1, warm.PipelineCaches())
	assert.NotEqual(t, metadata.NullHandle, e.ResourceCache().PipelineCache())

	require.NoError(t, e.Run())
	m := e.ResourceCache().Metrics().Snapshot(metadata.ResourceKindGraphicsPipeline.String())
	assert.EqualValues(t, 1, m.Misses)
	assert.EqualValues(t, 1, m.Hits)
	assert.Equal(t, cold.Created(metadata.ResourceKindGraphicsPipeline), warm.Created(metadata.ResourceKindGraphicsPipeline))
	require.NoError(t, e.Shutdown())
}

func TestEngineWithoutWarmup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Warmup.Enabled = false

	e, err := New(newGame(cfg), headless.NewDevice())
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.Nil(t, e.SystemManager().WarmupSystem())
	require.NoError(t, e.Run())
	assert.NoError(t, e.Checkpoint(nil))
	require.NoError(t, e.Shutdown())
	assert.NoFileExists(t, cfg.Warmup.Path)
}

func TestEngineCheckpoint(t *testing.T) {
	cfg := testConfig(t)

	e, err := New(newGame(cfg), headless.NewDevice())
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())

	done := make(chan error, 1)
	require.NoError(t, e.Checkpoint(func(err error) { done <- err }))
	require.NoError(t, <-done)
	assert.FileExists(t, cfg.Warmup.Path)
	require.NoError(t, e.Shutdown())
}

func TestEngineMissingShaderDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Shaders.Directory = filepath.Join(t.TempDir(), "missing")

	e, err := New(newGame(cfg), headless.NewDevice())
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.Nil(t, e.ShaderLibrary())
	require.NoError(t, e.Shutdown())
}

func TestEngineLoadsConfigFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.DescriptorPoolMaxSets = 4
	path := filepath.Join(t.TempDir(), "pipecache.toml")
	require.NoError(t, cfg.Save(path))

	e, err := New(&Game{ApplicationConfig: &ApplicationConfig{Name: "test", ConfigPath: path}}, headless.NewDevice())
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.EqualValues(t, 4, e.Config().Cache.DescriptorPoolMaxSets)
	require.NoError(t, e.Shutdown())
}
