package headless

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ cache.Device              = (*Device)(nil)
	_ cache.PipelineCacheDevice = (*Device)(nil)
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestDestroyHandleMisuse(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() { core.SetLogOutput(io.Discard) })

	d := NewDevice()
	pass, err := d.CreateRenderPass(&metadata.RenderPassCreateInfo{})
	require.NoError(t, err)

	d.DestroyHandle(metadata.ResourceKindFramebuffer, pass)
	d.DestroyHandle(metadata.ResourceKindRenderPass, pass)
	d.DestroyHandle(metadata.ResourceKindRenderPass, pass)

	errs := d.Errors()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrUnknownHandle)
	assert.ErrorIs(t, errs[1], ErrDoubleDestroy)
	assert.True(t, d.Destroyed(pass))

	for _, err := range errs {
		assert.Contains(t, buf.String(), err.Error())
	}
	assert.NotContains(t, buf.String(), "%!")
}

func TestPipelineCacheRecordsCompiles(t *testing.T) {
	d := NewDevice()
	pc, err := d.CreatePipelineCache([]byte{0xAA})
	require.NoError(t, err)

	module, err := d.CreateShaderModule(&metadata.ShaderModuleCreateInfo{
		Stage:  metadata.ShaderStageCompute,
		Source: metadata.NewShaderSource("particles.comp", []byte("void main() {}")),
	})
	require.NoError(t, err)
	layout, err := d.CreatePipelineLayout(&metadata.PipelineLayoutCreateInfo{})
	require.NoError(t, err)

	info := &metadata.ComputePipelineCreateInfo{
		PipelineCache: pc,
		Layout:        layout,
		Stage:         metadata.PipelineShaderStage{Stage: metadata.ShaderStageCompute, Module: module},
	}
	_, err = d.CreateComputePipeline(info)
	require.NoError(t, err)

	// Pipelines built without a cache leave it untouched.
	info.PipelineCache = metadata.NullHandle
	_, err = d.CreateComputePipeline(info)
	require.NoError(t, err)

	data, err := d.GetPipelineCacheData(pc)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, byte(metadata.ResourceKindComputePipeline)}, data)

	// Pipeline caches are not resource objects.
	assert.Equal(t, 4, d.Live())
	assert.Equal(t, 1, d.PipelineCaches())

	d.DestroyPipelineCache(pc)
	assert.Zero(t, d.PipelineCaches())
	_, err = d.GetPipelineCacheData(pc)
	assert.ErrorIs(t, err, ErrUnknownHandle)

	d.DestroyPipelineCache(pc)
	require.Len(t, d.Errors(), 1)
	assert.ErrorIs(t, d.Errors()[0], ErrUnknownHandle)
}
