package vulkan

import (
	"io"
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	m.Run()
}

func TestBytesToBytecode(t *testing.T) {
	code := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, code)
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
}

func TestResultError(t *testing.T) {
	err := resultError("vkCreateRenderPass", vk.ErrorOutOfPoolMemory)
	assert.ErrorContains(t, err, "vkCreateRenderPass failed with VK_ERROR_OUT_OF_POOL_MEMORY")
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfPoolMemory))
	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.True(t, VulkanResultIsSuccess(vk.PipelineCompileRequired))

	assert.Equal(t, "VkResult(-42)", VulkanResultString(vk.Result(-42)))
}

func TestDeviceRejectsUnknownPipelineCache(t *testing.T) {
	d := NewDevice(nil, nil)

	_, err := d.GetPipelineCacheData(7)
	assert.ErrorContains(t, err, "unknown pipeline cache handle 7")

	pCache, err := d.pipelineCache(metadata.NullHandle)
	require.NoError(t, err)
	assert.Equal(t, vk.NullPipelineCache, pCache)

	// Unknown caches are ignored.
	d.DestroyPipelineCache(7)
}

func TestSpecializationInfo(t *testing.T) {
	assert.Nil(t, specializationInfo(nil))

	info := specializationInfo(map[uint32][]byte{
		7: {1, 0, 0, 0},
		2: {9, 9, 9, 9, 9, 9, 9, 9},
	})
	require.Len(t, info, 1)
	require.Len(t, info[0].PMapEntries, 2)
	assert.Equal(t, uint32(2), info[0].PMapEntries[0].ConstantID)
	assert.Equal(t, uint32(0), info[0].PMapEntries[0].Offset)
	assert.Equal(t, uint32(7), info[0].PMapEntries[1].ConstantID)
	assert.Equal(t, uint32(8), info[0].PMapEntries[1].Offset)
	assert.Equal(t, uint64(12), info[0].DataSize)
}

func TestAttachmentFinalLayout(t *testing.T) {
	tests := []struct {
		name       string
		attachment metadata.Attachment
		expected   vk.ImageLayout
	}{
		{"swapchain", metadata.Attachment{Format: metadata.FormatB8G8R8A8Srgb, InitialLayout: metadata.ImageLayoutPresentSrc}, vk.ImageLayoutPresentSrc},
		{"depth", metadata.NewAttachment(metadata.FormatD32Sfloat, metadata.SampleCount1, metadata.ImageUsageDepthStencilAttachment), vk.ImageLayoutDepthStencilAttachmentOptimal},
		{"sampled", metadata.NewAttachment(metadata.FormatR8G8B8A8Unorm, metadata.SampleCount1, metadata.ImageUsageColorAttachment|metadata.ImageUsageSampled), vk.ImageLayoutShaderReadOnlyOptimal},
		{"color", metadata.NewAttachment(metadata.FormatR8G8B8A8Unorm, metadata.SampleCount1, metadata.ImageUsageColorAttachment), vk.ImageLayoutColorAttachmentOptimal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, attachmentFinalLayout(tt.attachment))
		})
	}
}

func TestAttachmentDescriptionsDefaultLoadStore(t *testing.T) {
	info := &metadata.RenderPassCreateInfo{
		Attachments: []metadata.Attachment{
			metadata.NewAttachment(metadata.FormatR8G8B8A8Unorm, metadata.SampleCount1, metadata.ImageUsageColorAttachment),
			metadata.NewAttachment(metadata.FormatD24UnormS8Uint, metadata.SampleCount1, metadata.ImageUsageDepthStencilAttachment),
		},
		LoadStoreInfos: []metadata.LoadStoreInfo{{LoadOp: metadata.LoadOpLoad, StoreOp: metadata.StoreOpDontCare}},
	}

	descriptions := attachmentDescriptions(info)
	require.Len(t, descriptions, 2)
	assert.Equal(t, vk.AttachmentLoadOpLoad, descriptions[0].LoadOp)
	assert.Equal(t, vk.AttachmentStoreOpDontCare, descriptions[0].StoreOp)
	assert.Equal(t, vk.AttachmentLoadOpDontCare, descriptions[0].StencilLoadOp)
	assert.Equal(t, vk.AttachmentLoadOpClear, descriptions[1].LoadOp)
	assert.Equal(t, vk.AttachmentLoadOpClear, descriptions[1].StencilLoadOp)
}

func TestSubpassDependencies(t *testing.T) {
	assert.Len(t, subpassDependencies(1), 1)

	deps := subpassDependencies(3)
	require.Len(t, deps, 3)
	assert.Equal(t, uint32(vk.SubpassExternal), deps[0].SrcSubpass)
	assert.Equal(t, uint32(1), deps[2].SrcSubpass)
	assert.Equal(t, uint32(2), deps[2].DstSubpass)
}

func TestDeviceRejectsUnknownHandles(t *testing.T) {
	d := NewDevice(nil, nil)

	_, err := d.CreateFramebuffer(&metadata.FramebufferCreateInfo{RenderPass: 42})
	assert.ErrorContains(t, err, "unknown render pass handle 42")

	_, err = d.AllocateDescriptorSet(1, 2)
	assert.ErrorContains(t, err, "unknown descriptor pool handle 1")

	_, err = d.CreatePipelineLayout(&metadata.PipelineLayoutCreateInfo{SetLayouts: []metadata.Handle{5}})
	assert.ErrorContains(t, err, "unknown descriptor set layout handle 5")

	err = d.UpdateDescriptorSets([]metadata.WriteDescriptorSet{{DstSet: 9}})
	assert.ErrorContains(t, err, "unknown descriptor set handle 9")

	// Nothing to release; only logs.
	d.DestroyHandle(metadata.ResourceKindRenderPass, 3)
}

func TestDeviceKeepsDriverPipelineCache(t *testing.T) {
	var d cache.Device = NewDevice(nil, nil)
	_, ok := d.(cache.PipelineCacheDevice)
	assert.True(t, ok)
}

func TestDeviceRejectsNonSpirvSource(t *testing.T) {
	d := NewDevice(nil, nil)

	_, err := d.CreateShaderModule(&metadata.ShaderModuleCreateInfo{
		Stage:  metadata.ShaderStageVertex,
		Source: metadata.NewShaderSource("triangle.vert", []byte("#version 450")),
	})
	assert.ErrorContains(t, err, "is not SPIR-V")
}

func TestRegisteredHandlesAreUnique(t *testing.T) {
	d := NewDevice(nil, nil)

	view := d.RegisterImageView(nil)
	buffer := d.RegisterBuffer(nil)
	sampler := d.RegisterSampler(nil)
	assert.NotEqual(t, view, buffer)
	assert.NotEqual(t, buffer, sampler)

	_, err := lookup(d, d.imageViews, "image view", view)
	assert.NoError(t, err)

	d.Unregister(view)
	_, err = lookup(d, d.imageViews, "image view", view)
	assert.Error(t, err)
}

func TestLockPoolSerializesGroup(t *testing.T) {
	pool := NewVulkanLockPool()

	var wg sync.WaitGroup
	counter := 0
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(PipelineManagement, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 64, counter)
}
