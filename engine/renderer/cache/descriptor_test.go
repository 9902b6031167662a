package cache

import (
	"testing"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageInfos(view metadata.Handle) metadata.BindingMap[metadata.DescriptorImageInfo] {
	return metadata.BindingMap[metadata.DescriptorImageInfo]{
		0: {0: {Sampler: 11, ImageView: view, ImageLayout: metadata.ImageLayoutShaderReadOnlyOptimal}},
	}
}

func TestRequestDescriptorSet(t *testing.T) {
	c, device := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)
	globals, _ := s.layout.DescriptorSetLayout(0)

	buffers := metadata.BindingMap[metadata.DescriptorBufferInfo]{
		0: {0: {Buffer: 21, Range: 64}},
		5: {0: {Buffer: 22, Range: 16}},
	}
	set, err := c.RequestDescriptorSet(globals, buffers, nil)
	require.NoError(t, err)
	assert.Same(t, globals, set.Layout())

	// binding 5 is unknown to the layout and is not written
	writes := device.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, set.Handle(), writes[0].DstSet)
	assert.Equal(t, metadata.DescriptorTypeUniformBuffer, writes[0].DescriptorType)
	assert.Equal(t, metadata.Handle(21), writes[0].BufferInfo.Buffer)

	// the cache keeps its own copy of the infos
	buffers[0][0] = metadata.DescriptorBufferInfo{Buffer: 99}
	assert.Equal(t, metadata.Handle(21), set.BufferInfos()[0][0].Buffer)

	same, err := c.RequestDescriptorSet(globals, metadata.BindingMap[metadata.DescriptorBufferInfo]{
		5: {0: {Buffer: 22, Range: 16}},
		0: {0: {Buffer: 21, Range: 64}},
	}, nil)
	require.NoError(t, err)
	assert.Same(t, set, same)

	other, err := c.RequestDescriptorSet(globals, buffers, nil)
	require.NoError(t, err)
	assert.NotSame(t, set, other)
	assert.Same(t, set.Pool(), other.Pool())
	assert.Equal(t, 2, device.Created(metadata.ResourceKindDescriptorSet))
	assert.Equal(t, 1, device.Created(metadata.ResourceKindDescriptorPool))
}

func TestDescriptorPoolGrows(t *testing.T) {
	c, device := newTestCache(t, ResourceCacheConfig{DescriptorPoolMaxSets: 2})
	s := buildScene(t, c)
	textures, _ := s.layout.DescriptorSetLayout(1)

	var pool *DescriptorPool
	for view := metadata.Handle(100); view < 105; view++ {
		set, err := c.RequestDescriptorSet(textures, nil, imageInfos(view))
		require.NoError(t, err)
		pool = set.Pool()
	}

	assert.Len(t, pool.Pools(), 3)
	assert.Equal(t, uint32(2), pool.MaxSetsPerPool())
	assert.Equal(t, 3, device.Created(metadata.ResourceKindDescriptorPool))
	assert.Equal(t, 5, device.Created(metadata.ResourceKindDescriptorSet))
	assert.Equal(t, 1, c.State()[metadata.ResourceKindDescriptorPool])

	c.Clear()
	assert.Equal(t, 3, device.DestroyedCount(metadata.ResourceKindDescriptorPool))
}

func TestUpdateDescriptorSets(t *testing.T) {
	c, device := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)
	textures, _ := s.layout.DescriptorSetLayout(1)

	a, err := c.RequestDescriptorSet(textures, nil, imageInfos(100))
	require.NoError(t, err)
	b, err := c.RequestDescriptorSet(textures, nil, imageInfos(200))
	require.NoError(t, err)
	fingerprintB := b.Fingerprint()
	writesBefore := len(device.Writes())

	require.NoError(t, c.UpdateDescriptorSets([]metadata.Handle{100}, []metadata.Handle{300}))

	assert.Equal(t, metadata.Handle(300), a.ImageInfos()[0][0].ImageView)
	assert.Equal(t, metadata.Handle(11), a.ImageInfos()[0][0].Sampler)
	assert.Equal(t, fingerprintB, b.Fingerprint())

	writes := device.Writes()[writesBefore:]
	require.Len(t, writes, 1)
	assert.Equal(t, a.Handle(), writes[0].DstSet)
	assert.Equal(t, metadata.Handle(300), writes[0].ImageInfo.ImageView)
	assert.Equal(t, metadata.DescriptorTypeCombinedImageSampler, writes[0].DescriptorType)

	hit, err := c.RequestDescriptorSet(textures, nil, imageInfos(300))
	require.NoError(t, err)
	assert.Same(t, a, hit)
	assert.Equal(t, 2, device.Created(metadata.ResourceKindDescriptorSet))

	miss, err := c.RequestDescriptorSet(textures, nil, imageInfos(100))
	require.NoError(t, err)
	assert.NotSame(t, a, miss)
	assert.Equal(t, 3, device.Created(metadata.ResourceKindDescriptorSet))
}

func TestUpdateDescriptorSetsSkipsUnusedBindings(t *testing.T) {
	c, device := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)
	textures, _ := s.layout.DescriptorSetLayout(1)

	infos := imageInfos(100)
	infos[7] = map[uint32]metadata.DescriptorImageInfo{0: {Sampler: 12, ImageView: 100}}
	set, err := c.RequestDescriptorSet(textures, nil, infos)
	require.NoError(t, err)
	fingerprint := set.Fingerprint()
	writesBefore := len(device.Writes())

	require.NoError(t, c.UpdateDescriptorSets([]metadata.Handle{100}, []metadata.Handle{300}))

	writes := device.Writes()[writesBefore:]
	require.Len(t, writes, 1)
	assert.Equal(t, uint32(0), writes[0].DstBinding)
	assert.Equal(t, metadata.DescriptorTypeCombinedImageSampler, writes[0].DescriptorType)
	assert.Equal(t, metadata.Handle(300), writes[0].ImageInfo.ImageView)

	// The stored content follows the unused binding too.
	assert.Equal(t, metadata.Handle(300), set.ImageInfos()[0][0].ImageView)
	assert.Equal(t, metadata.Handle(300), set.ImageInfos()[7][0].ImageView)
	assert.NotEqual(t, fingerprint, set.Fingerprint())

	updated := imageInfos(300)
	updated[7] = map[uint32]metadata.DescriptorImageInfo{0: {Sampler: 12, ImageView: 300}}
	hit, err := c.RequestDescriptorSet(textures, nil, updated)
	require.NoError(t, err)
	assert.Same(t, set, hit)

	// Only the unused binding references the old view: nothing reaches the device.
	other := imageInfos(100)
	other[7] = map[uint32]metadata.DescriptorImageInfo{0: {Sampler: 12, ImageView: 400}}
	unused, err := c.RequestDescriptorSet(textures, nil, other)
	require.NoError(t, err)
	writesBefore = len(device.Writes())

	require.NoError(t, c.UpdateDescriptorSets([]metadata.Handle{400}, []metadata.Handle{500}))
	assert.Len(t, device.Writes(), writesBefore)
	assert.Equal(t, metadata.Handle(500), unused.ImageInfos()[7][0].ImageView)
}

func TestUpdateDescriptorSetsKeepsExistingEntry(t *testing.T) {
	c, _ := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)
	textures, _ := s.layout.DescriptorSetLayout(1)

	_, err := c.RequestDescriptorSet(textures, nil, imageInfos(100))
	require.NoError(t, err)
	existing, err := c.RequestDescriptorSet(textures, nil, imageInfos(300))
	require.NoError(t, err)

	require.NoError(t, c.UpdateDescriptorSets([]metadata.Handle{100}, []metadata.Handle{300}))
	assert.Equal(t, 1, c.State()[metadata.ResourceKindDescriptorSet])

	hit, err := c.RequestDescriptorSet(textures, nil, imageInfos(300))
	require.NoError(t, err)
	assert.Same(t, existing, hit)
}

func TestUpdateDescriptorSetsErrors(t *testing.T) {
	c, device := newTestCache(t, ResourceCacheConfig{})
	s := buildScene(t, c)
	textures, _ := s.layout.DescriptorSetLayout(1)

	err := c.UpdateDescriptorSets([]metadata.Handle{1, 2}, []metadata.Handle{3})
	require.ErrorIs(t, err, core.ErrViewCountMismatch)

	set, err := c.RequestDescriptorSet(textures, nil, imageInfos(100))
	require.NoError(t, err)
	fingerprint := set.Fingerprint()

	device.FailNextUpdate(nil)
	err = c.UpdateDescriptorSets([]metadata.Handle{100}, []metadata.Handle{300})
	require.Error(t, err)
	assert.Equal(t, metadata.Handle(100), set.ImageInfos()[0][0].ImageView)
	assert.Equal(t, fingerprint, set.Fingerprint())

	// no referenced view is not an error
	require.NoError(t, c.UpdateDescriptorSets([]metadata.Handle{555}, []metadata.Handle{556}))
}
