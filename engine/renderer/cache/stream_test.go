package cache

import (
	"testing"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamReadWrite(t *testing.T) {
	w := &streamWriter{}
	w.putUvarint(300)
	w.putBool(true)
	w.putFloat32(1.5)
	w.putString("main")
	w.putBytes([]byte{9, 8})
	putUints(w, []uint32{1, 2, 3})

	r := newStreamReader(w.buf)
	assert.Equal(t, uint32(300), r.readUint32())
	assert.True(t, r.readBool())
	assert.Equal(t, float32(1.5), r.readFloat32())
	assert.Equal(t, "main", r.readString())
	assert.Equal(t, []byte{9, 8}, r.readBytes())
	assert.Equal(t, []uint32{1, 2, 3}, r.readUint32s())
	require.NoError(t, r.err)
	assert.Zero(t, r.remaining())
}

func TestStreamReaderStickyError(t *testing.T) {
	r := newStreamReader([]byte{0x80})
	assert.Zero(t, r.readUvarint())
	require.ErrorIs(t, r.err, core.ErrMalformedRecord)

	first := r.err
	assert.Equal(t, "", r.readString())
	assert.False(t, r.readBool())
	assert.Same(t, first, r.err)
}

func TestStreamReaderRejectsOversizedCount(t *testing.T) {
	w := &streamWriter{}
	w.putUvarint(1 << 40)
	r := newStreamReader(w.buf)
	assert.Nil(t, r.readBytes())
	require.ErrorIs(t, r.err, core.ErrMalformedRecord)

	w = &streamWriter{}
	w.putUvarint(1 << 33)
	r = newStreamReader(w.buf)
	assert.Zero(t, r.readUint32())
	require.ErrorIs(t, r.err, core.ErrMalformedRecord)
}

func TestStreamFrames(t *testing.T) {
	var data []byte
	data = appendFrame(data, metadata.ResourceKindRenderPass, []byte{1, 2})
	data = appendFrame(data, metadata.ResourceKindShaderModule, nil)

	r := newStreamReader(data)
	f, ok := r.nextFrame()
	require.True(t, ok)
	assert.Equal(t, metadata.ResourceKindRenderPass, f.kind)
	assert.Equal(t, []byte{1, 2}, f.payload)
	assert.Zero(t, f.offset)

	f, ok = r.nextFrame()
	require.True(t, ok)
	assert.Equal(t, metadata.ResourceKindShaderModule, f.kind)
	assert.Empty(t, f.payload)
	assert.Equal(t, 4, f.offset)

	_, ok = r.nextFrame()
	assert.False(t, ok)
	assert.NoError(t, r.err)

	r = newStreamReader(data[:3])
	_, ok = r.nextFrame()
	assert.False(t, ok)
	assert.ErrorIs(t, r.err, core.ErrMalformedRecord)
}
