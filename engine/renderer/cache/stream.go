package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"golang.org/x/exp/constraints"
)

// streamWriter builds the payload of one record entry.
type streamWriter struct {
	buf []byte
}

func (w *streamWriter) putUvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

func (w *streamWriter) putBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *streamWriter) putFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *streamWriter) putBytes(b []byte) {
	w.putUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *streamWriter) putString(s string) {
	w.putUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func putUint[T constraints.Unsigned](w *streamWriter, v T) {
	w.putUvarint(uint64(v))
}

func putUints[T constraints.Unsigned](w *streamWriter, values []T) {
	w.putUvarint(uint64(len(values)))
	for _, v := range values {
		w.putUvarint(uint64(v))
	}
}

// appendFrame appends one [tag][length][payload] frame to dst.
func appendFrame(dst []byte, kind metadata.ResourceKind, payload []byte) []byte {
	dst = append(dst, byte(kind))
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// streamReader decodes a payload. The first error sticks and every later
// read returns zero values, so callers check err once per entry.
type streamReader struct {
	buf []byte
	off int
	err error
}

func newStreamReader(buf []byte) *streamReader {
	return &streamReader{buf: buf}
}

func (r *streamReader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s at offset %d", core.ErrMalformedRecord, fmt.Sprintf(format, args...), r.off)
	}
}

func (r *streamReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *streamReader) readUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		r.fail("bad varint")
		return 0
	}
	r.off += n
	return v
}

func (r *streamReader) readUint32() uint32 {
	v := r.readUvarint()
	if v > math.MaxUint32 {
		r.fail("value %d overflows 32 bits", v)
		return 0
	}
	return uint32(v)
}

func (r *streamReader) readByte() byte {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 1 {
		r.fail("unexpected end of data")
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

func (r *streamReader) readBool() bool {
	return r.readByte() != 0
}

func (r *streamReader) readFloat32() float32 {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 4 {
		r.fail("unexpected end of data")
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return math.Float32frombits(v)
}

// count reads a collection length and checks it against the bytes left,
// every element taking at least one byte.
func (r *streamReader) readCount() int {
	n := r.readUvarint()
	if r.err == nil && n > uint64(r.remaining()) {
		r.fail("count %d exceeds remaining %d bytes", n, r.remaining())
		return 0
	}
	return int(n)
}

func (r *streamReader) readBytes() []byte {
	n := r.readCount()
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+n])
	r.off += n
	return b
}

func (r *streamReader) readString() string {
	return string(r.readBytes())
}

func (r *streamReader) readUint32s() []uint32 {
	n := r.readCount()
	if n == 0 {
		return nil
	}
	values := make([]uint32, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		values = append(values, r.readUint32())
	}
	return values
}

// frame is one undecoded record entry.
type frame struct {
	kind    metadata.ResourceKind
	payload []byte
	offset  int
}

// nextFrame splits the next frame off the stream. It returns false at a
// clean end of data.
func (r *streamReader) nextFrame() (frame, bool) {
	if r.err != nil || r.remaining() == 0 {
		return frame{}, false
	}
	offset := r.off
	kind := metadata.ResourceKind(r.readByte())
	n := r.readUvarint()
	if r.err == nil && n > uint64(r.remaining()) {
		r.fail("%s entry of %d bytes truncated", kind, n)
	}
	if r.err != nil {
		return frame{}, false
	}
	payload := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return frame{kind: kind, payload: payload, offset: offset}, true
}
