package systems

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/spaghettifunk/pipecache/engine/core"
)

// Cache file layout, little endian:
//
//	[0:4]   magic "PCWU"
//	[4:6]   format version
//	[6:8]   flags
//	[8:24]  application id
//	[24:32] uncompressed payload length
//	[32:36] CRC32-C of the uncompressed payload
//	[36:40] CRC32-C of bytes [0:36]
//	[40:]   payload, zstd compressed when FlagCompressed is set
const (
	CacheFileMagic      = "PCWU"
	CacheFileVersion    = uint16(1)
	CacheFileHeaderSize = 40

	// Upper bound on the decoded payload; guards allocations on corrupt headers.
	MaxCachePayloadSize = 256 << 20
)

const (
	FlagCompressed uint16 = 1 << iota
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

type CacheFileHeader struct {
	Version       uint16
	Flags         uint16
	ApplicationID uuid.UUID
	PayloadSize   uint64
	Checksum      uint32
}

func (h *CacheFileHeader) Compressed() bool {
	return h.Flags&FlagCompressed != 0
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool

	zstdEncoderOptions = []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedDefault)}
	zstdDecoderOptions = []zstd.DOption{zstd.WithDecoderMaxMemory(MaxCachePayloadSize)}
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstdEncoderOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil, zstdDecoderOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, nil
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// EncodeCacheFile wraps a serialized resource record in the cache file envelope.
func EncodeCacheFile(applicationID uuid.UUID, payload []byte, compress bool) ([]byte, error) {
	if len(payload) > MaxCachePayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", core.ErrInvalidCacheFile, len(payload), MaxCachePayloadSize)
	}

	var flags uint16
	body := payload
	if compress && len(payload) > 0 {
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		body = enc.EncodeAll(payload, nil)
		putZstdEncoder(enc)
		flags |= FlagCompressed
	}

	out := make([]byte, CacheFileHeaderSize, CacheFileHeaderSize+len(body))
	copy(out[0:4], CacheFileMagic)
	binary.LittleEndian.PutUint16(out[4:6], CacheFileVersion)
	binary.LittleEndian.PutUint16(out[6:8], flags)
	copy(out[8:24], applicationID[:])
	binary.LittleEndian.PutUint64(out[24:32], uint64(len(payload)))
	binary.LittleEndian.PutUint32(out[32:36], crc32.Checksum(payload, castagnoli))
	binary.LittleEndian.PutUint32(out[36:40], crc32.Checksum(out[:36], castagnoli))
	return append(out, body...), nil
}

// ReadCacheFileHeader validates the fixed header without touching the payload.
func ReadCacheFileHeader(data []byte) (*CacheFileHeader, error) {
	if len(data) < CacheFileHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", core.ErrInvalidCacheFile, len(data))
	}
	if !bytes.Equal(data[0:4], []byte(CacheFileMagic)) {
		return nil, fmt.Errorf("%w: bad magic %q", core.ErrInvalidCacheFile, data[0:4])
	}
	if sum := crc32.Checksum(data[:36], castagnoli); sum != binary.LittleEndian.Uint32(data[36:40]) {
		return nil, fmt.Errorf("%w: header", core.ErrChecksumMismatch)
	}

	h := &CacheFileHeader{
		Version:     binary.LittleEndian.Uint16(data[4:6]),
		Flags:       binary.LittleEndian.Uint16(data[6:8]),
		PayloadSize: binary.LittleEndian.Uint64(data[24:32]),
		Checksum:    binary.LittleEndian.Uint32(data[32:36]),
	}
	copy(h.ApplicationID[:], data[8:24])

	if h.Version != CacheFileVersion {
		return nil, fmt.Errorf("%w: version %d, expected %d", core.ErrInvalidCacheFile, h.Version, CacheFileVersion)
	}
	if h.Flags&^FlagCompressed != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", core.ErrInvalidCacheFile, h.Flags)
	}
	if h.PayloadSize > MaxCachePayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", core.ErrInvalidCacheFile, h.PayloadSize, MaxCachePayloadSize)
	}
	return h, nil
}

// DecodeCacheFile validates the envelope and returns the serialized record.
// Files written for another application id are rejected.
func DecodeCacheFile(applicationID uuid.UUID, data []byte) ([]byte, error) {
	h, err := ReadCacheFileHeader(data)
	if err != nil {
		return nil, err
	}
	if h.ApplicationID != applicationID {
		return nil, fmt.Errorf("%w: %s", core.ErrCacheFileMismatch, h.ApplicationID)
	}

	body := data[CacheFileHeaderSize:]
	payload := body
	if h.Compressed() {
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		payload, err = dec.DecodeAll(body, make([]byte, 0, h.PayloadSize))
		putZstdDecoder(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidCacheFile, err)
		}
	}

	if uint64(len(payload)) != h.PayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", core.ErrInvalidCacheFile, len(payload), h.PayloadSize)
	}
	if crc32.Checksum(payload, castagnoli) != h.Checksum {
		return nil, fmt.Errorf("%w: payload", core.ErrChecksumMismatch)
	}
	return payload, nil
}
