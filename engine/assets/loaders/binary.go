package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
)

/** @brief First word of every SPIR-V module. */
const SpirvMagic uint32 = 0x07230203

// BinaryLoader reads precompiled SPIR-V modules.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V module '%s' has invalid size %d", path, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != SpirvMagic {
		return nil, fmt.Errorf("SPIR-V module '%s' has invalid magic number 0x%08x", path, magic)
	}
	return data, nil
}
