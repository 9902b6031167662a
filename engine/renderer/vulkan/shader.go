package vulkan

import (
	"fmt"
	"maps"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// CreateShaderModule expects the source data to be SPIR-V compiled for the
// requested variant. The preamble has already been folded in by the
// application's shader compiler.
func (d *Device) CreateShaderModule(info *metadata.ShaderModuleCreateInfo) (metadata.Handle, error) {
	data := info.Source.Data
	if len(data) == 0 || len(data)%4 != 0 {
		return metadata.NullHandle, fmt.Errorf("shader %q is not SPIR-V: size %d is not a multiple of 4", info.Source.Filename, len(data))
	}

	moduleCreateInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(data)),
		PCode:    bytesToBytecode(data),
	}
	moduleCreateInfo.Deref()

	var pModule vk.ShaderModule
	if err := d.locks.SafeCall(ShaderManagement, func() error {
		result := vk.CreateShaderModule(d.LogicalDevice, &moduleCreateInfo, d.Allocator, &pModule)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateShaderModule", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.shaderModules, pModule), nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

// specializationInfo packs the constants in ascending id order into one
// data block. Returns nil when there are none.
func specializationInfo(constants map[uint32][]byte) []vk.SpecializationInfo {
	if len(constants) == 0 {
		return nil
	}

	ids := slices.Sorted(maps.Keys(constants))

	entries := make([]vk.SpecializationMapEntry, len(ids))
	var data []byte
	for i, id := range ids {
		entries[i] = vk.SpecializationMapEntry{
			ConstantID: id,
			Offset:     uint32(len(data)),
			Size:       uint64(len(constants[id])),
		}
		entries[i].Deref()
		data = append(data, constants[id]...)
	}
	if len(data) == 0 {
		return nil
	}

	info := vk.SpecializationInfo{
		MapEntryCount: uint32(len(entries)),
		PMapEntries:   entries,
		DataSize:      uint64(len(data)),
		PData:         unsafe.Pointer(&data[0]),
	}
	info.Deref()
	return []vk.SpecializationInfo{info}
}

func (d *Device) shaderStage(stage metadata.PipelineShaderStage, specialization []vk.SpecializationInfo) (vk.PipelineShaderStageCreateInfo, error) {
	module, err := lookup(d, d.shaderModules, "shader module", stage.Module)
	if err != nil {
		return vk.PipelineShaderStageCreateInfo{}, err
	}
	entryPoint := stage.EntryPoint
	if entryPoint == "" {
		entryPoint = "main"
	}

	stageCreateInfo := vk.PipelineShaderStageCreateInfo{
		SType:               vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:               vk.ShaderStageFlagBits(stage.Stage),
		Module:              module,
		PName:               VulkanSafeString(entryPoint),
		PSpecializationInfo: specialization,
	}
	stageCreateInfo.Deref()
	return stageCreateInfo, nil
}
