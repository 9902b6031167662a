package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// resultNames covers the results the create calls of the device can return.
var resultNames = map[vk.Result]string{
	vk.Success:                     "VK_SUCCESS",
	vk.Incomplete:                  "VK_INCOMPLETE",
	vk.PipelineCompileRequired:     "VK_PIPELINE_COMPILE_REQUIRED",
	vk.ErrorOutOfHostMemory:        "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:      "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed:   "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:             "VK_ERROR_DEVICE_LOST",
	vk.ErrorTooManyObjects:         "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:     "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:         "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorUnknown:                "VK_ERROR_UNKNOWN",
	vk.ErrorOutOfPoolMemory:        "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorFragmentation:          "VK_ERROR_FRAGMENTATION",
	vk.ErrorInvalidShaderNv:        "VK_ERROR_INVALID_SHADER_NV",
	vk.ErrorValidationFailed:       "VK_ERROR_VALIDATION_FAILED_EXT",
	vk.ErrorInvalidExternalHandle:  "VK_ERROR_INVALID_EXTERNAL_HANDLE",
	vk.ErrorInvalidDeviceAddress:   "VK_ERROR_INVALID_DEVICE_ADDRESS_EXT",
	vk.ErrorCompressionExhausted:   "VK_ERROR_COMPRESSION_EXHAUSTED_EXT",
	vk.ErrorNotPermitted:           "VK_ERROR_NOT_PERMITTED",
	vk.ErrorIncompatibleDriver:     "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorExtensionNotPresent:    "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:      "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorMemoryMapFailed:        "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:        "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorImageUsageNotSupported: "VK_ERROR_IMAGE_USAGE_NOT_SUPPORTED_KHR",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// VulkanResultIsSuccess reports whether result is a success code. Error
// codes are negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func resultError(call string, result vk.Result) error {
	return fmt.Errorf("%s failed with %s", call, VulkanResultString(result))
}

func toBool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
