package metadata

import (
	"fmt"
	"strings"
)

/** @brief Shader stage flag bits. Values match VkShaderStageFlagBits. */
type ShaderStage uint32

const (
	ShaderStageVertex                 ShaderStage = 0x00000001
	ShaderStageTessellationControl    ShaderStage = 0x00000002
	ShaderStageTessellationEvaluation ShaderStage = 0x00000004
	ShaderStageGeometry               ShaderStage = 0x00000008
	ShaderStageFragment               ShaderStage = 0x00000010
	ShaderStageCompute                ShaderStage = 0x00000020
	ShaderStageAllGraphics            ShaderStage = 0x0000001F
)

var shaderStageNames = map[string]ShaderStage{
	"vertex":                  ShaderStageVertex,
	"tessellation_control":    ShaderStageTessellationControl,
	"tessellation_evaluation": ShaderStageTessellationEvaluation,
	"geometry":                ShaderStageGeometry,
	"fragment":                ShaderStageFragment,
	"compute":                 ShaderStageCompute,
	"all_graphics":            ShaderStageAllGraphics,
}

func ShaderStageFromString(s string) (ShaderStage, error) {
	if stage, ok := shaderStageNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return stage, nil
	}
	return 0, fmt.Errorf("unrecognized shader stage '%s'", s)
}

func (s ShaderStage) String() string {
	for name, stage := range shaderStageNames {
		if stage == s {
			return name
		}
	}
	return fmt.Sprintf("stage(0x%x)", uint32(s))
}

// UnmarshalText lets shader configs spell stages by name.
func (s *ShaderStage) UnmarshalText(text []byte) error {
	stage, err := ShaderStageFromString(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

func (s ShaderStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

/** @brief Types of shader resources. */
type ShaderResourceType uint8

const (
	ShaderResourceTypeInput ShaderResourceType = iota
	ShaderResourceTypeInputAttachment
	ShaderResourceTypeOutput
	ShaderResourceTypeImage
	ShaderResourceTypeImageSampler
	ShaderResourceTypeImageStorage
	ShaderResourceTypeSampler
	ShaderResourceTypeBufferUniform
	ShaderResourceTypeBufferStorage
	ShaderResourceTypePushConstant
	ShaderResourceTypeSpecializationConstant
)

var shaderResourceTypeNames = [...]string{
	ShaderResourceTypeInput:                  "input",
	ShaderResourceTypeInputAttachment:        "input_attachment",
	ShaderResourceTypeOutput:                 "output",
	ShaderResourceTypeImage:                  "image",
	ShaderResourceTypeImageSampler:           "image_sampler",
	ShaderResourceTypeImageStorage:           "image_storage",
	ShaderResourceTypeSampler:                "sampler",
	ShaderResourceTypeBufferUniform:          "buffer_uniform",
	ShaderResourceTypeBufferStorage:          "buffer_storage",
	ShaderResourceTypePushConstant:           "push_constant",
	ShaderResourceTypeSpecializationConstant: "specialization_constant",
}

func (t ShaderResourceType) String() string {
	if int(t) < len(shaderResourceTypeNames) {
		return shaderResourceTypeNames[t]
	}
	return fmt.Sprintf("resource_type(%d)", uint8(t))
}

func (t *ShaderResourceType) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range shaderResourceTypeNames {
		if n == name {
			*t = ShaderResourceType(i)
			return nil
		}
	}
	return fmt.Errorf("unrecognized shader resource type '%s'", string(text))
}

func (t ShaderResourceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// HasDescriptor reports whether the resource occupies a descriptor binding.
func (t ShaderResourceType) HasDescriptor() bool {
	switch t {
	case ShaderResourceTypeInput, ShaderResourceTypeOutput,
		ShaderResourceTypePushConstant, ShaderResourceTypeSpecializationConstant:
		return false
	}
	return true
}

/**
 * @brief Describes one resource used by a shader: a descriptor binding,
 * a stage input/output, a push constant block or a specialization constant.
 */
type ShaderResource struct {
	Stages               ShaderStage        `toml:"stages"`
	Type                 ShaderResourceType `toml:"type"`
	Set                  uint32             `toml:"set"`
	Binding              uint32             `toml:"binding"`
	Location             uint32             `toml:"location"`
	InputAttachmentIndex uint32             `toml:"input_attachment_index"`
	VecSize              uint32             `toml:"vec_size"`
	Columns              uint32             `toml:"columns"`
	ArraySize            uint32             `toml:"array_size"`
	Offset               uint32             `toml:"offset"`
	Size                 uint32             `toml:"size"`
	ConstantID           uint32             `toml:"constant_id"`
	Dynamic              bool               `toml:"dynamic"`
	Name                 string             `toml:"name"`
}

/**
 * @brief The source of a shader: an identifying file name, the code bytes
 * handed to the device and the resources the shader declares.
 */
type ShaderSource struct {
	Filename  string
	Data      []byte
	Resources []ShaderResource
}

func NewShaderSource(filename string, data []byte, resources ...ShaderResource) *ShaderSource {
	return &ShaderSource{
		Filename:  filename,
		Data:      data,
		Resources: resources,
	}
}

/**
 * @brief A compile-time flavour of a shader: a preamble prepended to the
 * source and the list of define/undef processes that produced it.
 */
type ShaderVariant struct {
	Preamble  string
	Processes []string
}

func NewShaderVariant(preamble string, processes []string) *ShaderVariant {
	return &ShaderVariant{
		Preamble:  preamble,
		Processes: processes,
	}
}

// AddDefine adds a define macro; def is what goes right of the directive.
func (v *ShaderVariant) AddDefine(def string) {
	v.Processes = append(v.Processes, "D"+def)

	tmp := strings.Replace(def, "=", " ", 1)
	v.Preamble += "#define " + tmp + "\n"
}

// AddUndefine adds an undef macro.
func (v *ShaderVariant) AddUndefine(undef string) {
	v.Processes = append(v.Processes, "U"+undef)
	v.Preamble += "#undef " + undef + "\n"
}

func (v *ShaderVariant) Clear() {
	v.Preamble = ""
	v.Processes = nil
}

/** @brief Everything a device needs to create a shader module. */
type ShaderModuleCreateInfo struct {
	Stage      ShaderStage
	Source     *ShaderSource
	EntryPoint string
	Variant    *ShaderVariant
}
