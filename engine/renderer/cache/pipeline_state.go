package cache

import (
	"encoding/binary"
	"slices"

	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// PipelineState gathers everything a pipeline is built from. The render
// pass and the fixed function states are ignored for compute pipelines.
type PipelineState struct {
	PipelineLayout          *PipelineLayout
	RenderPass              *RenderPass
	Subpass                 uint32
	SpecializationConstants map[uint32][]byte
	VertexInput             metadata.VertexInputState
	InputAssembly           metadata.InputAssemblyState
	Rasterization           metadata.RasterizationState
	Viewport                metadata.ViewportState
	Multisample             metadata.MultisampleState
	DepthStencil            metadata.DepthStencilState
	ColorBlend              metadata.ColorBlendState
}

func NewPipelineState() *PipelineState {
	return &PipelineState{
		SpecializationConstants: make(map[uint32][]byte),
		InputAssembly:           metadata.DefaultInputAssemblyState(),
		Rasterization:           metadata.DefaultRasterizationState(),
		Viewport:                metadata.DefaultViewportState(),
		Multisample:             metadata.DefaultMultisampleState(),
		DepthStencil:            metadata.DefaultDepthStencilState(),
	}
}

// SpecializationValue is a value that can be stored as a specialization constant.
type SpecializationValue interface {
	~uint32 | ~int32 | ~float32 | ~uint64 | ~int64 | ~float64
}

// SetSpecializationConstant stores value in little endian byte order.
func SetSpecializationConstant[T SpecializationValue](s *PipelineState, constantID uint32, value T) {
	if s.SpecializationConstants == nil {
		s.SpecializationConstants = make(map[uint32][]byte)
	}
	data, _ := binary.Append(nil, binary.LittleEndian, value)
	s.SpecializationConstants[constantID] = data
}

// SetSpecializationBool stores a boolean the way shaders read it: a 32 bit word.
func SetSpecializationBool(s *PipelineState, constantID uint32, value bool) {
	var v uint32
	if value {
		v = 1
	}
	SetSpecializationConstant(s, constantID, v)
}

// Clone copies the state deeply except for the referenced cache objects.
func (s *PipelineState) Clone() *PipelineState {
	c := *s
	c.SpecializationConstants = make(map[uint32][]byte, len(s.SpecializationConstants))
	for id, data := range s.SpecializationConstants {
		c.SpecializationConstants[id] = slices.Clone(data)
	}
	c.VertexInput.Bindings = slices.Clone(s.VertexInput.Bindings)
	c.VertexInput.Attributes = slices.Clone(s.VertexInput.Attributes)
	c.ColorBlend.Attachments = slices.Clone(s.ColorBlend.Attachments)
	return &c
}
