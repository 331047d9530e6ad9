// Package vertex translates PICA vertex loader state into host vertex
// buffer layouts and stages guest vertex and index data for drawing.
package vertex

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/pica/regs"
)

// Layout limits.
const (
	MaxBindings   = 16
	MaxAttributes = 16
)

// Binding describes one vertex buffer binding.
type Binding struct {
	Binding uint8
	// Fixed bindings hold constant attribute values shared by every vertex.
	Fixed  bool
	Stride uint16
}

// Attribute describes one shader input.
type Attribute struct {
	Binding  uint8
	Location uint8
	Offset   uint32
	Type     regs.AttributeFormat
	Size     uint8
}

// Layout is the complete vertex input state of a pipeline. It is
// comparable and is hashed as part of the pipeline key.
type Layout struct {
	BindingCount   uint8
	AttributeCount uint8
	Bindings       [MaxBindings]Binding
	Attributes     [MaxAttributes]Attribute
}

// Format returns the host vertex format for an attribute. Single and
// three-component 8 and 16-bit attributes are widened to the next format
// the host supports; the shader ignores the extra components.
func (a Attribute) Format() gputypes.VertexFormat {
	switch a.Type {
	case regs.AttribByte:
		if a.Size <= 2 {
			return gputypes.VertexFormatSint8x2
		}
		return gputypes.VertexFormatSint8x4
	case regs.AttribUByte:
		if a.Size <= 2 {
			return gputypes.VertexFormatUint8x2
		}
		return gputypes.VertexFormatUint8x4
	case regs.AttribShort:
		if a.Size <= 2 {
			return gputypes.VertexFormatSint16x2
		}
		return gputypes.VertexFormatSint16x4
	}
	switch a.Size {
	case 1:
		return gputypes.VertexFormatFloat32
	case 2:
		return gputypes.VertexFormatFloat32x2
	case 3:
		return gputypes.VertexFormatFloat32x3
	}
	return gputypes.VertexFormatFloat32x4
}

// Buffers converts the layout to host vertex buffer layouts, one per
// binding, with each attribute attached to its binding.
func (l *Layout) Buffers() []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, l.BindingCount)
	for i := range out {
		b := l.Bindings[i]
		step := gputypes.VertexStepModeVertex
		if b.Fixed {
			step = gputypes.VertexStepModeInstance
		}
		out[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(b.Stride),
			StepMode:    step,
		}
	}
	for i := 0; i < int(l.AttributeCount); i++ {
		a := l.Attributes[i]
		if int(a.Binding) >= len(out) {
			continue
		}
		out[a.Binding].Attributes = append(out[a.Binding].Attributes, gputypes.VertexAttribute{
			Format:         a.Format(),
			Offset:         uint64(a.Offset),
			ShaderLocation: uint32(a.Location),
		})
	}
	return out
}
