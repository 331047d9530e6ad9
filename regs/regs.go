// Package regs models the PICA200 register file.
//
// The register file is a flat array of 32-bit words indexed by register id.
// Section views (Framebuffer, Rasterizer, Texturing, Pipeline, VS, Lighting)
// expose the fields the rasterizer backend consumes through accessors that
// keep the hardware bit positions and widths.
package regs

import "github.com/gogpu/pica/internal/bitfield"

// NumRegs is the number of 32-bit words in the register file.
const NumRegs = 0x300

// Section base addresses.
const (
	RasterizerBase  = 0x040
	TexturingBase   = 0x080
	FramebufferBase = 0x100
	LightingBase    = 0x140
	PipelineBase    = 0x200
	GSBase          = 0x280
	VSBase          = 0x2B0
)

// Regs is the raw register file.
type Regs [NumRegs]uint32

// Write stores value into register id with the given byte-enable mask.
// Each set bit of mask enables the corresponding byte lane of value.
func (r *Regs) Write(id uint32, value uint32, mask uint8) {
	if id >= NumRegs {
		return
	}
	var m uint32
	for lane := 0; lane < 4; lane++ {
		if mask&(1<<lane) != 0 {
			m |= 0xFF << (8 * lane)
		}
	}
	r[id] = (r[id] &^ m) | (value & m)
}

// Word returns register id, or 0 when id is out of range.
func (r *Regs) Word(id uint32) uint32 {
	if id >= NumRegs {
		return 0
	}
	return r[id]
}

// Set writes a single field of register id.
func (r *Regs) Set(id uint32, f bitfield.Field, v uint32) {
	r[id] = f.Set(r[id], v)
}

// Range returns a copy of the words [from, to).
func (r *Regs) Range(from, to uint32) []uint32 {
	if to > NumRegs {
		to = NumRegs
	}
	if from >= to {
		return nil
	}
	out := make([]uint32, to-from)
	copy(out, r[from:to])
	return out
}

// Rect is an integer rectangle in framebuffer coordinates.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int32 {
	if r.Right < r.Left {
		return r.Left - r.Right
	}
	return r.Right - r.Left
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int32 {
	if r.Bottom < r.Top {
		return r.Top - r.Bottom
	}
	return r.Bottom - r.Top
}
