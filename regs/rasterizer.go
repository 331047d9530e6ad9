package regs

import "github.com/gogpu/pica/internal/bitfield"

// Rasterizer register ids.
const (
	RegCullMode          = RasterizerBase + 0x00
	RegViewportSizeX     = RasterizerBase + 0x01
	RegViewportSizeY     = RasterizerBase + 0x03
	RegClipEnable        = RasterizerBase + 0x07
	RegClipCoef          = RasterizerBase + 0x08
	RegDepthRange        = RasterizerBase + 0x0D
	RegDepthNear         = RasterizerBase + 0x0E
	RegScissorMode       = RasterizerBase + 0x25
	RegScissorX1Y1       = RasterizerBase + 0x26
	RegScissorX2Y2       = RasterizerBase + 0x27
	RegViewportCorner    = RasterizerBase + 0x28
	RegDepthmapEnable    = RasterizerBase + 0x2D
	RegVSOutputTotal     = RasterizerBase + 0x0F
	RegVSOutputAttribute = RasterizerBase + 0x10
)

var (
	FieldCullMode   = bitfield.Make(0, 2)
	FieldCornerX    = bitfield.Make(0, 10)
	FieldCornerY    = bitfield.Make(16, 10)
	FieldScissorX   = bitfield.Make(0, 10)
	FieldScissorY   = bitfield.Make(16, 10)
	FieldFloat24    = bitfield.Make(0, 24)
	FieldEnableBit0 = bitfield.Make(0, 1)
)

// CullMode is the PICA face culling mode.
type CullMode uint32

const (
	CullKeepAll              CullMode = 0
	CullKeepClockWise        CullMode = 1
	CullKeepCounterClockWise CullMode = 2
	CullKeepAll2             CullMode = 3
)

// RasterizerRegs is a view of the rasterizer registers.
type RasterizerRegs struct{ r *Regs }

// Rasterizer returns the rasterizer section view.
func (r *Regs) Rasterizer() RasterizerRegs { return RasterizerRegs{r} }

func (v RasterizerRegs) CullMode() CullMode {
	return CullMode(FieldCullMode.Get(v.r[RegCullMode]))
}

// ViewportSize returns the half-extent of the viewport in pixels.
func (v RasterizerRegs) ViewportSize() (x, y float32) {
	return Float24FromRaw(v.r[RegViewportSizeX]).Float32(), Float24FromRaw(v.r[RegViewportSizeY]).Float32()
}

func (v RasterizerRegs) ViewportCorner() (x, y int32) {
	return int32(FieldCornerX.Get(v.r[RegViewportCorner])), int32(FieldCornerY.Get(v.r[RegViewportCorner]))
}

func (v RasterizerRegs) ClipEnable() bool { return FieldEnableBit0.GetBool(v.r[RegClipEnable]) }

// ClipCoef returns the user clip plane coefficients.
func (v RasterizerRegs) ClipCoef() [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = Float24FromRaw(v.r[RegClipCoef+i]).Float32()
	}
	return out
}

// DepthScale returns the depth range scale.
func (v RasterizerRegs) DepthScale() float32 {
	return Float24FromRaw(v.r[RegDepthRange]).Float32()
}

// DepthOffset returns the near plane depth offset.
func (v RasterizerRegs) DepthOffset() float32 {
	return Float24FromRaw(v.r[RegDepthNear]).Float32()
}

func (v RasterizerRegs) DepthmapEnable() bool { return FieldEnableBit0.GetBool(v.r[RegDepthmapEnable]) }

// ScissorMode returns the scissor test mode (0 disabled, 1 exclude, 3 include).
func (v RasterizerRegs) ScissorMode() uint32 { return v.r[RegScissorMode] & 0x3 }

// Scissor returns the scissor rectangle corners.
func (v RasterizerRegs) Scissor() (x1, y1, x2, y2 uint32) {
	a, b := v.r[RegScissorX1Y1], v.r[RegScissorX2Y2]
	return FieldScissorX.Get(a), FieldScissorY.Get(a), FieldScissorX.Get(b), FieldScissorY.Get(b)
}
