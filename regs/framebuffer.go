package regs

import "github.com/gogpu/pica/internal/bitfield"

// Output merger and framebuffer register ids.
const (
	RegOutputMerger    = FramebufferBase + 0x00
	RegAlphaBlending   = FramebufferBase + 0x01
	RegLogicOp         = FramebufferBase + 0x02
	RegBlendConst      = FramebufferBase + 0x03
	RegAlphaTest       = FramebufferBase + 0x04
	RegStencilTest     = FramebufferBase + 0x05
	RegStencilOp       = FramebufferBase + 0x06
	RegDepthColorMask  = FramebufferBase + 0x07
	RegAllowColorWrite = FramebufferBase + 0x12
	RegAllowDepthWrite = FramebufferBase + 0x13
	RegDepthFormat     = FramebufferBase + 0x16
	RegColorFormat     = FramebufferBase + 0x17
	RegDepthBufferAddr = FramebufferBase + 0x1C
	RegColorBufferAddr = FramebufferBase + 0x1D
	RegFramebufferDims = FramebufferBase + 0x1E
	RegShadow          = FramebufferBase + 0x30
)

// Output merger fields.
var (
	FieldFragmentOpMode   = bitfield.Make(0, 2)
	FieldAlphaBlendEnable = bitfield.Make(8, 1)

	FieldBlendEquationRGB = bitfield.Make(0, 3)
	FieldBlendEquationA   = bitfield.Make(8, 3)
	FieldFactorSourceRGB  = bitfield.Make(16, 4)
	FieldFactorDestRGB    = bitfield.Make(20, 4)
	FieldFactorSourceA    = bitfield.Make(24, 4)
	FieldFactorDestA      = bitfield.Make(28, 4)

	FieldLogicOp = bitfield.Make(0, 4)

	FieldAlphaTestEnable = bitfield.Make(0, 1)
	FieldAlphaTestFunc   = bitfield.Make(4, 3)
	FieldAlphaTestRef    = bitfield.Make(8, 8)

	FieldStencilEnable     = bitfield.Make(0, 1)
	FieldStencilFunc       = bitfield.Make(4, 3)
	FieldStencilWriteMask  = bitfield.Make(8, 8)
	FieldStencilReference  = bitfield.Make(16, 8)
	FieldStencilInputMask  = bitfield.Make(24, 8)
	FieldStencilFailAction = bitfield.Make(0, 3)
	FieldDepthFailAction   = bitfield.Make(4, 3)
	FieldDepthPassAction   = bitfield.Make(8, 3)

	FieldDepthTestEnable  = bitfield.Make(0, 1)
	FieldDepthTestFunc    = bitfield.Make(4, 3)
	FieldColorMask        = bitfield.Make(8, 4)
	FieldDepthWriteEnable = bitfield.Make(12, 1)

	FieldDepthFormat = bitfield.Make(0, 2)
	FieldColorFormat = bitfield.Make(16, 3)
	FieldBufferAddr  = bitfield.Make(0, 28)
	FieldFBWidth     = bitfield.Make(0, 11)
	FieldFBHeight    = bitfield.Make(12, 10)
	FieldFBFlip      = bitfield.Make(24, 1)
)

// FragmentOperationMode selects how fragments are written.
type FragmentOperationMode uint32

const (
	FragmentOpDefault FragmentOperationMode = 0
	FragmentOpGas     FragmentOperationMode = 1
	FragmentOpShadow  FragmentOperationMode = 3
)

// BlendEquation is the PICA blend equation encoding.
type BlendEquation uint32

const (
	BlendEquationAdd BlendEquation = iota
	BlendEquationSubtract
	BlendEquationReverseSubtract
	BlendEquationMin
	BlendEquationMax
)

// BlendFactor is the PICA blend factor encoding.
type BlendFactor uint32

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSourceColor
	BlendFactorOneMinusSourceColor
	BlendFactorDestColor
	BlendFactorOneMinusDestColor
	BlendFactorSourceAlpha
	BlendFactorOneMinusSourceAlpha
	BlendFactorDestAlpha
	BlendFactorOneMinusDestAlpha
	BlendFactorConstantColor
	BlendFactorOneMinusConstantColor
	BlendFactorConstantAlpha
	BlendFactorOneMinusConstantAlpha
	BlendFactorSourceAlphaSaturate
)

// LogicOp is the PICA logic operation encoding.
type LogicOp uint32

const (
	LogicOpClear LogicOp = iota
	LogicOpAnd
	LogicOpAndReverse
	LogicOpCopy
	LogicOpSet
	LogicOpCopyInverted
	LogicOpNoOp
	LogicOpInvert
	LogicOpNand
	LogicOpOr
	LogicOpNor
	LogicOpXor
	LogicOpEquiv
	LogicOpAndInverted
	LogicOpOrReverse
	LogicOpOrInverted
)

// CompareFunc is the PICA comparison function encoding.
type CompareFunc uint32

const (
	CompareNever CompareFunc = iota
	CompareAlways
	CompareEqual
	CompareNotEqual
	CompareLessThan
	CompareLessThanOrEqual
	CompareGreaterThan
	CompareGreaterThanOrEqual
)

// StencilAction is the PICA stencil operation encoding.
type StencilAction uint32

const (
	StencilKeep StencilAction = iota
	StencilZero
	StencilReplace
	StencilIncrement
	StencilDecrement
	StencilInvert
	StencilIncrementWrap
	StencilDecrementWrap
)

// DepthFormat is the depth buffer format.
type DepthFormat uint32

const (
	DepthFormatD16   DepthFormat = 0
	DepthFormatD24   DepthFormat = 2
	DepthFormatD24S8 DepthFormat = 3
)

// ColorFormat is the color buffer format.
type ColorFormat uint32

const (
	ColorFormatRGBA8 ColorFormat = iota
	ColorFormatRGB8
	ColorFormatRGB5A1
	ColorFormatRGB565
	ColorFormatRGBA4
)

// FramebufferRegs is a view of the output merger and framebuffer registers.
type FramebufferRegs struct{ r *Regs }

// Framebuffer returns the framebuffer section view.
func (r *Regs) Framebuffer() FramebufferRegs { return FramebufferRegs{r} }

func (f FramebufferRegs) FragmentOperationMode() FragmentOperationMode {
	return FragmentOperationMode(FieldFragmentOpMode.Get(f.r[RegOutputMerger]))
}

func (f FramebufferRegs) AlphaBlendEnable() bool {
	return FieldAlphaBlendEnable.GetBool(f.r[RegOutputMerger])
}

func (f FramebufferRegs) BlendEquationRGB() BlendEquation {
	return BlendEquation(FieldBlendEquationRGB.Get(f.r[RegAlphaBlending]))
}

func (f FramebufferRegs) BlendEquationA() BlendEquation {
	return BlendEquation(FieldBlendEquationA.Get(f.r[RegAlphaBlending]))
}

func (f FramebufferRegs) FactorSourceRGB() BlendFactor {
	return BlendFactor(FieldFactorSourceRGB.Get(f.r[RegAlphaBlending]))
}

func (f FramebufferRegs) FactorDestRGB() BlendFactor {
	return BlendFactor(FieldFactorDestRGB.Get(f.r[RegAlphaBlending]))
}

func (f FramebufferRegs) FactorSourceA() BlendFactor {
	return BlendFactor(FieldFactorSourceA.Get(f.r[RegAlphaBlending]))
}

func (f FramebufferRegs) FactorDestA() BlendFactor {
	return BlendFactor(FieldFactorDestA.Get(f.r[RegAlphaBlending]))
}

func (f FramebufferRegs) LogicOp() LogicOp {
	return LogicOp(FieldLogicOp.Get(f.r[RegLogicOp]))
}

// BlendConst returns the raw RGBA8 blend constant (R in the low byte).
func (f FramebufferRegs) BlendConst() uint32 { return f.r[RegBlendConst] }

func (f FramebufferRegs) AlphaTestEnable() bool {
	return FieldAlphaTestEnable.GetBool(f.r[RegAlphaTest])
}

func (f FramebufferRegs) AlphaTestFunc() CompareFunc {
	return CompareFunc(FieldAlphaTestFunc.Get(f.r[RegAlphaTest]))
}

func (f FramebufferRegs) AlphaTestRef() uint32 {
	return FieldAlphaTestRef.Get(f.r[RegAlphaTest])
}

func (f FramebufferRegs) StencilEnable() bool {
	return FieldStencilEnable.GetBool(f.r[RegStencilTest])
}

func (f FramebufferRegs) StencilFunc() CompareFunc {
	return CompareFunc(FieldStencilFunc.Get(f.r[RegStencilTest]))
}

func (f FramebufferRegs) StencilWriteMask() uint8 {
	return uint8(FieldStencilWriteMask.Get(f.r[RegStencilTest]))
}

func (f FramebufferRegs) StencilReference() uint8 {
	return uint8(FieldStencilReference.Get(f.r[RegStencilTest]))
}

func (f FramebufferRegs) StencilInputMask() uint8 {
	return uint8(FieldStencilInputMask.Get(f.r[RegStencilTest]))
}

func (f FramebufferRegs) StencilFailAction() StencilAction {
	return StencilAction(FieldStencilFailAction.Get(f.r[RegStencilOp]))
}

func (f FramebufferRegs) DepthFailAction() StencilAction {
	return StencilAction(FieldDepthFailAction.Get(f.r[RegStencilOp]))
}

func (f FramebufferRegs) DepthPassAction() StencilAction {
	return StencilAction(FieldDepthPassAction.Get(f.r[RegStencilOp]))
}

func (f FramebufferRegs) DepthTestEnable() bool {
	return FieldDepthTestEnable.GetBool(f.r[RegDepthColorMask])
}

func (f FramebufferRegs) DepthTestFunc() CompareFunc {
	return CompareFunc(FieldDepthTestFunc.Get(f.r[RegDepthColorMask]))
}

func (f FramebufferRegs) DepthWriteEnable() bool {
	return FieldDepthWriteEnable.GetBool(f.r[RegDepthColorMask])
}

// DepthColorMask returns the raw depth/color mask word.
func (f FramebufferRegs) DepthColorMask() uint32 { return f.r[RegDepthColorMask] }

func (f FramebufferRegs) AllowColorWrite() bool { return f.r[RegAllowColorWrite]&0xF != 0 }

func (f FramebufferRegs) AllowDepthStencilWrite() bool { return f.r[RegAllowDepthWrite]&0x3 != 0 }

func (f FramebufferRegs) DepthFormat() DepthFormat {
	return DepthFormat(FieldDepthFormat.Get(f.r[RegDepthFormat]))
}

func (f FramebufferRegs) ColorFormat() ColorFormat {
	return ColorFormat(FieldColorFormat.Get(f.r[RegColorFormat]))
}

// ColorBufferPhysicalAddress returns the color buffer address in bytes.
func (f FramebufferRegs) ColorBufferPhysicalAddress() uint32 {
	return FieldBufferAddr.Get(f.r[RegColorBufferAddr]) * 8
}

// DepthBufferPhysicalAddress returns the depth buffer address in bytes.
func (f FramebufferRegs) DepthBufferPhysicalAddress() uint32 {
	return FieldBufferAddr.Get(f.r[RegDepthBufferAddr]) * 8
}

func (f FramebufferRegs) Width() uint32 { return FieldFBWidth.Get(f.r[RegFramebufferDims]) }

func (f FramebufferRegs) Height() uint32 { return FieldFBHeight.Get(f.r[RegFramebufferDims]) + 1 }

// IsFlipped reports whether the framebuffer is stored bottom-up.
func (f FramebufferRegs) IsFlipped() bool { return FieldFBFlip.GetBool(f.r[RegFramebufferDims]) }

// ShadowBias returns the constant and linear depth bias of shadow
// rendering.
func (f FramebufferRegs) ShadowBias() (constant, linear float32) {
	w := f.r[RegShadow]
	return Float16ToFloat32(uint16(w)), Float16ToFloat32(uint16(w >> 16))
}

// IsShadowRendering reports whether fragments are written in shadow mode.
func (f FramebufferRegs) IsShadowRendering() bool {
	return f.FragmentOperationMode() == FragmentOpShadow
}

// HasStencil reports whether the depth buffer carries a stencil channel.
func (f FramebufferRegs) HasStencil() bool {
	return f.DepthFormat() == DepthFormatD24S8
}
