package pica

import (
	"github.com/gogpu/pica/pipeline"
	"github.com/gogpu/pica/regs"
)

// The Sync functions copy one facet of the fixed function state from the
// registers into info. Each reports whether its facet changed.

// SyncCull syncs the cull mode and the viewport flip.
func SyncCull(r *regs.Regs, info *pipeline.Info) bool {
	next := info.Rasterization
	next.CullMode = r.Rasterizer().CullMode()
	next.FlipViewport = r.Framebuffer().IsFlipped()
	return assign(&info.Rasterization, next)
}

// SyncBlend syncs the blend enable, equations and factors, and the blend
// constant.
func SyncBlend(r *regs.Regs, info *pipeline.Info) bool {
	fb := r.Framebuffer()
	next := info.Blending
	next.BlendEnable = fb.AlphaBlendEnable()
	next.ColorOp = fb.BlendEquationRGB()
	next.AlphaOp = fb.BlendEquationA()
	next.SrcColor = fb.FactorSourceRGB()
	next.DstColor = fb.FactorDestRGB()
	next.SrcAlpha = fb.FactorSourceA()
	next.DstAlpha = fb.FactorDestA()
	changed := assign(&info.Blending, next)
	return assign(&info.Dynamic.BlendColor, fb.BlendConst()) || changed
}

// SyncLogicOpAndColorMask syncs the logic op and the color write mask.
// When logic ops are emulated and the op is NoOp, color writes are masked
// off so depth can still be written.
func SyncLogicOpAndColorMask(r *regs.Regs, caps pipeline.Capabilities, info *pipeline.Info) bool {
	fb := r.Framebuffer()
	next := info.Blending
	next.LogicOp = fb.LogicOp()

	isLogicOpEmulated := caps.NeedsLogicOpEmulation() && !fb.AlphaBlendEnable()
	isLogicOpNoop := next.LogicOp == regs.LogicOpNoOp
	if isLogicOpEmulated && isLogicOpNoop {
		next.ColorWriteMask = 0
	} else if fb.AllowColorWrite() {
		next.ColorWriteMask = uint8(regs.FieldColorMask.Get(fb.DepthColorMask()))
	} else {
		next.ColorWriteMask = 0
	}
	return assign(&info.Blending, next)
}

// SyncStencil syncs the stencil test, its masks and the reference value.
// The test only runs on D24S8 targets.
func SyncStencil(r *regs.Regs, info *pipeline.Info) bool {
	fb := r.Framebuffer()
	next := info.DepthStencil
	next.StencilTestEnable = fb.StencilEnable() && fb.DepthFormat() == regs.DepthFormatD24S8
	next.StencilCompare = fb.StencilFunc()
	next.StencilFailOp = fb.StencilFailAction()
	next.StencilPassOp = fb.DepthPassAction()
	next.StencilDepthFailOp = fb.DepthFailAction()
	next.StencilCompareMask = fb.StencilInputMask()
	next.StencilWriteMask = 0
	if fb.AllowDepthStencilWrite() {
		next.StencilWriteMask = fb.StencilWriteMask()
	}
	changed := assign(&info.DepthStencil, next)
	return assign(&info.Dynamic.StencilReference, fb.StencilReference()) || changed
}

// SyncDepth syncs the depth test and write enables. Depth writes without
// a depth test run the test with an always passing compare.
func SyncDepth(r *regs.Regs, info *pipeline.Info) bool {
	fb := r.Framebuffer()
	next := info.DepthStencil
	next.DepthTestEnable = fb.DepthTestEnable() || fb.DepthWriteEnable()
	next.DepthCompare = regs.CompareAlways
	if fb.DepthTestEnable() {
		next.DepthCompare = fb.DepthTestFunc()
	}
	next.DepthWriteEnable = fb.AllowDepthStencilWrite() && fb.DepthWriteEnable()
	return assign(&info.DepthStencil, next)
}

// SyncDrawState runs every facet and reports whether any changed.
func SyncDrawState(r *regs.Regs, caps pipeline.Capabilities, info *pipeline.Info) bool {
	changed := SyncCull(r, info)
	changed = SyncBlend(r, info) || changed
	changed = SyncLogicOpAndColorMask(r, caps, info) || changed
	changed = SyncStencil(r, info) || changed
	changed = SyncDepth(r, info) || changed
	return changed
}

// attachmentsNeeded reports which render targets the draw touches. A
// target that is neither written nor tested is left unbound.
func attachmentsNeeded(r *regs.Regs, info *pipeline.Info) (color, depth bool) {
	fb := r.Framebuffer()
	shadow := fb.IsShadowRendering()
	writeColor := shadow || info.Blending.ColorWriteMask != 0
	writeDepth := info.IsDepthWriteEnabled()
	color = fb.ColorBufferPhysicalAddress() != 0 && writeColor
	depth = !shadow && fb.DepthBufferPhysicalAddress() != 0 &&
		(writeDepth || fb.DepthTestEnable() || fb.HasStencil() && info.DepthStencil.StencilTestEnable)
	return color, depth
}

func assign[T comparable](dst *T, v T) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}
