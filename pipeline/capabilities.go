package pipeline

import "github.com/gogpu/gputypes"

// Capabilities describes what the host device can do natively. Anything
// missing is emulated in shaders or rejected so the caller falls back to
// software vertex processing.
type Capabilities struct {
	// TriangleFan is set when the device rasterizes fans directly.
	TriangleFan bool
	// FragmentBarycentric lets the fragment shader fix quaternion
	// interpolation without a geometry stage.
	FragmentBarycentric bool
	// GeometryShader is set when a geometry stage is available.
	GeometryShader bool
	// LogicOp is set when framebuffer logic operations are supported.
	LogicOp bool

	MinVertexStrideAlignment uint32
	UniformMinAlignment      uint32
	// MaxTexelBufferElements caps the texel buffer sizes.
	MaxTexelBufferElements uint64
}

// NeedsLogicOpEmulation reports whether logic operations are done in the
// fragment shader.
func (c Capabilities) NeedsLogicOpEmulation() bool { return !c.LogicOp }

// NeedsQuaternionFixup reports whether the quaternion fix-up geometry
// stage must run for the draw. It is skipped when per-fragment lighting is
// off or when barycentrics are available in the fragment stage.
func (c Capabilities) NeedsQuaternionFixup(lightingDisabled bool) bool {
	if lightingDisabled || c.FragmentBarycentric {
		return false
	}
	return c.GeometryShader
}

// CapabilitiesFromLimits derives capabilities from device limits. The HAL
// has no fans, logic ops or geometry stage, so those stay false.
func CapabilitiesFromLimits(limits gputypes.Limits) Capabilities {
	align := limits.MinUniformBufferOffsetAlignment
	if align == 0 {
		align = 256
	}
	return Capabilities{
		MinVertexStrideAlignment: 4,
		UniformMinAlignment:      align,
		MaxTexelBufferElements:   limits.MaxStorageBufferBindingSize / 8,
	}
}
