package pipeline

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
)

func cullMode(m regs.CullMode) gputypes.CullMode {
	switch m {
	case regs.CullKeepClockWise, regs.CullKeepCounterClockWise:
		return gputypes.CullModeBack
	default:
		return gputypes.CullModeNone
	}
}

// frontFace returns the winding kept by the cull mode. A flipped viewport
// mirrors the image vertically, which reverses the winding.
func frontFace(m regs.CullMode, flip bool) gputypes.FrontFace {
	ccw := m == regs.CullKeepCounterClockWise
	if flip {
		ccw = !ccw
	}
	if ccw {
		return gputypes.FrontFaceCCW
	}
	return gputypes.FrontFaceCW
}

func primitiveTopology(t regs.TriangleTopology) gputypes.PrimitiveTopology {
	if t == regs.TopologyStrip {
		return gputypes.PrimitiveTopologyTriangleStrip
	}
	// Fans never reach the pipeline; shader topology is emitted as lists.
	return gputypes.PrimitiveTopologyTriangleList
}

func blendOperation(eq regs.BlendEquation) gputypes.BlendOperation {
	switch eq {
	case regs.BlendEquationSubtract:
		return gputypes.BlendOperationSubtract
	case regs.BlendEquationReverseSubtract:
		return gputypes.BlendOperationReverseSubtract
	case regs.BlendEquationMin:
		return gputypes.BlendOperationMin
	case regs.BlendEquationMax:
		return gputypes.BlendOperationMax
	default:
		return gputypes.BlendOperationAdd
	}
}

// blendFactor maps a PICA factor. The host has one blend constant, so the
// constant alpha factors read the constant color instead.
func blendFactor(f regs.BlendFactor) gputypes.BlendFactor {
	switch f {
	case regs.BlendFactorZero:
		return gputypes.BlendFactorZero
	case regs.BlendFactorOne:
		return gputypes.BlendFactorOne
	case regs.BlendFactorSourceColor:
		return gputypes.BlendFactorSrc
	case regs.BlendFactorOneMinusSourceColor:
		return gputypes.BlendFactorOneMinusSrc
	case regs.BlendFactorDestColor:
		return gputypes.BlendFactorDst
	case regs.BlendFactorOneMinusDestColor:
		return gputypes.BlendFactorOneMinusDst
	case regs.BlendFactorSourceAlpha:
		return gputypes.BlendFactorSrcAlpha
	case regs.BlendFactorOneMinusSourceAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	case regs.BlendFactorDestAlpha:
		return gputypes.BlendFactorDstAlpha
	case regs.BlendFactorOneMinusDestAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case regs.BlendFactorConstantColor, regs.BlendFactorConstantAlpha:
		return gputypes.BlendFactorConstant
	case regs.BlendFactorOneMinusConstantColor, regs.BlendFactorOneMinusConstantAlpha:
		return gputypes.BlendFactorOneMinusConstant
	case regs.BlendFactorSourceAlphaSaturate:
		return gputypes.BlendFactorSrcAlphaSaturated
	default:
		return gputypes.BlendFactorOne
	}
}

func compareFunction(f regs.CompareFunc) gputypes.CompareFunction {
	switch f {
	case regs.CompareNever:
		return gputypes.CompareFunctionNever
	case regs.CompareEqual:
		return gputypes.CompareFunctionEqual
	case regs.CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case regs.CompareLessThan:
		return gputypes.CompareFunctionLess
	case regs.CompareLessThanOrEqual:
		return gputypes.CompareFunctionLessEqual
	case regs.CompareGreaterThan:
		return gputypes.CompareFunctionGreater
	case regs.CompareGreaterThanOrEqual:
		return gputypes.CompareFunctionGreaterEqual
	default:
		return gputypes.CompareFunctionAlways
	}
}

func stencilOperation(a regs.StencilAction) hal.StencilOperation {
	switch a {
	case regs.StencilZero:
		return hal.StencilOperationZero
	case regs.StencilReplace:
		return hal.StencilOperationReplace
	case regs.StencilIncrement:
		return hal.StencilOperationIncrementClamp
	case regs.StencilDecrement:
		return hal.StencilOperationDecrementClamp
	case regs.StencilInvert:
		return hal.StencilOperationInvert
	case regs.StencilIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case regs.StencilDecrementWrap:
		return hal.StencilOperationDecrementWrap
	default:
		return hal.StencilOperationKeep
	}
}

func colorTargets(b *Blending, format gputypes.TextureFormat) []gputypes.ColorTargetState {
	if format == gputypes.TextureFormatUndefined {
		return nil
	}
	target := gputypes.ColorTargetState{
		Format:    format,
		WriteMask: gputypes.ColorWriteMask(b.ColorWriteMask & 0xF),
	}
	if b.BlendEnable {
		target.Blend = &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: blendFactor(b.SrcColor),
				DstFactor: blendFactor(b.DstColor),
				Operation: blendOperation(b.ColorOp),
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: blendFactor(b.SrcAlpha),
				DstFactor: blendFactor(b.DstAlpha),
				Operation: blendOperation(b.AlphaOp),
			},
		}
	}
	return []gputypes.ColorTargetState{target}
}

func depthStencilState(ds *DepthStencil, format gputypes.TextureFormat) *hal.DepthStencilState {
	if format == gputypes.TextureFormatUndefined {
		return nil
	}
	state := &hal.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: ds.DepthWriteEnable,
		DepthCompare:      gputypes.CompareFunctionAlways,
	}
	if ds.DepthTestEnable {
		state.DepthCompare = compareFunction(ds.DepthCompare)
	}
	face := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	if ds.StencilTestEnable && format == gputypes.TextureFormatDepth24PlusStencil8 {
		face = hal.StencilFaceState{
			Compare:     compareFunction(ds.StencilCompare),
			FailOp:      stencilOperation(ds.StencilFailOp),
			DepthFailOp: stencilOperation(ds.StencilDepthFailOp),
			PassOp:      stencilOperation(ds.StencilPassOp),
		}
		state.StencilReadMask = uint32(ds.StencilCompareMask)
		state.StencilWriteMask = uint32(ds.StencilWriteMask)
	}
	state.StencilFront = face
	state.StencilBack = face
	return state
}

// stages holds the shader modules of a pipeline.
type stages struct {
	vertex   hal.ShaderModule
	vsEntry  string
	fragment hal.ShaderModule
	fsEntry  string
}

// renderPipelineDescriptor translates key into a HAL pipeline description.
func renderPipelineDescriptor(key *Key, layout hal.PipelineLayout, s stages) *hal.RenderPipelineDescriptor {
	r := &key.Rasterization
	return &hal.RenderPipelineDescriptor{
		Label:  "pica_pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     s.vertex,
			EntryPoint: s.vsEntry,
			Buffers:    key.VertexLayout.Buffers(),
		},
		Fragment: &hal.FragmentState{
			Module:     s.fragment,
			EntryPoint: s.fsEntry,
			Targets:    colorTargets(&key.Blending, key.Attachments.Color),
		},
		DepthStencil: depthStencilState(&key.DepthStencil, key.Attachments.Depth),
		Primitive: gputypes.PrimitiveState{
			Topology:  primitiveTopology(r.Topology),
			FrontFace: frontFace(r.CullMode, r.FlipViewport),
			CullMode:  cullMode(r.CullMode),
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
}
