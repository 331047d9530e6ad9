package pipeline

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pica/regs"
)

func TestRasterizationTranslation(t *testing.T) {
	tests := []struct {
		name  string
		mode  regs.CullMode
		flip  bool
		cull  gputypes.CullMode
		front gputypes.FrontFace
	}{
		{"keep all", regs.CullKeepAll, false, gputypes.CullModeNone, gputypes.FrontFaceCW},
		{"keep all alias", regs.CullKeepAll2, false, gputypes.CullModeNone, gputypes.FrontFaceCW},
		{"keep cw", regs.CullKeepClockWise, false, gputypes.CullModeBack, gputypes.FrontFaceCW},
		{"keep ccw", regs.CullKeepCounterClockWise, false, gputypes.CullModeBack, gputypes.FrontFaceCCW},
		{"keep cw flipped", regs.CullKeepClockWise, true, gputypes.CullModeBack, gputypes.FrontFaceCCW},
		{"keep ccw flipped", regs.CullKeepCounterClockWise, true, gputypes.CullModeBack, gputypes.FrontFaceCW},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cullMode(tt.mode); got != tt.cull {
				t.Errorf("cullMode(%d) = %v, want %v", tt.mode, got, tt.cull)
			}
			if got := frontFace(tt.mode, tt.flip); got != tt.front {
				t.Errorf("frontFace(%d, %v) = %v, want %v", tt.mode, tt.flip, got, tt.front)
			}
		})
	}

	if got := primitiveTopology(regs.TopologyStrip); got != gputypes.PrimitiveTopologyTriangleStrip {
		t.Errorf("strip topology = %v", got)
	}
	if got := primitiveTopology(regs.TopologyList); got != gputypes.PrimitiveTopologyTriangleList {
		t.Errorf("list topology = %v", got)
	}
}

func TestBlendFactorTranslation(t *testing.T) {
	tests := []struct {
		in   regs.BlendFactor
		want gputypes.BlendFactor
	}{
		{regs.BlendFactorZero, gputypes.BlendFactorZero},
		{regs.BlendFactorOne, gputypes.BlendFactorOne},
		{regs.BlendFactorSourceAlpha, gputypes.BlendFactorSrcAlpha},
		{regs.BlendFactorOneMinusDestColor, gputypes.BlendFactorOneMinusDst},
		{regs.BlendFactorConstantColor, gputypes.BlendFactorConstant},
		{regs.BlendFactorConstantAlpha, gputypes.BlendFactorConstant},
		{regs.BlendFactorOneMinusConstantAlpha, gputypes.BlendFactorOneMinusConstant},
		{regs.BlendFactorSourceAlphaSaturate, gputypes.BlendFactorSrcAlphaSaturated},
	}
	for _, tt := range tests {
		if got := blendFactor(tt.in); got != tt.want {
			t.Errorf("blendFactor(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompareAndStencilTranslation(t *testing.T) {
	compares := map[regs.CompareFunc]gputypes.CompareFunction{
		regs.CompareNever:              gputypes.CompareFunctionNever,
		regs.CompareAlways:             gputypes.CompareFunctionAlways,
		regs.CompareEqual:              gputypes.CompareFunctionEqual,
		regs.CompareNotEqual:           gputypes.CompareFunctionNotEqual,
		regs.CompareLessThan:           gputypes.CompareFunctionLess,
		regs.CompareLessThanOrEqual:    gputypes.CompareFunctionLessEqual,
		regs.CompareGreaterThan:        gputypes.CompareFunctionGreater,
		regs.CompareGreaterThanOrEqual: gputypes.CompareFunctionGreaterEqual,
	}
	for in, want := range compares {
		if got := compareFunction(in); got != want {
			t.Errorf("compareFunction(%d) = %v, want %v", in, got, want)
		}
	}

	actions := map[regs.StencilAction]hal.StencilOperation{
		regs.StencilKeep:          hal.StencilOperationKeep,
		regs.StencilZero:          hal.StencilOperationZero,
		regs.StencilReplace:       hal.StencilOperationReplace,
		regs.StencilIncrement:     hal.StencilOperationIncrementClamp,
		regs.StencilDecrement:     hal.StencilOperationDecrementClamp,
		regs.StencilInvert:        hal.StencilOperationInvert,
		regs.StencilIncrementWrap: hal.StencilOperationIncrementWrap,
		regs.StencilDecrementWrap: hal.StencilOperationDecrementWrap,
	}
	for in, want := range actions {
		if got := stencilOperation(in); got != want {
			t.Errorf("stencilOperation(%d) = %v, want %v", in, got, want)
		}
	}
}

func TestColorTargets(t *testing.T) {
	if got := colorTargets(&Blending{ColorWriteMask: 0xF}, gputypes.TextureFormatUndefined); got != nil {
		t.Errorf("colorTargets without attachment = %v, want nil", got)
	}

	got := colorTargets(&Blending{ColorWriteMask: 0x5}, gputypes.TextureFormatRGBA8Unorm)
	if len(got) != 1 {
		t.Fatalf("len(colorTargets) = %d, want 1", len(got))
	}
	if got[0].Blend != nil {
		t.Error("blend state set with blending disabled")
	}
	if got[0].WriteMask != 0x5 {
		t.Errorf("WriteMask = %#x, want 0x5", got[0].WriteMask)
	}

	b := Blending{
		BlendEnable:    true,
		ColorOp:        regs.BlendEquationReverseSubtract,
		AlphaOp:        regs.BlendEquationMax,
		SrcColor:       regs.BlendFactorSourceAlpha,
		DstColor:       regs.BlendFactorOneMinusSourceAlpha,
		SrcAlpha:       regs.BlendFactorOne,
		DstAlpha:       regs.BlendFactorZero,
		ColorWriteMask: 0xF,
	}
	got = colorTargets(&b, gputypes.TextureFormatRGBA8Unorm)
	blend := got[0].Blend
	if blend == nil {
		t.Fatal("blend state missing")
	}
	if blend.Color.Operation != gputypes.BlendOperationReverseSubtract || blend.Alpha.Operation != gputypes.BlendOperationMax {
		t.Errorf("blend operations = %v/%v", blend.Color.Operation, blend.Alpha.Operation)
	}
	if blend.Color.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("color dst factor = %v", blend.Color.DstFactor)
	}
}

func TestDepthStencilState(t *testing.T) {
	ds := DepthStencil{
		DepthTestEnable:    false,
		DepthWriteEnable:   true,
		DepthCompare:       regs.CompareLessThan,
		StencilTestEnable:  true,
		StencilCompare:     regs.CompareEqual,
		StencilFailOp:      regs.StencilZero,
		StencilPassOp:      regs.StencilReplace,
		StencilDepthFailOp: regs.StencilInvert,
		StencilCompareMask: 0xF0,
		StencilWriteMask:   0x0F,
	}

	if got := depthStencilState(&ds, gputypes.TextureFormatUndefined); got != nil {
		t.Error("depth stencil state without attachment")
	}

	t.Run("depth only format ignores stencil", func(t *testing.T) {
		got := depthStencilState(&ds, gputypes.TextureFormatDepth16Unorm)
		if got.DepthCompare != gputypes.CompareFunctionAlways {
			t.Errorf("DepthCompare = %v, want Always with the test off", got.DepthCompare)
		}
		if !got.DepthWriteEnabled {
			t.Error("depth write dropped")
		}
		if got.StencilFront.Compare != gputypes.CompareFunctionAlways || got.StencilWriteMask != 0 {
			t.Errorf("stencil active on a depth only format: %+v", got.StencilFront)
		}
	})

	t.Run("packed format", func(t *testing.T) {
		withTest := ds
		withTest.DepthTestEnable = true
		got := depthStencilState(&withTest, gputypes.TextureFormatDepth24PlusStencil8)
		if got.DepthCompare != gputypes.CompareFunctionLess {
			t.Errorf("DepthCompare = %v, want Less", got.DepthCompare)
		}
		want := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionEqual,
			FailOp:      hal.StencilOperationZero,
			DepthFailOp: hal.StencilOperationInvert,
			PassOp:      hal.StencilOperationReplace,
		}
		if got.StencilFront != want || got.StencilBack != want {
			t.Errorf("stencil faces = %+v/%+v, want %+v", got.StencilFront, got.StencilBack, want)
		}
		if got.StencilReadMask != 0xF0 || got.StencilWriteMask != 0x0F {
			t.Errorf("stencil masks = %#x/%#x", got.StencilReadMask, got.StencilWriteMask)
		}
	})
}
