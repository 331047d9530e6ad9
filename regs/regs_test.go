package regs

import (
	"math"
	"testing"
)

func TestRegsWriteMask(t *testing.T) {
	tests := []struct {
		name string
		old  uint32
		val  uint32
		mask uint8
		want uint32
	}{
		{"full", 0x11223344, 0xAABBCCDD, 0xF, 0xAABBCCDD},
		{"none", 0x11223344, 0xAABBCCDD, 0x0, 0x11223344},
		{"low byte", 0x11223344, 0xAABBCCDD, 0x1, 0x112233DD},
		{"high half", 0x11223344, 0xAABBCCDD, 0xC, 0xAABB3344},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Regs
			r[RegNumVertices] = tt.old
			r.Write(RegNumVertices, tt.val, tt.mask)
			if got := r.Word(RegNumVertices); got != tt.want {
				t.Errorf("Write() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestRegsOutOfRange(t *testing.T) {
	var r Regs
	r.Write(NumRegs, 1, 0xF)
	if r.Word(NumRegs) != 0 {
		t.Error("Word() out of range should be 0")
	}
	if got := r.Range(NumRegs-1, NumRegs+8); len(got) != 1 {
		t.Errorf("Range() len = %d, want 1", len(got))
	}
}

func TestFloat24RoundTrip(t *testing.T) {
	tests := []float32{0, 1, -1, 0.5, 2.25, -123.75, 1024}
	for _, f := range tests {
		if got := Float24FromFloat32(f).Float32(); got != f {
			t.Errorf("Float24(%v) round trip = %v", f, got)
		}
	}
}

func TestFloat24Special(t *testing.T) {
	if got := Float24FromFloat32(float32(math.Inf(1))).Float32(); !math.IsInf(float64(got), 1) {
		t.Errorf("+Inf = %v", got)
	}
	if got := Float24FromFloat32(1e-30).Float32(); got != 0 {
		t.Errorf("underflow = %v, want 0", got)
	}
	// 1.0: exponent 63, mantissa 0.
	if got := Float24(0x3F0000).Float32(); got != 1 {
		t.Errorf("raw 0x3F0000 = %v, want 1", got)
	}
}

func TestFloat16(t *testing.T) {
	tests := []struct {
		in   uint16
		want float32
	}{
		{0x0000, 0},
		{0x3C00, 1},
		{0xC000, -2},
		{0x3800, 0.5},
		{0x7BFF, 65504},
		{0x0001, 5.9604645e-08},
	}
	for _, tt := range tests {
		if got := Float16ToFloat32(tt.in); got != tt.want {
			t.Errorf("Float16ToFloat32(%#04x) = %v, want %v", tt.in, got, tt.want)
		}
	}
	var r Regs
	r[RegShadow] = 0x3800<<16 | 0x3C00
	if c, l := r.Framebuffer().ShadowBias(); c != 1 || l != 0.5 {
		t.Errorf("ShadowBias() = %v, %v, want 1, 0.5", c, l)
	}
}

func TestFramebufferAccessors(t *testing.T) {
	var r Regs
	r.Set(RegStencilTest, FieldStencilEnable, 1)
	r.Set(RegStencilTest, FieldStencilFunc, uint32(CompareGreaterThan))
	r.Set(RegStencilTest, FieldStencilWriteMask, 0xF0)
	r.Set(RegStencilTest, FieldStencilReference, 0x12)
	r.Set(RegStencilTest, FieldStencilInputMask, 0x0F)
	r.Set(RegDepthFormat, FieldDepthFormat, uint32(DepthFormatD24S8))
	r[RegColorBufferAddr] = 0x1000
	r[RegFramebufferDims] = 400 | (239 << 12) | (1 << 24)

	fb := r.Framebuffer()
	if !fb.StencilEnable() || fb.StencilFunc() != CompareGreaterThan {
		t.Errorf("stencil enable/func = %v/%v", fb.StencilEnable(), fb.StencilFunc())
	}
	if fb.StencilWriteMask() != 0xF0 || fb.StencilReference() != 0x12 || fb.StencilInputMask() != 0x0F {
		t.Errorf("stencil masks = %#x %#x %#x", fb.StencilWriteMask(), fb.StencilReference(), fb.StencilInputMask())
	}
	if !fb.HasStencil() {
		t.Error("HasStencil() = false for D24S8")
	}
	if got := fb.ColorBufferPhysicalAddress(); got != 0x8000 {
		t.Errorf("ColorBufferPhysicalAddress() = %#x, want 0x8000", got)
	}
	if fb.Width() != 400 || fb.Height() != 240 || !fb.IsFlipped() {
		t.Errorf("dims = %dx%d flipped=%v", fb.Width(), fb.Height(), fb.IsFlipped())
	}
}

func TestPipelineLoaderDecode(t *testing.T) {
	var r Regs
	// Attribute 0: FLOAT x3, attribute 1: UBYTE x4.
	r[RegVertexAttribFormat] = uint32(AttribFloat) | 2<<2 | (uint32(AttribUByte)|3<<2)<<4
	// Attributes 12.. are fixed; attribute 2 is fixed through the mask.
	r[RegVertexAttribHigh] = 1 << (16 + 2)
	// Loader 0: components {0, 13, 1}, 20 bytes per vertex.
	r[RegVertexLoaderBase] = 0x40
	r[RegVertexLoaderBase+1] = 0 | 13<<4 | 1<<8
	r[RegVertexLoaderBase+2] = 20<<16 | 3<<28

	p := r.Pipeline()
	if p.Format(0) != AttribFloat || p.NumElements(0) != 3 || p.Stride(0) != 12 {
		t.Errorf("attr0 = %v x%d stride %d", p.Format(0), p.NumElements(0), p.Stride(0))
	}
	if p.Format(1) != AttribUByte || p.Stride(1) != 4 {
		t.Errorf("attr1 = %v stride %d", p.Format(1), p.Stride(1))
	}
	l := p.Loader(0)
	if l.DataOffset != 0x40 || l.ByteCount != 20 || l.ComponentCount != 3 {
		t.Errorf("loader = %+v", l)
	}
	if l.Components[1] != 13 || l.Components[2] != 1 {
		t.Errorf("components = %v", l.Components[:3])
	}

	tests := []struct {
		attr int
		want bool
	}{
		{0, false}, {2, true}, {11, false}, {12, true}, {15, true},
	}
	for _, tt := range tests {
		if got := p.IsDefaultAttribute(tt.attr); got != tt.want {
			t.Errorf("IsDefaultAttribute(%d) = %v, want %v", tt.attr, got, tt.want)
		}
	}
}

func TestCubePhysicalAddress(t *testing.T) {
	var r Regs
	r[RegTex0Address] = 0x0C00_0100
	r[RegTex0CubeAddress] = 0x0000_0200
	r[RegTex0CubeAddress+4] = 0x0FFF_0600

	cfg := r.Texturing().Units()[0].Config
	tests := []struct {
		face CubeFace
		want uint32
	}{
		{CubePositiveX, 0x0C00_0100 * 8},
		{CubeNegativeX, (0x0C00_0000 | 0x200) * 8},
		{CubeNegativeZ, (0x0C00_0000 | 0x3F_0600) * 8},
	}
	for _, tt := range tests {
		if got := cfg.CubePhysicalAddress(tt.face); got != tt.want {
			t.Errorf("CubePhysicalAddress(%d) = %#x, want %#x", tt.face, got, tt.want)
		}
	}
}

func TestLutEntries(t *testing.T) {
	light := LightingLutEntry(4095 | (0xFFF << 12))
	if light.ToFloat() != 1 {
		t.Errorf("lighting ToFloat = %v", light.ToFloat())
	}
	if got := light.DiffToFloat(); got != -1.0/4095 {
		t.Errorf("lighting DiffToFloat = %v", got)
	}
	fog := FogLutEntry(2047 << 13)
	if fog.ToFloat() != 1 || fog.DiffToFloat() != 0 {
		t.Errorf("fog = %v/%v", fog.ToFloat(), fog.DiffToFloat())
	}
	diff := ProcTexDiffEntry(0x00_00_FF_7F).ToVector()
	if diff[0] != 127.0/255 || diff[1] != -1.0/255 {
		t.Errorf("diff = %v", diff)
	}
}

func TestCoreDirtyTracking(t *testing.T) {
	c := NewCore()
	c.Lighting.LutDirty = 0
	c.SetLightingLut(3, 0, 7)
	c.SetLightingLut(3, 0, 7)
	if c.Lighting.LutDirty != 1<<3 {
		t.Errorf("LutDirty = %#b", c.Lighting.LutDirty)
	}
	c.Fog.LutDirty = false
	c.SetFogLut(0, 0)
	if c.Fog.LutDirty {
		t.Error("writing an unchanged fog entry set the dirty flag")
	}
}
