// Package uniform keeps the shader uniform blocks in sync with the PICA
// registers and streams them, together with the lookup tables, into
// staging buffers.
package uniform

import (
	"github.com/gogpu/pica/regs"
)

// Encoded block sizes before alignment.
const (
	VSPicaDataSize = 16*16 + regs.NumVSIntUniforms*16 + regs.NumVSFloatUniforms*16
	VSDataSize     = 32
	FSDataSize     = 368
)

// VSPicaData mirrors the guest vertex shader uniforms. Every bool takes a
// full 16-byte slot.
type VSPicaData struct {
	Bools [regs.NumVSBoolUniforms]bool
	I     [regs.NumVSIntUniforms][4]uint32
	F     [regs.NumVSFloatUniforms][4]float32
}

// SetFromSetup copies the uniforms of a vertex shader setup.
func (d *VSPicaData) SetFromSetup(s *regs.VSSetup) {
	d.Bools = s.B
	for i, v := range s.I {
		d.I[i] = [4]uint32{uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3])}
	}
	d.F = s.F
}

// Append encodes the block after dst.
func (d *VSPicaData) Append(dst []byte) []byte {
	w := std140{buf: dst}
	for _, b := range d.Bools {
		w.uvec4([4]uint32{boolWord(b)})
	}
	for _, i := range d.I {
		w.uvec4(i)
	}
	for _, f := range d.F {
		w.vec4(f)
	}
	return w.end()
}

// VSData is the host vertex stage block.
type VSData struct {
	EnableClip1 bool
	ClipCoef    [4]float32
}

func (d *VSData) Append(dst []byte) []byte {
	w := std140{buf: dst}
	w.u32(boolWord(d.EnableClip1))
	w.vec4(d.ClipCoef)
	return w.end()
}

// FSData is the fragment stage block. LUT offsets are in elements of the
// table they index: two floats for the lighting, fog and proctex value
// tables, four for the proctex color tables.
type FSData struct {
	FramebufferScale   int32
	AlphaTestRef       int32
	DepthScale         float32
	DepthOffset        float32
	ShadowBiasConstant float32
	ShadowBiasLinear   float32
	ScissorX1          int32
	ScissorY1          int32
	ScissorX2          int32
	ScissorY2          int32

	FogLutOffset          int32
	ProcTexNoiseLutOffset int32
	ProcTexColorMapOffset int32
	ProcTexAlphaMapOffset int32
	ProcTexLutOffset      int32
	ProcTexDiffLutOffset  int32
	ProcTexBias           float32
	ShadowTextureBias     int32
	LightingLutOffset     [regs.NumLightingSampler / 4][4]int32

	FogColor               [3]float32
	ProcTexNoiseF          [2]float32
	ProcTexNoiseA          [2]float32
	ProcTexNoiseP          [2]float32
	LightingGlobalAmbient  [3]float32
	ConstColor             [regs.NumTevStages][4]float32
	TevCombinerBufferColor [4]float32
	BlendColor             [4]float32
}

func (d *FSData) Append(dst []byte) []byte {
	w := std140{buf: dst}
	w.i32(d.FramebufferScale)
	w.i32(d.AlphaTestRef)
	w.f32(d.DepthScale)
	w.f32(d.DepthOffset)
	w.f32(d.ShadowBiasConstant)
	w.f32(d.ShadowBiasLinear)
	w.i32(d.ScissorX1)
	w.i32(d.ScissorY1)
	w.i32(d.ScissorX2)
	w.i32(d.ScissorY2)
	w.i32(d.FogLutOffset)
	w.i32(d.ProcTexNoiseLutOffset)
	w.i32(d.ProcTexColorMapOffset)
	w.i32(d.ProcTexAlphaMapOffset)
	w.i32(d.ProcTexLutOffset)
	w.i32(d.ProcTexDiffLutOffset)
	w.f32(d.ProcTexBias)
	w.i32(d.ShadowTextureBias)
	for _, o := range d.LightingLutOffset {
		w.ivec4(o)
	}
	w.vec3(d.FogColor)
	w.vec2(d.ProcTexNoiseF)
	w.vec2(d.ProcTexNoiseA)
	w.vec2(d.ProcTexNoiseP)
	w.vec3(d.LightingGlobalAmbient)
	for _, c := range d.ConstColor {
		w.vec4(c)
	}
	w.vec4(d.TevCombinerBufferColor)
	w.vec4(d.BlendColor)
	return w.end()
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// colorRGBA8 unpacks a color with red in the low byte.
func colorRGBA8(c uint32) [4]float32 {
	return [4]float32{
		float32(c&0xFF) / 255,
		float32(c>>8&0xFF) / 255,
		float32(c>>16&0xFF) / 255,
		float32(c>>24) / 255,
	}
}

func colorRGB8(c uint32) [3]float32 {
	v := colorRGBA8(c)
	return [3]float32{v[0], v[1], v[2]}
}

// syncVS refreshes the vertex block from the registers and reports
// whether it changed.
func syncVS(d *VSData, r *regs.Regs) bool {
	next := VSData{
		EnableClip1: r.Rasterizer().ClipEnable(),
		ClipCoef:    r.Rasterizer().ClipCoef(),
	}
	if next == *d {
		return false
	}
	*d = next
	return true
}

// syncFS refreshes the register derived fields of the fragment block,
// leaving the LUT offsets and scissor alone, and reports whether anything
// changed.
func syncFS(d *FSData, r *regs.Regs) bool {
	next := *d
	rast := r.Rasterizer()
	fb := r.Framebuffer()
	tev := r.TexEnv()

	next.AlphaTestRef = int32(fb.AlphaTestRef())
	next.DepthScale = rast.DepthScale()
	next.DepthOffset = rast.DepthOffset()
	next.ShadowBiasConstant, next.ShadowBiasLinear = fb.ShadowBias()
	next.ProcTexBias = tev.ProcTexBias()
	next.ShadowTextureBias = int32(tev.ShadowBias()>>1&0x7FFFFF) << 1
	next.FogColor = colorRGB8(tev.FogColor())

	u, v, freq := tev.ProcTexNoise()
	next.ProcTexNoiseA = [2]float32{float32(int16(u)) / 4095, float32(int16(v)) / 4095}
	next.ProcTexNoiseP = [2]float32{float32(u>>16) / 4095, float32(v>>16) / 4095}
	next.ProcTexNoiseF = [2]float32{regs.Float16ToFloat32(uint16(freq)), regs.Float16ToFloat32(uint16(freq >> 16))}

	amb := r.Lighting().GlobalAmbient()
	next.LightingGlobalAmbient = [3]float32{float32(amb[0]) / 255, float32(amb[1]) / 255, float32(amb[2]) / 255}
	for i := range next.ConstColor {
		next.ConstColor[i] = colorRGBA8(tev.ConstColor(i))
	}
	next.TevCombinerBufferColor = colorRGBA8(tev.BufferColor())
	next.BlendColor = colorRGBA8(fb.BlendConst())

	if next == *d {
		return false
	}
	*d = next
	return true
}
