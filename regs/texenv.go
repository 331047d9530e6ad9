package regs

// Texture combiner and fog register ids.
const (
	RegFogColor         = 0xE1
	RegTevBufferColor   = 0xFD
	RegProcTexNoiseU    = 0xAA
	RegProcTexNoiseV    = 0xAB
	RegProcTexNoiseFreq = 0xAC
	RegProcTexBias      = 0xA8
	RegShadowConfig     = 0x8B
)

// NumTevStages is the number of texture combiner stages.
const NumTevStages = 6

// tevStageBase holds the first register of each combiner stage.
var tevStageBase = [NumTevStages]int{0xC0, 0xC8, 0xD0, 0xD8, 0xF0, 0xF8}

// TexEnvRegs is a view of the combiner and fog registers.
type TexEnvRegs struct{ r *Regs }

// TexEnv returns the combiner section view.
func (r *Regs) TexEnv() TexEnvRegs { return TexEnvRegs{r} }

// ConstColor returns the constant color of combiner stage i as RGBA8.
func (v TexEnvRegs) ConstColor(i int) uint32 { return v.r[tevStageBase[i]+3] }

func (v TexEnvRegs) BufferColor() uint32 { return v.r[RegTevBufferColor] }

// FogColor returns the fog color as RGB8 packed in the low 24 bits.
func (v TexEnvRegs) FogColor() uint32 { return v.r[RegFogColor] & 0xFFFFFF }

// ProcTexNoise returns the raw noise amplitude/phase words for U and V
// and the noise frequency word.
func (v TexEnvRegs) ProcTexNoise() (u, vv, freq uint32) {
	return v.r[RegProcTexNoiseU], v.r[RegProcTexNoiseV], v.r[RegProcTexNoiseFreq]
}

// ProcTexBias returns the proctex LOD bias as a float.
func (v TexEnvRegs) ProcTexBias() float32 {
	return Float24FromRaw(v.r[RegProcTexBias]).Float32()
}

// ShadowBias returns the raw shadow texture bias word.
func (v TexEnvRegs) ShadowBias() uint32 { return v.r[RegShadowConfig] }
