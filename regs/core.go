package regs

import "github.com/gogpu/pica/internal/bitfield"

// Table sizes of the LUT-backed state.
const (
	NumLightingSampler = 24
	LightingLutSize    = 256
	FogLutSize         = 128
	ProcTexLutSize     = 128
	ProcTexColorSize   = 256
	NumVSFloatUniforms = 96
	NumVSBoolUniforms  = 16
	NumVSIntUniforms   = 4
)

// ProcTex table dirty bits.
const (
	ProcTexNoiseDirty uint8 = 1 << iota
	ProcTexColorMapDirty
	ProcTexAlphaMapDirty
	ProcTexLutDirty
	ProcTexDiffDirty

	ProcTexAllDirty = ProcTexNoiseDirty | ProcTexColorMapDirty | ProcTexAlphaMapDirty |
		ProcTexLutDirty | ProcTexDiffDirty
)

// AllLightingLutsDirty marks every lighting LUT dirty.
const AllLightingLutsDirty = 1<<NumLightingSampler - 1

var (
	fieldLightValue = bitfield.Make(0, 12)
	fieldLightDiff  = bitfield.Make(12, 12)
	fieldFogDiff    = bitfield.Make(0, 13)
	fieldFogValue   = bitfield.Make(13, 11)
	fieldTexValue   = bitfield.Make(0, 12)
	fieldTexDiff    = bitfield.Make(12, 12)
)

// LightingLutEntry is a packed lighting LUT sample.
type LightingLutEntry uint32

func (e LightingLutEntry) ToFloat() float32 {
	return float32(fieldLightValue.Get(uint32(e))) / 4095
}

func (e LightingLutEntry) DiffToFloat() float32 {
	return float32(fieldLightDiff.GetSigned(uint32(e))) / 4095
}

// FogLutEntry is a packed fog LUT sample.
type FogLutEntry uint32

func (e FogLutEntry) ToFloat() float32 {
	return float32(fieldFogValue.Get(uint32(e))) / 2047
}

func (e FogLutEntry) DiffToFloat() float32 {
	return float32(fieldFogDiff.GetSigned(uint32(e))) / 2047
}

// ProcTexValueEntry is a packed procedural texture value LUT sample.
type ProcTexValueEntry uint32

func (e ProcTexValueEntry) ToFloat() float32 {
	return float32(fieldTexValue.Get(uint32(e))) / 4095
}

func (e ProcTexValueEntry) DiffToFloat() float32 {
	return float32(fieldTexDiff.GetSigned(uint32(e))) / 4095
}

// ProcTexColorEntry is an RGBA8 procedural texture color, R in the low byte.
type ProcTexColorEntry uint32

// ToVector returns the color normalized to [0, 1].
func (e ProcTexColorEntry) ToVector() [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = float32(uint8(e>>(8*i))) / 255
	}
	return out
}

// ProcTexDiffEntry is a signed per-channel color delta, R in the low byte.
type ProcTexDiffEntry uint32

// ToVector returns the deltas scaled to [-0.5, 0.5].
func (e ProcTexDiffEntry) ToVector() [4]float32 {
	var out [4]float32
	for i := range out {
		out[i] = float32(int8(e>>(8*i))) / 255
	}
	return out
}

// LightingState holds the lighting LUTs uploaded by the guest.
type LightingState struct {
	LUTs [NumLightingSampler][LightingLutSize]LightingLutEntry
	// LutDirty has bit i set when LUT i changed since its last upload.
	LutDirty uint32
}

// FogState holds the fog LUT.
type FogState struct {
	LUT      [FogLutSize]FogLutEntry
	LutDirty bool
}

// ProcTexState holds the procedural texture tables.
type ProcTexState struct {
	Noise      [ProcTexLutSize]ProcTexValueEntry
	ColorMap   [ProcTexLutSize]ProcTexValueEntry
	AlphaMap   [ProcTexLutSize]ProcTexValueEntry
	Color      [ProcTexColorSize]ProcTexColorEntry
	ColorDiff  [ProcTexColorSize]ProcTexDiffEntry
	TableDirty uint8
}

// VSSetup is the vertex shader program and uniform state.
type VSSetup struct {
	F [NumVSFloatUniforms][4]float32
	B [NumVSBoolUniforms]bool
	I [NumVSIntUniforms][4]uint8

	ProgramCode []uint32
	SwizzleData []uint32

	UniformsDirty bool
}

// Core is the guest-visible GPU state consumed by the rasterizer.
type Core struct {
	Regs              Regs
	DefaultAttributes [NumAttributes][4]Float24
	Lighting          LightingState
	Fog               FogState
	ProcTex           ProcTexState
	VS                VSSetup
}

// NewCore returns a Core with every LUT marked dirty.
func NewCore() *Core {
	c := &Core{}
	c.Lighting.LutDirty = AllLightingLutsDirty
	c.Fog.LutDirty = true
	c.ProcTex.TableDirty = ProcTexAllDirty
	c.VS.UniformsDirty = true
	return c
}

// SetLightingLut writes one lighting LUT entry and marks its table dirty.
func (c *Core) SetLightingLut(table, index int, e LightingLutEntry) {
	if c.Lighting.LUTs[table][index] != e {
		c.Lighting.LUTs[table][index] = e
		c.Lighting.LutDirty |= 1 << table
	}
}

// SetFogLut writes one fog LUT entry.
func (c *Core) SetFogLut(index int, e FogLutEntry) {
	if c.Fog.LUT[index] != e {
		c.Fog.LUT[index] = e
		c.Fog.LutDirty = true
	}
}

// SetFloatUniform writes vertex shader float uniform i.
func (c *Core) SetFloatUniform(i int, v [4]float32) {
	if c.VS.F[i] != v {
		c.VS.F[i] = v
		c.VS.UniformsDirty = true
	}
}

// SetDefaultAttribute writes the fixed value of attribute i.
func (c *Core) SetDefaultAttribute(i int, v [4]float32) {
	for j := range v {
		c.DefaultAttributes[i][j] = Float24FromFloat32(v[j])
	}
}
