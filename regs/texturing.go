package regs

import "github.com/gogpu/pica/internal/bitfield"

// Texturing register ids.
const (
	RegTexturingMain = TexturingBase + 0x00

	RegTex0BorderColor = TexturingBase + 0x01
	RegTex0Size        = TexturingBase + 0x02
	RegTex0Config      = TexturingBase + 0x03
	RegTex0Lod         = TexturingBase + 0x04
	RegTex0Address     = TexturingBase + 0x05
	RegTex0CubeAddress = TexturingBase + 0x06
	RegTex0Format      = TexturingBase + 0x0E

	RegTex1BorderColor = TexturingBase + 0x11
	RegTex2BorderColor = TexturingBase + 0x19
)

// unitBase is the first register of each texture unit's config block.
var unitBase = [3]int{RegTex0BorderColor, RegTex1BorderColor, RegTex2BorderColor}

// unitFormat is the format register of each texture unit.
var unitFormat = [3]int{RegTex0Format, TexturingBase + 0x16, TexturingBase + 0x1E}

var (
	FieldTexHeight   = bitfield.Make(0, 11)
	FieldTexWidth    = bitfield.Make(16, 11)
	FieldTexMag      = bitfield.Make(1, 1)
	FieldTexMin      = bitfield.Make(2, 1)
	FieldTexWrapT    = bitfield.Make(8, 3)
	FieldTexWrapS    = bitfield.Make(12, 3)
	FieldTexMip      = bitfield.Make(24, 1)
	FieldTexType     = bitfield.Make(28, 3)
	FieldTexLodBias  = bitfield.Make(0, 13)
	FieldTexMaxLevel = bitfield.Make(16, 4)
	FieldTexMinLevel = bitfield.Make(24, 4)
	FieldTexFormat   = bitfield.Make(0, 4)
)

// TextureType selects how a texture unit samples.
type TextureType uint32

const (
	Texture2D         TextureType = 0
	TextureCube       TextureType = 1
	TextureShadow2D   TextureType = 2
	TextureProjection TextureType = 3
	TextureShadowCube TextureType = 4
	TextureDisabled   TextureType = 5
)

// CubeFace indexes the six faces of a cube texture.
type CubeFace uint8

const (
	CubePositiveX CubeFace = iota
	CubeNegativeX
	CubePositiveY
	CubeNegativeY
	CubePositiveZ
	CubeNegativeZ
)

// TextureConfig is the decoded state of one texture unit.
type TextureConfig struct {
	BorderColor uint32
	Width       uint32
	Height      uint32
	MagFilter   uint32
	MinFilter   uint32
	MipFilter   uint32
	WrapS       uint32
	WrapT       uint32
	Type        TextureType
	LodBias     int32
	MaxLevel    uint32
	MinLevel    uint32
	Address     uint32 // physical, already scaled
	Format      uint32

	main  uint32
	faces [5]uint32
}

// CubePhysicalAddress returns the physical address of a cube face. The
// positive-X face lives at the main address; the others share its high bits.
func (c TextureConfig) CubePhysicalAddress(face CubeFace) uint32 {
	if face == CubePositiveX {
		return c.main * 8
	}
	return ((c.main & 0xFC00000) | (c.faces[face-1] & 0x3FFFFF)) * 8
}

// TextureUnit pairs a unit's config with its enable bit.
type TextureUnit struct {
	Enabled bool
	Config  TextureConfig
}

// TexturingRegs is a view of the texturing registers.
type TexturingRegs struct{ r *Regs }

// Texturing returns the texturing section view.
func (r *Regs) Texturing() TexturingRegs { return TexturingRegs{r} }

// Units returns the state of the three texture units.
func (v TexturingRegs) Units() [3]TextureUnit {
	main := v.r[RegTexturingMain]
	var out [3]TextureUnit
	for i := range out {
		out[i] = TextureUnit{
			Enabled: main&(1<<i) != 0,
			Config:  v.config(i),
		}
	}
	return out
}

func (v TexturingRegs) config(unit int) TextureConfig {
	base := unitBase[unit]
	size := v.r[base+1]
	cfg := v.r[base+2]
	lod := v.r[base+3]
	c := TextureConfig{
		BorderColor: v.r[base],
		Width:       FieldTexWidth.Get(size),
		Height:      FieldTexHeight.Get(size),
		MagFilter:   FieldTexMag.Get(cfg),
		MinFilter:   FieldTexMin.Get(cfg),
		MipFilter:   FieldTexMip.Get(cfg),
		WrapS:       FieldTexWrapS.Get(cfg),
		WrapT:       FieldTexWrapT.Get(cfg),
		Type:        TextureType(FieldTexType.Get(cfg)),
		LodBias:     FieldTexLodBias.GetSigned(lod),
		MaxLevel:    FieldTexMaxLevel.Get(lod),
		MinLevel:    FieldTexMinLevel.Get(lod),
		main:        v.r[base+4],
		Address:     v.r[base+4] * 8,
		Format:      FieldTexFormat.Get(v.r[unitFormat[unit]]),
	}
	// Only unit 0 carries cube face addresses.
	if unit == 0 {
		copy(c.faces[:], v.r[RegTex0CubeAddress:RegTex0CubeAddress+5])
	}
	return c
}
