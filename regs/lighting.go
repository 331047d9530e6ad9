package regs

// Lighting register ids.
const (
	RegLightingConfig0 = LightingBase + 0x83
	RegLightingConfig1 = LightingBase + 0x84
	RegLightingDisable = LightingBase + 0x86
	RegLightingAmbient = LightingBase + 0x80
	RegNumLights       = LightingBase + 0x82
)

// LightingRegs is a view of the fragment lighting registers.
type LightingRegs struct{ r *Regs }

// Lighting returns the lighting section view.
func (r *Regs) Lighting() LightingRegs { return LightingRegs{r} }

// Disabled reports whether fragment lighting is off.
func (v LightingRegs) Disabled() bool { return v.r[RegLightingDisable]&1 != 0 }

// NumLights returns the number of active light sources.
func (v LightingRegs) NumLights() uint32 { return (v.r[RegNumLights] & 0x7) + 1 }

// GlobalAmbient returns the global ambient color as 8-bit RGB.
func (v LightingRegs) GlobalAmbient() [3]uint8 {
	w := v.r[RegLightingAmbient]
	return [3]uint8{uint8(w >> 20), uint8(w >> 10), uint8(w)}
}
