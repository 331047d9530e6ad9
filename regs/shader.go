package regs

// Vertex shader unit register ids.
const (
	RegVSBoolUniforms = VSBase + 0x00
	RegVSIntUniforms  = VSBase + 0x01
	RegVSInputMapLow  = VSBase + 0x0B
	RegVSInputMapHigh = VSBase + 0x0C
	RegVSOutputMask   = VSBase + 0x0D
	RegVSEntryPoint   = VSBase + 0x0A
)

// ShaderRegs is a view of the vertex shader unit registers.
type ShaderRegs struct{ r *Regs }

// VS returns the vertex shader section view.
func (r *Regs) VS() ShaderRegs { return ShaderRegs{r} }

// RegisterForAttribute returns the input register that attribute i is
// loaded into.
func (v ShaderRegs) RegisterForAttribute(i int) uint32 {
	if i < 8 {
		return (v.r[RegVSInputMapLow] >> (4 * i)) & 0xF
	}
	return (v.r[RegVSInputMapHigh] >> (4 * (i - 8))) & 0xF
}

func (v ShaderRegs) BoolUniforms() uint32 { return v.r[RegVSBoolUniforms] & 0xFFFF }

// IntUniform returns the x, y, z and w bytes of integer uniform i.
func (v ShaderRegs) IntUniform(i int) [4]uint8 {
	w := v.r[RegVSIntUniforms+i]
	return [4]uint8{uint8(w), uint8(w >> 8), uint8(w >> 16), uint8(w >> 24)}
}

func (v ShaderRegs) EntryPoint() uint32 { return v.r[RegVSEntryPoint] & 0xFFFF }
