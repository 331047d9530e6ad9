package regs

import "github.com/gogpu/pica/internal/bitfield"

// Geometry pipeline register ids.
const (
	RegVertexAttribBase   = PipelineBase + 0x00
	RegVertexAttribFormat = PipelineBase + 0x01
	RegVertexAttribHigh   = PipelineBase + 0x02
	RegVertexLoaderBase   = PipelineBase + 0x03
	RegIndexArray         = PipelineBase + 0x27
	RegNumVertices        = PipelineBase + 0x28
	RegUseGS              = PipelineBase + 0x29
	RegVertexOffset       = PipelineBase + 0x2A
	RegGSConfig           = PipelineBase + 0x52
	RegTriangleTopology   = PipelineBase + 0x5E
)

// NumLoaders is the number of vertex array loaders.
const NumLoaders = 12

// NumAttributes is the number of vertex input attributes, including the
// fixed-only slots 12 to 15.
const NumAttributes = 16

// MaxLoaderComponents is the number of component slots per loader.
const MaxLoaderComponents = 12

var (
	FieldAttribBase     = bitfield.Make(1, 28)
	FieldFixedMask      = bitfield.Make(16, 12)
	FieldMaxAttribIndex = bitfield.Make(28, 4)
	FieldLoaderBytes    = bitfield.Make(16, 8)
	FieldLoaderCount    = bitfield.Make(28, 4)
	FieldIndexOffset    = bitfield.Make(0, 31)
	FieldIndexFormat    = bitfield.Make(31, 1)
	FieldUseGS          = bitfield.Make(0, 2)
	FieldGSMode         = bitfield.Make(0, 2)
	FieldTopology       = bitfield.Make(8, 2)
)

// AttributeFormat is the component type of a vertex attribute.
type AttributeFormat uint8

const (
	AttribByte  AttributeFormat = 0
	AttribUByte AttributeFormat = 1
	AttribShort AttributeFormat = 2
	AttribFloat AttributeFormat = 3
)

// ElementSize returns the size in bytes of one component.
func (f AttributeFormat) ElementSize() uint32 {
	switch f {
	case AttribShort:
		return 2
	case AttribFloat:
		return 4
	default:
		return 1
	}
}

func (f AttributeFormat) String() string {
	switch f {
	case AttribByte:
		return "BYTE"
	case AttribUByte:
		return "UBYTE"
	case AttribShort:
		return "SHORT"
	case AttribFloat:
		return "FLOAT"
	}
	return "unknown"
}

// TriangleTopology is the primitive assembly mode.
type TriangleTopology uint32

const (
	TopologyList   TriangleTopology = 0
	TopologyStrip  TriangleTopology = 1
	TopologyFan    TriangleTopology = 2
	TopologyShader TriangleTopology = 3
)

// UseGS selects whether the geometry shader unit is active.
type UseGS uint32

const (
	UseGSNo  UseGS = 0
	UseGSYes UseGS = 2
)

// GSMode is the geometry shader input mode.
type GSMode uint32

const (
	GSModePoint             GSMode = 0
	GSModeVariablePrimitive GSMode = 1
	GSModeFixedPrimitive    GSMode = 2
)

// Loader describes one vertex array loader.
type Loader struct {
	DataOffset     uint32
	Components     [MaxLoaderComponents]uint32
	ByteCount      uint32
	ComponentCount uint32
}

// IndexArray describes the index buffer of an indexed draw.
type IndexArray struct {
	Offset uint32
	// Format is 0 for 8-bit and 1 for 16-bit indices.
	Format uint32
}

// PipelineRegs is a view of the geometry pipeline registers.
type PipelineRegs struct{ r *Regs }

// Pipeline returns the geometry pipeline section view.
func (r *Regs) Pipeline() PipelineRegs { return PipelineRegs{r} }

// BaseAddress returns the physical base address of all vertex arrays.
func (v PipelineRegs) BaseAddress() uint32 {
	return FieldAttribBase.Get(v.r[RegVertexAttribBase]) * 16
}

// attribNibble returns the 4-bit format group of attribute i.
func (v PipelineRegs) attribNibble(i int) uint32 {
	if i < 8 {
		return (v.r[RegVertexAttribFormat] >> (4 * i)) & 0xF
	}
	return (v.r[RegVertexAttribHigh] >> (4 * (i - 8))) & 0xF
}

// Format returns the component format of attribute i.
func (v PipelineRegs) Format(i int) AttributeFormat {
	return AttributeFormat(v.attribNibble(i) & 0x3)
}

// NumElements returns the component count (1 to 4) of attribute i.
func (v PipelineRegs) NumElements(i int) uint32 {
	return (v.attribNibble(i) >> 2) + 1
}

// Stride returns the size in bytes of attribute i.
func (v PipelineRegs) Stride(i int) uint32 {
	return v.NumElements(i) * v.Format(i).ElementSize()
}

// IsDefaultAttribute reports whether attribute i is sourced from the fixed
// attribute values rather than a vertex array. Slots past the loader
// component range are always fixed.
func (v PipelineRegs) IsDefaultAttribute(i int) bool {
	if i >= MaxLoaderComponents {
		return true
	}
	return FieldFixedMask.Get(v.r[RegVertexAttribHigh])&(1<<i) != 0
}

// MaxAttributeIndex returns the highest attribute index in use.
func (v PipelineRegs) MaxAttributeIndex() uint32 {
	return FieldMaxAttribIndex.Get(v.r[RegVertexAttribHigh])
}

// Loader returns loader i.
func (v PipelineRegs) Loader(i int) Loader {
	base := RegVertexLoaderBase + 3*i
	lo, hi := v.r[base+1], v.r[base+2]
	l := Loader{
		DataOffset:     v.r[base],
		ByteCount:      FieldLoaderBytes.Get(hi),
		ComponentCount: FieldLoaderCount.Get(hi),
	}
	for c := 0; c < 8; c++ {
		l.Components[c] = (lo >> (4 * c)) & 0xF
	}
	for c := 8; c < MaxLoaderComponents; c++ {
		l.Components[c] = (hi >> (4 * (c - 8))) & 0xF
	}
	return l
}

func (v PipelineRegs) IndexArray() IndexArray {
	w := v.r[RegIndexArray]
	return IndexArray{Offset: FieldIndexOffset.Get(w), Format: FieldIndexFormat.Get(w)}
}

func (v PipelineRegs) NumVertices() uint32  { return v.r[RegNumVertices] }
func (v PipelineRegs) VertexOffset() uint32 { return v.r[RegVertexOffset] }
func (v PipelineRegs) UseGS() UseGS         { return UseGS(FieldUseGS.Get(v.r[RegUseGS])) }
func (v PipelineRegs) GSMode() GSMode       { return GSMode(FieldGSMode.Get(v.r[RegGSConfig])) }

func (v PipelineRegs) TriangleTopology() TriangleTopology {
	return TriangleTopology(FieldTopology.Get(v.r[RegTriangleTopology]))
}
