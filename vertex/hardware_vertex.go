package vertex

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/pica/regs"
)

// HardwareVertex is a vertex emitted by the software shader path, already
// transformed and ready for rasterization.
type HardwareVertex struct {
	Position   [4]float32
	Color      [4]float32
	TexCoord0  [2]float32
	TexCoord1  [2]float32
	TexCoord2  [2]float32
	TexCoord0W float32
	Normquat   [4]float32
	View       [3]float32
}

// HardwareVertexSize is the packed size of a HardwareVertex in bytes.
const HardwareVertexSize = 22 * 4

var softwareSizes = [8]uint8{4, 4, 2, 2, 2, 1, 4, 3}

// SoftwareLayout returns the layout used to draw HardwareVertex batches:
// a single binding with eight float attributes at consecutive offsets.
func SoftwareLayout() Layout {
	l := Layout{BindingCount: 1, AttributeCount: 8}
	l.Bindings[0] = Binding{Binding: 0, Stride: HardwareVertexSize}
	var offset uint32
	for i, size := range softwareSizes {
		l.Attributes[i] = Attribute{
			Binding:  0,
			Location: uint8(i),
			Offset:   offset,
			Type:     regs.AttribFloat,
			Size:     size,
		}
		offset += uint32(size) * 4
	}
	return l
}

// Put encodes v into dst, which must hold HardwareVertexSize bytes.
func (v *HardwareVertex) Put(dst []byte) {
	_ = dst[HardwareVertexSize-1]
	off := 0
	put := func(fs ...float32) {
		for _, f := range fs {
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(f))
			off += 4
		}
	}
	put(v.Position[:]...)
	put(v.Color[:]...)
	put(v.TexCoord0[:]...)
	put(v.TexCoord1[:]...)
	put(v.TexCoord2[:]...)
	put(v.TexCoord0W)
	put(v.Normquat[:]...)
	put(v.View[:]...)
}
