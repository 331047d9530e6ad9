package uniform

import (
	"encoding/binary"
	"math"
)

// std140 appends values with the std140 alignment rules of uniform blocks.
type std140 struct {
	buf []byte
}

func (w *std140) align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *std140) u32(v uint32) {
	w.align(4)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *std140) i32(v int32)   { w.u32(uint32(v)) }
func (w *std140) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *std140) vec2(v [2]float32) {
	w.align(8)
	w.f32(v[0])
	w.f32(v[1])
}

func (w *std140) vec3(v [3]float32) {
	w.align(16)
	for _, f := range v {
		w.f32(f)
	}
}

func (w *std140) vec4(v [4]float32) {
	w.align(16)
	for _, f := range v {
		w.f32(f)
	}
}

func (w *std140) ivec4(v [4]int32) {
	w.align(16)
	for _, i := range v {
		w.i32(i)
	}
}

func (w *std140) uvec4(v [4]uint32) {
	w.align(16)
	for _, u := range v {
		w.u32(u)
	}
}

// end pads the block to its base alignment.
func (w *std140) end() []byte {
	w.align(16)
	return w.buf
}
