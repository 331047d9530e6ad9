// Package bitfield provides shift/mask accessors for hardware register words.
//
// Fields are described by their lowest bit position and width, mirroring the
// layout of the register they belong to. All helpers operate on uint32 words.
package bitfield

// Field describes a bit range inside a 32-bit register word.
type Field struct {
	Pos   uint8
	Width uint8
}

// Make returns the field occupying width bits starting at pos.
func Make(pos, width uint8) Field {
	return Field{Pos: pos, Width: width}
}

// Mask returns the unshifted mask covering the field.
func (f Field) Mask() uint32 {
	if f.Width >= 32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << f.Width) - 1
}

// Get extracts the field from word as an unsigned value.
func (f Field) Get(word uint32) uint32 {
	return (word >> f.Pos) & f.Mask()
}

// GetSigned extracts the field and sign-extends it from its width.
func (f Field) GetSigned(word uint32) int32 {
	v := f.Get(word)
	shift := 32 - uint32(f.Width)
	return int32(v<<shift) >> shift
}

// GetBool reports whether the field is nonzero.
func (f Field) GetBool(word uint32) bool {
	return f.Get(word) != 0
}

// Set returns word with the field replaced by v. Bits of v above the field
// width are discarded.
func (f Field) Set(word, v uint32) uint32 {
	m := f.Mask() << f.Pos
	return (word &^ m) | ((v << f.Pos) & m)
}

// SetBool returns word with the field set to 1 or 0.
func (f Field) SetBool(word uint32, v bool) uint32 {
	if v {
		return f.Set(word, 1)
	}
	return f.Set(word, 0)
}

// AlignUp rounds v up to the next multiple of align. An align of 0 or 1
// returns v unchanged.
func AlignUp[T ~uint32 | ~uint64 | ~int](v, align T) T {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
