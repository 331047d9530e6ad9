package regs

import "math"

// Float24 is the PICA 24-bit float: 1 sign bit, 7 exponent bits (bias 63)
// and 16 mantissa bits.
type Float24 uint32

// Float24FromRaw masks a register word down to its 24-bit float payload.
func Float24FromRaw(raw uint32) Float24 { return Float24(raw & 0xFFFFFF) }

// Float24FromFloat32 converts a float32 to the nearest representable Float24,
// truncating mantissa bits.
func Float24FromFloat32(f float32) Float24 {
	bits := math.Float32bits(f)
	sign := bits >> 31
	exp := int32(bits>>23&0xFF) - 127 + 63
	mant := (bits >> 7) & 0xFFFF
	switch {
	case bits&0x7FFFFFFF == 0, exp <= 0:
		return Float24(sign << 23)
	case exp >= 0x7F:
		return Float24(sign<<23 | 0x7F<<16)
	}
	return Float24(sign<<23 | uint32(exp)<<16 | mant)
}

// Float32 widens the value to a float32.
func (f Float24) Float32() float32 {
	v := uint32(f)
	mant := v & 0xFFFF
	exp := (v >> 16) & 0x7F
	sign := (v >> 23) & 1
	switch {
	case v&0x7FFFFF == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0x7F:
		return math.Float32frombits(sign<<31 | 0xFF<<23 | mant<<7)
	}
	return math.Float32frombits(sign<<31 | (exp+64)<<23 | mant<<7)
}

// Float16ToFloat32 widens an IEEE half precision value.
func Float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// Subnormal: normalize into the float32 range.
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (mant&0x3FF)<<13)
	case exp == 0x1F:
		return math.Float32frombits(sign | 0xFF<<23 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
