package isa

import "github.com/mbranko/raluvm/pkg/utils"

// Word is one encoded 32-bit instruction, stored byte-for-byte in the order
// the object file and memory image carry it: byte0 = OC:MOD, byte1 = A:B,
// byte2 = C:D[11:8], byte3 = D[7:0].
type Word [4]byte

// mask12 is the all-ones mask for the 12-bit D field.
var mask12 = utils.AllOnes[uint32](12)

// Encode packs an instruction's fields into a Word. d is truncated to its
// low 12 bits; callers are responsible for range-checking signed values
// before calling Encode (see FitsSigned12).
func Encode(oc OpCode, mod Mode, a, b, c byte, d int32) Word {
	du := uint32(d) & mask12
	return Word{
		byte(oc)<<4 | byte(mod)&0x0F,
		a<<4&0xF0 | b&0x0F,
		c<<4&0xF0 | byte(du>>8)&0x0F,
		byte(du),
	}
}

// Decode unpacks a Word into its OC/MOD/A/B/C/D fields, sign-extending D
// from 12 to 32 bits.
func Decode(w Word) (oc OpCode, mod Mode, a, b, c byte, d int32) {
	oc = OpCode(w[0] >> 4)
	mod = Mode(w[0] & 0x0F)
	a = w[1] >> 4 & 0x0F
	b = w[1] & 0x0F
	c = w[2] >> 4 & 0x0F
	d = SignExtend12(int32(w[2]&0x0F)<<8 | int32(w[3]))
	return
}

// SignExtend12 sign-extends the low 12 bits of v to a full int32.
func SignExtend12(v int32) int32 {
	v &= int32(mask12)
	if v&0x800 != 0 {
		v |= ^int32(0xFFF)
	}
	return v
}

// FitsSigned12 reports whether v fits in a signed 12-bit displacement,
// i.e. -2048 <= v <= 2047.
//
// The original tool's predicate was `n >= 0x800 && n <= 0x7FF`, which is
// unsatisfiable (0x800 > 0x7FF), so every literal was routed through the
// pool regardless of size. legacyPoolAlways reproduces that bug for object
// streams that depend on the always-pool behavior; pass false for the
// corrected range.
func FitsSigned12(v int32, legacyPoolAlways bool) bool {
	if legacyPoolAlways {
		return v >= 0x800 && v <= 0x7FF
	}
	return v >= -2048 && v <= 2047
}
