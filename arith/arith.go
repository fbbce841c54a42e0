// Package arith collects the small byte/word arithmetic helpers the
// 6502 and its address decoders lean on repeatedly: sign testing,
// byte concatenation, relative-branch targets and page-cross
// detection.
package arith

// IsNegative reports whether the 6502's negative flag would be set
// for the given byte (bit 7 set).
func IsNegative(b uint8) bool {
	return b&0x80 != 0
}

// Concat combines a low and high byte into a little-endian word, the
// way every multi-byte 6502 operand is stored in memory.
func Concat(lo, hi uint8) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// AddRelative computes the branch target for a relative-addressing
// operand: base is the address of the byte immediately after the
// displacement, and disp is interpreted as a signed offset.
func AddRelative(base uint16, disp uint8) uint16 {
	return uint16(int32(base) + int32(int8(disp)))
}

// Page returns the 256-byte page a given address falls in.
func Page(addr uint16) uint16 {
	return addr & 0xFF00
}

// PageCross reports whether addr1 and addr2 fall on different pages,
// the condition that costs most indexed addressing modes an extra
// cycle.
func PageCross(addr1, addr2 uint16) bool {
	return Page(addr1) != Page(addr2)
}
