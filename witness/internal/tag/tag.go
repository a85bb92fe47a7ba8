// Package tag reads and writes enum discriminants at byte granularity.
package tag

import (
	"encoding/binary"
	"fmt"
)

// Read loads count bytes at the start of buf as a zero-extended unsigned
// integer. Only the power-of-two widths the layout format emits are legal;
// anything else is a builder bug.
func Read(buf []byte, count uint8) uint64 {
	switch count {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	case 8:
		return binary.LittleEndian.Uint64(buf)
	default:
		panic(fmt.Sprintf("tag: unsupported tag byte count %d", count))
	}
}

// LoadElement loads a discriminant-or-payload value of size bytes. Sizes
// above 8 contribute only their low 8 bytes; size 0 loads 0.
func LoadElement(buf []byte, size uintptr) uint64 {
	if size > 8 {
		size = 8
	}
	var v uint64
	for i := uintptr(0); i < size; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return v
}

// StoreElement stores value into size bytes, little-endian, zeroing any
// bytes of the element beyond the 8 the value can occupy.
func StoreElement(buf []byte, value uint64, size uintptr) {
	n := size
	if n > 8 {
		n = 8
	}
	for i := uintptr(0); i < n; i++ {
		buf[i] = byte(value >> (8 * i))
	}
	for i := n; i < size; i++ {
		buf[i] = 0
	}
}
