package abi

import (
	"math"
	"reflect"
)

const (
	CanonicalNaN32 = 0x7fc00000
	CanonicalNaN64 = 0x7ff8000000000000
)

const (
	MaxStringSize = 1 << 30 // 1 GB max string size
	MaxListLength = 1 << 27 // 128M max elements
)

// Char range boundaries
const (
	surrogateLo = 0xD800
	surrogateHi = 0xDFFF
	maxChar     = 0x110000
)

func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

// InRange reports whether [offset, offset+length) fits in a memory of size
// bytes without wrapping.
func InRange(offset, length, size uint32) bool {
	end, ok := SafeAddU32(offset, length)
	return ok && end <= size
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

func AlignTo(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// IsAligned reports whether ptr is a multiple of align.
func IsAligned(ptr, align uint32) bool {
	return align <= 1 || ptr&(align-1) == 0
}

// DiscriminantSize: 1 byte for <=256 cases, 2 for <=65536, else 4.
func DiscriminantSize(numCases int) uint32 {
	switch {
	case numCases <= 1<<8:
		return 1
	case numCases <= 1<<16:
		return 2
	}
	return 4
}

// FlagsSize returns the memory size of a flags value with n labels. More than
// 32 labels are stored as consecutive u32 words.
func FlagsSize(n int) uint32 {
	switch {
	case n == 0:
		return 0
	case n <= 8:
		return 1
	case n <= 16:
		return 2
	}
	return 4 * FlagsWords(n)
}

// FlagsWords returns the number of i32 slots a flags value flattens to.
func FlagsWords(n int) uint32 {
	return uint32((n + 31) / 32)
}

// CanonicalizeF32 returns canonical NaN for any NaN input.
func CanonicalizeF32(bits uint32) uint32 {
	if f := math.Float32frombits(bits); f != f {
		return CanonicalNaN32
	}
	return bits
}

// CanonicalizeF64 returns canonical NaN for any NaN input.
func CanonicalizeF64(bits uint64) uint64 {
	if f := math.Float64frombits(bits); f != f {
		return CanonicalNaN64
	}
	return bits
}

// ValidateChar rejects surrogates (0xD800-0xDFFF) and values >= 0x110000.
func ValidateChar(r uint32) bool {
	if r >= surrogateLo && r <= surrogateHi {
		return false
	}
	return r < maxChar
}
