package wasmcanon

import "context"

// Memory represents WASM linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of WASM linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in WASM linear memory
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Caller is the guest-side context a raw call runs against: the instance's
// linear memory and the allocator used to materialise lowered values in it.
type Caller interface {
	Memory() Memory
	Allocator() Allocator
}

// RawFunc is a core-level function. Each slot carries one core value encoded
// the way wazero encodes its stack: i32 in the low 32 bits, f32/f64 as IEEE
// bits.
type RawFunc func(ctx context.Context, params []uint64) ([]uint64, error)
