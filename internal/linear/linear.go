// Package linear provides an in-process linear memory and bump allocator.
//
// It stands in for a guest instance wherever values need a memory to live in
// without running WebAssembly: the tests of the binders and the cabi tool's
// lowering preview.
package linear

import (
	"encoding/binary"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
)

// PageSize is the WebAssembly page size.
const PageSize = 1 << 16

// Memory is a growable little-endian byte memory.
type Memory struct {
	data []byte
	max  uint32
}

// NewMemory returns a memory of size bytes that may grow up to max bytes.
// A max of zero means the memory cannot grow.
func NewMemory(size, max uint32) *Memory {
	if max < size {
		max = size
	}
	return &Memory{data: make([]byte, size), max: max}
}

func (m *Memory) Size() uint32  { return uint32(len(m.data)) }
func (m *Memory) Bytes() []byte { return m.data }

// Grow extends the memory by delta bytes.
func (m *Memory) Grow(delta uint32) bool {
	size, ok := abi.SafeAddU32(m.Size(), delta)
	if !ok || size > m.max {
		return false
	}
	m.data = append(m.data, make([]byte, delta)...)
	return true
}

func (m *Memory) check(offset, length uint32) error {
	if !abi.InRange(offset, length, m.Size()) {
		return errors.OutOfBounds(errors.PhaseRuntime, nil, offset, length)
	}
	return nil
}

// Read returns a view of the memory; it is invalidated by Grow.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

var (
	_ wasmcanon.Memory      = (*Memory)(nil)
	_ wasmcanon.MemorySizer = (*Memory)(nil)
)

// Allocator is a bump allocator over a Memory. Freeing the most recent
// allocation rewinds the bump pointer; other frees only drop the bookkeeping.
type Allocator struct {
	mem  *Memory
	base uint32
	next uint32
	live map[uint32]uint32
}

// NewAllocator allocates from base upwards. base must be non-zero so that no
// allocation is ever at address zero.
func NewAllocator(mem *Memory, base uint32) *Allocator {
	if base == 0 {
		base = 8
	}
	return &Allocator{mem: mem, base: base, next: base, live: make(map[uint32]uint32)}
}

func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align,
			errors.InvalidInput(errors.PhaseRuntime, "alignment must be a power of two"))
	}
	ptr := abi.AlignTo(a.next, align)
	end, ok := abi.SafeAddU32(ptr, size)
	if !ok || ptr < a.next {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align, nil)
	}
	if end > a.mem.Size() {
		need := abi.AlignTo(end-a.mem.Size(), PageSize)
		if !a.mem.Grow(need) {
			return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align, nil)
		}
	}
	a.next = end
	a.live[ptr] = size
	return ptr, nil
}

func (a *Allocator) Free(ptr, size, align uint32) {
	if _, ok := a.live[ptr]; !ok {
		return
	}
	delete(a.live, ptr)
	if ptr+size == a.next {
		a.next = ptr
	}
}

// Live returns the number of allocations not yet freed.
func (a *Allocator) Live() int { return len(a.live) }

// Reset forgets every allocation.
func (a *Allocator) Reset() {
	a.next = a.base
	clear(a.live)
}

var _ wasmcanon.Allocator = (*Allocator)(nil)

// Instance pairs a memory with its allocator and satisfies wasmcanon.Caller.
type Instance struct {
	Mem   *Memory
	Alloc *Allocator
}

// NewInstance returns an instance with one page of memory growable to 256
// pages.
func NewInstance() *Instance {
	mem := NewMemory(PageSize, 256*PageSize)
	return &Instance{Mem: mem, Alloc: NewAllocator(mem, 16)}
}

func (i *Instance) Memory() wasmcanon.Memory       { return i.Mem }
func (i *Instance) Allocator() wasmcanon.Allocator { return i.Alloc }

var _ wasmcanon.Caller = (*Instance)(nil)
