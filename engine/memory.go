package engine

import (
	"github.com/tetratelabs/wazero/api"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
)

// WazeroMemory wraps wazero memory to implement wasmcanon.Memory.
// Read returns a view of guest memory, valid until the guest runs again.
type WazeroMemory struct {
	mem api.Memory
}

// Memory wraps mem. A nil mem behaves as an empty memory.
func Memory(mem api.Memory) *WazeroMemory {
	return &WazeroMemory{mem: mem}
}

func oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseRuntime, nil, offset, length)
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, oob(offset, length)
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, oob(offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if m.mem == nil || !m.mem.Write(offset, data) {
		return oob(offset, uint32(len(data)))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	if m.mem == nil {
		return 0, oob(offset, 1)
	}
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, oob(offset, 1)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	if m.mem == nil {
		return 0, oob(offset, 2)
	}
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, oob(offset, 2)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	if m.mem == nil {
		return 0, oob(offset, 4)
	}
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, oob(offset, 4)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	if m.mem == nil {
		return 0, oob(offset, 8)
	}
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, oob(offset, 8)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if m.mem == nil || !m.mem.WriteByte(offset, value) {
		return oob(offset, 1)
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if m.mem == nil || !m.mem.WriteUint16Le(offset, value) {
		return oob(offset, 2)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil || !m.mem.WriteUint32Le(offset, value) {
		return oob(offset, 4)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if m.mem == nil || !m.mem.WriteUint64Le(offset, value) {
		return oob(offset, 8)
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

var _ wasmcanon.Memory = (*WazeroMemory)(nil)
var _ wasmcanon.MemorySizer = (*WazeroMemory)(nil)
