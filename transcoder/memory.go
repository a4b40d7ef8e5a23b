package transcoder

import (
	"sync"

	wasmcanon "github.com/wippyai/wasm-canon"
)

type Memory = wasmcanon.Memory
type Allocator = wasmcanon.Allocator

type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// AllocationList records the allocations of one lowering so they can be
// rolled back if it fails.
type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns to pool. The list is invalid after Release.
func (al *AllocationList) Release() {
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

func (al *AllocationList) Add(ptr, size, align uint32) {
	al.allocations = append(al.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
}

// Free hands every recorded allocation back to allocator, newest first.
func (al *AllocationList) Free(allocator Allocator) {
	if allocator == nil {
		return
	}
	for i := len(al.allocations) - 1; i >= 0; i-- {
		if a := al.allocations[i]; a.Ptr != 0 {
			allocator.Free(a.Ptr, a.Size, a.Align)
		}
	}
	al.Reset()
}

func (al *AllocationList) Reset() {
	al.allocations = al.allocations[:0]
}

func (al *AllocationList) Count() int {
	return len(al.allocations)
}

// Env is the guest-side environment a lowering or lifting runs against.
type Env struct {
	Memory    Memory
	Allocator Allocator
	// Resources maps resource values to handles and back. When nil, own and
	// borrow values travel as value.Handle.
	Resources ResourceHook
}

// EnvFor builds an Env from a caller.
func EnvFor(c wasmcanon.Caller, hook ResourceHook) *Env {
	return &Env{Memory: c.Memory(), Allocator: c.Allocator(), Resources: hook}
}

func (env *Env) memSize() (uint32, bool) {
	if s, ok := env.Memory.(wasmcanon.MemorySizer); ok {
		return s.Size(), true
	}
	return 0, false
}
