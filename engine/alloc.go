package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
)

const (
	CabiRealloc = "cabi_realloc"

	// Legacy name from pre-standardization component model implementations
	legacyRealloc = "canonical_abi_realloc"
)

// findRealloc returns the guest's realloc export, or nil.
func findRealloc(mod api.Module) api.Function {
	if mod == nil {
		return nil
	}
	for _, name := range []string{CabiRealloc, legacyRealloc} {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

// ReallocAllocator implements wasmcanon.Allocator over the guest's
// cabi_realloc(old_ptr, old_size, align, new_size) export.
type ReallocAllocator struct {
	fn       api.Function
	ctx      context.Context
	stackBuf [4]uint64
	mu       sync.Mutex
}

// NewReallocAllocator returns an allocator calling fn with ctx. A nil fn
// fails every allocation.
func NewReallocAllocator(ctx context.Context, fn api.Function) *ReallocAllocator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ReallocAllocator{fn: fn, ctx: ctx}
}

// SetContext replaces the context guest calls are made with.
func (a *ReallocAllocator) SetContext(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = ctx
}

func (a *ReallocAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.fn == nil {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align,
			errors.NotFound(errors.PhaseRuntime, "export", CabiRealloc))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stackBuf = [4]uint64{0, 0, uint64(align), uint64(size)}
	if err := a.fn.CallWithStack(a.ctx, a.stackBuf[:]); err != nil {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align, err)
	}
	ptr := uint32(a.stackBuf[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align, nil)
	}
	return ptr, nil
}

// Free shrinks the block to zero bytes, which guest allocators treat as a
// release.
func (a *ReallocAllocator) Free(ptr, size, align uint32) {
	if a.fn == nil || ptr == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stackBuf = [4]uint64{uint64(ptr), uint64(size), uint64(align), 0}
	if err := a.fn.CallWithStack(a.ctx, a.stackBuf[:]); err != nil {
		Logger().Warn("free: cabi_realloc failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

var _ wasmcanon.Allocator = (*ReallocAllocator)(nil)
