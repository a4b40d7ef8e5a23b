package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
)

// GuestExports adapts an instantiated guest module for service.Bind.
type GuestExports struct {
	mod   api.Module
	mem   *WazeroMemory
	alloc *ReallocAllocator
}

// Exports wraps mod. Allocations into the guest are made with ctx.
func Exports(ctx context.Context, mod api.Module) *GuestExports {
	return &GuestExports{
		mod:   mod,
		mem:   Memory(mod.Memory()),
		alloc: NewReallocAllocator(ctx, findRealloc(mod)),
	}
}

func (g *GuestExports) Memory() wasmcanon.Memory       { return g.mem }
func (g *GuestExports) Allocator() wasmcanon.Allocator { return g.alloc }

// Module returns the wrapped module.
func (g *GuestExports) Module() api.Module { return g.mod }

// Lookup resolves name, falling back to its flat kebab form.
func (g *GuestExports) Lookup(name string) (wasmcanon.RawFunc, bool) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		fn = g.mod.ExportedFunction(witToKebabName(name))
	}
	if fn == nil {
		return nil, false
	}
	def := fn.Definition()
	nparams, nresults := len(def.ParamTypes()), len(def.ResultTypes())
	return func(ctx context.Context, params []uint64) ([]uint64, error) {
		if len(params) != nparams {
			return nil, errors.InvalidInput(errors.PhaseRuntime,
				fmt.Sprintf("%s: expected %d core params, got %d", name, nparams, len(params)))
		}
		stack := make([]uint64, max(nparams, nresults))
		copy(stack, params)
		if err := fn.CallWithStack(ctx, stack); err != nil {
			return nil, err
		}
		return stack[:nresults], nil
	}, true
}
