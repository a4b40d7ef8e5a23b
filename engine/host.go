package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/host"
	"github.com/wippyai/wasm-canon/types"
)

// valueTypes maps flat slot types to wazero value types.
func valueTypes(flat []types.FlatType) []api.ValueType {
	out := make([]api.ValueType, len(flat))
	for i, f := range flat {
		switch f {
		case types.FlatI64:
			out[i] = api.ValueTypeI64
		case types.FlatF32:
			out[i] = api.ValueTypeF32
		case types.FlatF64:
			out[i] = api.ValueTypeF64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}

// moduleCaller is the calling guest as seen by a host function.
type moduleCaller struct {
	mem   *WazeroMemory
	alloc *ReallocAllocator
}

func callerFor(ctx context.Context, mod api.Module) *moduleCaller {
	var mem api.Memory
	if mod != nil {
		mem = mod.Memory()
	}
	return &moduleCaller{mem: Memory(mem), alloc: NewReallocAllocator(ctx, findRealloc(mod))}
}

func (c *moduleCaller) Memory() wasmcanon.Memory       { return c.mem }
func (c *moduleCaller) Allocator() wasmcanon.Allocator { return c.alloc }

// buildHostFunc adapts imp to wazero's stack convention. Errors abort the
// guest call: wazero turns the panic into the error returned to whoever
// called into the guest.
func buildHostFunc(imp *host.Import) api.GoModuleFunc {
	nparams := len(imp.Signature.Params)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		results, err := imp.Func(ctx, callerFor(ctx, mod), stack[:nparams])
		if err != nil {
			Logger().Debug("host function failed",
				zap.String("func", imp.Name),
				zap.Error(err))
			panic(err)
		}
		copy(stack, results)
	}
}

// HostModule registers every function of imports as a host module called
// name and instantiates it.
func HostModule(ctx context.Context, r wazero.Runtime, name string, imports *host.Imports) (api.Module, error) {
	b := r.NewHostModuleBuilder(name)
	for _, imp := range imports.Funcs() {
		b.NewFunctionBuilder().
			WithGoModuleFunction(buildHostFunc(imp),
				valueTypes(imp.Signature.Params),
				valueTypes(imp.Signature.Results)).
			Export(imp.Name)
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindHostFailure, err, "instantiate host module "+name)
	}
	Logger().Debug("registered host module",
		zap.String("module", name),
		zap.Int("functions", len(imports.Funcs())))
	return mod, nil
}
