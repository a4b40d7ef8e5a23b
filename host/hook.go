package host

import (
	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/types"
)

// callHook resolves host resources for one call from the guest. Own
// parameters are taken out of their table, borrow parameters are borrowed
// until the call returns and own results are allocated.
type callHook struct {
	reg     *resource.Registry
	scope   resource.Scope
	taken   []taken
	created []created

	// set once the handler has returned; own parameters are then its own
	consumed bool
}

type taken struct {
	table  *resource.Table
	handle resource.Handle
	value  any
}

type created struct {
	table  *resource.Table
	handle resource.Handle
}

func (h *callHook) Lift(t types.Handle, handle uint32) (any, error) {
	table := h.reg.Table(t.Resource().Name())
	if _, ok := t.(*types.Borrow); ok {
		return h.scope.Borrow(table, resource.Handle(handle))
	}
	v, err := table.Take(resource.Handle(handle))
	if err != nil {
		return nil, err
	}
	h.taken = append(h.taken, taken{table: table, handle: resource.Handle(handle), value: v})
	return v, nil
}

func (h *callHook) Lower(t types.Handle, v any) (uint32, error) {
	if _, ok := t.(*types.Borrow); ok {
		return 0, errors.Unsupported(errors.PhaseHost, "borrow<"+t.Resource().Name()+"> in a host result")
	}
	// already allocated by the implementation
	if rh, ok := v.(resource.Handle); ok {
		return uint32(rh), nil
	}
	table := h.reg.Table(t.Resource().Name())
	rh, err := table.Allocate(v)
	if err != nil {
		return 0, err
	}
	h.created = append(h.created, created{table: table, handle: rh})
	return uint32(rh), nil
}

// end releases the call's borrows. On failure own results allocated during
// lowering are dropped again, since the guest never saw them, and own
// parameters the handler never finished with are destroyed.
func (h *callHook) end(failed bool) error {
	if failed {
		for i := len(h.created) - 1; i >= 0; i-- {
			_ = h.created[i].table.Drop(h.created[i].handle)
		}
		if !h.consumed {
			for i := len(h.taken) - 1; i >= 0; i-- {
				h.taken[i].table.Discard(h.taken[i].handle, h.taken[i].value)
			}
		}
	}
	h.taken, h.created = nil, nil
	return h.scope.Close()
}
