package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

// callHook translates resources for one call into the guest.
//
// Guest resources travel as their guest handle: passing one as own hands it
// back to the guest and removes it from the local table once lowering has
// succeeded. Host resources are allocated (own) or lent for the call
// (borrow) in the host registry. Own results that never reach the caller
// because the rest of the result failed to lift are released again.
type callHook struct {
	ctx       context.Context
	svc       *Service
	scope     resource.Scope
	takes     []Handle
	allocated []hostAlloc
	temps     []hostAlloc
	lifted    []Handle
	received  []hostValue
	sent      bool
}

type hostAlloc struct {
	table  *resource.Table
	handle resource.Handle
}

type hostValue struct {
	table  *resource.Table
	handle resource.Handle
	value  any
}

func (h *callHook) Lower(t types.Handle, v any) (uint32, error) {
	res := t.Resource().Name()
	_, borrow := t.(*types.Borrow)

	if h.svc.isHost(res) {
		table, _ := h.svc.cfg.host.Lookup(res)
		if rh, ok := v.(resource.Handle); ok {
			if borrow {
				return h.lend(table, rh)
			}
			return uint32(rh), nil
		}
		rh, err := table.Allocate(v)
		if err != nil {
			return 0, err
		}
		if borrow {
			// lent for the call only; taken back when it returns
			h.temps = append(h.temps, hostAlloc{table: table, handle: rh})
			return h.lend(table, rh)
		}
		h.allocated = append(h.allocated, hostAlloc{table: table, handle: rh})
		return uint32(rh), nil
	}

	var gh Handle
	switch g := v.(type) {
	case Handle:
		gh = g
	case *Object:
		if g == nil {
			return 0, errors.NilPointer(errors.PhaseService, nil, "*service.Object")
		}
		gh = g.handle
	case value.Handle:
		// raw guest handle not tracked by this service
		return uint32(g), nil
	default:
		return 0, errors.TypeMismatch(errors.PhaseService, nil, abi.TypeName(v), t.String())
	}
	if gh.Resource != res {
		return 0, errors.TypeMismatch(errors.PhaseService, nil, gh.Resource, t.String())
	}
	gv, err := h.svc.Guests.Table(res).Resolve(gh.ID)
	if err != nil {
		return 0, err
	}
	if !borrow {
		h.takes = append(h.takes, gh)
	}
	return gv.(uint32), nil
}

func (h *callHook) lend(table *resource.Table, rh resource.Handle) (uint32, error) {
	lh, err := h.scope.Lend(table, rh)
	return uint32(lh), err
}

func (h *callHook) Lift(t types.Handle, handle uint32) (any, error) {
	res := t.Resource().Name()
	if _, ok := t.(*types.Borrow); ok {
		return nil, errors.Unsupported(errors.PhaseService, "borrow<"+res+"> in a guest result")
	}
	if h.svc.isHost(res) {
		table, _ := h.svc.cfg.host.Lookup(res)
		v, err := table.Take(resource.Handle(handle))
		if err != nil {
			return nil, err
		}
		h.received = append(h.received, hostValue{table: table, handle: resource.Handle(handle), value: v})
		return v, nil
	}
	id, err := h.svc.Guests.Table(res).Allocate(handle)
	if err != nil {
		return nil, err
	}
	gh := Handle{Resource: res, ID: id}
	h.lifted = append(h.lifted, gh)
	return h.svc.wrap(gh), nil
}

// commit is called once the arguments are lowered and the call is about to
// reach the guest. Guest resources passed as own leave the local tables.
func (h *callHook) commit() {
	for _, gh := range h.takes {
		_, _ = h.svc.Guests.Table(gh.Resource).Take(gh.ID)
	}
	h.takes = nil
	h.sent = true
}

// end revokes the call's lends and takes back temporary entries. When the
// call failed before reaching the guest, host values allocated for own
// arguments are taken back too. When it failed while lifting the result,
// guest handles already lifted are dropped in the guest and host values
// already taken are destroyed.
func (h *callHook) end(failed bool) error {
	err := h.scope.Close()
	for _, a := range h.temps {
		_, _ = a.table.Take(a.handle)
	}
	if failed && !h.sent {
		for i := len(h.allocated) - 1; i >= 0; i-- {
			_, _ = h.allocated[i].table.Take(h.allocated[i].handle)
		}
	}
	if failed {
		for i := len(h.lifted) - 1; i >= 0; i-- {
			if dropErr := h.svc.Drop(h.ctx, h.lifted[i]); dropErr != nil {
				Logger().Warn("dropping unreturned guest handle",
					zap.String("resource", h.lifted[i].Resource), zap.Error(dropErr))
			}
		}
		for i := len(h.received) - 1; i >= 0; i-- {
			h.received[i].table.Discard(h.received[i].handle, h.received[i].value)
		}
	}
	h.takes, h.allocated, h.temps = nil, nil, nil
	h.lifted, h.received = nil, nil
	return err
}
