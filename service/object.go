package service

import (
	"context"
	"fmt"

	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/types"
)

// Handle is a module-style reference to a guest resource held by the host.
type Handle struct {
	Resource string
	ID       resource.Handle
}

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Resource, h.ID)
}

// Object is a class-style guest resource: its methods are called on the
// object itself.
type Object struct {
	svc    *Service
	handle Handle
}

// Handle returns the module-style handle of o.
func (o *Object) Handle() Handle { return o.handle }

// Call invokes [method]R.method with o as self.
func (o *Object) Call(ctx context.Context, method string, args ...any) (any, error) {
	name := types.FuncName{Kind: types.Method, Resource: o.handle.Resource, Name: method}.String()
	return o.svc.Call(ctx, name, append([]any{o}, args...)...)
}

// Drop releases the guest resource.
func (o *Object) Drop(ctx context.Context) error {
	return o.svc.Drop(ctx, o.handle)
}

func (o *Object) String() string { return o.handle.String() }

// wrap turns a local handle into the value the configured style returns.
func (s *Service) wrap(h Handle) any {
	if s.cfg.style == ClassStyle {
		return &Object{svc: s, handle: h}
	}
	return h
}
