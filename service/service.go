package service

import (
	"context"

	"go.uber.org/zap"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
)

// Exports is the raw export table of an instantiated guest together with
// its memory and allocator.
type Exports interface {
	wasmcanon.Caller
	Lookup(name string) (wasmcanon.RawFunc, bool)
}

// Service is a typed view over a guest's exports.
type Service struct {
	Namespace string
	// Guests holds the handles of guest resources owned by the host side,
	// one table per resource.
	Guests *resource.Registry

	iface   *types.Interface
	exports Exports
	cfg     config
	funcs   map[string]*export
	drops   map[string]wasmcanon.RawFunc
}

type export struct {
	call *transcoder.Call
	raw  wasmcanon.RawFunc
}

// Bind resolves every function of iface in exports. Guest resources also
// need their [resource-drop]R export. The error lists every missing export.
func Bind(iface *types.Interface, exports Exports, opts ...Option) (*Service, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var tableOpts []resource.Option
	if cfg.debug {
		tableOpts = append(tableOpts, resource.Debug())
	}
	s := &Service{
		Namespace: iface.Name,
		Guests:    resource.NewRegistry(tableOpts...),
		iface:     iface,
		exports:   exports,
		cfg:       cfg,
		funcs:     make(map[string]*export),
		drops:     make(map[string]wasmcanon.RawFunc),
	}

	var missing []string
	for _, f := range iface.Funcs() {
		raw, ok := exports.Lookup(f.Name)
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		s.funcs[f.Name] = &export{call: transcoder.PrepareCall(f), raw: raw}
	}
	for _, r := range iface.Resources() {
		if s.isHost(r.Name()) {
			continue
		}
		name := types.DropName(r.Name())
		raw, ok := exports.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		s.drops[r.Name()] = raw
	}
	if len(missing) > 0 {
		return nil, &errors.MissingFuncsError{Namespace: iface.Name, What: "guest export", Names: missing}
	}

	Logger().Debug("bound guest service",
		zap.String("namespace", iface.Name),
		zap.Int("functions", len(s.funcs)),
		zap.Stringer("style", cfg.style))
	return s, nil
}

func (s *Service) isHost(res string) bool {
	if s.cfg.host == nil {
		return false
	}
	_, ok := s.cfg.host.Lookup(res)
	return ok
}

// Call lowers args, invokes the export called name and lifts its result.
// A function without a result returns nil.
func (s *Service) Call(ctx context.Context, name string, args ...any) (result any, err error) {
	ex, ok := s.funcs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseService, "function", name)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	hook := &callHook{ctx: ctx, svc: s}
	env := transcoder.EnvFor(s.exports, hook)
	defer func() {
		if endErr := hook.end(err != nil); endErr != nil && err == nil {
			err = endErr
		}
		if err != nil {
			Logger().Debug("service call failed", zap.String("func", name), zap.Error(err))
		}
	}()

	flat, retptr, err := transcoder.NewEncoder(s.cfg.codec...).LowerArgs(env, ex.call, args)
	if err != nil {
		return nil, errors.WithPath(err, name)
	}
	hook.commit()

	results, err := ex.raw(ctx, flat)
	if err != nil {
		return nil, err
	}

	v, err := transcoder.NewDecoder(s.cfg.codec...).LiftResult(env, ex.call, results, retptr)
	if err != nil {
		return nil, errors.WithPath(err, name)
	}
	return v, nil
}

// Func returns a closure calling name, resolved once.
func (s *Service) Func(name string) (func(ctx context.Context, args ...any) (any, error), error) {
	if _, ok := s.funcs[name]; !ok {
		return nil, errors.NotFound(errors.PhaseService, "function", name)
	}
	return func(ctx context.Context, args ...any) (any, error) {
		return s.Call(ctx, name, args...)
	}, nil
}

// Drop releases a guest resource handle by calling the guest's drop export
// exactly once. Dropping it again fails with errors.ErrBadHandle.
func (s *Service) Drop(ctx context.Context, h Handle) error {
	drop, ok := s.drops[h.Resource]
	if !ok {
		return errors.NotFound(errors.PhaseService, "resource", h.Resource)
	}
	table := s.Guests.Table(h.Resource)
	v, err := table.Take(h.ID)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := drop(ctx, []uint64{uint64(v.(uint32))}); err != nil {
		return errors.New(errors.PhaseService, errors.KindHostFailure).
			Resource(h.Resource).
			Cause(err).
			Detail("guest drop failed").
			Build()
	}
	return nil
}

// Close drops every guest resource still held and closes the tables.
func (s *Service) Close(ctx context.Context) error {
	var first error
	for _, name := range s.Guests.Names() {
		var handles []resource.Handle
		s.Guests.Table(name).Each(func(h resource.Handle, _ any) bool {
			handles = append(handles, h)
			return true
		})
		for _, h := range handles {
			if err := s.Drop(ctx, Handle{Resource: name, ID: h}); err != nil && first == nil {
				first = err
			}
		}
	}
	_ = s.Guests.Close()
	return first
}
