package host

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
)

// Registrar lets an implementation name its handlers with exact WIT
// function names when the method name convention does not fit.
type Registrar interface {
	Register() map[string]any
}

// Func is the raw body of an import: the guest's core arguments in, the
// core results out. caller gives access to the calling instance's memory
// and allocator.
type Func func(ctx context.Context, caller wasmcanon.Caller, params []uint64) ([]uint64, error)

// Import is one bound host function.
type Import struct {
	Name      string
	Type      *types.FuncType
	Signature types.Signature
	Func      Func
}

// Imports is the raw import table produced by Bind.
type Imports struct {
	Namespace string
	// Resources holds the host resource tables of the binding.
	Resources *resource.Registry

	funcs []*Import
	index map[string]*Import
}

// Funcs returns the imports in interface order, synthesized drops last.
func (im *Imports) Funcs() []*Import { return im.funcs }

// Lookup returns the import called name.
func (im *Imports) Lookup(name string) (*Import, bool) {
	imp, ok := im.index[name]
	return imp, ok
}

// Close destroys every live host resource.
func (im *Imports) Close() error {
	return im.Resources.Close()
}

// Bound pairs the imports with one caller so they can be called like guest
// exports, for example through a service binding.
type Bound struct {
	wasmcanon.Caller
	imports *Imports
}

// Bind binds the imports to caller.
func (im *Imports) Bind(caller wasmcanon.Caller) *Bound {
	return &Bound{Caller: caller, imports: im}
}

// Lookup returns the raw function for name.
func (b *Bound) Lookup(name string) (wasmcanon.RawFunc, bool) {
	imp, ok := b.imports.index[name]
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, params []uint64) ([]uint64, error) {
		return imp.Func(ctx, b.Caller, params)
	}, true
}

// Bind builds the raw imports of iface from impl. impl is a struct (or a
// pointer to one) whose exported methods follow the naming in handlerKey, a
// map[string]any keyed by WIT function name, or a Registrar.
//
// Every function of iface must have a handler; the error lists all that are
// missing. A [resource-drop]R import is synthesized for every resource.
func Bind(iface *types.Interface, impl any, opts ...Option) (*Imports, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	handlers, byKey := collectHandlers(impl)
	reg, err := resourceTables(iface, &cfg)
	if err != nil {
		return nil, err
	}

	im := &Imports{
		Namespace: iface.Name,
		Resources: reg,
		index:     make(map[string]*Import),
	}

	var missing []string
	for _, f := range iface.Funcs() {
		fn := types.ParseFuncName(f.Name)
		hv, ok := handlers[f.Name]
		if !ok && byKey != nil {
			hv, ok = byKey[foldKey(handlerKey(fn))]
		}

		var b *binding
		switch {
		case ok:
			h, err := newHandler(f, hv, 0)
			if err != nil {
				return nil, err
			}
			b = newBinding(f, reg, &cfg, h)
		case fn.Kind == types.Method && cfg.style == ClassStyle:
			b = newBinding(f, reg, &cfg, nil)
		default:
			missing = append(missing, f.Name)
			continue
		}
		im.add(&Import{
			Name:      f.Name,
			Type:      f,
			Signature: b.call.Sig,
			Func:      b.invoke,
		})
	}
	if len(missing) > 0 {
		return nil, &errors.MissingFuncsError{Namespace: iface.Name, What: "host function", Names: missing}
	}

	for _, r := range iface.Resources() {
		im.add(dropImport(r, reg.Table(r.Name())))
	}

	Logger().Debug("bound host interface",
		zap.String("namespace", iface.Name),
		zap.Int("functions", len(im.funcs)),
		zap.Stringer("style", cfg.style))
	return im, nil
}

func (im *Imports) add(imp *Import) {
	im.funcs = append(im.funcs, imp)
	im.index[imp.Name] = imp
}

// collectHandlers returns handlers keyed by exact WIT name and, for struct
// implementations, by the folded form of each method name.
func collectHandlers(impl any) (map[string]reflect.Value, map[string]reflect.Value) {
	exact := make(map[string]reflect.Value)

	switch m := impl.(type) {
	case nil:
		return exact, nil
	case map[string]any:
		for name, fn := range m {
			exact[name] = reflect.ValueOf(fn)
		}
		return exact, nil
	case Registrar:
		for name, fn := range m.Register() {
			exact[name] = reflect.ValueOf(fn)
		}
		return exact, nil
	}

	return exact, methodIndex(reflect.ValueOf(impl))
}

// methodIndex maps the folded name of every exported method of rv to the
// bound method value.
func methodIndex(rv reflect.Value) map[string]reflect.Value {
	idx := make(map[string]reflect.Value)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if !m.IsExported() {
			continue
		}
		idx[foldKey(m.Name)] = rv.Method(i)
	}
	return idx
}

func resourceTables(iface *types.Interface, cfg *config) (*resource.Registry, error) {
	reg := cfg.registry
	if reg == nil {
		reg = resource.NewRegistry()
	}
	for name := range cfg.destructors {
		if _, ok := iface.Resource(name); !ok {
			return nil, errors.NotFound(errors.PhaseHost, "resource", name)
		}
	}
	for _, r := range iface.Resources() {
		if _, ok := reg.Lookup(r.Name()); ok {
			continue
		}
		var opts []resource.Option
		if dtor := cfg.destructors[r.Name()]; dtor != nil {
			opts = append(opts, resource.WithDestructor(dtor))
		}
		if cfg.debug {
			opts = append(opts, resource.Debug())
		}
		if _, err := reg.Define(r.Name(), opts...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func dropImport(r *types.Resource, table *resource.Table) *Import {
	f := types.Must(types.NewFunc(types.DropName(r.Name()), nil, types.P("self", types.NewOwn(r))))
	return &Import{
		Name:      f.Name,
		Type:      f,
		Signature: f.Flatten(),
		Func: func(ctx context.Context, caller wasmcanon.Caller, params []uint64) ([]uint64, error) {
			if len(params) != 1 {
				return nil, errors.InvalidInput(errors.PhaseHost, f.Name+": expected one handle")
			}
			if err := table.Drop(resource.Handle(uint32(params[0]))); err != nil {
				return nil, err
			}
			return []uint64{}, nil
		},
	}
}

// binding runs one import: lift the guest's arguments, call the handler,
// lower its result.
type binding struct {
	f     *types.FuncType
	call  *transcoder.Call
	reg   *resource.Registry
	codec []transcoder.Option
	h     *handler // nil for class-style method dispatch

	methods sync.Map // reflect.Type -> *handler
}

func newBinding(f *types.FuncType, reg *resource.Registry, cfg *config, h *handler) *binding {
	return &binding{
		f:     f,
		call:  transcoder.PrepareCall(f),
		reg:   reg,
		codec: cfg.codec,
		h:     h,
	}
}

func (b *binding) invoke(ctx context.Context, caller wasmcanon.Caller, params []uint64) (results []uint64, err error) {
	hook := &callHook{reg: b.reg}
	env := transcoder.EnvFor(caller, hook)
	defer func() {
		if endErr := hook.end(err != nil); endErr != nil && err == nil {
			err = endErr
		}
		if err != nil {
			Logger().Debug("host call failed", zap.String("func", b.f.Name), zap.Error(err))
		}
	}()

	args, retptr, err := transcoder.NewDecoder(b.codec...).LiftArgs(env, b.call, params)
	if err != nil {
		return nil, errors.WithPath(err, b.f.Name)
	}

	v, err := b.dispatch(ctx, args)
	if err != nil {
		return nil, err
	}
	hook.consumed = true

	results, err = transcoder.NewEncoder(b.codec...).LowerResult(env, b.call, v, retptr)
	if err != nil {
		return nil, errors.WithPath(err, b.f.Name)
	}
	return results, nil
}

func (b *binding) dispatch(ctx context.Context, args []any) (any, error) {
	if b.h != nil {
		return b.h.call(ctx, b.f, args)
	}

	self := args[0]
	h, err := b.method(self)
	if err != nil {
		return nil, err
	}
	return h.call(ctx, b.f, args[1:])
}

// method finds the Go method implementing a [method]R.m function on self.
func (b *binding) method(self any) (*handler, error) {
	rv := reflect.ValueOf(self)
	if !rv.IsValid() {
		return nil, errors.NilPointer(errors.PhaseHost, []string{b.f.Name, "self"}, "nil")
	}
	if h, ok := b.methods.Load(rv.Type()); ok {
		return h.(*handler).bind(rv), nil
	}

	member := types.ParseFuncName(b.f.Name).Name
	key := foldKey(member)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if !m.IsExported() || foldKey(m.Name) != key {
			continue
		}
		h, err := newHandler(b.f, rv.Method(i), 1)
		if err != nil {
			return nil, err
		}
		h.index = i
		b.methods.Store(rt, h)
		return h, nil
	}
	return nil, errors.New(errors.PhaseHost, errors.KindNotFound).
		Path(b.f.Name).
		GoType(rt.String()).
		Detail("no method for %q", member).
		Build()
}
