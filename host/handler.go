package host

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// handler is a Go function checked against the function type it implements.
type handler struct {
	fn     reflect.Value
	params []reflect.Type
	ctx    bool
	value  bool // returns a value before the optional error
	err    bool
	index  int // method index for handlers found on a self value
}

// bind returns h applied to another receiver of the same type.
func (h *handler) bind(recv reflect.Value) *handler {
	c := *h
	c.fn = recv.Method(h.index)
	return &c
}

// newHandler checks fn against f. skip is the number of leading WIT
// parameters already bound into fn, such as self for a Go method value.
func newHandler(f *types.FuncType, fn reflect.Value, skip int) (*handler, error) {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path(f.Name).
			GoType(typeString(fn)).
			Detail("handler must be a function").
			Build()
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		return nil, handlerMismatch(f, ft, "variadic handlers are not supported")
	}

	h := &handler{fn: fn}
	in := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		h.ctx = true
		in = 1
	}
	if want := len(f.Params) - skip; ft.NumIn()-in != want {
		return nil, handlerMismatch(f, ft, fmt.Sprintf("expected %d parameters, got %d", want, ft.NumIn()-in))
	}
	for i := in; i < ft.NumIn(); i++ {
		h.params = append(h.params, ft.In(i))
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			h.err = true
		} else {
			h.value = true
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, handlerMismatch(f, ft, "second result must be error")
		}
		h.value, h.err = true, true
	default:
		return nil, handlerMismatch(f, ft, "too many results")
	}

	switch {
	case f.Result == nil && h.value:
		return nil, handlerMismatch(f, ft, "function has no result")
	case f.Result != nil && !h.value && !unitOK(f.Result):
		return nil, handlerMismatch(f, ft, "missing result "+f.Result.String())
	}
	return h, nil
}

// unitOK reports whether a handler may omit the value of result t: a
// result<_, E> is fully described by its error.
func unitOK(t types.Type) bool {
	r, ok := t.(*types.Result)
	return ok && r.OK() == nil
}

func handlerMismatch(f *types.FuncType, ft reflect.Type, detail string) error {
	return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		Path(f.Name).
		GoType(ft.String()).
		WitType(f.String()).
		Detail("%s", detail).
		Build()
}

func typeString(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

// call converts args to the handler's parameter types, invokes it and maps
// its results onto the function's result type. Panics become host failures.
func (h *handler) call(ctx context.Context, f *types.FuncType, args []any) (result any, err error) {
	in := make([]reflect.Value, 0, len(args)+1)
	if h.ctx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, a := range args {
		v, err := transcoder.Into(a, h.params[i])
		if err != nil {
			return nil, errors.WithPath(err, f.Params[len(f.Params)-len(args)+i].Name)
		}
		in = append(in, v)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseHost, errors.KindHostFailure).
				Path(f.Name).
				Detail("panic: %v", r).
				Build()
		}
	}()
	out := h.fn.Call(in)

	var v any
	if h.value {
		v = out[0].Interface()
	}
	if h.err {
		if e, _ := out[len(out)-1].Interface().(error); e != nil {
			return resultError(f, e)
		}
	}
	return resultValue(f, v), nil
}

// resultValue wraps a handler's value as ok(v) when the function returns a
// result and the handler did not build one itself.
func resultValue(f *types.FuncType, v any) any {
	if _, ok := f.Result.(*types.Result); !ok {
		return v
	}
	if r, ok := v.(value.Result); ok {
		return r
	}
	return value.Ok(v)
}

// ResultError carries the err(E) payload of a result<T, E> function.
type ResultError struct {
	Value any
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("result error: %v", e.Value)
}

// resultError maps a handler error onto err(E) when the function returns a
// result that can carry it, and onto a host failure otherwise.
func resultError(f *types.FuncType, err error) (any, error) {
	if r, ok := f.Result.(*types.Result); ok {
		var re *ResultError
		switch {
		case errors.As(err, &re):
			return value.Err(re.Value), nil
		case r.Err() == nil:
			return value.Err(nil), nil
		case r.Err() == types.String:
			return value.Err(err.Error()), nil
		}
	}
	return nil, errors.New(errors.PhaseHost, errors.KindHostFailure).
		Path(f.Name).
		Cause(err).
		Detail("handler failed").
		Build()
}
