package host

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/linear"
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

func calcInterface() *types.Interface {
	return types.NewInterface("test:calc/ops").WithFuncs(
		types.Must(types.NewFunc("add", types.U32, types.P("a", types.U32), types.P("b", types.U32))),
		types.Must(types.NewFunc("greet", types.String, types.P("name", types.String))),
		types.Must(types.NewFunc("divide", types.NewResult(types.S32, types.String), types.P("a", types.S32), types.P("b", types.S32))),
		types.Must(types.NewFunc("fail", nil)),
		types.Must(types.NewFunc("boom", nil)),
	)
}

type calc struct{}

func (calc) Add(a, b uint32) uint32 { return a + b }

func (calc) Greet(ctx context.Context, name string) string { return "hello " + name }

func (calc) Divide(a, b int32) (int32, error) {
	if b == 0 {
		return 0, stderrors.New("division by zero")
	}
	return a / b, nil
}

func (calc) Fail() error { return stderrors.New("nope") }

func (calc) Boom() { panic("boom") }

// guestCall lowers args the way a guest would, runs the import and lifts
// the result back.
func guestCall(t *testing.T, inst *linear.Instance, im *Imports, name string, args ...any) (any, error) {
	t.Helper()
	imp, ok := im.Lookup(name)
	if !ok {
		t.Fatalf("no import %s", name)
	}
	c := transcoder.PrepareCall(imp.Type)
	env := transcoder.EnvFor(inst, nil)

	flat, retptr, err := transcoder.NewEncoder().LowerArgs(env, c, args)
	if err != nil {
		t.Fatalf("guest lowering: %v", err)
	}
	results, err := imp.Func(context.Background(), inst, flat)
	if err != nil {
		return nil, err
	}
	return transcoder.NewDecoder().LiftResult(env, c, results, retptr)
}

func TestBind_Struct(t *testing.T) {
	im, err := Bind(calcInterface(), calc{})
	if err != nil {
		t.Fatal(err)
	}
	inst := linear.NewInstance()

	tests := []struct {
		name string
		fn   string
		args []any
		want any
	}{
		{"direct result", "add", []any{uint32(2), uint32(3)}, uint32(5)},
		{"indirect string", "greet", []any{"bob"}, "hello bob"},
		{"ok result", "divide", []any{int32(9), int32(3)}, value.Ok(int32(3))},
		{"err result", "divide", []any{int32(1), int32(0)}, value.Err("division by zero")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guestCall(t, inst, im, tt.fn, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBind_Signatures(t *testing.T) {
	im, err := Bind(calcInterface(), calc{})
	if err != nil {
		t.Fatal(err)
	}
	greet, _ := im.Lookup("greet")
	if got := greet.Signature.String(); got != "(i32, i32, i32) -> ()" {
		t.Errorf("greet signature = %s", got)
	}
	add, _ := im.Lookup("add")
	if got := add.Signature.String(); got != "(i32, i32) -> (i32)" {
		t.Errorf("add signature = %s", got)
	}
}

func TestBind_Failures(t *testing.T) {
	im, err := Bind(calcInterface(), calc{})
	if err != nil {
		t.Fatal(err)
	}
	inst := linear.NewInstance()

	t.Run("error without result", func(t *testing.T) {
		_, err := guestCall(t, inst, im, "fail")
		if !errors.Is(err, &errors.Error{Kind: errors.KindHostFailure}) || !errors.IsTrap(err) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		_, err := guestCall(t, inst, im, "boom")
		var e *errors.Error
		if !errors.As(err, &e) || e.Kind != errors.KindHostFailure || e.Detail != "panic: boom" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("malformed arguments", func(t *testing.T) {
		imp, _ := im.Lookup("greet")
		_, err := imp.Func(context.Background(), inst, []uint64{uint64(inst.Mem.Size() - 1), 8, 16})
		if !errors.IsTrap(err) {
			t.Fatalf("got %v, want trap", err)
		}
	})

	t.Run("still usable", func(t *testing.T) {
		got, err := guestCall(t, inst, im, "add", uint32(1), uint32(1))
		if err != nil || got != uint32(2) {
			t.Fatalf("got %v, %v", got, err)
		}
	})
}

func TestBind_Missing(t *testing.T) {
	type partial struct{ calc }
	iface := calcInterface().WithFuncs(
		types.Must(types.NewFunc("sub", types.U32, types.P("a", types.U32), types.P("b", types.U32))),
		types.Must(types.NewFunc("mul", types.U32, types.P("a", types.U32), types.P("b", types.U32))),
	)

	_, err := Bind(iface, partial{})
	var me *errors.MissingFuncsError
	if !errors.As(err, &me) {
		t.Fatalf("got %v", err)
	}
	if diff := cmp.Diff([]string{"sub", "mul"}, me.Names); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
	if me.Namespace != "test:calc/ops" {
		t.Errorf("namespace = %q", me.Namespace)
	}
}

func TestBind_BadHandler(t *testing.T) {
	iface := types.NewInterface("t").WithFuncs(
		types.Must(types.NewFunc("add", types.U32, types.P("a", types.U32), types.P("b", types.U32))),
	)
	tests := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"too few params", func(a uint32) uint32 { return a }},
		{"no result", func(a, b uint32) {}},
		{"bad second result", func(a, b uint32) (uint32, uint32) { return 0, 0 }},
		{"variadic", func(a uint32, b ...uint32) uint32 { return a }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(iface, map[string]any{"add": tt.fn})
			if !errors.Is(err, &errors.Error{Kind: errors.KindTypeMismatch}) {
				t.Fatalf("got %v", err)
			}
		})
	}
}

type registrar struct{}

func (registrar) Register() map[string]any {
	return map[string]any{
		"add": func(a, b uint32) uint32 { return a*100 + b },
	}
}

func TestBind_MapAndRegistrar(t *testing.T) {
	iface := types.NewInterface("t").WithFuncs(
		types.Must(types.NewFunc("add", types.U32, types.P("a", types.U32), types.P("b", types.U32))),
	)
	inst := linear.NewInstance()

	im, err := Bind(iface, map[string]any{"add": func(ctx context.Context, a, b uint64) uint64 { return a - b }})
	if err != nil {
		t.Fatal(err)
	}
	if got, err := guestCall(t, inst, im, "add", uint32(5), uint32(2)); err != nil || got != uint32(3) {
		t.Errorf("map handler = %v, %v", got, err)
	}

	im, err = Bind(iface, registrar{})
	if err != nil {
		t.Fatal(err)
	}
	if got, err := guestCall(t, inst, im, "add", uint32(1), uint32(2)); err != nil || got != uint32(102) {
		t.Errorf("registrar handler = %v, %v", got, err)
	}
}

type counter struct {
	n       uint32
	dropped int
}

func (c *counter) Inc(by uint32) uint32 {
	c.n += by
	return c.n
}

func counterInterface() (*types.Interface, *types.Resource) {
	res := types.NewResource("counter")
	iface := types.NewInterface("test:counter/api")
	if err := iface.DefineResource(res); err != nil {
		panic(err)
	}
	iface.WithFuncs(
		types.Must(types.NewFunc("[constructor]counter", types.NewOwn(res), types.P("start", types.U32))),
		types.Must(types.NewFunc("[method]counter.inc", types.U32, types.P("self", types.NewBorrow(res)), types.P("by", types.U32))),
		types.Must(types.NewFunc("[static]counter.merge", types.NewOwn(res), types.P("a", types.NewOwn(res)), types.P("b", types.NewOwn(res)))),
	)
	return iface, res
}

type counterModule struct{}

func (counterModule) NewCounter(start uint32) *counter { return &counter{n: start} }

func (counterModule) CounterInc(self *counter, by uint32) uint32 { return self.Inc(by) }

func (counterModule) CounterMerge(a, b *counter) *counter { return &counter{n: a.n + b.n} }

func TestBind_ResourcesModuleStyle(t *testing.T) {
	iface, _ := counterInterface()
	var destroyed []uint32
	im, err := Bind(iface, counterModule{}, WithResource("counter", func(v any) {
		destroyed = append(destroyed, v.(*counter).n)
	}))
	if err != nil {
		t.Fatal(err)
	}
	inst := linear.NewInstance()

	h, err := guestCall(t, inst, im, "[constructor]counter", uint32(10))
	if err != nil {
		t.Fatal(err)
	}
	got, err := guestCall(t, inst, im, "[method]counter.inc", h, uint32(5))
	if err != nil || got != uint32(15) {
		t.Fatalf("inc = %v, %v", got, err)
	}

	h2, _ := guestCall(t, inst, im, "[constructor]counter", uint32(1))
	merged, err := guestCall(t, inst, im, "[static]counter.merge", h, h2)
	if err != nil {
		t.Fatal(err)
	}
	table := im.Resources.Table("counter")
	if table.Len() != 1 {
		t.Fatalf("live counters = %d, want 1 after merge took both", table.Len())
	}
	if len(destroyed) != 0 {
		t.Fatalf("own params must not be destroyed: %v", destroyed)
	}

	if _, err := guestCall(t, inst, im, "[method]counter.inc", h, uint32(1)); !errors.IsBadHandle(err) {
		t.Fatalf("inc on moved handle: %v", err)
	}

	if _, err := guestCall(t, inst, im, "[resource-drop]counter", merged); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{16}, destroyed); diff != "" {
		t.Errorf("destroyed mismatch (-want +got):\n%s", diff)
	}
	if _, err := guestCall(t, inst, im, "[resource-drop]counter", merged); !errors.IsBadHandle(err) {
		t.Fatalf("double drop: %v", err)
	}
}

func TestBind_ResourcesClassStyle(t *testing.T) {
	iface, _ := counterInterface()
	impl := map[string]any{
		"[constructor]counter":  func(start uint32) *counter { return &counter{n: start} },
		"[static]counter.merge": func(a, b *counter) *counter { return &counter{n: a.n + b.n} },
	}

	if _, err := Bind(iface, impl); !errors.As(err, new(*errors.MissingFuncsError)) {
		t.Fatalf("module style without method handler: %v", err)
	}

	im, err := Bind(iface, impl, WithStyle(ClassStyle))
	if err != nil {
		t.Fatal(err)
	}
	inst := linear.NewInstance()
	h, _ := guestCall(t, inst, im, "[constructor]counter", uint32(3))
	for _, want := range []uint32{4, 5} {
		got, err := guestCall(t, inst, im, "[method]counter.inc", h, uint32(1))
		if err != nil || got != want {
			t.Fatalf("inc = %v, %v; want %d", got, err, want)
		}
	}

	v, err := im.Resources.Table("counter").Resolve(resource.Handle(h.(value.Handle)))
	if err != nil || v.(*counter).n != 5 {
		t.Fatalf("table value = %v, %v", v, err)
	}
}

func TestBind_BorrowReleased(t *testing.T) {
	iface, _ := counterInterface()
	im, err := Bind(iface, counterModule{})
	if err != nil {
		t.Fatal(err)
	}
	inst := linear.NewInstance()
	h, _ := guestCall(t, inst, im, "[constructor]counter", uint32(0))
	_, _ = guestCall(t, inst, im, "[method]counter.inc", h, uint32(1))

	// the borrow of the method call must be over
	if _, err := guestCall(t, inst, im, "[resource-drop]counter", h); err != nil {
		t.Fatalf("drop after method call: %v", err)
	}
}

func TestBind_UnknownResourceOption(t *testing.T) {
	_, err := Bind(calcInterface(), calc{}, WithResource("ghost", nil))
	if !errors.Is(err, &errors.Error{Kind: errors.KindNotFound}) {
		t.Fatalf("got %v", err)
	}
}

func TestHandlerKey(t *testing.T) {
	tests := []struct {
		wit    string
		goName string
	}{
		{"get-random", "GetRandom"},
		{"[constructor]counter", "NewCounter"},
		{"[method]counter.inc", "CounterInc"},
		{"[static]counter.make", "CounterMake"},
		{"get-http-url", "GetHTTPURL"},
		{"[method]input-stream.read", "InputStreamRead"},
	}
	for _, tt := range tests {
		t.Run(tt.wit, func(t *testing.T) {
			key := handlerKey(types.ParseFuncName(tt.wit))
			if foldKey(tt.goName) != foldKey(key) {
				t.Errorf("%s does not match handler key %s", tt.goName, key)
			}
		})
	}
}

type fetcher struct{}

func (fetcher) GetHTTPURL(id uint32) string { return "url" }

func TestBind_AcronymMethod(t *testing.T) {
	iface := types.NewInterface("test:net/fetch").WithFuncs(
		types.Must(types.NewFunc("get-http-url", types.String, types.P("id", types.U32))),
	)
	im, err := Bind(iface, fetcher{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := guestCall(t, linear.NewInstance(), im, "get-http-url", uint32(1))
	if err != nil {
		t.Fatal(err)
	}
	if got != "url" {
		t.Errorf("got %v, want url", got)
	}
}

type blob struct{ name string }

type blobStore struct{}

func (blobStore) Consume(b *blob, note string) error {
	if note == "refuse" {
		return stderrors.New("refused")
	}
	return nil
}

func TestBind_OwnParamOnFailure(t *testing.T) {
	res := types.NewResource("blob")
	iface := types.NewInterface("test:blob/store")
	if err := iface.DefineResource(res); err != nil {
		t.Fatal(err)
	}
	iface.WithFuncs(types.Must(types.NewFunc("consume", nil,
		types.P("b", types.NewOwn(res)), types.P("note", types.String))))

	tests := []struct {
		name string
		call func(t *testing.T, inst *linear.Instance, im *Imports, h resource.Handle) error
	}{
		{
			name: "lift fails after own param",
			call: func(t *testing.T, inst *linear.Instance, im *Imports, h resource.Handle) error {
				// note points at bytes that are not UTF-8
				ptr, err := inst.Alloc.Alloc(2, 1)
				if err != nil {
					t.Fatal(err)
				}
				if err := inst.Mem.Write(ptr, []byte{0xFF, 0xFE}); err != nil {
					t.Fatal(err)
				}
				consume, _ := im.Lookup("consume")
				_, err = consume.Func(context.Background(), inst, []uint64{uint64(h), uint64(ptr), 2})
				return err
			},
		},
		{
			name: "handler fails",
			call: func(t *testing.T, inst *linear.Instance, im *Imports, h resource.Handle) error {
				_, err := guestCall(t, inst, im, "consume", value.Handle(h), "refuse")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var destroyed []string
			im, err := Bind(iface, blobStore{}, WithResource("blob", func(v any) {
				destroyed = append(destroyed, v.(*blob).name)
			}))
			if err != nil {
				t.Fatal(err)
			}
			table := im.Resources.Table("blob")
			h, err := table.Allocate(&blob{name: tt.name})
			if err != nil {
				t.Fatal(err)
			}

			if err := tt.call(t, linear.NewInstance(), im, h); err == nil {
				t.Fatal("expected the call to fail")
			}

			if diff := cmp.Diff([]string{tt.name}, destroyed); diff != "" {
				t.Errorf("destroyed mismatch (-want +got):\n%s", diff)
			}
			if table.Len() != 0 {
				t.Errorf("live blobs = %d, want 0", table.Len())
			}
			if err := im.Close(); err != nil {
				t.Fatal(err)
			}
			if len(destroyed) != 1 {
				t.Errorf("destructor ran %d times", len(destroyed))
			}
		})
	}
}

func TestBind_OwnParamConsumed(t *testing.T) {
	iface, _ := counterInterface()
	var destroyed int
	im, err := Bind(iface, counterModule{}, WithResource("counter", func(any) { destroyed++ }))
	if err != nil {
		t.Fatal(err)
	}
	inst := linear.NewInstance()
	a, _ := guestCall(t, inst, im, "[constructor]counter", uint32(1))
	b, _ := guestCall(t, inst, im, "[constructor]counter", uint32(2))

	// the same handle twice: the second take fails after the first succeeded
	if _, err := guestCall(t, inst, im, "[static]counter.merge", a, a); !errors.IsBadHandle(err) {
		t.Fatalf("merge(a, a): %v", err)
	}
	if destroyed != 1 {
		t.Fatalf("destroyed = %d after failed merge, want 1", destroyed)
	}
	if _, err := guestCall(t, inst, im, "[resource-drop]counter", b); err != nil {
		t.Fatal(err)
	}
	if destroyed != 2 {
		t.Errorf("destroyed = %d, want 2", destroyed)
	}
}
