package transcoder

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

func manyParams(n int, result types.Type) *types.FuncType {
	params := make([]types.Param, n)
	for i := range params {
		params[i] = types.P("p"+strconv.Itoa(i), types.U32)
	}
	return types.Must(types.NewFunc("many", result, params...))
}

func TestCallDirect(t *testing.T) {
	env, _ := newEnv()
	f := types.Must(types.NewFunc("greet", types.U32, types.P("name", types.String), types.P("times", types.U8)))
	c := PrepareCall(f)

	flat, retptr, err := NewEncoder().LowerArgs(env, c, []any{"bob", uint8(3)})
	if err != nil {
		t.Fatal(err)
	}
	if retptr != 0 || len(flat) != 3 {
		t.Fatalf("flat = %v, retptr = %d", flat, retptr)
	}

	args, retptr, err := NewDecoder().LiftArgs(env, c, flat)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"bob", uint8(3)}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	results, err := NewEncoder().LowerResult(env, c, 7, retptr)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{7}, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	got, err := NewDecoder().LiftResult(env, c, results, retptr)
	if err != nil || got != uint32(7) {
		t.Errorf("LiftResult = %v, %v", got, err)
	}
}

func TestCallSpilled(t *testing.T) {
	env, inst := newEnv()
	f := manyParams(17, types.String)
	c := PrepareCall(f)
	if !c.Sig.ParamsIndirect || !c.Sig.ResultIndirect {
		t.Fatalf("signature %s should spill params and result", c.Sig)
	}

	args := make([]any, 17)
	want := make([]any, 17)
	for i := range args {
		args[i] = i * 10
		want[i] = uint32(i * 10)
	}

	flat, retptr, err := NewEncoder().LowerArgs(env, c, args)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 2 || uint32(flat[1]) != retptr {
		t.Fatalf("flat = %v, retptr = %d", flat, retptr)
	}
	// p16 at offset 64 of the spilled tuple
	if v, _ := inst.Mem.ReadU32(uint32(flat[0]) + 64); v != 160 {
		t.Errorf("p16 in memory = %d, want 160", v)
	}

	lifted, gotRet, err := NewDecoder().LiftArgs(env, c, flat)
	if err != nil {
		t.Fatal(err)
	}
	if gotRet != retptr {
		t.Errorf("retptr = %d, want %d", gotRet, retptr)
	}
	if diff := cmp.Diff(want, lifted); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	results, err := NewEncoder().LowerResult(env, c, "done", retptr)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("indirect result returned %d flat values", len(results))
	}
	got, err := NewDecoder().LiftResult(env, c, results, retptr)
	if err != nil || got != "done" {
		t.Errorf("LiftResult = %v, %v", got, err)
	}
}

func TestCallSixteenParamsStayFlat(t *testing.T) {
	c := PrepareCall(manyParams(16, nil))
	if c.Sig.ParamsIndirect || len(c.Sig.Params) != 16 {
		t.Errorf("signature %s", c.Sig)
	}
}

func TestCallErrors(t *testing.T) {
	t.Run("argument count", func(t *testing.T) {
		env, _ := newEnv()
		c := PrepareCall(manyParams(2, nil))
		_, _, err := NewEncoder().LowerArgs(env, c, []any{1})
		if !errors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("spilled path names the parameter", func(t *testing.T) {
		env, inst := newEnv()
		c := PrepareCall(manyParams(17, nil))
		args := make([]any, 17)
		for i := range args {
			args[i] = 1
		}
		args[5] = "x"
		_, _, err := NewEncoder().LowerArgs(env, c, args)
		var e *errors.Error
		if !errors.As(err, &e) {
			t.Fatalf("got %v", err)
		}
		if diff := cmp.Diff([]string{"p5"}, e.Path); diff != "" {
			t.Errorf("path mismatch (-want +got):\n%s", diff)
		}
		if inst.Alloc.Live() != 0 {
			t.Errorf("spill area leaked: %d live allocations", inst.Alloc.Live())
		}
	})

	t.Run("retptr out of range", func(t *testing.T) {
		env, inst := newEnv()
		c := PrepareCall(types.Must(types.NewFunc("f", types.String)))
		_, _, err := NewDecoder().LiftArgs(env, c, []uint64{uint64(inst.Mem.Size())})
		if !errors.IsTrap(err) {
			t.Errorf("got %v, want trap", err)
		}
	})

	t.Run("retptr misaligned", func(t *testing.T) {
		env, _ := newEnv()
		c := PrepareCall(types.Must(types.NewFunc("f", types.String)))
		_, _, err := NewDecoder().LiftArgs(env, c, []uint64{2})
		if !errors.Is(err, &errors.Error{Kind: errors.KindMisaligned}) {
			t.Errorf("got %v, want misaligned", err)
		}
	})

	t.Run("result slot count", func(t *testing.T) {
		env, _ := newEnv()
		c := PrepareCall(types.Must(types.NewFunc("f", types.U32)))
		if _, err := NewDecoder().LiftResult(env, c, nil, 0); err == nil {
			t.Error("expected error for missing result slot")
		}
	})

	t.Run("lifted arg path", func(t *testing.T) {
		env, _ := newEnv()
		f := types.Must(types.NewFunc("f", nil, types.P("c", types.Char)))
		_, _, err := NewDecoder().LiftArgs(env, PrepareCall(f), []uint64{0xD800})
		var e *errors.Error
		if !errors.As(err, &e) || len(e.Path) == 0 || e.Path[0] != "c" {
			t.Errorf("got %v, want path starting at c", err)
		}
	})
}

func TestCallNoResult(t *testing.T) {
	env, _ := newEnv()
	c := PrepareCall(types.Must(types.NewFunc("ping", nil)))
	flat, _, err := NewEncoder().LowerArgs(env, c, nil)
	if err != nil || len(flat) != 0 {
		t.Fatalf("LowerArgs = %v, %v", flat, err)
	}
	results, err := NewEncoder().LowerResult(env, c, nil, 0)
	if err != nil || len(results) != 0 {
		t.Fatalf("LowerResult = %v, %v", results, err)
	}
	got, err := NewDecoder().LiftResult(env, c, results, 0)
	if err != nil || got != nil {
		t.Errorf("LiftResult = %v, %v", got, err)
	}
}

func TestCallVariantResult(t *testing.T) {
	env, _ := newEnv()
	res := types.NewResult(types.NewTuple(types.U64, types.U64), colorT)
	c := PrepareCall(types.Must(types.NewFunc("pair", res)))

	flat, retptr, err := NewEncoder().LowerArgs(env, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 1 || retptr%8 != 0 {
		t.Fatalf("flat = %v, retptr = %d", flat, retptr)
	}

	in := value.Err(value.Enum("green"))
	if _, err := NewEncoder().LowerResult(env, c, in, retptr); err != nil {
		t.Fatal(err)
	}
	got, err := NewDecoder().LiftResult(env, c, []uint64{}, retptr)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
