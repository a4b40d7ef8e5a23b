package types

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrimitiveLayout(t *testing.T) {
	tests := []struct {
		typ   Type
		size  uint32
		align uint32
		flat  []FlatType
	}{
		{Bool, 1, 1, []FlatType{FlatI32}},
		{U8, 1, 1, []FlatType{FlatI32}},
		{S16, 2, 2, []FlatType{FlatI32}},
		{U32, 4, 4, []FlatType{FlatI32}},
		{S64, 8, 8, []FlatType{FlatI64}},
		{F32, 4, 4, []FlatType{FlatF32}},
		{F64, 8, 8, []FlatType{FlatF64}},
		{Char, 4, 4, []FlatType{FlatI32}},
		{String, 8, 4, []FlatType{FlatI32, FlatI32}},
		{NewList(U64), 8, 4, []FlatType{FlatI32, FlatI32}},
		{NewOwn(NewResource("file")), 4, 4, []FlatType{FlatI32}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if tt.typ.Size() != tt.size || tt.typ.Align() != tt.align {
				t.Errorf("size/align = %d/%d, want %d/%d", tt.typ.Size(), tt.typ.Align(), tt.size, tt.align)
			}
			if diff := cmp.Diff(tt.flat, tt.typ.Flat()); diff != "" {
				t.Errorf("flat mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecordLayout(t *testing.T) {
	t.Run("endpoint", func(t *testing.T) {
		r := Must(NewRecord("endpoint",
			Field{"port", U16},
			Field{"addr", NewTuple(U8, U8, U8, U8)},
		))
		if r.Size() != 6 || r.Align() != 2 {
			t.Errorf("size/align = %d/%d, want 6/2", r.Size(), r.Align())
		}
		if r.Offset(0) != 0 || r.Offset(1) != 2 {
			t.Errorf("offsets = %d, %d", r.Offset(0), r.Offset(1))
		}
		if len(r.Flat()) != 5 {
			t.Errorf("flat = %v, want 5 slots", r.Flat())
		}
	})

	t.Run("padding", func(t *testing.T) {
		r := Must(NewRecord("", Field{"a", U8}, Field{"b", U64}, Field{"c", U16}))
		if r.Offset(1) != 8 || r.Offset(2) != 16 {
			t.Errorf("offsets = %d, %d, want 8, 16", r.Offset(1), r.Offset(2))
		}
		if r.Size() != 24 || r.Align() != 8 {
			t.Errorf("size/align = %d/%d, want 24/8", r.Size(), r.Align())
		}
		if diff := cmp.Diff([]FlatType{FlatI32, FlatI64, FlatI32}, r.Flat()); diff != "" {
			t.Errorf("flat mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty", func(t *testing.T) {
		r := Must(NewRecord("unit"))
		if r.Size() != 0 || r.Align() != 1 || len(r.Flat()) != 0 {
			t.Errorf("empty record = %d/%d/%v", r.Size(), r.Align(), r.Flat())
		}
	})

	t.Run("duplicate field", func(t *testing.T) {
		if _, err := NewRecord("p", Field{"x", U32}, Field{"x", U32}); err == nil {
			t.Error("expected duplicate field error")
		}
	})

	t.Run("empty field name", func(t *testing.T) {
		if _, err := NewRecord("p", Field{"", U32}); err == nil {
			t.Error("expected empty name error")
		}
	})
}

func TestUnionLayout(t *testing.T) {
	tests := []struct {
		name          string
		typ           Union
		size, align   uint32
		payloadOffset uint32
		flat          []FlatType
	}{
		{
			name:          "i32 and f32 share a slot",
			typ:           Must(NewVariant("v", Case{"a", U32}, Case{"b", F32})),
			size:          8,
			align:         4,
			payloadOffset: 4,
			flat:          []FlatType{FlatI32, FlatI32},
		},
		{
			name:          "i32 and i64 widen",
			typ:           Must(NewVariant("v", Case{"a", U32}, Case{"b", U64})),
			size:          16,
			align:         8,
			payloadOffset: 8,
			flat:          []FlatType{FlatI32, FlatI64},
		},
		{
			name:          "f32 and f64 widen",
			typ:           Must(NewVariant("v", Case{"a", F32}, Case{"b", F64})),
			size:          16,
			align:         8,
			payloadOffset: 8,
			flat:          []FlatType{FlatI32, FlatI64},
		},
		{
			name:          "longest case wins",
			typ:           Must(NewVariant("v", Case{"a", U8}, Case{"b", String}, Case{"c", nil})),
			size:          12,
			align:         4,
			payloadOffset: 4,
			flat:          []FlatType{FlatI32, FlatI32, FlatI32},
		},
		{
			name:          "option u8",
			typ:           NewOption(U8),
			size:          2,
			align:         1,
			payloadOffset: 1,
			flat:          []FlatType{FlatI32, FlatI32},
		},
		{
			name:          "option u64",
			typ:           NewOption(U64),
			size:          16,
			align:         8,
			payloadOffset: 8,
			flat:          []FlatType{FlatI32, FlatI64},
		},
		{
			name:          "empty result",
			typ:           NewResult(nil, nil),
			size:          1,
			align:         1,
			payloadOffset: 1,
			flat:          []FlatType{FlatI32},
		},
		{
			name:          "result string f64",
			typ:           NewResult(String, F64),
			size:          16,
			align:         8,
			payloadOffset: 8,
			flat:          []FlatType{FlatI32, FlatI64, FlatI32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.typ.Size() != tt.size || tt.typ.Align() != tt.align {
				t.Errorf("size/align = %d/%d, want %d/%d", tt.typ.Size(), tt.typ.Align(), tt.size, tt.align)
			}
			if tt.typ.PayloadOffset() != tt.payloadOffset {
				t.Errorf("payload offset = %d, want %d", tt.typ.PayloadOffset(), tt.payloadOffset)
			}
			if diff := cmp.Diff(tt.flat, tt.typ.Flat()); diff != "" {
				t.Errorf("flat mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiscriminantWidth(t *testing.T) {
	cases := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "c" + strconv.Itoa(i)
		}
		return out
	}

	tests := []struct {
		n    int
		size uint32
	}{
		{1, 1},
		{256, 1},
		{257, 2},
		{65536, 2},
		{65537, 4},
	}

	for _, tt := range tests {
		e := Must(NewEnum("e", cases(tt.n)...))
		if e.Size() != tt.size || e.Align() != tt.size {
			t.Errorf("enum of %d: size/align = %d/%d, want %d", tt.n, e.Size(), e.Align(), tt.size)
		}
		if diff := cmp.Diff([]FlatType{FlatI32}, e.Flat()); diff != "" {
			t.Errorf("enum of %d flat mismatch:\n%s", tt.n, diff)
		}
	}

	if _, err := NewEnum("empty"); err == nil {
		t.Error("enum without cases must be rejected")
	}
}

func TestFlagsLayout(t *testing.T) {
	labels := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "f" + strconv.Itoa(i)
		}
		return out
	}

	tests := []struct {
		n           int
		size, align uint32
		slots       int
	}{
		{0, 0, 1, 0},
		{3, 1, 1, 1},
		{9, 2, 2, 1},
		{32, 4, 4, 1},
		{33, 8, 4, 2},
		{70, 12, 4, 3},
	}

	for _, tt := range tests {
		f := Must(NewFlags("f", labels(tt.n)...))
		if f.Size() != tt.size || f.Align() != tt.align || len(f.Flat()) != tt.slots {
			t.Errorf("flags(%d) = %d/%d/%d, want %d/%d/%d",
				tt.n, f.Size(), f.Align(), len(f.Flat()), tt.size, tt.align, tt.slots)
		}
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		a, b, want FlatType
	}{
		{FlatI32, FlatI32, FlatI32},
		{FlatF64, FlatF64, FlatF64},
		{FlatI32, FlatF32, FlatI32},
		{FlatF32, FlatI32, FlatI32},
		{FlatI32, FlatI64, FlatI64},
		{FlatF32, FlatF64, FlatI64},
		{FlatI64, FlatF64, FlatI64},
		{FlatF32, FlatI64, FlatI64},
	}

	for _, tt := range tests {
		if got := Join(tt.a, tt.b); got != tt.want {
			t.Errorf("Join(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestStrings(t *testing.T) {
	file := NewResource("file")
	tests := []struct {
		typ  Type
		want string
	}{
		{NewList(NewTuple(U32, String)), "list<tuple<u32, string>>"},
		{NewOption(Char), "option<char>"},
		{NewResult(nil, String), "result<_, string>"},
		{NewResult(U8, nil), "result<u8>"},
		{NewResult(nil, nil), "result"},
		{NewBorrow(file), "borrow<file>"},
		{Must(NewEnum("color", "red")), "color"},
		{Must(NewRecord("", Field{"x", U8})), "record { x: u8 }"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
