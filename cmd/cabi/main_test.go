package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/iface"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

const geoDoc = `
interface: test:geo/api
types:
  - name: point
    record:
      - {name: x, type: s32}
      - {name: y, type: s32}
  - name: shape
    variant:
      - {name: circle, type: f64}
      - {name: rect, type: point}
      - {name: empty}
  - name: perms
    flags: [read, write]
funcs:
  - name: add
    params:
      - {name: a, type: u32}
      - {name: b, type: u32}
    result: u32
  - name: greet
    params:
      - {name: name, type: string}
    result: string
  - name: ping
`

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geo.yaml")
	if err := os.WriteFile(path, []byte(geoDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, false)
	cmd.SetArgs(args)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	doc := writeDoc(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"sig", []string{"sig", "-f", doc, "add"}, []string{
			"add: func(a: u32, b: u32) -> u32",
			"core   (i32, i32) -> (i32)",
		}},
		{"sig retptr", []string{"sig", "-f", doc, "greet"}, []string{
			"core   (i32, i32, i32) -> ()",
			"result via return pointer: 8 bytes, align 4",
		}},
		{"layout named", []string{"layout", "-f", doc}, []string{
			"point  record",
			"size   8",
			"@0    x: s32",
			"@4    y: s32",
			"shape  variant",
			"@8    rect: point",
			"@-    empty",
		}},
		{"layout expression", []string{"layout", "option<u64>"}, []string{
			"size   16",
			"flat   [i32, i64]",
			"@8    some: u64",
		}},
		{"lower tuple", []string{"lower", "tuple<u16, string>", `[8080, "ok"]`}, []string{
			"flat    [i32, i32, i32] = [0x1f90, 0x10, 0x2]",
			"value   @16     (12 bytes, align 4)",
			"90 1f 00 00 1c 00 00 00 02 00 00 00",
			"alloc   @28     (2 bytes, align 1)",
			"6f 6b",
			"lifted  [8080 ok]",
		}},
		{"lower record", []string{"lower", "-f", doc, "point", "{x: 1, y: -2}"}, []string{
			"= [0x1, 0xfffffffe]",
			"01 00 00 00 fe ff ff ff",
			"lifted  {x: 1, y: -2}",
		}},
		{"lower variant", []string{"lower", "-f", doc, "shape", "{rect: {x: 3, y: 4}}"}, []string{
			"flat    [i32, i64, i32] = [0x1, 0x3, 0x4]",
		}},
		{"args", []string{"args", "-f", doc, "greet", "bob"}, []string{
			"args   [0x10, 0x3, 0x14]",
			"62 6f 62",
			"retptr  @20",
		}},
		{"args none", []string{"args", "-f", doc, "ping"}, []string{
			"core   () -> ()",
			"args   []",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("%v\n%s", err, out)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output lacks %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	doc := writeDoc(t)

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"sig without file", []string{"sig"}, "--file"},
		{"unknown function", []string{"sig", "-f", doc, "nope"}, "nope"},
		{"bad type", []string{"lower", "list<", "[]"}, "list<"},
		{"bad value", []string{"lower", "u8", "300"}, "overflow"},
		{"wrong shape", []string{"lower", "-f", doc, "point", "[1, 2]"}, "type_mismatch"},
		{"arity", []string{"args", "-f", doc, "add", "1"}, "takes 2 arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err == nil {
				t.Fatalf("expected an error, got:\n%s", out)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	i, err := iface.Parse([]byte(geoDoc))
	if err != nil {
		t.Fatal(err)
	}
	typ := func(expr string) types.Type { return types.MustParseType(expr, i) }

	tests := []struct {
		name string
		typ  string
		src  string
		want any
	}{
		{"scalar", "u32", "7", 7},
		{"char", "char", `"λ"`, value.Char('λ')},
		{"list", "list<u8>", "[1, 2]", value.List{1, 2}},
		{"bytes", "list<u8>", `"hi"`, []byte("hi")},
		{"none", "option<string>", "null", value.None()},
		{"some", "option<string>", "x", value.Some("x")},
		{"ok", "result<u8, string>", "{ok: 1}", value.Ok(1)},
		{"err", "result<u8, string>", "{err: bad}", value.Err("bad")},
		{"unit ok", "result", "{ok: null}", value.Ok(nil)},
		{"case name", "shape", "empty", value.Variant{Case: "empty"}},
		{"case payload", "shape", "{circle: 1.5}", value.Variant{Case: "circle", Value: 1.5}},
		{"flags", "perms", "[write]", value.Flags{"write": true}},
		{"no flags", "perms", "[]", value.Flags{}},
		{"record", "point", "{x: 1, y: 2}", map[string]any{"x": 1, "y": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValue(tt.src, typ(tt.typ))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseValueErrors(t *testing.T) {
	i, _ := iface.Parse([]byte(geoDoc))
	point := types.MustParseType("point", i)

	if _, err := parseValue("{x: 1}", point); !errors.Is(err, &errors.Error{Kind: errors.KindFieldMissing}) {
		t.Errorf("missing field: %v", err)
	}
	if _, err := parseValue("{x: 1, y: 2, z: 3}", point); !errors.Is(err, &errors.Error{Kind: errors.KindFieldUnknown}) {
		t.Errorf("unknown field: %v", err)
	}
	if _, err := parseValue("{ok: 1, err: 2}", types.NewResult(types.U8, types.U8)); !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("two result keys: %v", err)
	}
	if _, err := parseValue(`"ab"`, types.Char); err == nil {
		t.Error("two characters accepted as char")
	}
}

func TestBrowseModel(t *testing.T) {
	i, err := iface.Parse([]byte(geoDoc))
	if err != nil {
		t.Fatal(err)
	}
	m := newBrowseModel("geo.yaml", i, nil)
	key := func(k tea.KeyType) tea.Msg { return tea.KeyMsg{Type: k} }

	// down to greet and open its inputs
	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyEnter))
	if m.state != stateInputArgs || len(m.inputs) != 1 {
		t.Fatalf("state = %d, inputs = %d", m.state, len(m.inputs))
	}
	m.inputs[0].SetValue("bob")
	_, cmd := m.Update(key(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("enter did not lower")
	}
	m.Update(cmd())
	if m.state != stateShowResult || m.err != nil {
		t.Fatalf("state = %d, err = %v", m.state, m.err)
	}
	if !strings.Contains(m.result, "retptr") || !strings.Contains(m.View(), "greet") {
		t.Errorf("result:\n%s", m.result)
	}

	m.Update(key(tea.KeyEsc))
	if m.state != stateSelectFunc {
		t.Errorf("esc left state %d", m.state)
	}

	// ping has no parameters and lowers straight away
	m.Update(key(tea.KeyDown))
	_, cmd = m.Update(key(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("ping did not lower")
	}
	m.Update(cmd())
	if m.state != stateShowResult {
		t.Errorf("state = %d", m.state)
	}
}
