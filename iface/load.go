package iface

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/types"
)

// LoadFile reads an interface description from path.
func LoadFile(path string) (*types.Interface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseFailed(path, err)
	}
	return Parse(data)
}

// Parse decodes YAML data and builds the interface it describes. Unknown
// keys are rejected.
func Parse(data []byte) (*types.Interface, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes one document from r and builds it.
func Load(r io.Reader) (*types.Interface, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.InvalidInput(errors.PhaseParse, "empty interface document")
		}
		return nil, errors.ParseFailed("interface document", err)
	}
	return Build(&doc)
}

// Build turns doc into an interface. Types may reference each other in any
// order; a type that reaches itself is rejected.
func Build(doc *Document) (*types.Interface, error) {
	if doc.Interface == "" {
		return nil, errors.InvalidInput(errors.PhaseParse, "interface name is missing")
	}
	out := types.NewInterface(doc.Interface)
	for _, name := range doc.Resources {
		if err := out.DefineResource(types.NewResource(name)); err != nil {
			return nil, err
		}
	}

	b := &builder{
		iface: out,
		decls: make(map[string]*TypeDecl, len(doc.Types)),
		built: make(map[string]types.Type, len(doc.Types)),
		state: make(map[string]visit, len(doc.Types)),
	}
	for i := range doc.Types {
		d := &doc.Types[i]
		if d.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseParse, fmt.Sprintf("type %d has no name", i))
		}
		if _, dup := b.decls[d.Name]; dup {
			return nil, errors.Duplicate(errors.PhaseParse, "type", d.Name)
		}
		b.decls[d.Name] = d
	}

	for i := range doc.Types {
		name := doc.Types[i].Name
		t, err := b.resolve(name)
		if err != nil {
			return nil, err
		}
		if err := out.DefineType(name, t); err != nil {
			return nil, err
		}
	}

	for _, fd := range doc.Funcs {
		f, err := b.function(fd)
		if err != nil {
			return nil, errors.WithPath(err, fd.Name)
		}
		if err := out.DefineFunc(f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type visit uint8

const (
	unvisited visit = iota
	visiting
	done
)

// builder resolves named types on first use. It is the scope type
// expressions are parsed against.
type builder struct {
	iface *types.Interface
	decls map[string]*TypeDecl
	built map[string]types.Type
	state map[string]visit
	// err is the first failure met while resolving a name for the parser.
	err error
}

func (b *builder) Type(name string) (types.Type, bool) {
	if _, ok := b.decls[name]; !ok {
		return nil, false
	}
	t, err := b.resolve(name)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return nil, false
	}
	return t, true
}

func (b *builder) Resource(name string) (*types.Resource, bool) {
	return b.iface.Resource(name)
}

func (b *builder) resolve(name string) (types.Type, error) {
	switch b.state[name] {
	case done:
		return b.built[name], nil
	case visiting:
		return nil, errors.InvalidInput(errors.PhaseParse, fmt.Sprintf("type %s refers to itself", name))
	}
	b.state[name] = visiting
	t, err := b.declare(b.decls[name])
	if err != nil {
		return nil, err
	}
	b.state[name] = done
	b.built[name] = t
	return t, nil
}

func (b *builder) declare(d *TypeDecl) (types.Type, error) {
	if d.forms() != 1 {
		return nil, errors.InvalidInput(errors.PhaseParse,
			fmt.Sprintf("type %s: exactly one of type, record, variant, enum or flags is required", d.Name))
	}

	switch {
	case d.Type != "":
		return b.expr(d.Type, d.Name)
	case d.Record != nil:
		fields := make([]types.Field, len(d.Record))
		for i, m := range d.Record {
			t, err := b.expr(m.Type, d.Name, m.Name)
			if err != nil {
				return nil, err
			}
			fields[i] = types.Field{Name: m.Name, Type: t}
		}
		return types.NewRecord(d.Name, fields...)
	case d.Variant != nil:
		cases := make([]types.Case, len(d.Variant))
		for i, m := range d.Variant {
			cases[i].Name = m.Name
			if m.Type == "" {
				continue
			}
			t, err := b.expr(m.Type, d.Name, m.Name)
			if err != nil {
				return nil, err
			}
			cases[i].Type = t
		}
		return types.NewVariant(d.Name, cases...)
	case d.Enum != nil:
		return types.NewEnum(d.Name, d.Enum...)
	default:
		return types.NewFlags(d.Name, d.Flags...)
	}
}

// expr parses a type expression. path names where it appears.
func (b *builder) expr(src string, path ...string) (types.Type, error) {
	b.err = nil
	t, err := types.ParseType(src, b)
	if b.err != nil {
		// the real cause, not the "unknown type" the parser saw
		err = b.err
		b.err = nil
	}
	if err != nil {
		for i := len(path) - 1; i >= 0; i-- {
			err = errors.WithPath(err, path[i])
		}
		return nil, err
	}
	return t, nil
}

func (b *builder) function(fd FuncDecl) (*types.FuncType, error) {
	params := make([]types.Param, len(fd.Params))
	for i, m := range fd.Params {
		t, err := b.expr(m.Type, m.Name)
		if err != nil {
			return nil, err
		}
		params[i] = types.P(m.Name, t)
	}
	var result types.Type
	if fd.Result != "" {
		t, err := b.expr(fd.Result, "result")
		if err != nil {
			return nil, err
		}
		result = t
	}
	return types.NewFunc(fd.Name, result, params...)
}
