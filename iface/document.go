package iface

// Document is the YAML form of an interface.
//
//	interface: test:geo/api
//	resources: [file]
//	types:
//	  - name: point
//	    record:
//	      - {name: x, type: s32}
//	      - {name: y, type: s32}
//	  - name: color
//	    enum: [red, green]
//	funcs:
//	  - name: distance
//	    params:
//	      - {name: a, type: point}
//	      - {name: b, type: point}
//	    result: f64
type Document struct {
	Interface string     `yaml:"interface"`
	Resources []string   `yaml:"resources,omitempty"`
	Types     []TypeDecl `yaml:"types,omitempty"`
	Funcs     []FuncDecl `yaml:"funcs,omitempty"`
}

// TypeDecl declares one named type. Exactly one of Type, Record, Variant,
// Enum and Flags is set; Type makes the name an alias of a type expression.
type TypeDecl struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type,omitempty"`
	Record  []Member `yaml:"record,omitempty"`
	Variant []Member `yaml:"variant,omitempty"`
	Enum    []string `yaml:"enum,omitempty"`
	Flags   []string `yaml:"flags,omitempty"`
}

// Member is a record field, a variant case or a function parameter. Type
// is a type expression; a variant case may leave it empty.
type Member struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
}

// FuncDecl declares a function. An empty Result means no result.
type FuncDecl struct {
	Name   string   `yaml:"name"`
	Params []Member `yaml:"params,omitempty"`
	Result string   `yaml:"result,omitempty"`
}

func (d *TypeDecl) forms() int {
	n := 0
	for _, set := range []bool{d.Type != "", d.Record != nil, d.Variant != nil, d.Enum != nil, d.Flags != nil} {
		if set {
			n++
		}
	}
	return n
}
