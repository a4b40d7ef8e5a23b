// Package iface loads interface descriptions from YAML.
//
// A document names the interface, its resources, its named types and its
// functions. Every type position holds a WIT type expression as accepted by
// types.ParseType, so named types, resources and anonymous types such as
// list<tuple<u32, string>> can be mixed freely:
//
//	interface: test:fs/api
//	resources: [file]
//	types:
//	  - name: entry
//	    record:
//	      - {name: path, type: string}
//	      - {name: size, type: u64}
//	funcs:
//	  - name: "[method]file.list"
//	    params:
//	      - {name: self, type: borrow<file>}
//	    result: list<entry>
//
// Types may be declared in any order. A type whose definition reaches itself
// is rejected.
package iface
