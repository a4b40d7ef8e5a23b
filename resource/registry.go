package resource

import (
	"sort"
	"sync"

	"github.com/wippyai/wasm-canon/errors"
)

// Registry holds the tables of one instance, keyed by resource name.
type Registry struct {
	tables map[string]*Table
	opts   []Option
	mu     sync.RWMutex
}

// NewRegistry creates a registry; opts apply to every table it defines.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{tables: make(map[string]*Table), opts: opts}
}

// Define creates the table for name. Per-table opts are applied after the
// registry's own.
func (r *Registry) Define(name string, opts ...Option) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[name]; ok {
		return nil, errors.Duplicate(errors.PhaseResource, "resource", name)
	}
	all := make([]Option, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	all = append(all, opts...)
	t := NewTable(name, all...)
	r.tables[name] = t
	return t, nil
}

// Table returns the table for name, defining it if needed.
func (r *Registry) Table(name string) *Table {
	r.mu.RLock()
	t, ok := r.tables[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[name]; ok {
		return t
	}
	t = NewTable(name, r.opts...)
	r.tables[name] = t
	return t
}

// Lookup returns the table for name if it exists.
func (r *Registry) Lookup(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// Names returns the defined resource names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every table.
func (r *Registry) Close() error {
	r.mu.Lock()
	tables := r.tables
	r.tables = make(map[string]*Table)
	r.mu.Unlock()

	for _, t := range tables {
		_ = t.Close()
	}
	return nil
}
