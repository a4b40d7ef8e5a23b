package host

import (
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/transcoder"
)

// Style selects how resource methods are dispatched.
type Style uint8

const (
	// ModuleStyle requires an explicit handler for every function. Method
	// handlers receive the resolved self value as their first argument.
	ModuleStyle Style = iota
	// ClassStyle lets method handlers be omitted; [method]R.m then calls the
	// Go method M on the resolved self value.
	ClassStyle
)

func (s Style) String() string {
	if s == ClassStyle {
		return "class"
	}
	return "module"
}

// Option configures Bind.
type Option func(*config)

type config struct {
	style       Style
	registry    *resource.Registry
	destructors map[string]func(any)
	codec       []transcoder.Option
	debug       bool
}

// WithStyle selects the resource binding style.
func WithStyle(s Style) Option {
	return func(c *config) { c.style = s }
}

// WithResource sets the destructor run when a value of the named resource is
// dropped by the guest or when the imports are closed.
func WithResource(name string, dtor func(any)) Option {
	return func(c *config) {
		if c.destructors == nil {
			c.destructors = make(map[string]func(any))
		}
		c.destructors[name] = dtor
	}
}

// WithRegistry makes the binding keep its resource tables in reg, so they
// can be shared with a service binding of the same instance.
func WithRegistry(reg *resource.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithCodec passes options to the encoder and decoder of every call.
func WithCodec(opts ...transcoder.Option) Option {
	return func(c *config) { c.codec = append(c.codec, opts...) }
}

// WithDebug enables retained-borrow detection in the resource tables.
func WithDebug() Option {
	return func(c *config) { c.debug = true }
}
