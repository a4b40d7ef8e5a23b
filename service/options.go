package service

import (
	"github.com/wippyai/wasm-canon/resource"
	"github.com/wippyai/wasm-canon/transcoder"
)

// Style selects how guest resources returned to the host are wrapped.
type Style uint8

const (
	// ModuleStyle returns guest resources as Handle values; methods are
	// called through Service.Call with the handle as first argument.
	ModuleStyle Style = iota
	// ClassStyle returns guest resources as *Object values with their own
	// Call and Drop.
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
	style Style
	host  *resource.Registry
	codec []transcoder.Option
	debug bool
}

// WithStyle selects the resource binding style.
func WithStyle(s Style) Option {
	return func(c *config) { c.style = s }
}

// WithHostResources names the registry holding host resources of the
// instance. A resource with a table in reg is treated as host-owned: own
// arguments are allocated in it and borrow arguments are lent for the call.
// Every other resource is implemented by the guest.
func WithHostResources(reg *resource.Registry) Option {
	return func(c *config) { c.host = reg }
}

// WithCodec passes options to the encoder and decoder of every call.
func WithCodec(opts ...transcoder.Option) Option {
	return func(c *config) { c.codec = append(c.codec, opts...) }
}

// WithDebug enables retained-borrow detection in the local handle tables.
func WithDebug() Option {
	return func(c *config) { c.debug = true }
}
