package transcoder

// Encoding selects the in-memory string encoding.
type Encoding uint8

const (
	UTF8 Encoding = iota
	// UTF16 stores strings as little-endian UTF-16; lengths count code units.
	UTF16
)

func (e Encoding) String() string {
	if e == UTF16 {
		return "utf16"
	}
	return "utf8"
}

type config struct {
	encoding   Encoding
	strictBool bool
}

// Option configures an Encoder or Decoder.
type Option func(*config)

// StrictBool makes lifting reject bool values other than 0 and 1. By default
// any nonzero value lifts as true.
func StrictBool() Option {
	return func(c *config) { c.strictBool = true }
}

// WithEncoding sets the string encoding. The default is UTF8.
func WithEncoding(e Encoding) Option {
	return func(c *config) { c.encoding = e }
}

func newConfig(opts []Option) config {
	var c config
	for _, o := range opts {
		o(&c)
	}
	return c
}
