package types

import (
	"fmt"
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-canon/errors"
)

// ParseType parses an anonymous WIT type expression such as
// "list<tuple<u32, string>>", "result<_, string>" or "borrow<file>". Names
// that are not primitives are resolved through scope, which may be nil when
// the expression only uses primitives.
func ParseType(expr string, scope Scope) (Type, error) {
	p := &typeParser{src: expr, scope: scope}
	p.next()
	t, err := p.parseType()
	if err != nil {
		return nil, errors.ParseFailed(fmt.Sprintf("type %q", expr), err)
	}
	if p.tok != "" {
		return nil, errors.ParseFailed(fmt.Sprintf("type %q", expr),
			fmt.Errorf("unexpected %q after type", p.tok))
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
func MustParseType(expr string, scope Scope) Type {
	return Must(ParseType(expr, scope))
}

type typeParser struct {
	src   string
	pos   int
	tok   string
	scope Scope
}

func (p *typeParser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	start := p.pos
	switch c := p.src[p.pos]; c {
	case '<', '>', ',', '_':
		p.pos++
	default:
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			p.pos++ // single unknown byte, rejected by the caller
		}
	}
	p.tok = p.src[start:p.pos]
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '%' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (p *typeParser) expect(tok string) error {
	if p.tok != tok {
		if p.tok == "" {
			return fmt.Errorf("expected %q, got end of input", tok)
		}
		return fmt.Errorf("expected %q, got %q", tok, p.tok)
	}
	p.next()
	return nil
}

func (p *typeParser) parseType() (Type, error) {
	name := p.tok
	if name == "" {
		return nil, fmt.Errorf("expected type, got end of input")
	}
	p.next()

	switch name {
	case "list":
		elems, err := p.parseArgs(1, 1)
		if err != nil {
			return nil, err
		}
		return NewList(elems[0]), nil
	case "option":
		elems, err := p.parseArgs(1, 1)
		if err != nil {
			return nil, err
		}
		return NewOption(elems[0]), nil
	case "tuple":
		elems, err := p.parseArgs(1, -1)
		if err != nil {
			return nil, err
		}
		return NewTuple(elems...), nil
	case "result":
		if p.tok != "<" {
			return NewResult(nil, nil), nil
		}
		elems, err := p.parseArgs(1, 2)
		if err != nil {
			return nil, err
		}
		var errType Type
		if len(elems) == 2 {
			errType = elems[1]
		}
		return NewResult(elems[0], errType), nil
	case "own", "borrow":
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		res, err := p.resource(p.tok)
		if err != nil {
			return nil, err
		}
		p.next()
		if err := p.expect(">"); err != nil {
			return nil, err
		}
		if name == "own" {
			return NewOwn(res), nil
		}
		return NewBorrow(res), nil
	case "_", "<", ">", ",":
		return nil, fmt.Errorf("unexpected %q", name)
	}

	if prim, ok := primitive(name); ok {
		return prim, nil
	}
	if !isIdent(name) {
		return nil, fmt.Errorf("invalid identifier %q", name)
	}
	if p.scope != nil {
		if t, ok := p.scope.Type(name); ok {
			return t, nil
		}
		if r, ok := p.scope.Resource(name); ok {
			// A bare resource name in a type position means own<R>.
			return NewOwn(r), nil
		}
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// parseArgs parses "<T, ...>" with between lo and hi entries (hi < 0 is
// unbounded). "_" stands for an absent type and is returned as nil.
func (p *typeParser) parseArgs(lo, hi int) ([]Type, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	var out []Type
	for {
		if p.tok == "_" {
			p.next()
			out = append(out, nil)
		} else {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		if p.tok != "," {
			break
		}
		p.next()
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	if len(out) < lo || (hi >= 0 && len(out) > hi) {
		return nil, fmt.Errorf("wrong number of type arguments: %d", len(out))
	}
	for i, t := range out {
		// Only result accepts "_", and only for its ok type.
		if t == nil && !(hi == 2 && i == 0) {
			return nil, fmt.Errorf("\"_\" is not a type")
		}
	}
	return out, nil
}

func (p *typeParser) resource(name string) (*Resource, error) {
	if p.scope == nil {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	r, ok := p.scope.Resource(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	return r, nil
}

// primitive resolves primitive names through the wit package so the accepted
// spellings match WIT exactly.
func primitive(name string) (Type, bool) {
	wt, err := wit.ParseType(name)
	if err != nil {
		return nil, false
	}
	t, err := defaultConverter.Convert(wt)
	if err != nil {
		return nil, false
	}
	return t, true
}

func isIdent(s string) bool {
	return s != "" && !strings.HasPrefix(s, "-") && !strings.HasSuffix(s, "-") &&
		strings.IndexFunc(s, func(r rune) bool { return !isIdentByte(byte(r)) && r < 0x80 }) < 0
}
