package synth

import (
	"errors"
	"fmt"

	"github.com/chazu/memberkit/decl"
)

var (
	ErrUnknownProperty      = errors.New("unknown property")
	ErrTooManyArguments     = errors.New("too many arguments")
	ErrUnknownArgument      = errors.New("no parameter with that name")
	ErrDuplicateArgument    = errors.New("argument already bound")
	ErrPositionalAfterNamed = errors.New("positional argument after named argument")
	ErrMissingArgument      = errors.New("missing argument")
)

// CtorParam is a parameter of the synthesized primary constructor.
type CtorParam struct {
	Name      string
	Type      decl.TypeRef
	Default   decl.Expr
	Promotion decl.Promotion
}

// Optional reports whether the argument may be omitted.
func (p CtorParam) Optional() bool { return p.Default != nil }

// Constructor is the synthesized primary constructor signature.
type Constructor struct {
	Class  string
	Params []CtorParam
}

// Required returns the number of parameters without defaults.
func (c Constructor) Required() int {
	n := 0
	for _, p := range c.Params {
		if !p.Optional() {
			n++
		}
	}
	return n
}

// Arg is one call-site argument. An empty Name makes it positional.
type Arg struct {
	Name  string
	Value any
}

// Positional returns a positional argument.
func Positional(v any) Arg { return Arg{Value: v} }

// Named returns a named argument.
func Named(name string, v any) Arg { return Arg{Name: name, Value: v} }

// Binding pairs a parameter with its argument. Defaulted bindings carry no
// value; the caller evaluates Param.Default.
type Binding struct {
	Param     CtorParam
	Value     any
	Defaulted bool
}

// Bind resolves call-site arguments against the signature. Positional
// arguments fill parameters in declaration order and must precede named
// ones; omitted optional parameters are marked Defaulted. Bindings are
// returned in declaration order.
func (c Constructor) Bind(args []Arg) ([]Binding, error) {
	bound := make([]*Binding, len(c.Params))
	named := false
	next := 0

	for _, a := range args {
		if a.Name == "" {
			if named {
				return nil, fmt.Errorf("%s: %w", c.Class, ErrPositionalAfterNamed)
			}
			if next >= len(c.Params) {
				return nil, fmt.Errorf("%s: %w: got more than %d", c.Class, ErrTooManyArguments, len(c.Params))
			}
			bound[next] = &Binding{Param: c.Params[next], Value: a.Value}
			next++
			continue
		}

		named = true
		i := c.indexOf(a.Name)
		if i < 0 {
			return nil, fmt.Errorf("%s: %w: %s", c.Class, ErrUnknownArgument, a.Name)
		}
		if bound[i] != nil {
			return nil, fmt.Errorf("%s: %w: %s", c.Class, ErrDuplicateArgument, a.Name)
		}
		bound[i] = &Binding{Param: c.Params[i], Value: a.Value}
	}

	out := make([]Binding, len(c.Params))
	for i, p := range c.Params {
		switch {
		case bound[i] != nil:
			out[i] = *bound[i]
		case p.Optional():
			out[i] = Binding{Param: p, Defaulted: true}
		default:
			return nil, fmt.Errorf("%s: %w: %s", c.Class, ErrMissingArgument, p.Name)
		}
	}
	return out, nil
}

func (c Constructor) indexOf(name string) int {
	name = decl.Ident(name)
	for i, p := range c.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}
