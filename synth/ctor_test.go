package synth

import (
	"errors"
	"testing"

	"github.com/chazu/memberkit/decl"
)

func pointCtor(t *testing.T) Constructor {
	t.Helper()
	ms, err := Synthesize(&decl.ClassDecl{
		Name: "Point",
		Params: []decl.ConstructorParam{
			{Name: "x", Type: decl.Type("Int"), Promotion: decl.PromoteVal},
			{Name: "y", Type: decl.Type("Int"), Promotion: decl.PromoteVal, Default: decl.Lit(0)},
			{Name: "label", Type: decl.Type("String"), Default: decl.Lit("origin")},
		},
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	return ms.Constructor()
}

func TestConstructorSignature(t *testing.T) {
	c := pointCtor(t)
	if len(c.Params) != 3 {
		t.Fatalf("got %d params, want 3", len(c.Params))
	}
	if c.Required() != 1 {
		t.Errorf("Required() = %d, want 1", c.Required())
	}
	if c.Params[0].Optional() || !c.Params[1].Optional() || !c.Params[2].Optional() {
		t.Error("only parameters with defaults should be optional")
	}
	if c.Params[2].Promotion != decl.PromoteNone {
		t.Error("label is a plain parameter")
	}
}

func TestConstructorBind(t *testing.T) {
	c := pointCtor(t)

	tests := []struct {
		name      string
		args      []Arg
		values    []any
		defaulted []bool
	}{
		{
			name:      "all positional",
			args:      []Arg{Positional(int64(1)), Positional(int64(2)), Positional("p")},
			values:    []any{int64(1), int64(2), "p"},
			defaulted: []bool{false, false, false},
		},
		{
			name:      "omit trailing defaults",
			args:      []Arg{Positional(int64(1))},
			values:    []any{int64(1), nil, nil},
			defaulted: []bool{false, true, true},
		},
		{
			name:      "named skips a default",
			args:      []Arg{Positional(int64(1)), Named("label", "q")},
			values:    []any{int64(1), nil, "q"},
			defaulted: []bool{false, true, false},
		},
		{
			name:      "all named out of order",
			args:      []Arg{Named("y", int64(5)), Named("x", int64(4))},
			values:    []any{int64(4), int64(5), nil},
			defaulted: []bool{false, false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings, err := c.Bind(tt.args)
			if err != nil {
				t.Fatalf("Bind failed: %v", err)
			}
			if len(bindings) != len(c.Params) {
				t.Fatalf("got %d bindings", len(bindings))
			}
			for i, b := range bindings {
				if b.Param.Name != c.Params[i].Name {
					t.Errorf("binding %d is for %s, want declaration order", i, b.Param.Name)
				}
				if b.Value != tt.values[i] || b.Defaulted != tt.defaulted[i] {
					t.Errorf("binding %s = (%v, %v), want (%v, %v)",
						b.Param.Name, b.Value, b.Defaulted, tt.values[i], tt.defaulted[i])
				}
			}
		})
	}
}

func TestConstructorBindErrors(t *testing.T) {
	c := pointCtor(t)

	tests := []struct {
		name string
		args []Arg
		want error
	}{
		{"missing required", []Arg{Named("y", int64(1))}, ErrMissingArgument},
		{"too many", []Arg{Positional(1), Positional(2), Positional(3), Positional(4)}, ErrTooManyArguments},
		{"unknown name", []Arg{Named("z", 1)}, ErrUnknownArgument},
		{"duplicate", []Arg{Positional(1), Named("x", 2)}, ErrDuplicateArgument},
		{"positional after named", []Arg{Named("x", 1), Positional(2)}, ErrPositionalAfterNamed},
		{"no args", nil, ErrMissingArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Bind(tt.args)
			if !errors.Is(err, tt.want) {
				t.Errorf("Bind error = %v, want %v", err, tt.want)
			}
		})
	}
}
