package decl

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestDeclarationErrorMessage(t *testing.T) {
	err := Errorf(ImmutablePropertyWithSetter, "FooBar", "bar", "val cannot have a setter")
	want := "FooBar.bar: ImmutablePropertyWithSetter: val cannot have a setter"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	classLevel := &DeclarationError{Kind: MissingEnclosingInstance, Class: "Outer.Inner"}
	if got := classLevel.Error(); got != "Outer.Inner: MissingEnclosingInstance" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDeclarationErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("compiling: %w", Errorf(DuplicateExtension, "", "Animal.speak", ""))
	if !errors.Is(err, &DeclarationError{Kind: DuplicateExtension}) {
		t.Error("errors.Is should match on kind through wrapping")
	}
	if errors.Is(err, &DeclarationError{Kind: AmbiguousExtension}) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestKindsFlattensCombinedErrors(t *testing.T) {
	var err error
	err = multierr.Append(err, Errorf(IncompleteComputedProperty, "Square", "area", ""))
	err = multierr.Append(err, errors.New("unrelated"))
	err = multierr.Append(err, Errorf(UninitializedStoredProperty, "Square", "side", ""))

	kinds := Kinds(err)
	if len(kinds) != 2 {
		t.Fatalf("Kinds = %v, want 2 entries", kinds)
	}
	if kinds[0] != IncompleteComputedProperty || kinds[1] != UninitializedStoredProperty {
		t.Errorf("Kinds = %v", kinds)
	}
	if !HasKind(err, UninitializedStoredProperty) {
		t.Error("HasKind(UninitializedStoredProperty) = false")
	}
	if HasKind(nil, UninitializedStoredProperty) {
		t.Error("HasKind(nil) = true")
	}
}

func TestValidateEnclosingInvariant(t *testing.T) {
	tests := []struct {
		name    string
		class   ClassDecl
		wantErr bool
	}{
		{"inner with enclosing", ClassDecl{Name: "Outer.Inner", Kind: Inner, Enclosing: "Outer"}, false},
		{"inner without enclosing", ClassDecl{Name: "Outer.Inner", Kind: Inner}, true},
		{"nested with enclosing", ClassDecl{Name: "Outer.Nested", Kind: Nested, Enclosing: "Outer"}, true},
		{"top-level", ClassDecl{Name: "Outer"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.class.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !HasKind(err, InvalidEnclosingRef) {
				t.Errorf("Validate() kinds = %v, want InvalidEnclosingRef", Kinds(err))
			}
		})
	}
}

func TestValidateCompanionDuplicates(t *testing.T) {
	c := ClassDecl{
		Name: "Config",
		Companion: &CompanionDecl{Members: []CompanionMember{
			{Name: "MAX", Value: Lit(10)},
			{Name: "MAX", Value: Lit(20)},
		}},
	}
	if !HasKind(c.Validate(), DuplicateMember) {
		t.Error("duplicate companion member should be reported")
	}
	if m, ok := c.Companion.Lookup("MAX"); !ok || m.Value.(*Literal).Value != int64(10) {
		t.Errorf("Lookup(MAX) = %+v, %v", m, ok)
	}
}

func TestWalkVisitsChildrenInOrder(t *testing.T) {
	body := Seq(
		&AssignField{Value: Bin("+", Field(), Arg("value"))},
		&Call{Receiver: Prop("owner"), Name: "notify", Args: []Expr{Lit("x")}},
	)
	var names []string
	Walk(body, func(e Expr) bool {
		switch n := e.(type) {
		case *ParamRef:
			names = append(names, "param:"+n.Name)
		case *PropertyRef:
			names = append(names, "prop:"+n.Name)
		case *Call:
			names = append(names, "call:"+n.Name)
		}
		return true
	})
	want := []string{"param:value", "call:notify", "prop:owner"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("Walk order = %v, want %v", names, want)
	}
}
