// Package scope binds inner classes to the enclosing instance that
// constructs them. Nested and top-level classes carry no such reference.
package scope

import (
	"reflect"

	"github.com/chazu/memberkit/decl"
)

// Enclosing is an instance that may enclose inner-class instances.
type Enclosing interface {
	ClassName() string
}

// Frame describes what constructing a class requires, independent of any
// particular enclosing instance.
type Frame struct {
	Class             string
	Kind              decl.ClassKind
	RequiresEnclosing bool
	EnclosingClass    string
	Qualifier         string // label of the qualified-self accessor, e.g. "this@Outer"
}

// Describe returns the construction frame of c.
func Describe(c *decl.ClassDecl) Frame {
	f := Frame{Class: c.Name, Kind: c.Kind}
	if c.Kind == decl.Inner {
		f.RequiresEnclosing = true
		f.EnclosingClass = c.Enclosing
		f.Qualifier = QualifierFor(c.Enclosing)
	}
	return f
}

// QualifierFor returns the qualified-self label for a class: "this@" plus
// the class's simple name.
func QualifierFor(class string) string {
	simple := class
	for i := len(class) - 1; i >= 0; i-- {
		if class[i] == '.' {
			simple = class[i+1:]
			break
		}
	}
	return "this@" + simple
}

// ConstructionPlan is the result of binding a class for construction. The
// enclosing reference is set here once and never changes.
type ConstructionPlan struct {
	Frame
	enclosing Enclosing
}

// Enclosing returns the enclosing instance, or nil for nested and
// top-level classes.
func (p *ConstructionPlan) Enclosing() Enclosing { return p.enclosing }

// Bind checks the enclosing instance supplied by the constructing context
// against the class kind. Inner classes require an instance of their
// enclosing class; all other kinds reject one.
func Bind(c *decl.ClassDecl, enclosing Enclosing) (*ConstructionPlan, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if isNil(enclosing) {
		enclosing = nil
	}

	plan := &ConstructionPlan{Frame: Describe(c)}
	switch c.Kind {
	case decl.Inner:
		if enclosing == nil {
			return nil, decl.Errorf(decl.MissingEnclosingInstance, c.Name, "",
				"inner class needs an instance of %s", c.Enclosing)
		}
		if !decl.SameIdent(enclosing.ClassName(), c.Enclosing) {
			return nil, decl.Errorf(decl.EnclosingInstanceMismatch, c.Name, "",
				"enclosing instance is a %s, want %s", enclosing.ClassName(), c.Enclosing)
		}
		plan.enclosing = enclosing
	default:
		if enclosing != nil {
			return nil, decl.Errorf(decl.UnexpectedEnclosingInstance, c.Name, "",
				"%s class does not take an enclosing instance", c.Kind)
		}
	}
	return plan, nil
}

// isNil catches typed nil pointers stored in the interface.
func isNil(e Enclosing) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
