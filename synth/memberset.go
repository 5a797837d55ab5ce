// Package synth turns class declarations into the concrete member set a
// backend consumes: backing fields, accessors, constructor signature.
package synth

import (
	"fmt"

	"github.com/chazu/memberkit/decl"
)

// Origin records where a synthesized property came from.
type Origin int

const (
	Declared Origin = iota
	Promoted
)

func (o Origin) String() string {
	if o == Promoted {
		return "promoted"
	}
	return "declared"
}

// AccessorKind distinguishes generated from user-supplied accessors.
type AccessorKind int

const (
	DefaultAccessor AccessorKind = iota
	CustomAccessor
)

// Accessor is a synthesized getter or setter. Default accessors have no
// body: they read or write the property's backing slot directly.
type Accessor struct {
	Kind  AccessorKind
	Body  decl.Expr
	Param string // setter value name
}

// IsDefault reports whether the accessor is the trivial one.
func (a Accessor) IsDefault() bool { return a.Kind == DefaultAccessor }

// Field is a hidden backing slot owned by one property.
type Field struct {
	Property string
	Type     decl.TypeRef
	Slot     int
}

// Init describes how a backing field gets its initial value: from a
// constructor argument (Param) or from an initializer expression.
type Init struct {
	Param string
	Expr  decl.Expr
}

// Property is a fully synthesized property.
type Property struct {
	Name       string
	Type       decl.TypeRef
	Mutability decl.Mutability
	Storage    decl.Storage
	Visibility decl.Visibility
	Origin     Origin

	// Slot is the backing field index, or -1 for computed properties.
	Slot int

	Getter Accessor
	Setter *Accessor // nil for read-only properties

	Init Init
}

// Mutable reports whether the property has a setter.
func (p Property) Mutable() bool { return p.Setter != nil }

// HasBackingField reports whether a slot was allocated.
func (p Property) HasBackingField() bool { return p.Slot >= 0 }

// Decl reconstructs the property declaration view of p, used by
// consumers such as the interop projector.
func (p Property) Decl() decl.PropertyDecl {
	return decl.PropertyDecl{
		Name:       p.Name,
		Type:       p.Type,
		Mutability: p.Mutability,
		Storage:    p.Storage,
		Visibility: p.Visibility,
	}
}

// MemberSet is the read-only result of synthesizing one class. It is never
// mutated after Synthesize returns; slice accessors return copies.
type MemberSet struct {
	class      string
	kind       decl.ClassKind
	enclosing  string
	supertypes []string

	fields     []Field
	properties []Property
	index      map[string]int

	ctor      Constructor
	methods   []decl.MethodDecl
	companion []decl.CompanionMember
}

// Class returns the class name.
func (m *MemberSet) Class() string { return m.class }

// Kind returns the class kind.
func (m *MemberSet) Kind() decl.ClassKind { return m.kind }

// Enclosing returns the enclosing class name for inner classes.
func (m *MemberSet) Enclosing() string { return m.enclosing }

// Supertypes returns the declared direct supertypes.
func (m *MemberSet) Supertypes() []string {
	return append([]string(nil), m.supertypes...)
}

// Fields returns the backing fields in slot order.
func (m *MemberSet) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// NumSlots returns the number of backing slots an instance needs.
func (m *MemberSet) NumSlots() int { return len(m.fields) }

// Properties returns the properties in synthesis order: promoted
// parameters first, then declared properties.
func (m *MemberSet) Properties() []Property {
	return append([]Property(nil), m.properties...)
}

// Property looks up a property by name.
func (m *MemberSet) Property(name string) (Property, bool) {
	i, ok := m.index[decl.Ident(name)]
	if !ok {
		return Property{}, false
	}
	return m.properties[i], true
}

// Constructor returns the primary constructor signature.
func (m *MemberSet) Constructor() Constructor { return m.ctor }

// Methods returns the member functions.
func (m *MemberSet) Methods() []decl.MethodDecl {
	return append([]decl.MethodDecl(nil), m.methods...)
}

// Method looks up the first member function of that name.
func (m *MemberSet) Method(name string) (decl.MethodDecl, bool) {
	return m.MethodArity(name, decl.AnyArity)
}

// MethodArity looks up the member function of that name taking arity
// parameters. decl.AnyArity matches the first overload.
func (m *MemberSet) MethodArity(name string, arity int) (decl.MethodDecl, bool) {
	name = decl.Ident(name)
	for _, md := range m.methods {
		if decl.Ident(md.Name) == name && (arity == decl.AnyArity || len(md.Params) == arity) {
			return md, true
		}
	}
	return decl.MethodDecl{}, false
}

// Companion returns the class-level members.
func (m *MemberSet) Companion() []decl.CompanionMember {
	return append([]decl.CompanionMember(nil), m.companion...)
}

// HasMember reports whether the class declares a true member of that name
// and kind. Such members always take precedence over extensions.
func (m *MemberSet) HasMember(name string, kind decl.ExtensionKind) bool {
	if kind == decl.ExtProperty {
		_, ok := m.Property(name)
		return ok
	}
	_, ok := m.Method(name)
	return ok
}

// CheckWrite reports whether assigning the named property is legal at the
// declaration level.
func (m *MemberSet) CheckWrite(name string) error {
	p, ok := m.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, m.class, name)
	}
	if !p.Mutable() {
		return decl.Errorf(decl.AssignmentToReadOnly, m.class, p.Name, "val cannot be reassigned")
	}
	return nil
}
