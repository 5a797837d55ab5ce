package synth

import (
	"sort"

	"github.com/chazu/memberkit/decl"
)

// Table indexes the member sets of a compilation unit by class name.
type Table struct {
	sets  map[string]*MemberSet
	order []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{sets: make(map[string]*MemberSet)}
}

// Add registers a member set, replacing any previous one of that name.
func (t *Table) Add(ms *MemberSet) {
	if _, ok := t.sets[ms.class]; !ok {
		t.order = append(t.order, ms.class)
	}
	t.sets[ms.class] = ms
}

// Get looks up a member set by class name.
func (t *Table) Get(class string) (*MemberSet, bool) {
	ms, ok := t.sets[decl.Ident(class)]
	return ms, ok
}

// All returns the member sets in insertion order.
func (t *Table) All() []*MemberSet {
	out := make([]*MemberSet, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.sets[name])
	}
	return out
}

// Names returns the class names, sorted.
func (t *Table) Names() []string {
	names := append([]string(nil), t.order...)
	sort.Strings(names)
	return names
}

// Supertypes returns the declared supertypes of a class, so a Table can
// serve as the extension resolver's type hierarchy.
func (t *Table) Supertypes(class string) []string {
	if ms, ok := t.Get(class); ok {
		return ms.Supertypes()
	}
	return nil
}

// HasMember reports whether class, or a supertype known to the table,
// declares a true member of that name and kind. Functions must also take
// arity parameters unless arity is decl.AnyArity.
func (t *Table) HasMember(class, name string, kind decl.ExtensionKind, arity int) bool {
	_, ok := t.findMember(class, name, kind, arity, make(map[string]bool))
	return ok
}

// IsPrivate reports whether the member found by HasMember is private.
func (t *Table) IsPrivate(class, name string, kind decl.ExtensionKind, arity int) bool {
	m, ok := t.findMember(class, name, kind, arity, make(map[string]bool))
	return ok && m.vis == decl.Private
}

// MemberType returns the declared type of a property, or the result type
// of a function, found as HasMember finds it.
func (t *Table) MemberType(class, name string, kind decl.ExtensionKind, arity int) (decl.TypeRef, bool) {
	m, ok := t.findMember(class, name, kind, arity, make(map[string]bool))
	return m.typ, ok
}

type member struct {
	vis decl.Visibility
	typ decl.TypeRef
}

func (t *Table) findMember(class, name string, kind decl.ExtensionKind, arity int, seen map[string]bool) (member, bool) {
	class = decl.Ident(class)
	if seen[class] {
		return member{}, false
	}
	seen[class] = true

	ms, ok := t.sets[class]
	if !ok {
		return member{}, false
	}
	if kind == decl.ExtProperty {
		if p, ok := ms.Property(name); ok {
			return member{p.Visibility, p.Type}, true
		}
	} else if m, ok := ms.MethodArity(name, arity); ok {
		return member{m.Visibility, m.Result}, true
	}
	for _, super := range ms.supertypes {
		if m, ok := t.findMember(super, name, kind, arity, seen); ok {
			return m, true
		}
	}
	return member{}, false
}
