package synth

import (
	"github.com/tliron/commonlog"
	"go.uber.org/multierr"

	"github.com/chazu/memberkit/decl"
)

var log = commonlog.GetLogger("memberkit.synth")

// Synthesize produces the member set of c. Every property is validated
// even after an error has been found; the returned error combines all
// DeclarationErrors (see decl.Errors) and the member set is nil.
func Synthesize(c *decl.ClassDecl) (*MemberSet, error) {
	s := &synthesizer{
		class: c,
		ms: &MemberSet{
			class:      c.Name,
			kind:       c.Kind,
			enclosing:  c.Enclosing,
			supertypes: append([]string(nil), c.Supertypes...),
			index:      make(map[string]int),
		},
	}
	if c.Companion != nil {
		s.ms.companion = append(s.ms.companion, c.Companion.Members...)
	}

	s.add(c.Validate())
	s.synthesizeProperties()
	s.synthesizeConstructor()
	s.synthesizeMethods()
	s.checkReadOnlyAssignments()

	if s.err != nil {
		log.Debugf("class %s: %d declaration errors", c.Name, len(multierr.Errors(s.err)))
		return nil, s.err
	}
	log.Debugf("class %s: %d properties, %d backing fields", c.Name, len(s.ms.properties), len(s.ms.fields))
	return s.ms, nil
}

type synthesizer struct {
	class *decl.ClassDecl
	ms    *MemberSet
	err   error
}

func (s *synthesizer) add(err error) {
	s.err = multierr.Append(s.err, err)
}

func (s *synthesizer) errorf(kind decl.ErrorKind, member, format string, args ...any) {
	s.add(decl.Errorf(kind, s.class.Name, member, format, args...))
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func (s *synthesizer) synthesizeProperties() {
	c := s.class

	declared := make(map[string]bool)
	for _, p := range c.Properties {
		declared[decl.Ident(p.Name)] = true
	}

	promoted := make(map[string]bool)
	for _, p := range c.Params {
		if p.Promotion != decl.PromoteNone {
			promoted[decl.Ident(p.Name)] = true
		}
	}

	overrides := make(map[string]decl.AccessorOverride)
	for _, ov := range c.Overrides {
		name := decl.Ident(ov.Property)
		if !promoted[name] {
			s.errorf(decl.UnknownOverride, name, "accessor override does not name a promoted property")
			continue
		}
		overrides[name] = ov
	}

	// Promoted parameters first, in declaration order.
	for _, p := range c.Params {
		if p.Promotion == decl.PromoteNone {
			continue
		}
		name := decl.Ident(p.Name)
		if declared[name] {
			s.errorf(decl.DuplicatePromotedProperty, name,
				"constructor parameter is promoted and also declared as a property")
			continue
		}
		if _, dup := s.ms.index[name]; dup {
			continue // reported by synthesizeConstructor
		}
		ov := overrides[name]
		s.addStored(decl.PropertyDecl{
			Name:       name,
			Type:       p.Type,
			Mutability: p.Promotion.Mutability(),
			Storage:    decl.Stored,
			Getter:     ov.Getter,
			Setter:     ov.Setter,
		}, Promoted, Init{Param: name})
	}

	seen := make(map[string]bool)
	for _, p := range c.Properties {
		name := decl.Ident(p.Name)
		if seen[name] {
			s.errorf(decl.DuplicateMember, name, "property declared twice")
			continue
		}
		seen[name] = true
		if promoted[name] {
			continue // DuplicatePromotedProperty already reported
		}
		p.Name = name
		if p.Storage == decl.Computed {
			s.addComputed(p)
		} else {
			s.addStored(p, Declared, Init{Expr: p.Initializer})
		}
	}
}

// addStored allocates a backing slot and wires default or custom
// accessors through it.
func (s *synthesizer) addStored(p decl.PropertyDecl, origin Origin, init Init) {
	ok := s.checkSetterAllowed(p)
	if origin == Declared && p.Initializer == nil {
		s.errorf(decl.UninitializedStoredProperty, p.Name,
			"stored property must be initialized or promoted from the constructor")
		ok = false
	}
	if !ok {
		return
	}

	slot := len(s.ms.fields)
	s.ms.fields = append(s.ms.fields, Field{Property: p.Name, Type: p.Type, Slot: slot})

	prop := Property{
		Name:       p.Name,
		Type:       p.Type,
		Mutability: p.Mutability,
		Storage:    decl.Stored,
		Visibility: p.Visibility,
		Origin:     origin,
		Slot:       slot,
		Getter:     accessorFor(p.Getter),
		Init:       init,
	}
	if p.Mutable() {
		setter := accessorFor(p.Setter)
		setter.Param = p.Setter.ParamName()
		prop.Setter = &setter
	}
	s.addProperty(prop)
}

// addComputed wires only the supplied accessors; no slot is allocated.
func (s *synthesizer) addComputed(p decl.PropertyDecl) {
	ok := s.checkSetterAllowed(p)
	if p.Initializer != nil {
		s.errorf(decl.ComputedPropertyInitializer, p.Name,
			"computed property has no backing field to initialize")
		ok = false
	}
	if !hasBody(p.Getter) {
		s.errorf(decl.IncompleteComputedProperty, p.Name, "computed property needs a getter")
		ok = false
	}
	if p.Mutable() && !hasBody(p.Setter) {
		s.errorf(decl.IncompleteComputedProperty, p.Name, "computed var needs a setter")
		ok = false
	}
	for _, a := range []*decl.Accessor{p.Getter, p.Setter} {
		if a != nil && referencesField(a.Body) {
			s.errorf(decl.FieldInComputedProperty, p.Name,
				"computed property accessor references a backing field")
			ok = false
		}
	}
	if !ok {
		return
	}

	prop := Property{
		Name:       p.Name,
		Type:       p.Type,
		Mutability: p.Mutability,
		Storage:    decl.Computed,
		Visibility: p.Visibility,
		Origin:     Declared,
		Slot:       -1,
		Getter:     accessorFor(p.Getter),
	}
	if p.Mutable() {
		setter := accessorFor(p.Setter)
		setter.Param = p.Setter.ParamName()
		prop.Setter = &setter
	}
	s.addProperty(prop)
}

func (s *synthesizer) checkSetterAllowed(p decl.PropertyDecl) bool {
	if !p.Mutable() && p.Setter != nil {
		s.errorf(decl.ImmutablePropertyWithSetter, p.Name, "val cannot have a setter")
		return false
	}
	return true
}

func (s *synthesizer) addProperty(p Property) {
	s.ms.index[p.Name] = len(s.ms.properties)
	s.ms.properties = append(s.ms.properties, p)
}

// hasBody reports whether a is a custom accessor. An accessor without a
// body stands for the default one, which a computed property cannot have.
func hasBody(a *decl.Accessor) bool {
	return a != nil && a.Body != nil
}

func accessorFor(a *decl.Accessor) Accessor {
	if !hasBody(a) {
		return Accessor{Kind: DefaultAccessor}
	}
	return Accessor{Kind: CustomAccessor, Body: a.Body}
}

func referencesField(e decl.Expr) bool {
	found := false
	decl.Walk(e, func(n decl.Expr) bool {
		switch n.(type) {
		case *decl.FieldRef, *decl.AssignField:
			found = true
		}
		return !found
	})
	return found
}

// ---------------------------------------------------------------------------
// Constructor and methods
// ---------------------------------------------------------------------------

func (s *synthesizer) synthesizeConstructor() {
	seen := make(map[string]bool)
	params := make([]CtorParam, 0, len(s.class.Params))
	for _, p := range s.class.Params {
		name := decl.Ident(p.Name)
		if seen[name] {
			s.errorf(decl.DuplicateMember, name, "constructor parameter declared twice")
			continue
		}
		seen[name] = true
		params = append(params, CtorParam{
			Name:      name,
			Type:      p.Type,
			Default:   p.Default,
			Promotion: p.Promotion,
		})
	}
	s.ms.ctor = Constructor{Class: s.class.Name, Params: params}
}

func (s *synthesizer) synthesizeMethods() {
	type sig struct {
		name  string
		arity int
	}
	seen := make(map[sig]bool)
	for _, m := range s.class.Methods {
		m.Name = decl.Ident(m.Name)
		k := sig{m.Name, len(m.Params)}
		if seen[k] {
			s.errorf(decl.DuplicateMember, m.Name, "method with %d parameters declared twice", k.arity)
			continue
		}
		seen[k] = true
		s.ms.methods = append(s.ms.methods, m)
	}
}

// checkReadOnlyAssignments rejects bodies in this class that assign a val
// property of the current receiver.
func (s *synthesizer) checkReadOnlyAssignments() {
	var bodies []decl.Expr
	for _, p := range s.ms.properties {
		bodies = append(bodies, p.Getter.Body, p.Init.Expr)
		if p.Setter != nil {
			bodies = append(bodies, p.Setter.Body)
		}
	}
	for _, m := range s.ms.methods {
		bodies = append(bodies, m.Body)
	}

	reported := make(map[string]bool)
	for _, body := range bodies {
		decl.Walk(body, func(e decl.Expr) bool {
			a, ok := e.(*decl.AssignProperty)
			if !ok || !decl.IsSelf(a.Receiver) {
				return true
			}
			name := decl.Ident(a.Name)
			p, ok := s.ms.Property(name)
			if ok && !p.Mutable() && !reported[name] {
				reported[name] = true
				s.errorf(decl.AssignmentToReadOnly, name, "val cannot be reassigned")
			}
			return true
		})
	}
}
