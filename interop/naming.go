// Package interop derives JavaBeans-style accessor names for callers that
// use get/set/is member naming.
package interop

import (
	"strings"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/synth"
)

// Names are the externally visible accessor names of a property. Setter
// is empty for read-only properties.
type Names struct {
	Getter string
	Setter string
}

// Projection pairs a synthesized property with its projected names.
type Projection struct {
	Property string
	Names    Names
}

// DefaultBooleanTypes are the type names that get the "is" getter rule.
var DefaultBooleanTypes = []string{decl.TypeBoolean, "Bool"}

// Projector derives interop names. The zero value is not usable; use
// NewProjector or the package-level functions.
type Projector struct {
	booleans map[string]bool
}

// NewProjector returns a projector treating the given type names as
// boolean. With no names, DefaultBooleanTypes apply.
func NewProjector(booleanTypes ...string) *Projector {
	if len(booleanTypes) == 0 {
		booleanTypes = DefaultBooleanTypes
	}
	p := &Projector{booleans: make(map[string]bool)}
	for _, t := range booleanTypes {
		p.booleans[decl.Ident(t)] = true
	}
	return p
}

var defaultProjector = NewProjector()

// Project derives names with the default boolean types.
// e.g., "side: Int" (var) → getSide/setSide,
// "isHappy: Boolean" (var) → isHappy/setHappy
func Project(p decl.PropertyDecl) Names {
	return defaultProjector.Project(p)
}

// ProjectMembers projects every property of a member set.
func ProjectMembers(ms *synth.MemberSet) []Projection {
	return defaultProjector.ProjectMembers(ms)
}

// Project derives the getter and setter names of p. Naming only; the
// accessor bodies are unaffected.
func (pr *Projector) Project(p decl.PropertyDecl) Names {
	name := decl.Ident(p.Name)
	var n Names
	if pr.isBoolean(p.Type) && hasIsPrefix(name) {
		n.Getter = name
		if p.Mutable() {
			n.Setter = "set" + decl.Capitalize(strings.TrimPrefix(name, "is"))
		}
		return n
	}
	n.Getter = "get" + decl.Capitalize(name)
	if p.Mutable() {
		n.Setter = "set" + decl.Capitalize(name)
	}
	return n
}

// ProjectMembers projects every property of ms in synthesis order.
func (pr *Projector) ProjectMembers(ms *synth.MemberSet) []Projection {
	props := ms.Properties()
	out := make([]Projection, len(props))
	for i, p := range props {
		out[i] = Projection{Property: p.Name, Names: pr.Project(p.Decl())}
	}
	return out
}

func (pr *Projector) isBoolean(t decl.TypeRef) bool {
	return pr.booleans[t.Name]
}

// hasIsPrefix is a case-sensitive check that also requires something to
// follow the prefix, so a property named "is" keeps the get/set rule.
func hasIsPrefix(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "is")
}
