package runtime

import (
	"fmt"
	"strings"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/synth"
)

// Value is any runtime value: int64, float64, string, bool, nil or
// *Instance.
type Value = any

// Instance is a constructed object. Backing slots are indexed by the
// synthesized field slots; the enclosing instance is fixed at
// construction.
type Instance struct {
	class string
	slots []Value
	outer *Instance
}

func newInstance(ms *synth.MemberSet, outer *Instance) *Instance {
	return &Instance{
		class: ms.Class(),
		slots: make([]Value, ms.NumSlots()),
		outer: outer,
	}
}

// ClassName returns the qualified class name of the instance.
func (i *Instance) ClassName() string { return i.class }

// NumSlots returns the number of backing slots.
func (i *Instance) NumSlots() int { return len(i.slots) }

// Slot returns the raw value of a backing slot, bypassing accessors.
func (i *Instance) Slot(n int) Value {
	if n < 0 || n >= len(i.slots) {
		return nil
	}
	return i.slots[n]
}

// Outer returns the nearest instance of class in the chain of enclosing
// instances, starting with i itself. class may be the qualified or the
// simple class name.
func (i *Instance) Outer(class string) (*Instance, bool) {
	for cur := i; cur != nil; cur = cur.outer {
		if matchesClass(cur.class, class) {
			return cur, true
		}
	}
	return nil, false
}

// Enclosing returns the directly enclosing instance, or nil.
func (i *Instance) Enclosing() *Instance { return i.outer }

func (i *Instance) String() string {
	return fmt.Sprintf("%s@%p", i.class, i)
}

func matchesClass(qualified, name string) bool {
	qualified, name = decl.Ident(qualified), decl.Ident(name)
	if qualified == name {
		return true
	}
	return strings.HasSuffix(qualified, "."+name)
}
