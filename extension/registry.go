// Package extension implements the registry of statically dispatched
// extension members. Lookups are keyed by the declared type of the
// receiver expression; runtime types never take part in resolution.
package extension

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/memberkit/decl"
)

var log = commonlog.GetLogger("memberkit.extension")

// ErrUnresolved is returned by BindCall when neither a member nor an
// extension matches.
var ErrUnresolved = errors.New("unresolved reference")

// AnyArity disables arity filtering in Query.
const AnyArity = decl.AnyArity

// Hierarchy supplies the direct supertypes of a type name.
type Hierarchy interface {
	Supertypes(name string) []string
}

// StaticHierarchy is a Hierarchy backed by a map.
type StaticHierarchy map[string][]string

// Supertypes implements Hierarchy.
func (h StaticHierarchy) Supertypes(name string) []string { return h[name] }

type key struct {
	receiver decl.TypeRef
	name     string
	kind     decl.ExtensionKind
}

// Registry holds registered extensions. It is safe for concurrent lookups.
type Registry struct {
	mu        sync.RWMutex
	hierarchy Hierarchy
	entries   map[key][]*decl.ExtensionDecl
	order     []*decl.ExtensionDecl
}

// NewRegistry creates an empty registry. A nil hierarchy means types have
// no supertypes other than Any.
func NewRegistry(h Hierarchy) *Registry {
	if h == nil {
		h = StaticHierarchy(nil)
	}
	return &Registry{
		hierarchy: h,
		entries:   make(map[key][]*decl.ExtensionDecl),
	}
}

// Register adds an extension. Registering a second extension with the
// same receiver type, name, kind and parameter signature fails with
// DuplicateExtension.
func (r *Registry) Register(ext decl.ExtensionDecl) error {
	ext.Name = decl.Ident(ext.Name)
	ext.Receiver.Name = decl.Ident(ext.Receiver.Name)
	if err := validate(ext); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{receiver: ext.Receiver, name: ext.Name, kind: ext.Kind}
	sig := ext.Signature()
	for _, existing := range r.entries[k] {
		if existing.Signature() == sig {
			return decl.Errorf(decl.DuplicateExtension, ext.Receiver.String(), ext.Name,
				"%s extension %s%s already registered", ext.Kind, ext.QualifiedName(), sig)
		}
	}

	stored := ext
	r.entries[k] = append(r.entries[k], &stored)
	r.order = append(r.order, &stored)
	log.Debugf("registered %s extension %s%s", ext.Kind, ext.QualifiedName(), sig)
	return nil
}

func validate(ext decl.ExtensionDecl) error {
	where := ext.Receiver.String()
	switch {
	case ext.Receiver.IsZero() || ext.Name == "":
		return decl.Errorf(decl.InvalidExtension, where, ext.Name, "extension needs a receiver type and a name")
	case ext.Body == nil:
		return decl.Errorf(decl.InvalidExtension, where, ext.Name, "extension has no body")
	case ext.Kind == decl.ExtFunction && ext.Setter != nil:
		return decl.Errorf(decl.InvalidExtension, where, ext.Name, "function extension cannot have a setter")
	case ext.Kind == decl.ExtProperty && len(ext.Params) > 0:
		return decl.Errorf(decl.InvalidExtension, where, ext.Name, "property extension cannot take parameters")
	}
	bodies := []decl.Expr{ext.Body}
	if ext.Setter != nil {
		bodies = append(bodies, ext.Setter.Body)
	}
	for _, body := range bodies {
		var bad bool
		decl.Walk(body, func(e decl.Expr) bool {
			switch e.(type) {
			case *decl.FieldRef, *decl.AssignField:
				bad = true
			}
			return !bad
		})
		if bad {
			return decl.Errorf(decl.InvalidExtension, where, ext.Name, "extensions have no backing field")
		}
	}
	return nil
}

// All returns the registered extensions in registration order.
func (r *Registry) All() []decl.ExtensionDecl {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]decl.ExtensionDecl, len(r.order))
	for i, e := range r.order {
		out[i] = *e
	}
	return out
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Query describes a call site: the declared type of the receiver
// expression, the member name and kind, and the argument count.
type Query struct {
	Static decl.TypeRef
	Name   string
	Kind   decl.ExtensionKind
	Arity  int
}

// Lookup resolves an extension and reports whether exactly one matched.
// Ambiguous call sites report false; use Resolve to see why.
func (r *Registry) Lookup(static decl.TypeRef, name string, kind decl.ExtensionKind) (*decl.ExtensionDecl, bool) {
	ext, err := r.Resolve(static, name, kind)
	return ext, err == nil && ext != nil
}

// Resolve resolves an extension by the receiver's declared type. It
// returns nil, nil when nothing matches and an AmbiguousExtension error
// when the nearest matching level has several candidates.
func (r *Registry) Resolve(static decl.TypeRef, name string, kind decl.ExtensionKind) (*decl.ExtensionDecl, error) {
	return r.ResolveQuery(Query{Static: static, Name: name, Kind: kind, Arity: AnyArity})
}

// ResolveQuery is Resolve with arity filtering.
//
// Candidates are searched level by level: the exact declared type, then
// its nullable variant, then supertypes breadth first, then Any. The
// first level with a match wins.
func (r *Registry) ResolveQuery(q Query) (*decl.ExtensionDecl, error) {
	q.Name = decl.Ident(q.Name)
	q.Static.Name = decl.Ident(q.Static.Name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, level := range r.levels(q.Static) {
		var found []*decl.ExtensionDecl
		for i := 0; i < len(level); {
			// per type name, a non-null receiver shadows the nullable one
			j, group := i, []*decl.ExtensionDecl(nil)
			for ; j < len(level) && level[j].Name == level[i].Name; j++ {
				if len(group) == 0 {
					group = r.match(level[j], q)
				}
			}
			found = append(found, group...)
			i = j
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return found[0], nil
		default:
			return nil, ambiguous(q, found)
		}
	}
	return nil, nil
}

func (r *Registry) match(recv decl.TypeRef, q Query) []*decl.ExtensionDecl {
	var out []*decl.ExtensionDecl
	for _, ext := range r.entries[key{receiver: recv, name: q.Name, kind: q.Kind}] {
		if q.Arity == AnyArity || len(ext.Params) == q.Arity {
			out = append(out, ext)
		}
	}
	return out
}

// levels returns receiver types to try, grouped by distance from static.
// A nullable declared type only matches nullable receivers.
func (r *Registry) levels(static decl.TypeRef) [][]decl.TypeRef {
	variants := func(name string) []decl.TypeRef {
		if static.Nullable {
			return []decl.TypeRef{{Name: name, Nullable: true}}
		}
		return []decl.TypeRef{{Name: name}, {Name: name, Nullable: true}}
	}

	levels := [][]decl.TypeRef{{static}}
	if !static.Nullable {
		levels = append(levels, []decl.TypeRef{{Name: static.Name, Nullable: true}})
	}

	seen := map[string]bool{static.Name: true, decl.TypeAny: true}
	frontier := []string{static.Name}
	for len(frontier) > 0 {
		var next []string
		for _, t := range frontier {
			for _, super := range r.hierarchy.Supertypes(t) {
				super = decl.Ident(super)
				if !seen[super] {
					seen[super] = true
					next = append(next, super)
				}
			}
		}
		sort.Strings(next)
		var level []decl.TypeRef
		for _, t := range next {
			level = append(level, variants(t)...)
		}
		if len(level) > 0 {
			levels = append(levels, level)
		}
		frontier = next
	}

	if static.Name != decl.TypeAny {
		levels = append(levels, variants(decl.TypeAny))
	}
	return levels
}

func ambiguous(q Query, found []*decl.ExtensionDecl) error {
	names := make([]string, len(found))
	for i, ext := range found {
		names[i] = ext.QualifiedName() + ext.Signature()
	}
	return decl.Errorf(decl.AmbiguousExtension, q.Static.String(), q.Name,
		"candidates: %s", strings.Join(names, ", "))
}

// ---------------------------------------------------------------------------
// Call binding
// ---------------------------------------------------------------------------

// MemberSource answers questions about the true members of types. Arity
// selects among function overloads; AnyArity matches any of them.
type MemberSource interface {
	HasMember(typeName, name string, kind decl.ExtensionKind, arity int) bool
	IsPrivate(typeName, name string, kind decl.ExtensionKind, arity int) bool
}

// Binding is the outcome of binding a call site.
type Binding struct {
	Member    bool
	Extension *decl.ExtensionDecl
}

// BindCall binds a call site. A true member of the declared type always
// takes precedence; extensions are only a fallback.
func (r *Registry) BindCall(q Query, members MemberSource) (Binding, error) {
	if members != nil && members.HasMember(q.Static.Name, q.Name, q.Kind, q.Arity) {
		return Binding{Member: true}, nil
	}
	ext, err := r.ResolveQuery(q)
	if err != nil {
		return Binding{}, err
	}
	if ext == nil {
		return Binding{}, fmt.Errorf("%w: %s.%s", ErrUnresolved, q.Static, q.Name)
	}
	return Binding{Extension: ext}, nil
}

// CheckVisibility reports extension bodies that read private members of
// their receiver type.
func CheckVisibility(ext decl.ExtensionDecl, members MemberSource) error {
	recv := ext.Receiver.Name
	var err error
	check := func(e decl.Expr) bool {
		if err != nil {
			return false
		}
		var name string
		var kind decl.ExtensionKind
		arity := AnyArity
		switch n := e.(type) {
		case *decl.PropertyRef:
			if !decl.IsSelf(n.Receiver) {
				return true
			}
			name, kind = n.Name, decl.ExtProperty
		case *decl.AssignProperty:
			if !decl.IsSelf(n.Receiver) {
				return true
			}
			name, kind = n.Name, decl.ExtProperty
		case *decl.Call:
			if !decl.IsSelf(n.Receiver) {
				return true
			}
			name, kind, arity = n.Name, decl.ExtFunction, len(n.Args)
		default:
			return true
		}
		if members.IsPrivate(recv, name, kind, arity) {
			err = decl.Errorf(decl.PrivateMemberAccess, ext.Receiver.String(), ext.Name,
				"extension cannot access private member %s", name)
		}
		return true
	}
	decl.Walk(ext.Body, check)
	if ext.Setter != nil {
		decl.Walk(ext.Setter.Body, check)
	}
	return err
}
