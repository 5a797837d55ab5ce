// Package decl holds the declaration model consumed by the synthesizer:
// classes, constructor parameters, properties, accessors, extensions and
// companions, together with the typed expression nodes used for bodies.
package decl

import "strings"

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// TypeRef names a declared type. Types are nominal; the model only needs
// the name and whether the type admits null.
type TypeRef struct {
	Name     string
	Nullable bool
}

// Well-known type names.
const (
	TypeAny     = "Any"
	TypeInt     = "Int"
	TypeDouble  = "Double"
	TypeString  = "String"
	TypeBoolean = "Boolean"
	TypeUnit    = "Unit"
	TypeNothing = "Nothing"
)

// Type returns a non-nullable TypeRef for name.
func Type(name string) TypeRef {
	return TypeRef{Name: Ident(name)}
}

// NullableType returns a nullable TypeRef for name.
func NullableType(name string) TypeRef {
	return TypeRef{Name: Ident(name), Nullable: true}
}

// ParseType parses the "Name" / "Name?" notation.
func ParseType(s string) TypeRef {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "?") {
		return NullableType(strings.TrimSuffix(s, "?"))
	}
	return Type(s)
}

// IsZero reports whether the type is unset.
func (t TypeRef) IsZero() bool { return t.Name == "" }

// NonNull returns the non-nullable variant of t.
func (t TypeRef) NonNull() TypeRef { return TypeRef{Name: t.Name} }

func (t TypeRef) String() string {
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// ClassKind distinguishes top-level, nested and inner classes.
type ClassKind int

const (
	TopLevel ClassKind = iota
	Nested
	Inner
)

func (k ClassKind) String() string {
	switch k {
	case TopLevel:
		return "top-level"
	case Nested:
		return "nested"
	case Inner:
		return "inner"
	default:
		return "unknown"
	}
}

// Mutability is val (read-only) or var (mutable).
type Mutability int

const (
	Val Mutability = iota
	Var
)

func (m Mutability) String() string {
	if m == Var {
		return "var"
	}
	return "val"
}

// Storage is stored (backed by a field) or computed.
type Storage int

const (
	Stored Storage = iota
	Computed
)

func (s Storage) String() string {
	if s == Computed {
		return "computed"
	}
	return "stored"
}

// Promotion controls whether a constructor parameter becomes a property.
type Promotion int

const (
	PromoteNone Promotion = iota
	PromoteVal
	PromoteVar
)

func (p Promotion) String() string {
	switch p {
	case PromoteVal:
		return "val"
	case PromoteVar:
		return "var"
	default:
		return "none"
	}
}

// Mutability returns the property mutability a promoted parameter gets.
func (p Promotion) Mutability() Mutability {
	if p == PromoteVar {
		return Var
	}
	return Val
}

// Visibility of a member.
type Visibility int

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// AnyArity matches members regardless of their parameter count.
const AnyArity = -1

// ExtensionKind is the kind of an extension member.
type ExtensionKind int

const (
	ExtFunction ExtensionKind = iota
	ExtProperty
)

func (k ExtensionKind) String() string {
	if k == ExtProperty {
		return "property"
	}
	return "function"
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ClassDecl declares a class.
type ClassDecl struct {
	Name string
	Kind ClassKind

	// Enclosing names the enclosing class. It is set iff Kind is Inner and
	// is a structural back-reference only.
	Enclosing string

	Params     []ConstructorParam
	Properties []PropertyDecl
	Methods    []MethodDecl
	Companion  *CompanionDecl

	// Overrides attach custom accessors to promoted properties.
	Overrides []AccessorOverride

	// Supertypes lists direct supertype names. Only the extension
	// resolver's type hierarchy uses them.
	Supertypes []string

	// Classes holds lexically nested class declarations. Their names are
	// qualified with this class's name when a unit is compiled.
	Classes []*ClassDecl
}

// Type returns the non-nullable type of instances of the class.
func (c *ClassDecl) Type() TypeRef { return Type(c.Name) }

// SimpleName returns the last dotted segment of the class name.
func (c *ClassDecl) SimpleName() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// ConstructorParam is a primary-constructor parameter.
type ConstructorParam struct {
	Name      string
	Type      TypeRef
	Default   Expr // nil when the argument is required
	Promotion Promotion
}

// Optional reports whether callers may omit the argument.
func (p ConstructorParam) Optional() bool { return p.Default != nil }

// PropertyDecl declares a property.
type PropertyDecl struct {
	Name        string
	Type        TypeRef
	Mutability  Mutability
	Storage     Storage
	Visibility  Visibility
	Getter      *Accessor
	Setter      *Accessor
	Initializer Expr
}

// Mutable reports whether the property is a var.
func (p PropertyDecl) Mutable() bool { return p.Mutability == Var }

// Accessor is a user-supplied getter or setter body. Bodies reach the
// property's hidden backing slot through FieldRef nodes.
type Accessor struct {
	Body Expr

	// Param names the setter's incoming value. Empty means "value".
	Param string
}

// DefaultSetterParam is the setter parameter name used when none is given.
const DefaultSetterParam = "value"

// ParamName returns the setter parameter name.
func (a *Accessor) ParamName() string {
	if a == nil || a.Param == "" {
		return DefaultSetterParam
	}
	return a.Param
}

// AccessorOverride attaches custom accessors to a promoted property.
type AccessorOverride struct {
	Property string
	Getter   *Accessor
	Setter   *Accessor
}

// Param is a function parameter.
type Param struct {
	Name string
	Type TypeRef
}

// MethodDecl declares a member function.
type MethodDecl struct {
	Name       string
	Params     []Param
	Result     TypeRef
	Body       Expr
	Visibility Visibility
}

// CompanionKind distinguishes companion constants from functions.
type CompanionKind int

const (
	CompanionConst CompanionKind = iota
	CompanionFunc
)

// CompanionMember is one class-level member.
type CompanionMember struct {
	Name   string
	Kind   CompanionKind
	Type   TypeRef
	Params []Param
	Value  Expr // constant value or function body
}

// CompanionDecl holds the class-level members of a class.
type CompanionDecl struct {
	Members []CompanionMember
}

// Lookup finds a companion member by name.
func (c *CompanionDecl) Lookup(name string) (CompanionMember, bool) {
	if c == nil {
		return CompanionMember{}, false
	}
	name = Ident(name)
	for _, m := range c.Members {
		if Ident(m.Name) == name {
			return m, true
		}
	}
	return CompanionMember{}, false
}

// ExtensionDecl declares a statically dispatched extension member.
type ExtensionDecl struct {
	Receiver TypeRef
	Name     string
	Kind     ExtensionKind
	Params   []Param
	Result   TypeRef

	// Body is the function body, or the getter of a property extension.
	Body Expr

	// Setter is only valid for property extensions.
	Setter *Accessor
}

// Signature returns the parameter-type signature used to detect
// duplicate registrations, e.g. "(Int,String?)".
func (e ExtensionDecl) Signature() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range e.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// QualifiedName returns "Receiver.name".
func (e ExtensionDecl) QualifiedName() string {
	return e.Receiver.String() + "." + e.Name
}
