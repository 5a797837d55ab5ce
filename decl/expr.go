package decl

// ---------------------------------------------------------------------------
// Expressions: bodies of accessors, initializers, methods and extensions
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. Every node carries the
// declared (static) type the front-end assigned to it; extension calls are
// resolved against that type and never against a runtime value.
type Expr interface {
	Static() TypeRef
	expr() // marker method
}

// Literal is a constant: int64, float64, string, bool or nil.
type Literal struct {
	Type  TypeRef
	Value any
}

func (n *Literal) Static() TypeRef {
	if !n.Type.IsZero() {
		return n.Type
	}
	switch n.Value.(type) {
	case int64, int:
		return Type(TypeInt)
	case float64:
		return Type(TypeDouble)
	case string:
		return Type(TypeString)
	case bool:
		return Type(TypeBoolean)
	default:
		return NullableType(TypeNothing)
	}
}
func (n *Literal) expr() {}

// FieldRef reads the backing slot of the property whose accessor is being
// evaluated. It is only meaningful inside a stored property's accessors.
type FieldRef struct {
	Type TypeRef
}

func (n *FieldRef) Static() TypeRef { return n.Type }
func (n *FieldRef) expr()           {}

// ParamRef reads a parameter: a constructor parameter in initializers and
// defaults, the setter value in setters, or a function parameter.
type ParamRef struct {
	Type TypeRef
	Name string
}

func (n *ParamRef) Static() TypeRef { return n.Type }
func (n *ParamRef) expr()           {}

// This is the receiver of the current member or extension.
type This struct {
	Type TypeRef
}

func (n *This) Static() TypeRef { return n.Type }
func (n *This) expr()           {}

// QualifiedThis selects an enclosing instance by class name (this@Outer).
type QualifiedThis struct {
	Type  TypeRef
	Class string
}

func (n *QualifiedThis) Static() TypeRef {
	if n.Type.IsZero() {
		return Type(n.Class)
	}
	return n.Type
}
func (n *QualifiedThis) expr() {}

// PropertyRef reads a property through its getter. A nil Receiver means
// the current receiver.
type PropertyRef struct {
	Type     TypeRef
	Receiver Expr
	Name     string
}

func (n *PropertyRef) Static() TypeRef { return n.Type }
func (n *PropertyRef) expr()           {}

// AssignProperty writes a property through its setter.
type AssignProperty struct {
	Type     TypeRef
	Receiver Expr
	Name     string
	Value    Expr
}

func (n *AssignProperty) Static() TypeRef { return Type(TypeUnit) }
func (n *AssignProperty) expr()           {}

// AssignField writes the backing slot of the property whose setter is
// being evaluated.
type AssignField struct {
	Type  TypeRef
	Value Expr
}

func (n *AssignField) Static() TypeRef { return Type(TypeUnit) }
func (n *AssignField) expr()           {}

// Binary applies an operator: + - * / % == != < <= > >= && ||
type Binary struct {
	Type  TypeRef
	Op    string
	Left  Expr
	Right Expr
}

func (n *Binary) Static() TypeRef { return n.Type }
func (n *Binary) expr()           {}

// Unary applies ! or -.
type Unary struct {
	Type    TypeRef
	Op      string
	Operand Expr
}

func (n *Unary) Static() TypeRef { return n.Type }
func (n *Unary) expr()           {}

// If evaluates Then or Else depending on Cond. A nil Else yields nil.
type If struct {
	Type TypeRef
	Cond Expr
	Then Expr
	Else Expr
}

func (n *If) Static() TypeRef { return n.Type }
func (n *If) expr()           {}

// Block evaluates expressions in order and yields the last value.
type Block struct {
	Type  TypeRef
	Exprs []Expr
}

func (n *Block) Static() TypeRef { return n.Type }
func (n *Block) expr()           {}

// Call invokes a member function, or an extension function when the
// receiver's declared type has no member of that name. A nil Receiver
// means the current receiver.
type Call struct {
	Type     TypeRef
	Receiver Expr
	Name     string
	Args     []Expr
}

func (n *Call) Static() TypeRef { return n.Type }
func (n *Call) expr()           {}

// Native invokes a host function registered with the evaluator.
type Native struct {
	Type TypeRef
	Name string
	Args []Expr
}

func (n *Native) Static() TypeRef { return n.Type }
func (n *Native) expr()           {}

// CompanionRef reads a companion constant of Class.
type CompanionRef struct {
	Type  TypeRef
	Class string
	Name  string
}

func (n *CompanionRef) Static() TypeRef { return n.Type }
func (n *CompanionRef) expr()           {}

// CompanionCall invokes a companion function of Class.
type CompanionCall struct {
	Type  TypeRef
	Class string
	Name  string
	Args  []Expr
}

func (n *CompanionCall) Static() TypeRef { return n.Type }
func (n *CompanionCall) expr()           {}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Walk calls fn for e and, while fn returns true, for its children in
// evaluation order.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *PropertyRef:
		Walk(n.Receiver, fn)
	case *AssignProperty:
		Walk(n.Receiver, fn)
		Walk(n.Value, fn)
	case *AssignField:
		Walk(n.Value, fn)
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Unary:
		Walk(n.Operand, fn)
	case *If:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *Block:
		for _, x := range n.Exprs {
			Walk(x, fn)
		}
	case *Call:
		Walk(n.Receiver, fn)
		for _, x := range n.Args {
			Walk(x, fn)
		}
	case *Native:
		for _, x := range n.Args {
			Walk(x, fn)
		}
	case *CompanionCall:
		for _, x := range n.Args {
			Walk(x, fn)
		}
	}
}

// IsSelf reports whether e denotes the current receiver: a nil receiver or
// an unqualified this.
func IsSelf(e Expr) bool {
	if e == nil {
		return true
	}
	_, ok := e.(*This)
	return ok
}

// ---------------------------------------------------------------------------
// Construction helpers
// ---------------------------------------------------------------------------

// Lit returns a literal. Go ints are widened to int64.
func Lit(v any) *Literal {
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	return &Literal{Value: v}
}

// Field returns a backing-field read.
func Field() *FieldRef { return &FieldRef{} }

// Arg returns a parameter read.
func Arg(name string) *ParamRef { return &ParamRef{Name: name} }

// Prop returns a read of a property of the current receiver.
func Prop(name string) *PropertyRef { return &PropertyRef{Name: name} }

// PropOf returns a read of a property of recv.
func PropOf(recv Expr, name string) *PropertyRef {
	return &PropertyRef{Receiver: recv, Name: name}
}

// Bin returns a binary expression.
func Bin(op string, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Seq returns a block.
func Seq(exprs ...Expr) *Block { return &Block{Exprs: exprs} }
