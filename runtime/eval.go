package runtime

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/synth"
)

// frame is the evaluation context of one body.
type frame struct {
	self     Value
	selfType decl.TypeRef
	params   map[string]Value
	types    map[string]decl.TypeRef // declared parameter types

	// owner and prop are set while an accessor of a stored property runs;
	// FieldRef and AssignField address owner's slot for prop.
	owner *Instance
	prop  *synth.Property

	// external bodies (extensions, host calls) cannot see private members.
	external bool
	depth    int
}

func (f *frame) enter() (*frame, error) {
	if f.depth >= MaxDepth {
		return nil, ErrDepthExceeded
	}
	nf := *f
	nf.depth++
	return &nf, nil
}

func (f *frame) accessor(inst *Instance, p *synth.Property) (*frame, error) {
	af, err := f.enter()
	if err != nil {
		return nil, err
	}
	af.self, af.selfType = inst, decl.Type(inst.class)
	af.owner, af.prop = inst, p
	af.external = false
	af.params, af.types = nil, nil
	return af, nil
}

func (f *frame) selfStatic() (decl.TypeRef, error) {
	switch {
	case !f.selfType.IsZero():
		return f.selfType, nil
	case f.self == nil:
		return decl.TypeRef{}, fmt.Errorf("%w: no receiver in scope", ErrNullReceiver)
	default:
		return decl.TypeRef{}, fmt.Errorf("%w: this", ErrUntyped)
	}
}

// checkAccess allows private members from bodies of the owning class and
// of classes declared inside it.
func (f *frame) checkAccess(inst *Instance, name string, vis decl.Visibility) error {
	if vis != decl.Private {
		return nil
	}
	if !f.external {
		if self, ok := f.self.(*Instance); ok && self != nil {
			if self.class == inst.class || strings.HasPrefix(self.class, inst.class+".") {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrPrivateAccess, inst.class, name)
}

func (r *Runtime) eval(f *frame, e decl.Expr) (Value, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil

	case *decl.Literal:
		return normalize(n.Value), nil

	case *decl.FieldRef:
		if f.prop == nil || !f.prop.HasBackingField() {
			return nil, ErrNoField
		}
		return f.owner.slots[f.prop.Slot], nil

	case *decl.AssignField:
		if f.prop == nil || !f.prop.HasBackingField() {
			return nil, ErrNoField
		}
		v, err := r.eval(f, n.Value)
		if err != nil {
			return nil, err
		}
		f.owner.slots[f.prop.Slot] = v
		return nil, nil

	case *decl.ParamRef:
		v, ok := f.params[decl.Ident(n.Name)]
		if !ok {
			return nil, fmt.Errorf("%w: parameter %s", ErrUnknownMember, n.Name)
		}
		return v, nil

	case *decl.This:
		return f.self, nil

	case *decl.QualifiedThis:
		inst, ok := f.self.(*Instance)
		if !ok || inst == nil {
			return nil, fmt.Errorf("this@%s: %w", n.Class, ErrNotAnInstance)
		}
		outer, ok := inst.Outer(n.Class)
		if !ok {
			return nil, fmt.Errorf("this@%s: %w", n.Class, ErrNoEnclosing)
		}
		return outer, nil

	case *decl.PropertyRef:
		recv, static, err := r.receiver(f, n.Receiver)
		if err != nil {
			return nil, err
		}
		return r.getProperty(f, static, recv, n.Name)

	case *decl.AssignProperty:
		recv, static, err := r.receiver(f, n.Receiver)
		if err != nil {
			return nil, err
		}
		v, err := r.eval(f, n.Value)
		if err != nil {
			return nil, err
		}
		return nil, r.setProperty(f, static, recv, n.Name, v)

	case *decl.Binary:
		return r.binary(f, n)

	case *decl.Unary:
		v, err := r.eval(f, n.Operand)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v)

	case *decl.If:
		c, err := r.eval(f, n.Cond)
		if err != nil {
			return nil, err
		}
		b, ok := c.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: condition is %T", ErrType, c)
		}
		if b {
			return r.eval(f, n.Then)
		}
		return r.eval(f, n.Else)

	case *decl.Block:
		var last Value
		for _, x := range n.Exprs {
			v, err := r.eval(f, x)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	case *decl.Call:
		recv, static, err := r.receiver(f, n.Receiver)
		if err != nil {
			return nil, err
		}
		args, err := r.evalArgs(f, n.Args)
		if err != nil {
			return nil, err
		}
		return r.invoke(f, static, recv, n.Name, args)

	case *decl.Native:
		fn, ok := r.natives[decl.Ident(n.Name)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNative, n.Name)
		}
		args, err := r.evalArgs(f, n.Args)
		if err != nil {
			return nil, err
		}
		v, err := fn(args)
		return normalize(v), err

	case *decl.CompanionRef:
		return r.companionConst(f, n.Class, n.Name)

	case *decl.CompanionCall:
		args, err := r.evalArgs(f, n.Args)
		if err != nil {
			return nil, err
		}
		return r.companionCall(f, n.Class, n.Name, args)

	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

// receiver evaluates a receiver expression and returns its declared type.
// A nil receiver is the current self.
func (r *Runtime) receiver(f *frame, e decl.Expr) (Value, decl.TypeRef, error) {
	static, err := r.staticType(f, e)
	if err != nil {
		return nil, decl.TypeRef{}, err
	}
	if e == nil {
		return f.self, static, nil
	}
	v, err := r.eval(f, e)
	if err != nil {
		return nil, decl.TypeRef{}, err
	}
	return v, static, nil
}

// staticType derives the declared type of e from declarations alone: the
// node's own tag, declared parameter types, synthesized property and
// method types, and extension result types. Values are never consulted.
func (r *Runtime) staticType(f *frame, e decl.Expr) (decl.TypeRef, error) {
	if e == nil {
		return f.selfStatic()
	}
	if t := e.Static(); !t.IsZero() {
		return t, nil
	}
	switch n := e.(type) {
	case *decl.This:
		return f.selfStatic()
	case *decl.ParamRef:
		if t := f.types[decl.Ident(n.Name)]; !t.IsZero() {
			return t, nil
		}
		return decl.TypeRef{}, fmt.Errorf("%w: parameter %s", ErrUntyped, n.Name)
	case *decl.FieldRef:
		if f.prop != nil {
			return f.prop.Type, nil
		}
	case *decl.PropertyRef:
		recv, err := r.staticType(f, n.Receiver)
		if err != nil {
			return decl.TypeRef{}, err
		}
		return r.memberType(recv, n.Name, decl.ExtProperty, decl.AnyArity)
	case *decl.Call:
		recv, err := r.staticType(f, n.Receiver)
		if err != nil {
			return decl.TypeRef{}, err
		}
		return r.memberType(recv, n.Name, decl.ExtFunction, len(n.Args))
	case *decl.CompanionRef:
		return r.companionType(n.Class, n.Name)
	case *decl.CompanionCall:
		return r.companionType(n.Class, n.Name)
	case *decl.Block:
		if len(n.Exprs) > 0 {
			return r.staticType(f, n.Exprs[len(n.Exprs)-1])
		}
	}
	return decl.TypeRef{}, fmt.Errorf("%w: %T", ErrUntyped, e)
}

// memberType is the declared type of a member access on static: a true
// member's type, or else the result type of the extension it resolves to.
func (r *Runtime) memberType(static decl.TypeRef, name string, kind decl.ExtensionKind, arity int) (decl.TypeRef, error) {
	t, ok := r.table.MemberType(static.Name, name, kind, arity)
	if !ok {
		ext, err := r.resolve(static, name, kind, arity)
		if err != nil {
			return decl.TypeRef{}, err
		}
		t = ext.Result
	}
	if t.IsZero() {
		return decl.TypeRef{}, fmt.Errorf("%w: %s.%s declares no type", ErrUntyped, static, name)
	}
	return t, nil
}

func (r *Runtime) companionType(class, name string) (decl.TypeRef, error) {
	_, m, err := r.companionMember(class, name)
	if err != nil {
		return decl.TypeRef{}, err
	}
	if m.Type.IsZero() {
		return decl.TypeRef{}, fmt.Errorf("%w: %s.Companion.%s declares no type", ErrUntyped, class, m.Name)
	}
	return m.Type, nil
}

func (r *Runtime) evalArgs(f *frame, exprs []decl.Expr) ([]Value, error) {
	args := make([]Value, len(exprs))
	for i, x := range exprs {
		v, err := r.eval(f, x)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// ---------------------------------------------------------------------------
// Companion members
// ---------------------------------------------------------------------------

func (r *Runtime) companionMember(class, name string) (*synth.MemberSet, decl.CompanionMember, error) {
	ms, ok := r.table.Get(class)
	if !ok {
		return nil, decl.CompanionMember{}, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	name = decl.Ident(name)
	for _, m := range ms.Companion() {
		if decl.Ident(m.Name) == name {
			return ms, m, nil
		}
	}
	return nil, decl.CompanionMember{}, fmt.Errorf("%w: %s.Companion.%s", ErrUnknownMember, class, name)
}

// companionConst evaluates a companion constant once per class definition.
func (r *Runtime) companionConst(f *frame, class, name string) (Value, error) {
	ms, m, err := r.companionMember(class, name)
	if err != nil {
		return nil, err
	}
	if m.Kind != decl.CompanionConst {
		return nil, fmt.Errorf("%w: %s.%s is a function", ErrType, ms.Class(), m.Name)
	}
	cache := r.companions[ms.Class()]
	if v, ok := cache[m.Name]; ok {
		return v, nil
	}
	cf, err := companionFrame(f)
	if err != nil {
		return nil, err
	}
	v, err := r.eval(cf, m.Value)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = make(map[string]Value)
		r.companions[ms.Class()] = cache
	}
	cache[m.Name] = v
	return v, nil
}

func (r *Runtime) companionCall(f *frame, class, name string, args []Value) (Value, error) {
	ms, m, err := r.companionMember(class, name)
	if err != nil {
		return nil, err
	}
	if m.Kind != decl.CompanionFunc {
		return nil, fmt.Errorf("%w: %s.%s is a constant", ErrType, ms.Class(), m.Name)
	}
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrArity, ms.Class(), m.Name, len(m.Params), len(args))
	}
	cf, err := companionFrame(f)
	if err != nil {
		return nil, err
	}
	cf.params, cf.types = bindParams(m.Params, args), paramTypes(m.Params)
	return r.eval(cf, m.Value)
}

// companionFrame has no receiver: companion members are class-level.
func companionFrame(f *frame) (*frame, error) {
	if f.depth >= MaxDepth {
		return nil, ErrDepthExceeded
	}
	return &frame{depth: f.depth + 1}, nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (r *Runtime) binary(f *frame, n *decl.Binary) (Value, error) {
	l, err := r.eval(f, n.Left)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "&&", "||":
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %T", ErrType, n.Op, l)
		}
		if (n.Op == "&&" && !lb) || (n.Op == "||" && lb) {
			return lb, nil
		}
		rv, err := r.eval(f, n.Right)
		if err != nil {
			return nil, err
		}
		rb, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %T", ErrType, n.Op, rv)
		}
		return rb, nil
	}

	rv, err := r.eval(f, n.Right)
	if err != nil {
		return nil, err
	}
	return binary(n.Op, l, rv)
}

func binary(op string, l, r Value) (Value, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	}

	if op == "+" {
		if ls, ok := l.(string); ok {
			return ls + fmt.Sprint(r), nil
		}
	}

	if li, ok := l.(int64); ok {
		if ri, ok := r.(int64); ok {
			return intOp(op, li, ri)
		}
	}
	if lf, lok := toFloat(l); lok {
		if rf, rok := toFloat(r); rok {
			return floatOp(op, lf, rf)
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			switch op {
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %T %s %T", ErrType, l, op, r)
}

func intOp(op string, l, r int64) (Value, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "%":
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		if op == "/" {
			return l / r, nil
		}
		return l % r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", ErrType, op)
}

func floatOp(op string, l, r float64) (Value, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", ErrType, op)
}

func unary(op string, v Value) (Value, error) {
	switch op {
	case "!":
		if b, ok := v.(bool); ok {
			return !b, nil
		}
	case "-":
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
	}
	return nil, fmt.Errorf("%w: %s%T", ErrType, op, v)
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func equal(l, r Value) bool {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
	}
	if !isComparable(l) || !isComparable(r) {
		return reflect.DeepEqual(l, r)
	}
	return l == r
}

// isComparable reports whether == on v cannot panic. Values returned by
// native hooks may be slices or maps.
func isComparable(v Value) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}
