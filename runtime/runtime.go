// Package runtime evaluates synthesized classes: it constructs instances,
// runs accessors and methods, and dispatches extension calls by the
// declared type of the receiver expression.
//
// A Runtime is not safe for concurrent use.
package runtime

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/extension"
	"github.com/chazu/memberkit/scope"
	"github.com/chazu/memberkit/synth"
)

var log = commonlog.GetLogger("memberkit.runtime")

var (
	ErrReadOnly       = errors.New("property is read-only")
	ErrPrivateAccess  = errors.New("private member not accessible")
	ErrUnknownClass   = errors.New("unknown class")
	ErrUnknownMember  = errors.New("unknown member")
	ErrUnknownNative  = errors.New("unknown native function")
	ErrNullReceiver   = errors.New("member access on null receiver")
	ErrArity          = errors.New("wrong number of arguments")
	ErrType           = errors.New("type mismatch")
	ErrNoField        = errors.New("no backing field in this context")
	ErrDepthExceeded  = errors.New("evaluation depth exceeded")
	ErrNoEnclosing    = errors.New("no enclosing instance of that class")
	ErrNotAnInstance  = errors.New("value is not an instance")
	ErrNotConstructed = errors.New("enclosing instance was not created by this runtime")
	ErrUntyped        = errors.New("receiver has no declared type")
)

// MaxDepth bounds nested accessor and method evaluation.
const MaxDepth = 512

// NativeFunc is a host function callable from bodies through decl.Native.
type NativeFunc func(args []Value) (Value, error)

// Runtime holds the defined classes, the extension registry and native
// hooks.
type Runtime struct {
	table      *synth.Table
	extensions *extension.Registry
	natives    map[string]NativeFunc
	companions map[string]map[string]Value
}

// New creates a runtime. A nil table or registry is replaced by an empty
// one; the registry should use the table as its hierarchy so that
// extension resolution sees the defined supertypes.
func New(table *synth.Table, extensions *extension.Registry) *Runtime {
	if table == nil {
		table = synth.NewTable()
	}
	if extensions == nil {
		extensions = extension.NewRegistry(table)
	}
	return &Runtime{
		table:      table,
		extensions: extensions,
		natives:    make(map[string]NativeFunc),
		companions: make(map[string]map[string]Value),
	}
}

// Table returns the class table.
func (r *Runtime) Table() *synth.Table { return r.table }

// Extensions returns the extension registry.
func (r *Runtime) Extensions() *extension.Registry { return r.extensions }

// Define adds a synthesized class.
func (r *Runtime) Define(ms *synth.MemberSet) {
	r.table.Add(ms)
	delete(r.companions, ms.Class())
}

// RegisterNative makes fn callable as decl.Native{Name: name}.
func (r *Runtime) RegisterNative(name string, fn NativeFunc) {
	r.natives[decl.Ident(name)] = fn
}

// Construct creates an instance of the planned class. Arguments bind to
// the primary constructor; omitted optional parameters take their
// defaults, evaluated left to right with earlier parameters in scope.
// Backing fields are then initialized in synthesis order.
func (r *Runtime) Construct(plan *scope.ConstructionPlan, args ...synth.Arg) (*Instance, error) {
	ms, ok := r.table.Get(plan.Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, plan.Class)
	}

	var outer *Instance
	if enc := plan.Enclosing(); enc != nil {
		o, ok := enc.(*Instance)
		if !ok {
			return nil, fmt.Errorf("%s: %w", plan.Class, ErrNotConstructed)
		}
		outer = o
	}

	bindings, err := ms.Constructor().Bind(args)
	if err != nil {
		return nil, err
	}

	params := make(map[string]Value, len(bindings))
	types := make(map[string]decl.TypeRef, len(bindings))
	for _, p := range ms.Constructor().Params {
		types[p.Name] = p.Type
	}
	f := &frame{selfType: decl.Type(ms.Class()), params: params, types: types}
	for _, b := range bindings {
		v := b.Value
		if b.Defaulted {
			if v, err = r.eval(f, b.Param.Default); err != nil {
				return nil, fmt.Errorf("%s: default of %s: %w", ms.Class(), b.Param.Name, err)
			}
		}
		params[b.Param.Name] = normalize(v)
	}

	inst := newInstance(ms, outer)
	f.self = inst
	for _, p := range ms.Properties() {
		if !p.HasBackingField() {
			continue
		}
		switch {
		case p.Init.Param != "":
			inst.slots[p.Slot] = params[p.Init.Param]
		case p.Init.Expr != nil:
			v, err := r.eval(f, p.Init.Expr)
			if err != nil {
				return nil, fmt.Errorf("%s: initializer of %s: %w", ms.Class(), p.Name, err)
			}
			inst.slots[p.Slot] = v
		}
	}
	log.Debugf("constructed %s", inst)
	return inst, nil
}

// Get reads a property through its getter. Host reads see only public
// members.
func (r *Runtime) Get(inst *Instance, name string) (Value, error) {
	return r.getMember(&frame{external: true}, inst, name)
}

// Set writes a property through its setter.
func (r *Runtime) Set(inst *Instance, name string, v Value) error {
	return r.setMember(&frame{external: true}, inst, name, normalize(v))
}

// Call invokes a member function, falling back to an extension declared on
// the instance's class or its supertypes.
func (r *Runtime) Call(inst *Instance, name string, args ...Value) (Value, error) {
	if inst == nil {
		return nil, fmt.Errorf("%w: %s", ErrNullReceiver, name)
	}
	return r.Invoke(decl.Type(inst.class), inst, name, args...)
}

// Invoke calls name on recv as seen through the declared type static.
// True members of static take precedence and dispatch on the instance;
// otherwise the extension is chosen by static alone.
func (r *Runtime) Invoke(static decl.TypeRef, recv Value, name string, args ...Value) (Value, error) {
	for i := range args {
		args[i] = normalize(args[i])
	}
	return r.invoke(&frame{external: true}, static, recv, name, args)
}

// GetExtension reads an extension property of recv resolved against the
// declared type static.
func (r *Runtime) GetExtension(static decl.TypeRef, recv Value, name string) (Value, error) {
	ext, err := r.resolve(static, name, decl.ExtProperty, 0)
	if err != nil {
		return nil, err
	}
	return r.runExtension(&frame{}, ext, recv, nil)
}

// Eval evaluates e with self as the receiver and params in scope. Member
// bodies run with full access to self's private members. The params carry
// no declared types, so a parameter used as a receiver must be tagged;
// EvalBody declares them instead.
func (r *Runtime) Eval(self *Instance, e decl.Expr, params map[string]Value) (Value, error) {
	f := &frame{params: params}
	if self != nil {
		f.self, f.selfType = self, decl.Type(self.class)
	}
	return r.eval(f, e)
}

// EvalBody evaluates body as a member body of self declaring params,
// bound positionally to args.
func (r *Runtime) EvalBody(self *Instance, params []decl.Param, body decl.Expr, args ...Value) (Value, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: body takes %d, got %d", ErrArity, len(params), len(args))
	}
	for i := range args {
		args[i] = normalize(args[i])
	}
	f := &frame{params: bindParams(params, args), types: paramTypes(params)}
	if self != nil {
		f.self, f.selfType = self, decl.Type(self.class)
	}
	return r.eval(f, body)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// findProperty locates a property on the instance's class or, for
// properties without a backing field, on one of its supertypes.
func (r *Runtime) findProperty(inst *Instance, name string) (synth.Property, error) {
	ms, ok := r.table.Get(inst.class)
	if !ok {
		return synth.Property{}, fmt.Errorf("%w: %s", ErrUnknownClass, inst.class)
	}
	if p, ok := ms.Property(name); ok {
		return p, nil
	}
	if p, ok := r.inheritedProperty(ms, name, map[string]bool{}); ok {
		return p, nil
	}
	return synth.Property{}, fmt.Errorf("%w: %s.%s", ErrUnknownMember, inst.class, name)
}

func (r *Runtime) inheritedProperty(ms *synth.MemberSet, name string, seen map[string]bool) (synth.Property, bool) {
	for _, super := range ms.Supertypes() {
		if seen[super] {
			continue
		}
		seen[super] = true
		sms, ok := r.table.Get(super)
		if !ok {
			continue
		}
		if p, ok := sms.Property(name); ok && !p.HasBackingField() {
			return p, true
		}
		if p, ok := r.inheritedProperty(sms, name, seen); ok {
			return p, true
		}
	}
	return synth.Property{}, false
}

// findMethod dispatches on the instance's class and its supertypes,
// choosing the overload that takes arity parameters.
func (r *Runtime) findMethod(inst *Instance, name string, arity int) (decl.MethodDecl, bool) {
	seen := map[string]bool{}
	queue := []string{inst.class}
	for len(queue) > 0 {
		class := queue[0]
		queue = queue[1:]
		if seen[class] {
			continue
		}
		seen[class] = true
		ms, ok := r.table.Get(class)
		if !ok {
			continue
		}
		if m, ok := ms.MethodArity(name, arity); ok {
			return m, true
		}
		queue = append(queue, ms.Supertypes()...)
	}
	return decl.MethodDecl{}, false
}

func (r *Runtime) getMember(f *frame, inst *Instance, name string) (Value, error) {
	if inst == nil {
		return nil, fmt.Errorf("%w: %s", ErrNullReceiver, name)
	}
	p, err := r.findProperty(inst, name)
	if err != nil {
		return nil, err
	}
	if err := f.checkAccess(inst, p.Name, p.Visibility); err != nil {
		return nil, err
	}
	if p.Getter.IsDefault() {
		if !p.HasBackingField() {
			return nil, fmt.Errorf("%w: %s.%s", ErrNoField, inst.class, p.Name)
		}
		return inst.slots[p.Slot], nil
	}
	af, err := f.accessor(inst, &p)
	if err != nil {
		return nil, err
	}
	return r.eval(af, p.Getter.Body)
}

func (r *Runtime) setMember(f *frame, inst *Instance, name string, v Value) error {
	if inst == nil {
		return fmt.Errorf("%w: %s", ErrNullReceiver, name)
	}
	p, err := r.findProperty(inst, name)
	if err != nil {
		return err
	}
	if err := f.checkAccess(inst, p.Name, p.Visibility); err != nil {
		return err
	}
	if !p.Mutable() {
		return fmt.Errorf("%w: %s.%s", ErrReadOnly, inst.class, p.Name)
	}
	if p.Setter.IsDefault() {
		if !p.HasBackingField() {
			return fmt.Errorf("%w: %s.%s", ErrNoField, inst.class, p.Name)
		}
		inst.slots[p.Slot] = v
		return nil
	}
	af, err := f.accessor(inst, &p)
	if err != nil {
		return err
	}
	af.params = map[string]Value{p.Setter.Param: v}
	af.types = map[string]decl.TypeRef{p.Setter.Param: p.Type}
	_, err = r.eval(af, p.Setter.Body)
	return err
}

func (r *Runtime) callMethod(f *frame, inst *Instance, m decl.MethodDecl, args []Value) (Value, error) {
	if err := f.checkAccess(inst, m.Name, m.Visibility); err != nil {
		return nil, err
	}
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrArity, inst.class, m.Name, len(m.Params), len(args))
	}
	mf, err := f.enter()
	if err != nil {
		return nil, err
	}
	mf.self, mf.selfType = inst, decl.Type(inst.class)
	mf.owner, mf.prop, mf.external = nil, nil, false
	mf.params, mf.types = bindParams(m.Params, args), paramTypes(m.Params)
	if m.Body == nil {
		return nil, nil
	}
	return r.eval(mf, m.Body)
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// isMember reports whether name is a true member of the declared type
// static. Types the table does not know, such as Any or primitives, have
// no true members.
func (r *Runtime) isMember(static decl.TypeRef, recv Value, name string, kind decl.ExtensionKind, arity int) bool {
	if inst, ok := recv.(*Instance); !ok || inst == nil {
		return false
	}
	return r.table.HasMember(static.Name, name, kind, arity)
}

func (r *Runtime) invoke(f *frame, static decl.TypeRef, recv Value, name string, args []Value) (Value, error) {
	if r.isMember(static, recv, name, decl.ExtFunction, len(args)) {
		inst := recv.(*Instance)
		m, ok := r.findMethod(inst, name, len(args))
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, inst.class, name)
		}
		return r.callMethod(f, inst, m, args)
	}
	ext, err := r.resolve(static, name, decl.ExtFunction, len(args))
	if err != nil {
		if errors.Is(err, ErrUnknownMember) && r.isMember(static, recv, name, decl.ExtFunction, decl.AnyArity) {
			return nil, fmt.Errorf("%w: no %s.%s takes %d arguments", ErrArity, static.Name, name, len(args))
		}
		return nil, err
	}
	return r.runExtension(f, ext, recv, args)
}

func (r *Runtime) getProperty(f *frame, static decl.TypeRef, recv Value, name string) (Value, error) {
	if r.isMember(static, recv, name, decl.ExtProperty, decl.AnyArity) {
		return r.getMember(f, recv.(*Instance), name)
	}
	ext, err := r.resolve(static, name, decl.ExtProperty, 0)
	if err != nil {
		return nil, err
	}
	return r.runExtension(f, ext, recv, nil)
}

func (r *Runtime) setProperty(f *frame, static decl.TypeRef, recv Value, name string, v Value) error {
	if r.isMember(static, recv, name, decl.ExtProperty, decl.AnyArity) {
		return r.setMember(f, recv.(*Instance), name, v)
	}
	ext, err := r.resolve(static, name, decl.ExtProperty, 0)
	if err != nil {
		return err
	}
	if ext.Setter == nil {
		return fmt.Errorf("%w: extension %s", ErrReadOnly, ext.QualifiedName())
	}
	ef, err := f.enter()
	if err != nil {
		return err
	}
	ef.self, ef.selfType, ef.external = recv, ext.Receiver, true
	ef.owner, ef.prop = nil, nil
	ef.params = map[string]Value{ext.Setter.ParamName(): v}
	ef.types = map[string]decl.TypeRef{ext.Setter.ParamName(): ext.Result}
	_, err = r.eval(ef, ext.Setter.Body)
	return err
}

func (r *Runtime) resolve(static decl.TypeRef, name string, kind decl.ExtensionKind, arity int) (*decl.ExtensionDecl, error) {
	q := extension.Query{Static: static, Name: name, Kind: kind, Arity: arity}
	if kind == decl.ExtProperty {
		q.Arity = extension.AnyArity
	}
	ext, err := r.extensions.ResolveQuery(q)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, static, name)
	}
	return ext, nil
}

func (r *Runtime) runExtension(f *frame, ext *decl.ExtensionDecl, recv Value, args []Value) (Value, error) {
	if len(args) != len(ext.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, ext.QualifiedName(), len(ext.Params), len(args))
	}
	ef, err := f.enter()
	if err != nil {
		return nil, err
	}
	ef.self, ef.selfType, ef.external = recv, ext.Receiver, true
	ef.owner, ef.prop = nil, nil
	ef.params, ef.types = bindParams(ext.Params, args), paramTypes(ext.Params)
	return r.eval(ef, ext.Body)
}

func bindParams(params []decl.Param, args []Value) map[string]Value {
	m := make(map[string]Value, len(params))
	for i, p := range params {
		m[decl.Ident(p.Name)] = args[i]
	}
	return m
}

func paramTypes(params []decl.Param) map[string]decl.TypeRef {
	m := make(map[string]decl.TypeRef, len(params))
	for _, p := range params {
		m[decl.Ident(p.Name)] = p.Type
	}
	return m
}

// normalize widens Go ints so host-supplied values compare equal to
// literals.
func normalize(v Value) Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
