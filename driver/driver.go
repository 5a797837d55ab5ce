// Package driver compiles a declaration unit: it flattens nested classes,
// synthesizes member sets, projects interop names and registers
// extensions, collecting every declaration error on the way.
package driver

import (
	"fmt"

	"github.com/tliron/commonlog"
	"go.uber.org/multierr"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/extension"
	"github.com/chazu/memberkit/interop"
	"github.com/chazu/memberkit/runtime"
	"github.com/chazu/memberkit/scope"
	"github.com/chazu/memberkit/synth"
	"github.com/chazu/memberkit/unit"
)

var log = commonlog.GetLogger("memberkit.driver")

// Options configure compilation.
type Options struct {
	// BooleanTypes are the type names that get the "is" getter rule. Empty
	// means interop.DefaultBooleanTypes.
	BooleanTypes []string
}

// Class is one compiled class.
type Class struct {
	Decl    *decl.ClassDecl // flattened, with a qualified name
	Members *synth.MemberSet
	Frame   scope.Frame
	Names   []interop.Projection
	Line    int
}

// Result is the outcome of compiling a unit. Classes that failed synthesis
// are absent from Classes and Table.
type Result struct {
	Unit       *unit.Unit
	Classes    []*Class
	Table      *synth.Table
	Extensions *extension.Registry
}

// Class looks up a compiled class by qualified name.
func (r *Result) Class(name string) (*Class, bool) {
	name = decl.Ident(name)
	for _, c := range r.Classes {
		if c.Decl.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Runtime returns an evaluator over the compiled classes and extensions.
func (r *Result) Runtime() *runtime.Runtime {
	return runtime.New(r.Table, r.Extensions)
}

// Plan binds a compiled class for construction.
func (r *Result) Plan(class string, enclosing scope.Enclosing) (*scope.ConstructionPlan, error) {
	c, ok := r.Class(class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", runtime.ErrUnknownClass, class)
	}
	return scope.Bind(c.Decl, enclosing)
}

// Diagnostic attaches a source line to a compilation error.
type Diagnostic struct {
	Line int
	Err  error
}

func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %v", d.Line, d.Err)
	}
	return d.Err.Error()
}

func (d *Diagnostic) Unwrap() error { return d.Err }

// Diagnostics splits a Compile error into its line-tagged parts.
func Diagnostics(err error) []*Diagnostic {
	var out []*Diagnostic
	for _, e := range multierr.Errors(err) {
		if d, ok := e.(*Diagnostic); ok {
			out = append(out, d)
		} else {
			out = append(out, &Diagnostic{Err: e})
		}
	}
	return out
}

// Compile compiles u. The result is always non-nil; the error combines
// every diagnostic found.
func Compile(u *unit.Unit, opts Options) (*Result, error) {
	c := &compiler{
		unit:      u,
		projector: interop.NewProjector(opts.BooleanTypes...),
		result:    &Result{Unit: u, Table: synth.NewTable()},
		declared:  make(map[string]*decl.ClassDecl),
	}
	c.result.Extensions = extension.NewRegistry(c.result.Table)

	var flat []*decl.ClassDecl
	for _, cd := range u.Classes {
		flat = c.flatten(flat, cd, "")
	}
	for _, cd := range flat {
		c.checkEnclosing(cd)
		c.checkSupertypes(cd)
		c.synthesize(cd)
	}
	c.registerExtensions()

	log.Infof("compiled %d classes and %d extensions with %d diagnostics",
		len(c.result.Classes), c.result.Extensions.Len(), len(multierr.Errors(c.err)))
	return c.result, c.err
}

type compiler struct {
	unit      *unit.Unit
	projector *interop.Projector
	result    *Result
	declared  map[string]*decl.ClassDecl
	err       error
}

func (c *compiler) report(line int, err error) {
	for _, e := range multierr.Errors(err) {
		c.err = multierr.Append(c.err, &Diagnostic{Line: line, Err: e})
	}
}

// flatten appends cd and its nested classes with qualified names.
func (c *compiler) flatten(out []*decl.ClassDecl, cd *decl.ClassDecl, parent string) []*decl.ClassDecl {
	flat := *cd
	flat.Name = decl.Ident(cd.Name)
	if parent != "" {
		flat.Name = parent + "." + flat.Name
	}
	flat.Classes = nil

	if _, dup := c.declared[flat.Name]; dup {
		c.report(c.unit.ClassLine(flat.Name), decl.Errorf(decl.DuplicateMember, flat.Name, "",
			"class declared twice"))
	} else {
		c.declared[flat.Name] = &flat
		out = append(out, &flat)
	}
	for _, nested := range cd.Classes {
		out = c.flatten(out, nested, flat.Name)
	}
	return out
}

func (c *compiler) checkEnclosing(cd *decl.ClassDecl) {
	if cd.Kind != decl.Inner || cd.Enclosing == "" {
		return
	}
	if _, ok := c.declared[decl.Ident(cd.Enclosing)]; !ok {
		c.report(c.unit.ClassLine(cd.Name), decl.Errorf(decl.InvalidEnclosingRef, cd.Name, "",
			"enclosing class %s is not declared", cd.Enclosing))
	}
}

func (c *compiler) checkSupertypes(cd *decl.ClassDecl) {
	for _, s := range cd.Supertypes {
		if _, ok := c.declared[decl.Ident(s)]; !ok {
			log.Warningf("%s: supertype %s is not declared in this unit", cd.Name, s)
		}
	}
}

func (c *compiler) synthesize(cd *decl.ClassDecl) {
	line := c.unit.ClassLine(cd.Name)
	ms, err := synth.Synthesize(cd)
	if err != nil {
		c.report(line, err)
		return
	}
	c.result.Table.Add(ms)
	c.result.Classes = append(c.result.Classes, &Class{
		Decl:    cd,
		Members: ms,
		Frame:   scope.Describe(cd),
		Names:   c.projector.ProjectMembers(ms),
		Line:    line,
	})
	log.Debugf("synthesized %s (%s)", cd.Name, cd.Kind)
}

func (c *compiler) registerExtensions() {
	for i, ext := range c.unit.Extensions {
		line := c.unit.ExtensionLine(i)
		if err := c.result.Extensions.Register(ext); err != nil {
			c.report(line, err)
			continue
		}
		if err := extension.CheckVisibility(ext, c.result.Table); err != nil {
			c.report(line, err)
		}
	}
}
