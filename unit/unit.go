// Package unit loads declaration units: YAML documents listing classes and
// extensions. Source lines are kept so diagnostics can point back into the
// document.
package unit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/memberkit/decl"
)

// Unit is a parsed declaration unit. Nested class declarations stay nested
// under their parent with simple names; the driver qualifies them.
type Unit struct {
	Path       string
	Classes    []*decl.ClassDecl
	Extensions []decl.ExtensionDecl

	classLines map[string]int
	extLines   []int
}

// ClassLine returns the 1-based line of a class by qualified name
// ("Outer.Inner"), or 0 when unknown.
func (u *Unit) ClassLine(qualified string) int {
	return u.classLines[decl.Ident(qualified)]
}

// ExtensionLine returns the line of the i-th extension, or 0.
func (u *Unit) ExtensionLine(i int) int {
	if i < 0 || i >= len(u.extLines) {
		return 0
	}
	return u.extLines[i]
}

// SyntaxError is a malformed document location.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func syntaxErrorf(n *yaml.Node, format string, args ...any) error {
	return &SyntaxError{Line: n.Line, Msg: fmt.Sprintf(format, args...)}
}

// LineOf extracts the line from a SyntaxError or a YAML parse error, or
// returns 0.
func LineOf(err error) int {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se.Line
	}
	if err == nil {
		return 0
	}
	// yaml.v3 reports "yaml: line N: ..."
	msg := err.Error()
	i := strings.Index(msg, "line ")
	if i < 0 {
		return 0
	}
	digits := msg[i+len("line "):]
	end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		digits = digits[:end]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// ---------------------------------------------------------------------------
// Document shapes
// ---------------------------------------------------------------------------

type document struct {
	Classes    []yaml.Node `yaml:"classes"`
	Extensions []yaml.Node `yaml:"extensions"`
}

type classDoc struct {
	Name       string        `yaml:"name"`
	Kind       string        `yaml:"kind"`
	Enclosing  string        `yaml:"enclosing"`
	Supertypes []string      `yaml:"supertypes"`
	Params     []paramDoc    `yaml:"params"`
	Properties []propertyDoc `yaml:"properties"`
	Overrides  []overrideDoc `yaml:"overrides"`
	Methods    []methodDoc   `yaml:"methods"`
	Companion  []memberDoc   `yaml:"companion"`
	Classes    []yaml.Node   `yaml:"classes"`
}

type paramDoc struct {
	Name    string    `yaml:"name"`
	Type    string    `yaml:"type"`
	Promote string    `yaml:"promote"`
	Default yaml.Node `yaml:"default"`
}

type accessorDoc struct {
	Param string    `yaml:"param"`
	Body  yaml.Node `yaml:"body"`
}

type propertyDoc struct {
	Name       string       `yaml:"name"`
	Type       string       `yaml:"type"`
	Mutability string       `yaml:"mutability"`
	Storage    string       `yaml:"storage"`
	Visibility string       `yaml:"visibility"`
	Get        *accessorDoc `yaml:"get"`
	Set        *accessorDoc `yaml:"set"`
	Init       yaml.Node    `yaml:"init"`
}

type overrideDoc struct {
	Property string       `yaml:"property"`
	Get      *accessorDoc `yaml:"get"`
	Set      *accessorDoc `yaml:"set"`
}

type fieldDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type methodDoc struct {
	Name       string     `yaml:"name"`
	Params     []fieldDoc `yaml:"params"`
	Result     string     `yaml:"result"`
	Visibility string     `yaml:"visibility"`
	Body       yaml.Node  `yaml:"body"`
}

type memberDoc struct {
	Name   string     `yaml:"name"`
	Kind   string     `yaml:"kind"`
	Type   string     `yaml:"type"`
	Params []fieldDoc `yaml:"params"`
	Value  yaml.Node  `yaml:"value"`
}

type extensionDoc struct {
	Receiver string       `yaml:"receiver"`
	Name     string       `yaml:"name"`
	Kind     string       `yaml:"kind"`
	Params   []fieldDoc   `yaml:"params"`
	Result   string       `yaml:"result"`
	Body     yaml.Node    `yaml:"body"`
	Set      *accessorDoc `yaml:"set"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads and parses the unit at path.
func Load(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	u, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	u.Path = path
	return u, nil
}

// Parse decodes a unit document. Unknown top-level keys are rejected.
func Parse(data []byte) (*Unit, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing unit: %w", err)
	}

	u := &Unit{classLines: make(map[string]int)}
	for i := range doc.Classes {
		c, err := u.class(&doc.Classes[i], "")
		if err != nil {
			return nil, err
		}
		u.Classes = append(u.Classes, c)
	}
	for i := range doc.Extensions {
		n := &doc.Extensions[i]
		ext, err := extension(n)
		if err != nil {
			return nil, err
		}
		u.Extensions = append(u.Extensions, ext)
		u.extLines = append(u.extLines, n.Line)
	}
	return u, nil
}

// decodeStrict decodes n into v, rejecting mapping keys that v does not
// declare. Node.Decode has no KnownFields option.
func decodeStrict(n *yaml.Node, v any) error {
	if err := checkKeys(n, reflect.TypeOf(v)); err != nil {
		return err
	}
	return n.Decode(v)
}

var nodeType = reflect.TypeOf(yaml.Node{})

// checkKeys walks n alongside the struct shape t. Raw yaml.Node fields are
// left to their own parsers.
func checkKeys(n *yaml.Node, t reflect.Type) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nodeType {
		return nil
	}
	switch {
	case t.Kind() == reflect.Struct && n.Kind == yaml.MappingNode:
		fields := make(map[string]reflect.Type, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			fields[name] = f.Type
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			ft, ok := fields[key.Value]
			if !ok {
				return syntaxErrorf(key, "unknown field %q", key.Value)
			}
			if err := checkKeys(val, ft); err != nil {
				return err
			}
		}
	case t.Kind() == reflect.Slice && n.Kind == yaml.SequenceNode:
		for _, item := range n.Content {
			if err := checkKeys(item, t.Elem()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *Unit) class(n *yaml.Node, parent string) (*decl.ClassDecl, error) {
	var d classDoc
	if err := decodeStrict(n, &d); err != nil {
		return nil, err
	}
	if d.Name == "" {
		return nil, syntaxErrorf(n, "class without a name")
	}
	qualified := decl.Ident(d.Name)
	if parent != "" {
		qualified = parent + "." + qualified
	}
	u.classLines[qualified] = n.Line

	c := &decl.ClassDecl{
		Name:       d.Name,
		Enclosing:  d.Enclosing,
		Supertypes: d.Supertypes,
	}
	var err error
	if c.Kind, err = classKind(n, d.Kind, parent); err != nil {
		return nil, err
	}
	if c.Kind == decl.Inner && c.Enclosing == "" {
		c.Enclosing = parent
	}

	for _, p := range d.Params {
		cp := decl.ConstructorParam{Name: p.Name, Type: decl.ParseType(p.Type)}
		if cp.Promotion, err = promotion(n, p.Promote); err != nil {
			return nil, err
		}
		if cp.Default, err = optionalExpr(&p.Default); err != nil {
			return nil, err
		}
		c.Params = append(c.Params, cp)
	}

	for _, p := range d.Properties {
		pd, err := property(n, p)
		if err != nil {
			return nil, err
		}
		c.Properties = append(c.Properties, pd)
	}

	for _, o := range d.Overrides {
		ao := decl.AccessorOverride{Property: o.Property}
		if ao.Getter, err = accessor(o.Get); err != nil {
			return nil, err
		}
		if ao.Setter, err = accessor(o.Set); err != nil {
			return nil, err
		}
		c.Overrides = append(c.Overrides, ao)
	}

	for _, m := range d.Methods {
		md := decl.MethodDecl{Name: m.Name, Params: params(m.Params), Result: decl.ParseType(m.Result)}
		if md.Visibility, err = visibility(n, m.Visibility); err != nil {
			return nil, err
		}
		if md.Body, err = optionalExpr(&m.Body); err != nil {
			return nil, err
		}
		c.Methods = append(c.Methods, md)
	}

	if len(d.Companion) > 0 {
		c.Companion = &decl.CompanionDecl{}
		for _, m := range d.Companion {
			cm := decl.CompanionMember{Name: m.Name, Type: decl.ParseType(m.Type), Params: params(m.Params)}
			switch m.Kind {
			case "", "const":
				cm.Kind = decl.CompanionConst
			case "func", "function":
				cm.Kind = decl.CompanionFunc
			default:
				return nil, syntaxErrorf(n, "companion %s: unknown kind %q", m.Name, m.Kind)
			}
			if cm.Value, err = Expr(&m.Value); err != nil {
				return nil, err
			}
			c.Companion.Members = append(c.Companion.Members, cm)
		}
	}

	for i := range d.Classes {
		nested, err := u.class(&d.Classes[i], qualified)
		if err != nil {
			return nil, err
		}
		c.Classes = append(c.Classes, nested)
	}
	return c, nil
}

func property(n *yaml.Node, p propertyDoc) (decl.PropertyDecl, error) {
	pd := decl.PropertyDecl{Name: p.Name, Type: decl.ParseType(p.Type)}
	var err error
	switch p.Mutability {
	case "", "val":
		pd.Mutability = decl.Val
	case "var":
		pd.Mutability = decl.Var
	default:
		return pd, syntaxErrorf(n, "property %s: unknown mutability %q", p.Name, p.Mutability)
	}
	switch p.Storage {
	case "", "stored":
		pd.Storage = decl.Stored
	case "computed":
		pd.Storage = decl.Computed
	default:
		return pd, syntaxErrorf(n, "property %s: unknown storage %q", p.Name, p.Storage)
	}
	if pd.Visibility, err = visibility(n, p.Visibility); err != nil {
		return pd, err
	}
	if pd.Getter, err = accessor(p.Get); err != nil {
		return pd, err
	}
	if pd.Setter, err = accessor(p.Set); err != nil {
		return pd, err
	}
	if pd.Initializer, err = optionalExpr(&p.Init); err != nil {
		return pd, err
	}
	return pd, nil
}

func extension(n *yaml.Node) (decl.ExtensionDecl, error) {
	var d extensionDoc
	if err := decodeStrict(n, &d); err != nil {
		return decl.ExtensionDecl{}, err
	}
	ext := decl.ExtensionDecl{
		Receiver: decl.ParseType(d.Receiver),
		Name:     d.Name,
		Params:   params(d.Params),
		Result:   decl.ParseType(d.Result),
	}
	switch d.Kind {
	case "", "function", "func":
		ext.Kind = decl.ExtFunction
	case "property":
		ext.Kind = decl.ExtProperty
	default:
		return ext, syntaxErrorf(n, "extension %s: unknown kind %q", d.Name, d.Kind)
	}
	var err error
	if ext.Body, err = optionalExpr(&d.Body); err != nil {
		return ext, err
	}
	if ext.Setter, err = accessor(d.Set); err != nil {
		return ext, err
	}
	return ext, nil
}

func accessor(d *accessorDoc) (*decl.Accessor, error) {
	if d == nil {
		return nil, nil
	}
	body, err := optionalExpr(&d.Body)
	if err != nil {
		return nil, err
	}
	return &decl.Accessor{Body: body, Param: d.Param}, nil
}

func params(fs []fieldDoc) []decl.Param {
	out := make([]decl.Param, len(fs))
	for i, f := range fs {
		out[i] = decl.Param{Name: f.Name, Type: decl.ParseType(f.Type)}
	}
	return out
}

func classKind(n *yaml.Node, s, parent string) (decl.ClassKind, error) {
	switch s {
	case "":
		if parent != "" {
			return decl.Nested, nil
		}
		return decl.TopLevel, nil
	case "top-level":
		return decl.TopLevel, nil
	case "nested":
		return decl.Nested, nil
	case "inner":
		return decl.Inner, nil
	}
	return 0, syntaxErrorf(n, "unknown class kind %q", s)
}

func promotion(n *yaml.Node, s string) (decl.Promotion, error) {
	switch s {
	case "", "none":
		return decl.PromoteNone, nil
	case "val":
		return decl.PromoteVal, nil
	case "var":
		return decl.PromoteVar, nil
	}
	return 0, syntaxErrorf(n, "unknown promotion %q", s)
}

func visibility(n *yaml.Node, s string) (decl.Visibility, error) {
	switch s {
	case "", "public":
		return decl.Public, nil
	case "private":
		return decl.Private, nil
	}
	return 0, syntaxErrorf(n, "unknown visibility %q", s)
}
