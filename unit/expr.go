package unit

import (
	"gopkg.in/yaml.v3"

	"github.com/chazu/memberkit/decl"
)

// Expression syntax. Scalars are literals; a sequence is a block; a
// mapping is identified by its head key:
//
//	lit: 3, type: Long          typed literal
//	field: true                 backing field
//	param: x                    parameter
//	this: ~ | this: Outer       receiver, qualified receiver
//	get: name, on: e            property read
//	assign: name, on: e, value: e
//	assignField: e
//	binary: "+", left: e, right: e
//	unary: "!", operand: e
//	if: e, then: e, else: e
//	block: [e, ...]
//	call: name, on: e, args: [e, ...]
//	native: name, args: [e, ...]
//	companion: Class, name: n
//	companionCall: Class, name: n, args: [e, ...]
//
// Any mapping may carry "type" to set the declared type of the node.
var heads = []string{
	"lit", "field", "param", "this", "get", "assign", "assignField",
	"binary", "unary", "if", "block", "call", "native", "companion", "companionCall",
}

var allowed = map[string][]string{
	"lit":           {"type"},
	"field":         {"type"},
	"param":         {"type"},
	"this":          {"type"},
	"get":           {"type", "on"},
	"assign":        {"type", "on", "value"},
	"assignField":   {"type"},
	"binary":        {"type", "left", "right"},
	"unary":         {"type", "operand"},
	"if":            {"type", "then", "else"},
	"block":         {"type"},
	"call":          {"type", "on", "args"},
	"native":        {"type", "args"},
	"companion":     {"type", "name"},
	"companionCall": {"type", "name", "args"},
}

// Expr decodes an expression node.
func Expr(n *yaml.Node) (decl.Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := scalar(n)
		if err != nil {
			return nil, err
		}
		return decl.Lit(v), nil
	case yaml.SequenceNode:
		exprs, err := exprList(n)
		if err != nil {
			return nil, err
		}
		return decl.Seq(exprs...), nil
	case yaml.MappingNode:
		return mapping(n)
	case yaml.AliasNode:
		return Expr(n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 1 {
			return Expr(n.Content[0])
		}
	}
	return nil, syntaxErrorf(n, "expected an expression")
}

// optionalExpr decodes n, returning nil for an absent node.
func optionalExpr(n *yaml.Node) (decl.Expr, error) {
	if n == nil || n.Kind == 0 {
		return nil, nil
	}
	return Expr(n)
}

func scalar(n *yaml.Node) (any, error) {
	switch n.Tag {
	case "!!null":
		return nil, nil
	case "!!int":
		var i int64
		err := n.Decode(&i)
		return i, err
	case "!!float":
		var f float64
		err := n.Decode(&f)
		return f, err
	case "!!bool":
		var b bool
		err := n.Decode(&b)
		return b, err
	}
	return n.Value, nil
}

func mapping(n *yaml.Node) (decl.Expr, error) {
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}

	head := ""
	for _, h := range heads {
		if _, ok := fields[h]; ok {
			if head != "" {
				return nil, syntaxErrorf(n, "expression has both %q and %q", head, h)
			}
			head = h
		}
	}
	if head == "" {
		return nil, syntaxErrorf(n, "unknown expression form")
	}
	for k := range fields {
		if k != head && !contains(allowed[head], k) {
			return nil, syntaxErrorf(fields[k], "%s expression does not take %q", head, k)
		}
	}

	var typ decl.TypeRef
	if t, ok := fields["type"]; ok {
		typ = decl.ParseType(t.Value)
	}
	hv := fields[head]

	sub := func(key string) (decl.Expr, error) {
		if f, ok := fields[key]; ok {
			return Expr(f)
		}
		return nil, nil
	}
	must := func(key string) (decl.Expr, error) {
		f, ok := fields[key]
		if !ok {
			return nil, syntaxErrorf(n, "%s expression needs %q", head, key)
		}
		return Expr(f)
	}
	args := func() ([]decl.Expr, error) {
		if f, ok := fields["args"]; ok {
			return exprList(f)
		}
		return nil, nil
	}

	switch head {
	case "lit":
		v, err := scalar(hv)
		if err != nil {
			return nil, err
		}
		lit := decl.Lit(v)
		lit.Type = typ
		return lit, nil

	case "field":
		return &decl.FieldRef{Type: typ}, nil

	case "param":
		return &decl.ParamRef{Type: typ, Name: hv.Value}, nil

	case "this":
		if hv.Tag == "!!null" || hv.Value == "" {
			return &decl.This{Type: typ}, nil
		}
		return &decl.QualifiedThis{Type: typ, Class: hv.Value}, nil

	case "get":
		on, err := sub("on")
		if err != nil {
			return nil, err
		}
		return &decl.PropertyRef{Type: typ, Receiver: on, Name: hv.Value}, nil

	case "assign":
		on, err := sub("on")
		if err != nil {
			return nil, err
		}
		v, err := must("value")
		if err != nil {
			return nil, err
		}
		return &decl.AssignProperty{Type: typ, Receiver: on, Name: hv.Value, Value: v}, nil

	case "assignField":
		v, err := Expr(hv)
		if err != nil {
			return nil, err
		}
		return &decl.AssignField{Type: typ, Value: v}, nil

	case "binary":
		l, err := must("left")
		if err != nil {
			return nil, err
		}
		r, err := must("right")
		if err != nil {
			return nil, err
		}
		return &decl.Binary{Type: typ, Op: hv.Value, Left: l, Right: r}, nil

	case "unary":
		o, err := must("operand")
		if err != nil {
			return nil, err
		}
		return &decl.Unary{Type: typ, Op: hv.Value, Operand: o}, nil

	case "if":
		c, err := Expr(hv)
		if err != nil {
			return nil, err
		}
		then, err := must("then")
		if err != nil {
			return nil, err
		}
		els, err := sub("else")
		if err != nil {
			return nil, err
		}
		return &decl.If{Type: typ, Cond: c, Then: then, Else: els}, nil

	case "block":
		exprs, err := exprList(hv)
		if err != nil {
			return nil, err
		}
		return &decl.Block{Type: typ, Exprs: exprs}, nil

	case "call":
		on, err := sub("on")
		if err != nil {
			return nil, err
		}
		as, err := args()
		if err != nil {
			return nil, err
		}
		return &decl.Call{Type: typ, Receiver: on, Name: hv.Value, Args: as}, nil

	case "native":
		as, err := args()
		if err != nil {
			return nil, err
		}
		return &decl.Native{Type: typ, Name: hv.Value, Args: as}, nil

	case "companion":
		name, ok := fields["name"]
		if !ok {
			return nil, syntaxErrorf(n, "companion expression needs \"name\"")
		}
		return &decl.CompanionRef{Type: typ, Class: hv.Value, Name: name.Value}, nil

	case "companionCall":
		name, ok := fields["name"]
		if !ok {
			return nil, syntaxErrorf(n, "companionCall expression needs \"name\"")
		}
		as, err := args()
		if err != nil {
			return nil, err
		}
		return &decl.CompanionCall{Type: typ, Class: hv.Value, Name: name.Value, Args: as}, nil
	}
	return nil, syntaxErrorf(n, "unknown expression form %q", head)
}

func exprList(n *yaml.Node) ([]decl.Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, syntaxErrorf(n, "expected a list of expressions")
	}
	out := make([]decl.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		e, err := Expr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
