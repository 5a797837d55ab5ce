package driver

import (
	"testing"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/interop"
	"github.com/chazu/memberkit/synth"
	"github.com/chazu/memberkit/unit"
)

const counterUnit = `classes:
  - name: Person
    params:
      - {name: name, type: String, promote: val}
      - {name: isHappy, type: Boolean, promote: var, default: true}
  - name: Outer
    params:
      - {name: count, type: Int, promote: var}
    classes:
      - name: Inner
        kind: inner
        methods:
          - name: bump
            body:
              assign: count
              on: {this: Outer}
              value: {binary: "+", left: {get: count, on: {this: Outer}}, right: 1}
  - name: Animal
  - name: Dog
    supertypes: [Animal]
extensions:
  - receiver: Animal
    name: speak
    body: "..."
  - receiver: Dog
    name: speak
    body: woof
`

func compile(t *testing.T, src string) (*Result, error) {
	t.Helper()
	u, err := unit.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return Compile(u, Options{})
}

func TestCompileFlattensNestedClasses(t *testing.T) {
	res, err := compile(t, counterUnit)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := []string{"Animal", "Dog", "Outer", "Outer.Inner", "Person"}
	got := res.Table.Names()
	if len(got) != len(want) {
		t.Fatalf("classes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("classes = %v, want %v", got, want)
			break
		}
	}

	inner, ok := res.Class("Outer.Inner")
	if !ok {
		t.Fatal("Outer.Inner not compiled")
	}
	if !inner.Frame.RequiresEnclosing || inner.Frame.Qualifier != "this@Outer" {
		t.Errorf("frame = %+v", inner.Frame)
	}
	if inner.Line != res.Unit.ClassLine("Outer.Inner") || inner.Line == 0 {
		t.Errorf("Line = %d", inner.Line)
	}
	if res.Extensions.Len() != 2 {
		t.Errorf("extensions = %d, want 2", res.Extensions.Len())
	}
}

func TestCompileProjectsNames(t *testing.T) {
	res, err := compile(t, counterUnit)
	if err != nil {
		t.Fatal(err)
	}
	person, _ := res.Class("Person")
	want := []interop.Projection{
		{Property: "name", Names: interop.Names{Getter: "getName"}},
		{Property: "isHappy", Names: interop.Names{Getter: "isHappy", Setter: "setHappy"}},
	}
	if len(person.Names) != len(want) {
		t.Fatalf("names = %+v", person.Names)
	}
	for i := range want {
		if person.Names[i] != want[i] {
			t.Errorf("names[%d] = %+v, want %+v", i, person.Names[i], want[i])
		}
	}

	u, _ := unit.Parse([]byte(counterUnit))
	res, err = Compile(u, Options{BooleanTypes: []string{"Flag"}})
	if err != nil {
		t.Fatal(err)
	}
	person, _ = res.Class("Person")
	if person.Names[1].Names.Getter != "getIsHappy" {
		t.Errorf("custom boolean types ignored: %+v", person.Names[1])
	}
}

func TestCompileEndToEnd(t *testing.T) {
	res, err := compile(t, counterUnit)
	if err != nil {
		t.Fatal(err)
	}
	rt := res.Runtime()

	plan, err := res.Plan("Outer", nil)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := rt.Construct(plan, synth.Positional(1))
	if err != nil {
		t.Fatal(err)
	}
	plan, err = res.Plan("Outer.Inner", outer)
	if err != nil {
		t.Fatal(err)
	}
	inner, err := rt.Construct(plan)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Call(inner, "bump"); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	if v, _ := rt.Get(outer, "count"); v != int64(2) {
		t.Errorf("count = %v, want 2", v)
	}

	plan, _ = res.Plan("Dog", nil)
	dog, err := rt.Construct(plan)
	if err != nil {
		t.Fatal(err)
	}
	v, err := rt.Invoke(decl.Type("Animal"), dog, "speak")
	if err != nil || v != "..." {
		t.Errorf("speak via Animal = %v, %v", v, err)
	}

	if _, err := res.Plan("Outer.Inner", nil); !decl.HasKind(err, decl.MissingEnclosingInstance) {
		t.Errorf("Plan(inner, nil) = %v", err)
	}
	if _, err := res.Plan("Nope", nil); err == nil {
		t.Error("Plan(Nope) should fail")
	}
}

const brokenUnit = `classes:
  - name: Broken
    params:
      - {name: a, type: Int, promote: val}
    properties:
      - name: a
        type: Int
        init: 1
      - name: b
        type: Int
      - name: c
        type: Int
        set: {body: {assignField: {param: value}}}
        init: 0
  - name: Fine
  - name: Fine
  - name: Account
    properties:
      - {name: pin, type: Int, visibility: private, init: 1234}
extensions:
  - receiver: Account
    name: leak
    body: {get: pin}
  - receiver: Account
    name: leak
    body: 0
`

func TestCompileCollectsDiagnostics(t *testing.T) {
	res, err := compile(t, brokenUnit)
	if err == nil {
		t.Fatal("Compile should fail")
	}
	want := []decl.ErrorKind{
		decl.DuplicateMember,
		decl.DuplicatePromotedProperty,
		decl.UninitializedStoredProperty,
		decl.ImmutablePropertyWithSetter,
		decl.PrivateMemberAccess,
		decl.DuplicateExtension,
	}
	got := decl.Kinds(err)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds = %v, want %v", got, want)
			break
		}
	}

	for _, d := range Diagnostics(err) {
		if d.Line == 0 {
			t.Errorf("diagnostic without a line: %v", d)
		}
	}
	if _, ok := res.Class("Broken"); ok {
		t.Error("a class with errors must not be compiled")
	}
	if _, ok := res.Class("Account"); !ok {
		t.Error("valid classes still compile when others fail")
	}
}

func TestCompileRejectsUndeclaredEnclosing(t *testing.T) {
	src := "classes:\n  - name: Lost\n    kind: inner\n    enclosing: Nowhere\n"
	_, err := compile(t, src)
	if !decl.HasKind(err, decl.InvalidEnclosingRef) {
		t.Errorf("Compile = %v, want InvalidEnclosingRef", err)
	}
}
