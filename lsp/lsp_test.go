package lsp

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/memberkit/driver"
)

const shapes = `classes:
  - name: Square
    params:
      - {name: side, type: Int, promote: var}
    properties:
      - name: isEmpty
        type: Boolean
        storage: computed
        get: {body: {binary: "==", left: {get: side}, right: 0}}
    methods:
      - name: scale
        params: [{name: k, type: Int}]
        body: {assign: side, value: {binary: "*", left: {get: side}, right: {param: k}}}
  - name: Outer
    classes:
      - name: Inner
        kind: inner
extensions:
  - receiver: Square
    name: perimeter
    kind: property
    result: Int
    body: {binary: "*", left: {get: side}, right: 4}
`

func analyzed(t *testing.T) *driver.Result {
	t.Helper()
	res, diags := analyze(shapes, driver.Options{})
	if res == nil || len(diags) != 0 {
		t.Fatalf("analyze = %v, %+v", res, diags)
	}
	return res
}

// --- Diagnostics ---

func TestAnalyzeCleanUnit(t *testing.T) {
	_, diags := analyze(shapes, driver.Options{})
	if diags == nil {
		t.Error("diagnostics must be non-nil so stale markers clear")
	}
}

func TestAnalyzeDeclarationErrors(t *testing.T) {
	src := "classes:\n  - name: Ok\n  - name: Bad\n    properties:\n      - {name: b, type: Int}\n"
	res, diags := analyze(src, driver.Options{})
	if res == nil {
		t.Fatal("declaration errors still produce a result")
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	if diags[0].Range.Start.Line != 2 {
		t.Errorf("line = %d, want 2", diags[0].Range.Start.Line)
	}
	if !strings.Contains(diags[0].Message, "b") {
		t.Errorf("message = %q", diags[0].Message)
	}
	if *diags[0].Severity != protocol.DiagnosticSeverityError || *diags[0].Source != lspName {
		t.Errorf("diagnostic = %+v", diags[0])
	}
}

func TestAnalyzeSyntaxErrors(t *testing.T) {
	res, diags := analyze("classes: []\n\nbogus: 1\n", driver.Options{})
	if res != nil {
		t.Error("a malformed unit has no result")
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	if diags[0].Range.Start.Line != 2 {
		t.Errorf("line = %d, want 2", diags[0].Range.Start.Line)
	}
}

// --- Hover ---

func TestHoverClass(t *testing.T) {
	h := hover(analyzed(t), "Square")
	if h == nil {
		t.Fatal("no hover for Square")
	}
	text := h.Contents.(protocol.MarkupContent).Value
	for _, want := range []string{
		"**Square** (top-level class)",
		"`Square(var side: Int)`",
		"| side | Int | var, stored | getSide / setSide |",
		"| isEmpty | Boolean | val, computed | isEmpty |",
		"scale(k: Int)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("hover missing %q:\n%s", want, text)
		}
	}
}

func TestHoverInnerClass(t *testing.T) {
	h := hover(analyzed(t), "Inner")
	if h == nil {
		t.Fatal("no hover for Inner")
	}
	if text := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(text, "this@Outer") {
		t.Errorf("hover = %s", text)
	}
}

func TestHoverMembers(t *testing.T) {
	res := analyzed(t)
	h := hover(res, "perimeter")
	if h == nil {
		t.Fatal("no hover for perimeter")
	}
	if text := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(text, "extension property `Square.perimeter()`") {
		t.Errorf("hover = %s", text)
	}

	h = hover(res, "side")
	if h == nil {
		t.Fatal("no hover for side")
	}
	if text := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(text, "`Square.side: Int` (var; getSide / setSide)") {
		t.Errorf("hover = %s", text)
	}

	if hover(res, "missing") != nil {
		t.Error("unknown words have no hover")
	}
}

// --- Completion ---

func TestComplete(t *testing.T) {
	res := analyzed(t)
	tests := []struct {
		prefix string
		want   []string
	}{
		{"Sq", []string{"Square"}},
		{"Outer.", []string{"Outer.Inner"}},
		{"is", []string{"isEmpty"}},
		{"per", []string{"perimeter"}},
		{"zz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			items := complete(res, tt.prefix)
			if len(items) != len(tt.want) {
				t.Fatalf("complete(%q) = %d items, want %v", tt.prefix, len(items), tt.want)
			}
			for i, w := range tt.want {
				if items[i].Label != w {
					t.Errorf("item %d = %q, want %q", i, items[i].Label, w)
				}
			}
		})
	}

	items := complete(res, "is")
	if *items[0].Detail != "Square: Boolean (isEmpty)" {
		t.Errorf("detail = %q", *items[0].Detail)
	}
	if *items[0].Kind != protocol.CompletionItemKindProperty {
		t.Errorf("kind = %d", *items[0].Kind)
	}
}

// --- Definition ---

func TestDefinition(t *testing.T) {
	res := analyzed(t)
	uri := protocol.DocumentUri("file:///shapes.yaml")

	locs := definition(uri, res, "Inner")
	if len(locs) != 1 {
		t.Fatalf("definition(Inner) = %+v", locs)
	}
	if want := protocol.UInteger(res.Unit.ClassLine("Outer.Inner") - 1); locs[0].Range.Start.Line != want || locs[0].URI != uri {
		t.Errorf("location = %+v, want line %d", locs[0], want)
	}

	locs = definition(uri, res, "perimeter")
	if len(locs) != 1 || locs[0].Range.Start.Line != protocol.UInteger(res.Unit.ExtensionLine(0)-1) {
		t.Errorf("definition(perimeter) = %+v", locs)
	}

	if locs := definition(uri, res, "nothing"); len(locs) != 0 {
		t.Errorf("definition(nothing) = %+v", locs)
	}
}

// --- extractPrefix ---

func TestExtractPrefix_SimpleWord(t *testing.T) {
	got := extractPrefix("  - name: Squ", protocol.Position{Line: 0, Character: 13})
	if got != "Squ" {
		t.Errorf("expected 'Squ', got %q", got)
	}
}

func TestExtractPrefix_Qualified(t *testing.T) {
	got := extractPrefix("receiver: Outer.In", protocol.Position{Line: 0, Character: 18})
	if got != "Outer.In" {
		t.Errorf("expected 'Outer.In', got %q", got)
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	got := extractPrefix("", protocol.Position{Line: 0, Character: 0})
	if got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "classes:\n  - name: Sq"
	got := extractPrefix(text, protocol.Position{Line: 1, Character: 12})
	if got != "Sq" {
		t.Errorf("expected 'Sq', got %q", got)
	}
}

func TestExtractPrefix_AfterSpace(t *testing.T) {
	got := extractPrefix("name: ", protocol.Position{Line: 0, Character: 6})
	if got != "" {
		t.Errorf("expected empty after space, got %q", got)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	got := extractPrefix("hello", protocol.Position{Line: 5, Character: 0})
	if got != "" {
		t.Errorf("expected empty for out-of-range line, got %q", got)
	}
}

// --- extractWord ---

func TestExtractWord_SimpleWord(t *testing.T) {
	got := extractWord("receiver: Square", protocol.Position{Line: 0, Character: 12})
	if got != "Square" {
		t.Errorf("expected 'Square', got %q", got)
	}
}

func TestExtractWord_StopsAtDot(t *testing.T) {
	got := extractWord("receiver: Outer.Inner", protocol.Position{Line: 0, Character: 18})
	if got != "Inner" {
		t.Errorf("expected 'Inner', got %q", got)
	}
}

func TestExtractWord_AtSpace(t *testing.T) {
	got := extractWord("a  b", protocol.Position{Line: 0, Character: 2})
	if got != "" {
		t.Errorf("expected empty at space, got %q", got)
	}
}

func TestExtractWord_EmptyLine(t *testing.T) {
	got := extractWord("", protocol.Position{Line: 0, Character: 0})
	if got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
