// Package lsp serves declaration units to editors over the Language Server
// Protocol: diagnostics on open and change, hover, completion and
// go-to-definition for classes, properties and extensions.
package lsp

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/driver"
	"github.com/chazu/memberkit/unit"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "memberkit-lsp"

const maxItems = 100

var log = commonlog.GetLogger("memberkit.lsp")

// document is the last analysis of an open file.
type document struct {
	text   string
	result *driver.Result // nil when the unit does not parse
}

// Server analyzes open units with the driver.
type Server struct {
	opts driver.Options

	mu   sync.Mutex
	docs map[string]*document // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// New creates a server that compiles with opts.
func New(opts driver.Options) *Server {
	s := &Server{
		opts:    opts,
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the server on stdio. Blocks until the client disconnects.
func (s *Server) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "memberkit LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	change, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	s.update(ctx, params.TextDocument.URI, change.Text)
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *Server) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	res, diagnostics := analyze(text, s.opts)

	s.mu.Lock()
	s.docs[string(uri)] = &document{text: text, result: res}
	s.mu.Unlock()

	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func (s *Server) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil || doc.result == nil {
		return nil, nil
	}
	return complete(doc.result, extractPrefix(doc.text, params.Position)), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil || doc.result == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc.result, word), nil
}

func (s *Server) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil || doc.result == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	if locs := definition(params.TextDocument.URI, doc.result, word); len(locs) > 0 {
		return locs, nil
	}
	return nil, nil
}

// analyze parses and compiles text. The result is nil when the text is not
// a well-formed unit. Diagnostics is never nil, so publishing it clears
// stale markers.
func analyze(text string, opts driver.Options) (*driver.Result, []protocol.Diagnostic) {
	diagnostics := []protocol.Diagnostic{}

	u, err := unit.Parse([]byte(text))
	if err != nil {
		return nil, append(diagnostics, diagnostic(unit.LineOf(err), err.Error()))
	}

	res, err := driver.Compile(u, opts)
	for _, d := range driver.Diagnostics(err) {
		diagnostics = append(diagnostics, diagnostic(d.Line, d.Err.Error()))
	}
	return res, diagnostics
}

// diagnostic converts a 1-based line to an error marker. Line 0 marks the
// top of the document.
func diagnostic(line int, msg string) protocol.Diagnostic {
	var l protocol.UInteger
	if line > 0 {
		l = protocol.UInteger(line - 1)
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: l, Character: 0},
			End:   protocol.Position{Line: l, Character: 0},
		},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

func complete(res *driver.Result, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		key := fmt.Sprintf("%d:%s", kind, label)
		if seen[key] || len(items) >= maxItems || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[key] = true
		name := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	for _, c := range res.Classes {
		add(c.Decl.Name, protocol.CompletionItemKindClass, c.Decl.Kind.String()+" class")
		for _, n := range c.Names {
			p, _ := c.Members.Property(n.Property)
			add(n.Property, protocol.CompletionItemKindProperty,
				fmt.Sprintf("%s: %s (%s)", c.Decl.Name, p.Type, accessorNames(n.Names.Getter, n.Names.Setter)))
		}
		for _, m := range c.Members.Methods() {
			add(m.Name, protocol.CompletionItemKindMethod, c.Decl.Name+"."+m.Name+paramList(m.Params))
		}
	}
	for _, ext := range res.Extensions.All() {
		kind := protocol.CompletionItemKindFunction
		if ext.Kind == decl.ExtProperty {
			kind = protocol.CompletionItemKindProperty
		}
		add(ext.Name, kind, "extension on "+ext.Receiver.String())
	}
	return items
}

// findClass matches a qualified or simple class name.
func findClass(res *driver.Result, word string) *driver.Class {
	if c, ok := res.Class(word); ok {
		return c
	}
	for _, c := range res.Classes {
		if c.Decl.SimpleName() == word {
			return c
		}
	}
	return nil
}

func hover(res *driver.Result, word string) *protocol.Hover {
	var b strings.Builder
	if c := findClass(res, word); c != nil {
		writeClass(&b, c)
	} else {
		writeMember(&b, res, word)
	}
	if b.Len() == 0 {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func writeClass(b *strings.Builder, c *driver.Class) {
	ms := c.Members
	fmt.Fprintf(b, "**%s** (%s class)", ms.Class(), ms.Kind())
	if sup := ms.Supertypes(); len(sup) > 0 {
		fmt.Fprintf(b, " : %s", strings.Join(sup, ", "))
	}
	b.WriteString("\n\n")
	if c.Frame.RequiresEnclosing {
		fmt.Fprintf(b, "Requires an enclosing `%s` (`%s`).\n\n", c.Frame.EnclosingClass, c.Frame.Qualifier)
	}

	var params []string
	for _, p := range ms.Constructor().Params {
		s := p.Name + ": " + p.Type.String()
		if p.Promotion != decl.PromoteNone {
			s = p.Promotion.String() + " " + s
		}
		if p.Optional() {
			s += " = …"
		}
		params = append(params, s)
	}
	fmt.Fprintf(b, "`%s(%s)`\n\n", ms.Class(), strings.Join(params, ", "))

	if props := ms.Properties(); len(props) > 0 {
		b.WriteString("| property | type | kind | interop |\n|---|---|---|---|\n")
		for i, p := range props {
			storage := "stored"
			if !p.HasBackingField() {
				storage = "computed"
			}
			interop := ""
			if i < len(c.Names) && c.Names[i].Property == p.Name {
				interop = accessorNames(c.Names[i].Names.Getter, c.Names[i].Names.Setter)
			}
			fmt.Fprintf(b, "| %s | %s | %s, %s | %s |\n", p.Name, p.Type, p.Mutability, storage, interop)
		}
		b.WriteString("\n")
	}

	var methods []string
	for _, m := range ms.Methods() {
		methods = append(methods, m.Name+paramList(m.Params))
	}
	for _, m := range ms.Companion() {
		methods = append(methods, "companion "+m.Name)
	}
	if len(methods) > 0 {
		b.WriteString("Members: `" + strings.Join(methods, "`, `") + "`\n")
	}
}

// writeMember lists every class property and extension called word.
func writeMember(b *strings.Builder, res *driver.Result, word string) {
	var lines []string
	for _, c := range res.Classes {
		for _, n := range c.Names {
			if n.Property != word {
				continue
			}
			p, _ := c.Members.Property(word)
			lines = append(lines, fmt.Sprintf("- `%s.%s: %s` (%s; %s)",
				c.Decl.Name, word, p.Type, p.Mutability, accessorNames(n.Names.Getter, n.Names.Setter)))
		}
		if m, ok := c.Members.Method(word); ok {
			lines = append(lines, fmt.Sprintf("- `%s.%s%s`", c.Decl.Name, m.Name, paramList(m.Params)))
		}
	}
	for _, ext := range res.Extensions.All() {
		if ext.Name == word {
			lines = append(lines, fmt.Sprintf("- extension %s `%s%s`", ext.Kind, ext.QualifiedName(), ext.Signature()))
		}
	}
	if len(lines) == 0 {
		return
	}
	sort.Strings(lines)
	fmt.Fprintf(b, "**%s**\n\n%s\n", word, strings.Join(lines, "\n"))
}

func definition(uri protocol.DocumentUri, res *driver.Result, word string) []protocol.Location {
	var locations []protocol.Location
	at := func(line int) {
		if line <= 0 {
			return
		}
		l := protocol.UInteger(line - 1)
		locations = append(locations, protocol.Location{
			URI: uri,
			Range: protocol.Range{
				Start: protocol.Position{Line: l, Character: 0},
				End:   protocol.Position{Line: l, Character: 0},
			},
		})
	}

	if c := findClass(res, word); c != nil {
		at(c.Line)
		return locations
	}
	for i, ext := range res.Unit.Extensions {
		if ext.Name == word {
			at(res.Unit.ExtensionLine(i))
		}
	}
	return locations
}

func accessorNames(getter, setter string) string {
	if setter == "" {
		return getter
	}
	return getter + " / " + setter
}

func paramList(ps []decl.Param) string {
	var parts []string
	for _, p := range ps {
		parts = append(parts, p.Name+": "+p.Type.String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// --- Text extraction helpers ---

// extractPrefix returns the name fragment before the cursor for completion.
// Dots are kept so qualified class names complete.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the (possibly
	// qualified) identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '.' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	// Find end
	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
