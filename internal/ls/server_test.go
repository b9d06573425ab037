package ls

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/config"
	"github.com/skaji/gql/internal/query"
	"github.com/skaji/gql/internal/service"
)

const (
	testSchema = "type Query { user: User }\ntype User { name: String }\n"
	testQuery  = "{ user { name } }\n"
	testConfig = `schema:
  files: schema/**/*.graphql
query:
  files:
    - match: queries/**/*.graphql
watch:
  backend: none
`
)

type testServer struct {
	*Server
	dir    string
	schema string
	query  string

	mu        sync.Mutex
	published []protocol.PublishDiagnosticsParams
}

func writeTestFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// newTestServer initializes a server on a project with one schema file and
// one query file and waits for the first diagnostics.
func newTestServer(t *testing.T, queryText string) *testServer {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, config.FileName, testConfig)
	ts := &testServer{
		Server: New(service.WithDebounce(time.Millisecond)),
		dir:    dir,
		schema: writeTestFile(t, dir, "schema/schema.graphql", testSchema),
		query:  writeTestFile(t, dir, "queries/a.graphql", queryText),
	}
	context := &glsp.Context{
		Notify: func(method string, params any) {
			if method != string(protocol.ServerTextDocumentPublishDiagnostics) {
				return
			}
			value, ok := params.(protocol.PublishDiagnosticsParams)
			if !ok {
				t.Errorf("unexpected diagnostics params type: %T", params)
				return
			}
			ts.mu.Lock()
			ts.published = append(ts.published, value)
			ts.mu.Unlock()
		},
	}

	rootURI := pathToURI(dir)
	if _, err := ts.initialize(context, &protocol.InitializeParams{RootURI: &rootURI}); err != nil {
		t.Fatalf("initialize error: %v", err)
	}
	if ts.state.service() == nil {
		t.Fatal("expected service to be opened")
	}
	if err := ts.startService(); err != nil {
		t.Fatalf("startService error: %v", err)
	}
	t.Cleanup(ts.stopService)
	return ts
}

// lastFor returns the diagnostics last published for path.
func (ts *testServer) lastFor(path string) ([]protocol.Diagnostic, bool) {
	uri := pathToURI(path)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for i := len(ts.published) - 1; i >= 0; i-- {
		if ts.published[i].URI == uri {
			return ts.published[i].Diagnostics, true
		}
	}
	return nil, false
}

func positionParams(path string, line, character int) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: pathToURI(path)},
		Position:     protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(character)},
	}
}

func TestInitializeSetsStateAndCapabilities(t *testing.T) {
	s := New()
	root := t.TempDir()
	rootURI := pathToURI(root)

	result, err := s.initialize(nil, &protocol.InitializeParams{
		RootURI: &rootURI,
		InitializationOptions: map[string]any{
			"configDir": "app",
		},
	})
	if err != nil {
		t.Fatalf("initialize error: %v", err)
	}

	initResult, ok := result.(protocol.InitializeResult)
	if !ok {
		t.Fatalf("unexpected result type: %T", result)
	}

	opts, ok := initResult.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	if !ok || opts.Change == nil || *opts.Change != protocol.TextDocumentSyncKindIncremental {
		t.Fatalf("expected incremental text sync capabilities")
	}
	if _, ok := initResult.Capabilities.RenameProvider.(*protocol.RenameOptions); !ok {
		t.Fatalf("expected rename options, got %T", initResult.Capabilities.RenameProvider)
	}
	if initResult.ServerInfo == nil || initResult.ServerInfo.Name != ServerName {
		t.Fatalf("unexpected server info: %+v", initResult.ServerInfo)
	}

	s.state.mu.Lock()
	gotRoot := s.state.rootPath
	gotDir := s.state.configDir
	svc := s.state.svc
	s.state.mu.Unlock()

	if gotRoot != filepath.Clean(root) {
		t.Fatalf("expected root %q, got %q", root, gotRoot)
	}
	if want := filepath.Join(root, "app"); gotDir != want {
		t.Fatalf("expected config dir %q, got %q", want, gotDir)
	}
	if svc != nil {
		t.Fatal("expected no service without a config file")
	}
}

func TestRequestsWithoutService(t *testing.T) {
	s := New()
	path := filepath.Join(t.TempDir(), "a.graphql")
	hover, err := s.hover(nil, &protocol.HoverParams{TextDocumentPositionParams: positionParams(path, 0, 0)})
	if err != nil || hover != nil {
		t.Fatalf("expected no hover, got %v, %v", hover, err)
	}
	items, err := s.completion(nil, &protocol.CompletionParams{TextDocumentPositionParams: positionParams(path, 0, 0)})
	if err != nil || items != nil {
		t.Fatalf("expected no completion, got %v, %v", items, err)
	}
	s.publishAllDiagnostics()
}

func TestPublishesDiagnosticsOnStart(t *testing.T) {
	ts := newTestServer(t, "{ user { nam } }\n")

	diags, ok := ts.lastFor(ts.query)
	if !ok || len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %v", diags)
	}
	d := diags[0]
	if !strings.Contains(d.Message, `"nam"`) {
		t.Fatalf("unexpected message %q", d.Message)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Fatalf("expected error severity")
	}
	if d.Source == nil || *d.Source != ServerName {
		t.Fatalf("unexpected source %v", d.Source)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 0, Character: 9},
		End:   protocol.Position{Line: 0, Character: 10},
	}
	if d.Range != want {
		t.Fatalf("expected range %+v, got %+v", want, d.Range)
	}
	if _, ok := ts.lastFor(ts.schema); ok {
		t.Fatal("expected nothing published for a clean schema")
	}
}

func TestDidOpenChangeClosePublishesDiagnostics(t *testing.T) {
	ts := newTestServer(t, testQuery)
	uri := pathToURI(ts.query)

	if err := ts.didOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: "graphql",
			Version:    1,
			Text:       "{ user { nope } }\n",
		},
	}); err != nil {
		t.Fatalf("didOpen error: %v", err)
	}
	if diags, _ := ts.lastFor(ts.query); len(diags) != 1 {
		t.Fatalf("expected diagnostics on didOpen, got %v", diags)
	}

	if err := ts.didChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{
			protocol.TextDocumentContentChangeEventWhole{Text: "{ user { name } }\n"},
		},
	}); err != nil {
		t.Fatalf("didChange error: %v", err)
	}
	if diags, ok := ts.lastFor(ts.query); !ok || len(diags) != 0 {
		t.Fatalf("expected cleared diagnostics on didChange, got %v", diags)
	}

	if err := ts.didOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Version: 3, Text: "{ user { nope } }\n"},
	}); err != nil {
		t.Fatalf("didOpen error: %v", err)
	}
	if err := ts.didClose(nil, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}); err != nil {
		t.Fatalf("didClose error: %v", err)
	}
	if diags, _ := ts.lastFor(ts.query); len(diags) != 0 {
		t.Fatalf("expected disk diagnostics after didClose, got %v", diags)
	}
}

func TestSchemaOverlayKeepsOwnDiagnostics(t *testing.T) {
	ts := newTestServer(t, testQuery)

	if err := ts.didOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     pathToURI(ts.schema),
			Version: 1,
			Text:    "type Query { user: Missing }\n",
		},
	}); err != nil {
		t.Fatalf("didOpen error: %v", err)
	}
	diags, ok := ts.lastFor(ts.schema)
	if !ok || len(diags) != 1 || diags[0].Message != `Unknown type "Missing".` {
		t.Fatalf("unexpected schema diagnostics %v", diags)
	}
}

func TestDidChangeIncrementalUpdatesText(t *testing.T) {
	s := New()
	uri := protocol.DocumentUri("file:///tmp/schema.graphql")
	initial := "type Query {\n  foo: Foo\n}\n"

	s.state.mu.Lock()
	s.state.docs[uri] = initial
	s.state.mu.Unlock()

	err := s.didChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{
			protocol.TextDocumentContentChangeEvent{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 1, Character: 2},
					End:   protocol.Position{Line: 1, Character: 5},
				},
				Text: "bar",
			},
		},
	})
	if err != nil {
		t.Fatalf("didChange error: %v", err)
	}

	s.state.mu.Lock()
	updated := s.state.docs[uri]
	s.state.mu.Unlock()

	if !strings.Contains(updated, "bar: Foo") {
		t.Fatalf("expected updated text, got %q", updated)
	}
}

func TestApplyChangesCountsUTF16(t *testing.T) {
	changes, ok := contentChanges([]any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 4},
				End:   protocol.Position{Line: 0, Character: 5},
			},
			Text: "y",
		},
	})
	if !ok {
		t.Fatal("expected change to decode")
	}
	if got := applyChanges("# 😀x\n", changes); got != "# 😀y\n" {
		t.Fatalf("unexpected text %q", got)
	}
	if _, ok := contentChanges([]any{"bogus"}); ok {
		t.Fatal("expected unknown change to be rejected")
	}
}

func TestHoverHandler(t *testing.T) {
	ts := newTestServer(t, testQuery)

	hover, err := ts.hover(nil, &protocol.HoverParams{TextDocumentPositionParams: positionParams(ts.query, 0, 10)})
	if err != nil {
		t.Fatalf("hover error: %v", err)
	}
	if hover == nil {
		t.Fatal("expected hover result")
	}
	content, ok := hover.Contents.(protocol.MarkupContent)
	if !ok || !strings.Contains(content.Value, "name: String") || !strings.HasPrefix(content.Value, "```graphql\n") {
		t.Fatalf("unexpected hover %+v", hover.Contents)
	}
}

func TestDefinitionHandler(t *testing.T) {
	ts := newTestServer(t, testQuery)

	result, err := ts.definition(nil, &protocol.DefinitionParams{TextDocumentPositionParams: positionParams(ts.query, 0, 3)})
	if err != nil {
		t.Fatalf("definition error: %v", err)
	}
	locs, ok := result.([]protocol.Location)
	if !ok || len(locs) != 1 {
		t.Fatalf("unexpected definition result %#v", result)
	}
	if locs[0].URI != pathToURI(ts.schema) {
		t.Fatalf("unexpected uri %s", locs[0].URI)
	}
	if start := locs[0].Range.Start; start.Line != 0 || start.Character != 13 {
		t.Fatalf("unexpected start %+v", start)
	}
}

func TestCompletionFields(t *testing.T) {
	ts := newTestServer(t, testQuery)
	uri := pathToURI(ts.query)
	ts.state.mu.Lock()
	ts.state.docs[uri] = "{ user { na } }\n"
	ts.state.mu.Unlock()

	result, err := ts.completion(nil, &protocol.CompletionParams{TextDocumentPositionParams: positionParams(ts.query, 0, 11)})
	if err != nil {
		t.Fatalf("completion error: %v", err)
	}
	items, ok := result.([]protocol.CompletionItem)
	if !ok || len(items) == 0 {
		t.Fatalf("unexpected completion result %#v", result)
	}
	item, ok := findCompletionItem(items, "name")
	if !ok {
		t.Fatalf("expected name completion, got %v", completionLabels(items))
	}
	if item.Kind == nil || *item.Kind != protocol.CompletionItemKindField {
		t.Fatalf("expected field kind")
	}
	if item.Detail == nil || *item.Detail != "String" {
		t.Fatalf("unexpected detail %v", item.Detail)
	}
}

func TestCompletionItemsKeepOrder(t *testing.T) {
	items := completionItems([]query.Hint{
		{Text: "User", Kind: query.HintType, Type: "OBJECT"},
		{Text: "old", Kind: query.HintField, Type: "Int", Deprecated: true, Description: "gone"},
		{Text: "query", Kind: query.HintKeyword},
	})
	if got := completionLabels(items); got != "User, old, query" {
		t.Fatalf("unexpected labels %s", got)
	}
	if *items[0].Kind != protocol.CompletionItemKindClass || items[0].Detail != nil {
		t.Fatalf("unexpected type item %+v", items[0])
	}
	if len(items[1].Tags) != 1 || items[1].Tags[0] != protocol.CompletionItemTagDeprecated {
		t.Fatalf("expected deprecated tag")
	}
	if *items[0].SortText >= *items[1].SortText || *items[1].SortText >= *items[2].SortText {
		t.Fatalf("sort text does not keep order")
	}
	if *items[2].Kind != protocol.CompletionItemKindKeyword {
		t.Fatalf("expected keyword kind")
	}
}

func TestReferencesHandler(t *testing.T) {
	ts := newTestServer(t, testQuery)

	params := &protocol.ReferenceParams{
		TextDocumentPositionParams: positionParams(ts.schema, 1, 6),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
	}
	locs, err := ts.references(nil, params)
	if err != nil {
		t.Fatalf("references error: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("expected 2 locations, got %v", locs)
	}

	params.Context.IncludeDeclaration = false
	locs, err = ts.references(nil, params)
	if err != nil {
		t.Fatalf("references error: %v", err)
	}
	if len(locs) != 1 || locs[0].Range.Start.Line != 0 || locs[0].Range.Start.Character != 19 {
		t.Fatalf("unexpected references %v", locs)
	}
}

func TestRenameHandler(t *testing.T) {
	ts := newTestServer(t, testQuery)

	prepared, err := ts.prepareRename(nil, &protocol.PrepareRenameParams{TextDocumentPositionParams: positionParams(ts.schema, 1, 7)})
	if err != nil {
		t.Fatalf("prepareRename error: %v", err)
	}
	r, ok := prepared.(protocol.RangeWithPlaceholder)
	if !ok || r.Placeholder != "User" || r.Range.Start.Character != 5 || r.Range.End.Character != 9 {
		t.Fatalf("unexpected prepareRename result %#v", prepared)
	}

	edit, err := ts.rename(nil, &protocol.RenameParams{
		TextDocumentPositionParams: positionParams(ts.schema, 1, 7),
		NewName:                    "Person",
	})
	if err != nil {
		t.Fatalf("rename error: %v", err)
	}
	if edit == nil || len(edit.Changes[pathToURI(ts.schema)]) != 2 {
		t.Fatalf("unexpected edit %#v", edit)
	}

	if _, err := ts.rename(nil, &protocol.RenameParams{
		TextDocumentPositionParams: positionParams(ts.schema, 1, 7),
		NewName:                    "not a name",
	}); err == nil {
		t.Fatal("expected invalid name error")
	}

	builtin, err := ts.prepareRename(nil, &protocol.PrepareRenameParams{TextDocumentPositionParams: positionParams(ts.schema, 1, 20)})
	if err != nil || builtin != nil {
		t.Fatalf("expected built-in type to be refused, got %#v, %v", builtin, err)
	}
}

func TestShutdownAndSetTrace(t *testing.T) {
	s := New()
	if err := s.setTrace(nil, &protocol.SetTraceParams{Value: protocol.TraceValueVerbose}); err != nil {
		t.Fatalf("setTrace error: %v", err)
	}
	if err := s.shutdown(nil); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func completionLabels(items []protocol.CompletionItem) string {
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	return strings.Join(labels, ", ")
}

func findCompletionItem(items []protocol.CompletionItem, label string) (protocol.CompletionItem, bool) {
	for _, item := range items {
		if item.Label == label {
			return item, true
		}
	}
	return protocol.CompletionItem{}, false
}
