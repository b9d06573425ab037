package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/config"
	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/rules"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/watch"
)

const viewerSchema = `type Query { viewer: Viewer }
type Viewer { name: String }
`

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func created(paths ...string) []watch.Entry {
	out := make([]watch.Entry, len(paths))
	for i, p := range paths {
		out[i] = watch.Entry{Path: p, Exists: true}
	}
	return out
}

func removed(paths ...string) []watch.Entry {
	out := make([]watch.Entry, len(paths))
	for i, p := range paths {
		out[i] = watch.Entry{Path: p}
	}
	return out
}

func queryTarget(t *testing.T, def grammar.Definition) *config.Target {
	t.Helper()
	set, err := rules.Resolve(rules.SideQuery, rules.Config{
		"FieldsOnCorrectType":   diag.SeverityError,
		"KnownTypeNames":        diag.SeverityError,
		"RequiredOperationName": diag.SeverityWarn,
	})
	require.NoError(t, err)
	if def == nil {
		def = grammar.NewGraphQL(grammar.Options{})
	}
	return &config.Target{Side: rules.SideQuery, Parser: def, Rules: set}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestSchemaCacheUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.graphql", "type Query { viewer: xViewer }\n")

	c := NewSchemaCache(nil)
	assert.False(t, isClosed(c.Ready()))
	assert.Nil(t, c.Snapshot())

	c.ApplyBatch(context.Background(), created(path))
	assert.True(t, isClosed(c.Ready()))

	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, `Unknown type "xViewer".`, diags[0].Message)
	require.Len(t, diags[0].Locations, 1)
	assert.Equal(t, path, diags[0].Locations[0].Path)
	assert.Equal(t, source.Position{Line: 1, Column: 22}, diags[0].Locations[0].Start)
	assert.Equal(t, uint64(1), c.Snapshot().Version)
}

func TestSchemaCacheRecreate(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.graphql", "type Query { viewer: Viewer }\n")
	b := writeFile(t, dir, "b.graphql", "type Viewer { team: Team }\n")

	c := NewSchemaCache(nil)
	c.ApplyBatch(context.Background(), created(a, b))
	before := c.Diagnostics()
	require.Len(t, before, 1)

	c.ApplyBatch(context.Background(), removed(b))
	assert.NotNil(t, c.Schema().Type("Query"))
	assert.Nil(t, c.Schema().Type("Viewer"))

	c.ApplyBatch(context.Background(), created(b))
	if diff := cmp.Diff(before, c.Diagnostics()); diff != "" {
		t.Errorf("diagnostics after recreate (-before +after):\n%s", diff)
	}
	assert.Equal(t, uint64(3), c.Snapshot().Version)
}

func TestSchemaCacheReadError(t *testing.T) {
	c := NewSchemaCache(nil, WithReadFile(func(string) ([]byte, error) {
		return nil, errors.New("permission denied")
	}))
	c.ApplyBatch(context.Background(), created("/p/schema.graphql"))

	diags := c.Diagnostics()
	require.NotEmpty(t, diags)
	var found bool
	for _, d := range diags {
		if len(d.Locations) > 0 && d.Locations[0].Path == "/p/schema.graphql" {
			found = true
			assert.Contains(t, d.Message, "permission denied")
		}
	}
	assert.True(t, found, "no diagnostic for the unreadable file: %v", diags)
}

func TestSchemaCacheFailedRebuildKeepsSnapshot(t *testing.T) {
	boom := schema.Rule{
		Name:     "Boom",
		Severity: diag.SeverityError,
		Check: func(w *schema.Walker, _ *schema.Reporter) {
			w.OnDefinition(func(def *ast.Definition) {
				if def.Name == "Boom" {
					panic("boom")
				}
			})
		},
	}
	var (
		mu     sync.Mutex
		failed []error
	)
	c := NewSchemaCache([]schema.Rule{boom}, WithErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, err)
	}))

	dir := t.TempDir()
	good := writeFile(t, dir, "a.graphql", viewerSchema)
	c.ApplyBatch(context.Background(), created(good))
	first := c.Snapshot()
	require.NotNil(t, first)

	bad := writeFile(t, dir, "b.graphql", "type Boom { id: ID }\n")
	c.ApplyBatch(context.Background(), created(bad))

	assert.Same(t, first, c.Snapshot())
	require.Len(t, failed, 1)
	assert.True(t, errs.IsInvariant(failed[0]))
	assert.Contains(t, failed[0].Error(), "boom")
}

func TestSchemaCacheCheck(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.graphql", viewerSchema)
	c := NewSchemaCache(nil)
	c.ApplyBatch(context.Background(), created(path))
	require.Empty(t, c.Diagnostics())

	diags := c.Check(path, "type Query { viewer: Nope }\n")
	require.Len(t, diags, 1)
	assert.Equal(t, `Unknown type "Nope".`, diags[0].Message)

	assert.Empty(t, c.Diagnostics())
	assert.NotNil(t, c.Schema().Type("Viewer"))
}

func TestSchemaCacheSubscribe(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.graphql", viewerSchema)
	c := NewSchemaCache(nil)
	var versions []uint64
	c.Subscribe(func(snap *SchemaSnapshot) { versions = append(versions, snap.Version) })

	c.ApplyBatch(context.Background(), created(path))
	c.ApplyBatch(context.Background(), created(path))
	assert.Equal(t, []uint64{1, 2}, versions)
}

func newQuerySetup(t *testing.T, def grammar.Definition) (*SchemaCache, *QueryCache, string) {
	t.Helper()
	dir := t.TempDir()
	schemas := NewSchemaCache(nil)
	schemas.ApplyBatch(context.Background(), created(writeFile(t, dir, "schema.graphql", viewerSchema)))
	return schemas, NewQueryCache(queryTarget(t, def), schemas), dir
}

func TestQueryCacheValidates(t *testing.T) {
	_, c, dir := newQuerySetup(t, nil)
	path := writeFile(t, dir, "q.graphql", "query Q {\n  viewer { nam }\n}\n")

	c.ApplyBatch(context.Background(), created(path))
	require.True(t, isClosed(c.Ready()))

	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, `Cannot query field "nam" on type "Viewer". Did you mean "name"? (FieldsOnCorrectType)`, diags[0].Message)
	assert.Equal(t, diag.SeverityError, diags[0].Severity)
	require.Len(t, diags[0].Locations, 1)
	assert.Equal(t, source.Location{
		Path:  path,
		Start: source.Position{Line: 2, Column: 12},
		End:   diags[0].Locations[0].End,
	}, diags[0].Locations[0])
}

func TestQueryCacheRecreate(t *testing.T) {
	_, c, dir := newQuerySetup(t, nil)
	q1 := writeFile(t, dir, "q1.graphql", "query A { viewer { nam } }\n")
	q2 := writeFile(t, dir, "q2.graphql", "{ viewer { name } }\n")

	c.ApplyBatch(context.Background(), created(q1, q2))
	before := c.Diagnostics()
	require.Len(t, before, 2)

	c.ApplyBatch(context.Background(), removed(q1))
	require.Len(t, c.Diagnostics(), 1)

	c.ApplyBatch(context.Background(), created(q1))
	if diff := cmp.Diff(before, c.Diagnostics()); diff != "" {
		t.Errorf("diagnostics after recreate (-before +after):\n%s", diff)
	}
}

func TestQueryCacheRevalidatesOnSchemaChange(t *testing.T) {
	schemas, c, dir := newQuerySetup(t, nil)
	path := writeFile(t, dir, "q.graphql", "query Q { viewer { nickname } }\n")
	c.ApplyBatch(context.Background(), created(path))
	require.Len(t, c.Diagnostics(), 1)
	first := c.Schema()

	schemaPath := filepath.Join(dir, "schema.graphql")
	writeFile(t, dir, "schema.graphql", viewerSchema+"extend type Viewer { nickname: String }\n")
	schemas.ApplyBatch(context.Background(), created(schemaPath))

	assert.Empty(t, c.Diagnostics())
	assert.NotSame(t, first, c.Schema())
	assert.NotNil(t, c.Schema().Type("Viewer").Fields.ForName("nickname"))
}

func TestQueryCacheEmbedded(t *testing.T) {
	def := grammar.MustEmbedded("embedded-queries", "gql`", "`", grammar.Options{})
	_, c, dir := newQuerySetup(t, def)
	path := writeFile(t, dir, "app.js", "const a = gql`query A { viewer { name } }`;\nconst b = gql`\n  query B { viewer { nam } }\n`;\nconst c = gql`query C {`;\n")

	c.ApplyBatch(context.Background(), created(path))

	diags := c.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, 3, diags[0].Locations[0].Start.Line)
	assert.Contains(t, diags[0].Message, `"nam"`)
	assert.Equal(t, 5, diags[1].Locations[0].Start.Line)
	assert.Contains(t, diags[1].Message, "Syntax Error")
}

func TestQueryCacheWithoutSchema(t *testing.T) {
	c := NewQueryCache(queryTarget(t, nil), nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "q.graphql", "query Q { viewer { nam } }\nquery {")
	c.ApplyBatch(context.Background(), created(path))

	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "Syntax Error")
	assert.Nil(t, c.Schema())
}

func TestQueryCacheCheck(t *testing.T) {
	_, c, dir := newQuerySetup(t, nil)
	path := writeFile(t, dir, "q.graphql", "query Q { viewer { name } }\n")
	c.ApplyBatch(context.Background(), created(path))
	require.Empty(t, c.Diagnostics())
	version := c.Snapshot().Version

	diags, err := c.Check(path, "{ viewer { nam } }\n")
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, "Operation must have a name. (RequiredOperationName)", diags[0].Message)
	assert.Equal(t, diag.SeverityWarn, diags[0].Severity)
	assert.Contains(t, diags[1].Message, "(FieldsOnCorrectType)")
	assert.Equal(t, diag.SeverityError, diags[1].Severity)

	assert.Empty(t, c.Diagnostics())
	assert.Equal(t, version, c.Snapshot().Version)
}
