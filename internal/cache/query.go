package cache

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/skaji/gql/internal/config"
	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/extract"
	"github.com/skaji/gql/internal/rules"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/watch"
)

// SchemaSource publishes schema builds.
type SchemaSource interface {
	Snapshot() *SchemaSnapshot
	Subscribe(fn func(*SchemaSnapshot))
}

// ParsedSubDocument is one document extracted from a query file. Exactly
// one of AST and Err is set.
type ParsedSubDocument struct {
	Doc extract.Document
	AST *ast.QueryDocument
	Err *diag.Diagnostic
}

// QuerySnapshot is one completed validation of every query file.
type QuerySnapshot struct {
	Version uint64
	// Schema is the schema the files were validated against, extended with
	// the target's preset directives.
	Schema      *schema.Schema
	Diagnostics []diag.Diagnostic
}

type queryFile struct {
	docs  []ParsedSubDocument
	diags []diag.Diagnostic
}

// QueryCache holds the parsed documents of one query target.
type QueryCache struct {
	target  *config.Target
	schemas SchemaSource
	opts    options
	ready   readiness

	mu      sync.Mutex
	files   map[string]*queryFile
	base    *SchemaSnapshot
	schema  *schema.Schema
	version uint64
	subs    []func(*QuerySnapshot)

	snap atomic.Pointer[QuerySnapshot]
}

// NewQueryCache returns an empty cache for target. It revalidates every
// file whenever schemas publishes a new build.
func NewQueryCache(target *config.Target, schemas SchemaSource, opts ...Option) *QueryCache {
	c := &QueryCache{
		target:  target,
		schemas: schemas,
		opts:    newOptions(opts),
		ready:   newReadiness(),
		files:   make(map[string]*queryFile),
	}
	if schemas != nil {
		schemas.Subscribe(c.schemaChanged)
	}
	return c
}

// Target returns the target the cache serves.
func (c *QueryCache) Target() *config.Target { return c.target }

// Snapshot returns the last completed validation, or nil before the first
// one.
func (c *QueryCache) Snapshot() *QuerySnapshot {
	return c.snap.Load()
}

// Schema returns the extended schema of the last snapshot, or nil.
func (c *QueryCache) Schema() *schema.Schema {
	if snap := c.snap.Load(); snap != nil {
		return snap.Schema
	}
	return nil
}

// Diagnostics returns the diagnostics of the last completed validation.
func (c *QueryCache) Diagnostics() []diag.Diagnostic {
	if snap := c.snap.Load(); snap != nil {
		return slices.Clone(snap.Diagnostics)
	}
	return nil
}

// Ready is closed once the first batch has been applied.
func (c *QueryCache) Ready() <-chan struct{} {
	return c.ready.ch
}

// Subscribe registers fn to run after every published validation.
func (c *QueryCache) Subscribe(fn func(*QuerySnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// ApplyBatch re-extracts and re-parses the files that exist, forgets the
// ones that do not, validates what changed and publishes the result. A file
// whose extraction breaks an invariant is reported and dropped.
func (c *QueryCache) ApplyBatch(_ context.Context, batch []watch.Entry) {
	span := c.opts.tracer.Start("apply", batchAttrs("query", batch)...)
	defer span.End()
	defer c.ready.mark()

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := make(map[string]bool, len(batch))
	for _, e := range batch {
		delete(c.files, e.Path)
		if !e.Exists {
			continue
		}
		f, err := c.parseFile(e.Path)
		if err != nil {
			c.opts.report(err)
			continue
		}
		c.files[e.Path] = f
		changed[e.Path] = true
	}
	all := c.useSchema(c.currentSchema())
	c.publish(all, changed)
}

func (c *QueryCache) schemaChanged(snap *SchemaSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.useSchema(snap) {
		c.publish(true, nil)
	}
}

func (c *QueryCache) currentSchema() *SchemaSnapshot {
	if c.schemas == nil {
		return nil
	}
	return c.schemas.Snapshot()
}

// useSchema switches to snap and reports whether every file needs to be
// validated again.
func (c *QueryCache) useSchema(snap *SchemaSnapshot) bool {
	if snap == c.base {
		return false
	}
	c.base = snap
	c.schema = nil
	if snap == nil || snap.Schema == nil {
		return true
	}
	s, err := c.target.Extend(snap.Schema)
	if err != nil {
		c.opts.report(err)
		s = snap.Schema
	}
	c.schema = s
	return true
}

// publish validates the files selected by all and changed, then swaps the
// snapshot. Nothing is committed if validation fails.
func (c *QueryCache) publish(all bool, changed map[string]bool) {
	results, err := c.validateFiles(all, changed)
	if err != nil {
		c.opts.report(err)
		return
	}
	var diags []diag.Diagnostic
	for _, path := range slices.Sorted(maps.Keys(c.files)) {
		f := c.files[path]
		if d, ok := results[path]; ok {
			f.diags = d
		}
		diags = append(diags, f.diags...)
	}
	diag.Sort(diags)

	c.version++
	snap := &QuerySnapshot{Version: c.version, Schema: c.schema, Diagnostics: diags}
	c.snap.Store(snap)
	c.opts.logger.Debug("queries validated", "version", snap.Version, "files", len(c.files), "revalidated", len(results), "diagnostics", len(diags))
	for _, fn := range c.subs {
		fn(snap)
	}
}

func (c *QueryCache) validateFiles(all bool, changed map[string]bool) (results map[string][]diag.Diagnostic, err error) {
	defer recovered("QueryCache.validate", &err)

	results = make(map[string][]diag.Diagnostic)
	for path, f := range c.files {
		if all || changed[path] {
			results[path] = c.validate(path, f.docs)
		}
	}
	return results, nil
}

// validate runs the target's rules over every parsed document of one file.
// The walk annotates the ASTs, so callers hold c.mu or own docs.
func (c *QueryCache) validate(path string, docs []ParsedSubDocument) []diag.Diagnostic {
	span := c.opts.tracer.Start("validate", "path", path, "documents", len(docs))
	defer span.End()

	var out []diag.Diagnostic
	for _, d := range docs {
		if d.Err != nil {
			out = append(out, *d.Err)
			continue
		}
		ds := rules.ValidateQuery(c.schema, d.AST, path, c.target.Rules.Query)
		mapLocations(ds, d.Doc.ToSource)
		out = append(out, ds...)
	}
	return out
}

// Check parses and validates text as the content of path against the
// current schema, without changing the cache.
func (c *QueryCache) Check(path, text string) ([]diag.Diagnostic, error) {
	docs, err := c.parse(source.New(path, text))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.useSchema(c.currentSchema())
	out := c.validate(path, docs)
	diag.Sort(out)
	return out, nil
}

func (c *QueryCache) parseFile(path string) (*queryFile, error) {
	src, err := c.opts.readSource(path)
	if err != nil {
		d := readError(path, err)
		return &queryFile{docs: []ParsedSubDocument{{Err: &d}}}, nil
	}
	docs, err := c.parse(src)
	if err != nil {
		return nil, err
	}
	return &queryFile{docs: docs}, nil
}

// parse extracts the documents of src and parses each one. Syntax errors
// are mapped back to file positions.
func (c *QueryCache) parse(src source.Source) ([]ParsedSubDocument, error) {
	docs, err := extract.Extract(src, c.target.Parser, c.opts.tracer)
	if err != nil {
		return nil, err
	}
	out := make([]ParsedSubDocument, 0, len(docs))
	for _, d := range docs {
		span := c.opts.tracer.Start("parse", "path", src.Path, "side", "query")
		doc, perr := parser.ParseQuery(&ast.Source{Name: src.Path, Input: d.Text})
		span.End()
		if perr != nil {
			e := diag.Syntax(perr, src.Path)
			if e == nil {
				d := diag.Errorf(nil, "Syntax Error: %v", perr)
				e = &d
			}
			ds := []diag.Diagnostic{*e}
			mapLocations(ds, d.ToSource)
			out = append(out, ParsedSubDocument{Doc: d, Err: &ds[0]})
			continue
		}
		out = append(out, ParsedSubDocument{Doc: d, AST: doc})
	}
	return out, nil
}
