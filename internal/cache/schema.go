package cache

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/watch"
)

// SchemaSnapshot is one completed schema build.
type SchemaSnapshot struct {
	Version     uint64
	Schema      *schema.Schema
	Diagnostics []diag.Diagnostic
}

// SchemaCache holds the parsed schema files and the schema built from them.
type SchemaCache struct {
	rules []schema.Rule
	opts  options
	ready readiness

	mu      sync.Mutex
	files   map[string]schema.ParsedDocument
	version uint64
	subs    []func(*SchemaSnapshot)

	snap atomic.Pointer[SchemaSnapshot]
}

// NewSchemaCache returns an empty cache that validates with rules.
func NewSchemaCache(rules []schema.Rule, opts ...Option) *SchemaCache {
	return &SchemaCache{
		rules: rules,
		opts:  newOptions(opts),
		ready: newReadiness(),
		files: make(map[string]schema.ParsedDocument),
	}
}

// Snapshot returns the last completed build, or nil before the first one.
func (c *SchemaCache) Snapshot() *SchemaSnapshot {
	return c.snap.Load()
}

// Schema returns the last built schema, or nil.
func (c *SchemaCache) Schema() *schema.Schema {
	if snap := c.snap.Load(); snap != nil {
		return snap.Schema
	}
	return nil
}

// Diagnostics returns the diagnostics of the last completed build.
func (c *SchemaCache) Diagnostics() []diag.Diagnostic {
	if snap := c.snap.Load(); snap != nil {
		return slices.Clone(snap.Diagnostics)
	}
	return nil
}

// Ready is closed once the first batch has been applied.
func (c *SchemaCache) Ready() <-chan struct{} {
	return c.ready.ch
}

// Subscribe registers fn to run after every published build. fn runs on
// the goroutine that applied the batch and must not call ApplyBatch.
func (c *SchemaCache) Subscribe(fn func(*SchemaSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// ApplyBatch re-parses the files that exist, forgets the ones that do not,
// rebuilds the schema once and publishes it. A failed rebuild is reported
// and leaves the previous snapshot in place. A started batch always runs to
// completion.
func (c *SchemaCache) ApplyBatch(_ context.Context, batch []watch.Entry) {
	span := c.opts.tracer.Start("apply", batchAttrs("schema", batch)...)
	defer span.End()
	defer c.ready.mark()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range batch {
		if !e.Exists {
			delete(c.files, e.Path)
			continue
		}
		src, err := c.opts.readSource(e.Path)
		if err != nil {
			c.files[e.Path] = schema.Failed(src, err)
			continue
		}
		c.files[e.Path] = schema.Parse(src, c.opts.tracer)
	}

	snap, err := c.rebuild(c.files)
	if err != nil {
		c.opts.report(err)
		return
	}
	c.version++
	snap.Version = c.version
	c.snap.Store(snap)
	c.opts.logger.Debug("schema rebuilt", "version", snap.Version, "files", len(c.files), "diagnostics", len(snap.Diagnostics))
	for _, fn := range c.subs {
		fn(snap)
	}
}

// Check builds the schema as it would be if path held text, without
// changing the cache.
func (c *SchemaCache) Check(path, text string) []diag.Diagnostic {
	c.mu.Lock()
	files := maps.Clone(c.files)
	c.mu.Unlock()

	files[path] = schema.Parse(source.New(path, text), c.opts.tracer)
	snap, err := c.rebuild(files)
	if err != nil {
		c.opts.report(err)
		return nil
	}
	return snap.Diagnostics
}

func (c *SchemaCache) rebuild(files map[string]schema.ParsedDocument) (snap *SchemaSnapshot, err error) {
	defer recovered("SchemaCache.rebuild", &err)

	docs := make([]schema.ParsedDocument, 0, len(files))
	for _, path := range slices.Sorted(maps.Keys(files)) {
		docs = append(docs, files[path])
	}
	s, diags := schema.Build(docs, c.rules, c.opts.tracer)
	return &SchemaSnapshot{Schema: s, Diagnostics: diags}, nil
}
