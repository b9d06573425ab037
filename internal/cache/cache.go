// Package cache keeps the parse results of every watched file current. Each
// cache consumes batches of file changes, rebuilds once per batch and
// publishes an immutable snapshot that readers load without locking.
package cache

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/trace"
	"github.com/skaji/gql/internal/watch"
)

// Cache is what the service drives from a watch loop.
type Cache interface {
	ApplyBatch(ctx context.Context, batch []watch.Entry)
	Ready() <-chan struct{}
	Diagnostics() []diag.Diagnostic
}

// Option configures a cache.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	tracer  *trace.Tracer
	onError func(error)
	read    func(path string) ([]byte, error)
}

// WithLogger sets the logger for batch and failure logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the stage tracer.
func WithTracer(tr *trace.Tracer) Option {
	return func(o *options) { o.tracer = tr }
}

// WithErrorHandler receives rebuild failures and invariant errors. It must
// not block.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithReadFile replaces os.ReadFile.
func WithReadFile(read func(path string) ([]byte, error)) Option {
	return func(o *options) {
		if read != nil {
			o.read = read
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), read: os.ReadFile}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) report(err error) {
	if err == nil {
		return
	}
	o.logger.Error("cache failure", "error", err, "invariant", errs.IsInvariant(err))
	if o.onError != nil {
		o.onError(err)
	}
}

func (o options) readSource(path string) (source.Source, error) {
	b, err := o.read(path)
	if err != nil {
		return source.Source{Path: path}, err
	}
	return source.New(path, string(b)), nil
}

// readiness closes its channel once.
type readiness struct {
	once sync.Once
	ch   chan struct{}
}

func newReadiness() readiness {
	return readiness{ch: make(chan struct{})}
}

func (r *readiness) mark() {
	r.once.Do(func() { close(r.ch) })
}

// recovered turns a panic in a rebuild into an invariant error.
func recovered(op string, err *error) {
	if r := recover(); r != nil {
		*err = errs.Invariant("cache", op, "%v", r)
	}
}

// mapLocations rewrites every location of ds with fn.
func mapLocations(ds []diag.Diagnostic, fn func(source.Position) source.Position) {
	for i := range ds {
		locs := ds[i].Locations
		if locs == nil {
			continue
		}
		mapped := make([]source.Location, len(locs))
		for j, l := range locs {
			mapped[j] = source.Location{Path: l.Path, Start: fn(l.Start), End: fn(l.End)}
		}
		ds[i].Locations = mapped
	}
}

func batchAttrs(side string, batch []watch.Entry) []any {
	removed := 0
	for _, e := range batch {
		if !e.Exists {
			removed++
		}
	}
	return []any{"side", side, "files", len(batch), "removed", removed}
}

func readError(path string, err error) diag.Diagnostic {
	return diag.Errorf([]source.Location{diag.At(path, source.Position{Line: 1, Column: 1})}, "%v", err)
}
