// Package service runs the watch loops of a project and answers editor
// commands against the last completed snapshots.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skaji/gql/internal/cache"
	"github.com/skaji/gql/internal/config"
	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/trace"
	"github.com/skaji/gql/internal/watch"
)

const defaultErrorBuffer = 64

// Option configures a Service.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	backend     string
	debounce    time.Duration
	errorBuffer int
	trace       bool
	onChange    func()
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBackend overrides the watch backend of the config.
func WithBackend(backend string) Option {
	return func(o *options) { o.backend = backend }
}

// WithDebounce sets the batching window of the watchers.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithErrorBuffer sets how many errors Errors holds before dropping.
func WithErrorBuffer(n int) Option {
	return func(o *options) { o.errorBuffer = n }
}

// WithTrace turns stage tracing on regardless of the config.
func WithTrace(on bool) Option {
	return func(o *options) { o.trace = on }
}

// WithChangeHandler sets fn to run after any cache publishes a snapshot. fn
// runs on a watch goroutine and must not block.
func WithChangeHandler(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}

// Service owns one schema cache and one query cache per query target.
type Service struct {
	cfg    *config.Resolved
	opts   options
	logger *slog.Logger
	tracer *trace.Tracer

	schema  *cache.SchemaCache
	queries []*cache.QueryCache

	errors  chan error
	ready   chan struct{}
	started atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	watchers []watch.Watcher
}

// Open loads the config found from dir and returns a service for it.
func Open(dir string, opts ...Option) (*Service, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// New returns a service for cfg. It does not touch the file system until
// Start.
func New(cfg *config.Resolved, opts ...Option) (*Service, error) {
	if cfg == nil || cfg.Schema == nil {
		return nil, errs.Config(errs.ErrInvalidConfig, "service", "New", "no schema target")
	}
	o := options{
		logger:      slog.Default(),
		debounce:    watch.DefaultDebounce,
		errorBuffer: defaultErrorBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == "" {
		o.backend = cfg.Watch.Backend
	}

	s := &Service{
		cfg:    cfg,
		opts:   o,
		logger: o.logger,
		tracer: trace.Enabled(cfg.Trace || o.trace, o.logger),
		errors: make(chan error, max(o.errorBuffer, 1)),
		ready:  make(chan struct{}),
	}

	s.schema = cache.NewSchemaCache(cfg.Schema.Rules.Schema, s.cacheOptions("schema")...)
	for i, t := range cfg.Query {
		s.queries = append(s.queries, cache.NewQueryCache(t, s.schema, s.cacheOptions("query", "target", i)...))
	}
	if o.onChange != nil {
		s.schema.Subscribe(func(*cache.SchemaSnapshot) { o.onChange() })
		for _, q := range s.queries {
			q.Subscribe(func(*cache.QuerySnapshot) { o.onChange() })
		}
	}
	return s, nil
}

func (s *Service) cacheOptions(side string, attrs ...any) []cache.Option {
	return []cache.Option{
		cache.WithLogger(s.logger.With(append([]any{"side", side}, attrs...)...)),
		cache.WithTracer(s.tracer),
		cache.WithErrorHandler(s.report),
	}
}

// Config returns the resolved config the service runs with.
func (s *Service) Config() *config.Resolved { return s.cfg }

// Tracer returns the stage tracer, or nil when tracing is off.
func (s *Service) Tracer() *trace.Tracer { return s.tracer }

// Errors receives rebuild failures, invariant errors and recovered command
// panics. When nobody reads it, errors past the buffer are logged and
// dropped.
func (s *Service) Errors() <-chan error { return s.errors }

// Ready is closed once every target has applied its initial listing.
func (s *Service) Ready() <-chan struct{} { return s.ready }

func (s *Service) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *Service) report(err error) {
	if err == nil {
		return
	}
	select {
	case s.errors <- err:
	default:
		s.logger.Warn("error channel full, dropping error", "error", err)
	}
}

type target struct {
	name   string
	target *config.Target
	cache  cache.Cache
}

func (s *Service) targets() []target {
	out := []target{{name: "schema", target: s.cfg.Schema, cache: s.schema}}
	for i, q := range s.queries {
		out = append(out, target{name: "query", target: s.cfg.Query[i], cache: q})
	}
	return out
}

// Start lists and watches every target, then blocks until each one has
// applied its initial listing or ctx is done. The watch loops keep running
// until ctx is done or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("service: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.group = g
	s.mu.Unlock()

	targets := s.targets()
	for _, t := range targets {
		w, err := watch.New(s.opts.backend,
			watch.WithLogger(s.logger.With("watch", t.name)),
			watch.WithDebounce(s.opts.debounce),
			watch.WithInterval(s.cfg.Watch.Interval),
		)
		if err != nil {
			s.Close()
			return errs.Config(err, "service", "Start", "watch backend")
		}
		s.mu.Lock()
		s.watchers = append(s.watchers, w)
		s.mu.Unlock()

		batches, err := w.Watch(gctx, s.cfg.Dir, t.target.Match)
		if err != nil {
			s.Close()
			return err
		}
		g.Go(func() error {
			s.run(gctx, t, batches)
			return nil
		})
	}

	for _, t := range targets {
		select {
		case <-t.cache.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	close(s.ready)
	s.logger.Debug("service ready", "dir", s.cfg.Dir, "targets", len(targets))
	return nil
}

// run applies batches until the watcher closes its channel. Files claimed by
// another target are left to it.
func (s *Service) run(ctx context.Context, t target, batches <-chan []watch.Entry) {
	for batch := range batches {
		owned := batch[:0:0]
		for _, e := range batch {
			if s.cfg.ForFile(e.Path) == t.target {
				owned = append(owned, e)
			}
		}
		s.logger.Debug("batch", "target", t.name, "files", len(batch), "owned", len(owned))
		t.cache.ApplyBatch(ctx, owned)
	}
}

// Wait blocks until every watch loop has returned.
func (s *Service) Wait() error {
	s.mu.Lock()
	g := s.group
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Close stops the watchers and waits for the watch loops.
func (s *Service) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var errList []error
	for _, w := range watchers {
		errList = append(errList, w.Close())
	}
	errList = append(errList, s.Wait())
	return errors.Join(errList...)
}
