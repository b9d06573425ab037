// Package watch lists the files a target matches and reports changes to
// them in debounced batches. Every backend sends the initial listing as its
// first batch.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultDebounce is the window over which changes are coalesced.
const DefaultDebounce = 200 * time.Millisecond

// Entry is the state of one matched file. Path is absolute.
type Entry struct {
	Path   string
	Exists bool
}

// Watcher reports the files under root that match. The channel is closed
// when ctx is done or the watcher is closed.
type Watcher interface {
	Watch(ctx context.Context, root string, match Match) (<-chan []Entry, error)
	Close() error
}

// Match selects files by doublestar globs relative to a root. Absolute
// globs match absolute paths.
type Match struct {
	Include []string
	Ignore  []string
}

// Matches reports whether path, absolute or relative to root, is included
// and not ignored.
func (m Match) Matches(root, path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	abs := filepath.ToSlash(path)
	match := func(patterns []string) bool {
		for _, p := range patterns {
			target := rel
			if filepath.IsAbs(p) {
				target = abs
			} else if rel == ".." || strings.HasPrefix(rel, "../") {
				continue
			}
			if ok, _ := doublestar.Match(cleanPattern(p), target); ok {
				return true
			}
		}
		return false
	}
	return match(m.Include) && !match(m.Ignore)
}

// List returns every matched regular file under root, sorted.
func List(root string, match Match) ([]string, error) {
	var out []string
	for _, pattern := range match.Include {
		var paths []string
		var err error
		if filepath.IsAbs(pattern) {
			paths, err = doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		} else {
			var rel []string
			rel, err = doublestar.Glob(os.DirFS(root), cleanPattern(pattern), doublestar.WithFilesOnly())
			for _, r := range rel {
				paths = append(paths, filepath.Join(root, filepath.FromSlash(r)))
			}
		}
		if err != nil {
			return nil, fmt.Errorf("watch: glob %q: %w", pattern, err)
		}
		for _, p := range paths {
			if match.Matches(root, p) {
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func listEntries(root string, match Match) ([]Entry, error) {
	paths, err := List(root, match)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, Entry{Path: p, Exists: true})
	}
	return entries, nil
}

// Option configures a watcher.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	debounce time.Duration
	interval time.Duration
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDebounce sets the batching window.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithInterval sets the polling interval of the poll backend.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), debounce: DefaultDebounce, interval: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// New returns the watcher for backend: native, poll or none.
func New(backend string, opts ...Option) (Watcher, error) {
	switch backend {
	case "", "native":
		return NewNative(opts...), nil
	case "poll":
		return NewPoll(opts...), nil
	case "none":
		return NewStatic(opts...), nil
	default:
		return nil, fmt.Errorf("watch: unknown backend %q", backend)
	}
}

// cleanPattern makes a pattern slash separated and drops a leading "./".
func cleanPattern(p string) string {
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

func skipDir(d fs.DirEntry) bool {
	name := d.Name()
	return name == ".git" || name == "node_modules"
}
