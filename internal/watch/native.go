package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Native watches with fsnotify. Directories are registered recursively,
// including ones created while watching.
type Native struct {
	opts options

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
}

func NewNative(opts ...Option) *Native {
	return &Native{opts: newOptions(opts)}
}

func (n *Native) Watch(ctx context.Context, root string, match Match) (<-chan []Entry, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addTree(fw, root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	// List after registering so that no file created in between is missed.
	initial, err := listEntries(root, match)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}

	n.mu.Lock()
	n.watchers = append(n.watchers, fw)
	n.mu.Unlock()

	logger := n.opts.logger.With("root", root, "backend", "native")
	entries := make(chan Entry)
	go func() {
		defer close(entries)
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error", "error", err)
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				for _, e := range n.translate(fw, root, match, ev, logger) {
					select {
					case entries <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return send(ctx, initial, entries, n.opts.debounce), nil
}

func (n *Native) translate(fw *fsnotify.Watcher, root string, match Match, ev fsnotify.Event, logger *slog.Logger) []Entry {
	logger.Debug("watch event", "path", ev.Name, "op", ev.Op.String())
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := addTree(fw, ev.Name); err != nil {
				logger.Warn("watch directory", "path", ev.Name, "error", err)
			}
			// Files may have landed before the directory was registered.
			var out []Entry
			for _, p := range filesUnder(ev.Name) {
				if match.Matches(root, p) {
					out = append(out, Entry{Path: p, Exists: true})
				}
			}
			return out
		}
		if match.Matches(root, ev.Name) {
			return []Entry{{Path: ev.Name, Exists: true}}
		}
	case ev.Has(fsnotify.Write):
		if match.Matches(root, ev.Name) {
			return []Entry{{Path: ev.Name, Exists: true}}
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if match.Matches(root, ev.Name) {
			_, err := os.Stat(ev.Name)
			return []Entry{{Path: ev.Name, Exists: err == nil}}
		}
	}
	return nil
}

func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var errs []error
	for _, fw := range n.watchers {
		errs = append(errs, fw.Close())
	}
	n.watchers = nil
	return errors.Join(errs...)
}

func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func filesUnder(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && skipDir(d) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, path)
		}
		return nil
	})
	return out
}
