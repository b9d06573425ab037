package watch

import (
	"context"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Poll lists the matched files every interval and compares content
// fingerprints. A rewrite with the same content is not a change.
type Poll struct {
	opts options

	mu     sync.Mutex
	cancel []context.CancelFunc
}

func NewPoll(opts ...Option) *Poll {
	return &Poll{opts: newOptions(opts)}
}

func (p *Poll) Watch(ctx context.Context, root string, match Match) (<-chan []Entry, error) {
	initial, err := listEntries(root, match)
	if err != nil {
		return nil, err
	}
	seen := fingerprints(entryPaths(initial))

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = append(p.cancel, cancel)
	p.mu.Unlock()

	logger := p.opts.logger.With("root", root, "backend", "poll")
	entries := make(chan Entry)
	go func() {
		defer close(entries)
		ticker := time.NewTicker(p.opts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			paths, err := List(root, match)
			if err != nil {
				logger.Warn("poll", "error", err)
				continue
			}
			current := fingerprints(paths)
			for _, e := range diff(seen, current) {
				logger.Debug("watch event", "path", e.Path, "exists", e.Exists)
				select {
				case entries <- e:
				case <-ctx.Done():
					return
				}
			}
			seen = current
		}
	}()
	return send(ctx, initial, entries, p.opts.debounce), nil
}

func (p *Poll) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.cancel {
		cancel()
	}
	p.cancel = nil
	return nil
}

func entryPaths(entries []Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// fingerprints hashes every file. Files that cannot be read are left out and
// so count as removed.
func fingerprints(paths []string) map[string]uint64 {
	sums := make([]uint64, len(paths))
	ok := make([]bool, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			sum, err := fileHash(path)
			sums[i], ok[i] = sum, err == nil
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]uint64, len(paths))
	for i, path := range paths {
		if ok[i] {
			out[path] = sums[i]
		}
	}
	return out
}

func fileHash(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func diff(before, after map[string]uint64) []Entry {
	var out []Entry
	for path, sum := range after {
		if prev, ok := before[path]; !ok || prev != sum {
			out = append(out, Entry{Path: path, Exists: true})
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			out = append(out, Entry{Path: path, Exists: false})
		}
	}
	return out
}
