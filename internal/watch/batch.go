package watch

import (
	"context"
	"slices"
	"strings"
	"time"
)

// batch coalesces entries from in over window, keeping the last entry per
// path, and sends each batch sorted by path. The window starts at the first
// entry after a flush. out is closed when in is closed or ctx is done.
func batch(ctx context.Context, in <-chan Entry, window time.Duration, out chan<- []Entry) {
	defer close(out)

	pending := map[string]Entry{}
	var timer *time.Timer
	var fire <-chan time.Time

	flush := func() bool {
		fire = nil
		if len(pending) == 0 {
			return true
		}
		entries := make([]Entry, 0, len(pending))
		for _, e := range pending {
			entries = append(entries, e)
		}
		slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
		clear(pending)
		select {
		case out <- entries:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case e, ok := <-in:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				flush()
				return
			}
			pending[e.Path] = e
			if fire == nil {
				if timer == nil {
					timer = time.NewTimer(window)
				} else {
					timer.Reset(window)
				}
				fire = timer.C
			}
		case <-fire:
			if !flush() {
				return
			}
		}
	}
}

// send delivers the initial listing, then batches from in.
func send(ctx context.Context, initial []Entry, in <-chan Entry, window time.Duration) <-chan []Entry {
	out := make(chan []Entry, 1)
	out <- initial
	batched := make(chan []Entry)
	go batch(ctx, in, window, batched)
	go func() {
		defer close(out)
		for b := range batched {
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
