// Package trace times pipeline stages. A Tracer is passed explicitly to the
// stages that use it; a nil Tracer records nothing.
package trace

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracer logs stage durations at debug level.
type Tracer struct {
	logger *slog.Logger

	mu     sync.Mutex
	totals map[string]Stat
}

// Stat aggregates the runs of one stage.
type Stat struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

// New returns an enabled tracer. A nil logger means slog.Default().
func New(logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{logger: logger, totals: map[string]Stat{}}
}

// Enabled returns New(logger) when on is true, nil otherwise.
func Enabled(on bool, logger *slog.Logger) *Tracer {
	if !on {
		return nil
	}
	return New(logger)
}

// Span is one running stage.
type Span struct {
	tracer *Tracer
	stage  string
	attrs  []any
	start  time.Time
}

// Start begins timing stage. attrs are slog key/value pairs.
func (t *Tracer) Start(stage string, attrs ...any) *Span {
	if t == nil {
		return nil
	}
	return &Span{tracer: t, stage: stage, attrs: attrs, start: time.Now()}
}

// End stops the span and logs it.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := time.Since(s.start)
	t := s.tracer

	t.mu.Lock()
	st := t.totals[s.stage]
	st.Count++
	st.Total += elapsed
	st.Max = max(st.Max, elapsed)
	t.totals[s.stage] = st
	t.mu.Unlock()

	args := append([]any{"stage", s.stage, "elapsed", elapsed}, s.attrs...)
	t.logger.Log(context.Background(), slog.LevelDebug, "trace", args...)
}

// Stats returns a copy of the aggregated stage timings.
func (t *Tracer) Stats() map[string]Stat {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Stat, len(t.totals))
	for k, v := range t.totals {
		out[k] = v
	}
	return out
}
