package trace

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilTracerIsNoop(t *testing.T) {
	var tr *Tracer
	span := tr.Start("build")
	assert.Nil(t, span)
	span.End()
	assert.Nil(t, tr.Stats())
	assert.Nil(t, Enabled(false, nil))
}

func TestSpanLogsAndAggregates(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tr := New(logger)

	tr.Start("extract", "path", "/a.js").End()
	tr.Start("extract", "path", "/b.js").End()
	tr.Start("build").End()

	stats := tr.Stats()
	require.Contains(t, stats, "extract")
	assert.Equal(t, 2, stats["extract"].Count)
	assert.Equal(t, 1, stats["build"].Count)
	assert.Contains(t, buf.String(), "stage=extract")
	assert.Contains(t, buf.String(), "path=/b.js")
}
