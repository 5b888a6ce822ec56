package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/plan"
	"github.com/weft-org/weft/internal/resource"
	"github.com/weft-org/weft/internal/runtime"
)

func testGraph(t *testing.T) *runtime.Graph {
	t.Helper()
	p := &core.Pipeline{
		Name: "calls",
		Stages: []core.Stage{
			{Name: "align", Command: "true"},
			{Name: "merge", Command: "true"},
		},
	}
	pl, err := plan.Build(p, nil, plan.BuildConfig{})
	require.NoError(t, err)
	return runtime.NewGraph(pl)
}

func TestWriter(t *testing.T) {
	t.Parallel()

	graph := testGraph(t)
	graph.Start()

	align, ok := graph.Node("align")
	require.True(t, ok)
	align.Start()
	align.IncAttempt()
	align.SetExitCode(3)
	align.MarkError(&core.ExecutionError{Stage: "align", ExitCode: 3, Err: errors.New("boom")})
	align.SetStderrTail("boom")
	align.Finish()

	merge, ok := graph.Node("merge")
	require.True(t, ok)
	merge.MarkError(runtime.ErrUpstreamFailed)
	graph.Finish()

	path := filepath.Join(t.TempDir(), "run-1", "manifest.jsonl")
	w := NewWriter(path)
	require.NoError(t, w.Open())
	require.NoError(t, w.Open(), "reopen is a no-op")

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, RunRecord{
		Type:      "run",
		RunID:     "run-1",
		Pipeline:  "calls",
		StartedAt: time.Now(),
		Host:      resource.Snapshot{CPUCount: 4},
	}))
	require.NoError(t, w.Write(ctx, NewInstanceRecord(align)))
	require.NoError(t, w.Write(ctx, NewInstanceRecord(merge)))
	require.NoError(t, w.Write(ctx, NewSummaryRecord(graph)))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "double close is safe")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 4)

	assert.Equal(t, "run", lines[0]["type"])
	assert.Equal(t, "calls", lines[0]["pipeline"])

	assert.Equal(t, "instance", lines[1]["type"])
	assert.Equal(t, "align", lines[1]["stage"])
	assert.Equal(t, "failed", lines[1]["status"])
	assert.Equal(t, "execution", lines[1]["errorKind"])
	assert.Equal(t, float64(3), lines[1]["exitCode"])

	assert.Equal(t, "upstream", lines[2]["errorKind"])

	assert.Equal(t, "summary", lines[3]["type"])
	assert.Equal(t, "failed", lines[3]["status"])
	assert.Equal(t, float64(2), lines[3]["failed"])
}

func TestWriteBeforeOpen(t *testing.T) {
	t.Parallel()

	w := NewWriter(filepath.Join(t.TempDir(), "manifest.jsonl"))
	err := w.Write(context.Background(), SummaryRecord{Type: "summary"})
	assert.ErrorIs(t, err, ErrWriterNotOpen)
}

func TestNewSummaryRecord(t *testing.T) {
	t.Parallel()

	graph := testGraph(t)
	graph.Start()

	align, _ := graph.Node("align")
	align.Start()
	align.Finish()
	merge, _ := graph.Node("merge")
	merge.MarkCached("fp")
	graph.Finish()

	summary := NewSummaryRecord(graph)
	assert.Equal(t, "succeeded", summary.Status)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Cached)
	assert.Zero(t, summary.Failed)
	assert.GreaterOrEqual(t, summary.Duration, time.Duration(0))
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	graph := testGraph(t)
	graph.Start()

	align, _ := graph.Node("align")
	align.Start()
	align.IncAttempt()
	align.MarkError(&core.ExecutionError{Stage: "align", ExitCode: 2, Err: errors.New("segfault")})
	align.SetStderrTail("Segmentation fault (core dumped)")
	align.Finish()

	merge, _ := graph.Node("merge")
	merge.MarkError(runtime.ErrUpstreamFailed)
	graph.Finish()

	var buf bytes.Buffer
	RenderSummary(&buf, graph)

	out := buf.String()
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "align")
	assert.Contains(t, out, "merge")
	assert.Contains(t, out, "Segmentation fault")
	assert.NotContains(t, out, "\x1b[", "no color codes when not a terminal")
}
