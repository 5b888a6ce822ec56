package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/plan"
	"github.com/weft-org/weft/internal/runtime"
)

func testGraph(t *testing.T) *runtime.Graph {
	t.Helper()
	p := &core.Pipeline{
		Name: "calls",
		Stages: []core.Stage{
			{Name: "prepare", Command: "true"},
			{Name: "verify", Command: "true"},
			{Name: "publish", Command: "true"},
		},
	}
	pl, err := plan.Build(p, nil, plan.BuildConfig{})
	require.NoError(t, err)
	return runtime.NewGraph(pl)
}

func gatherMap(t *testing.T, g prometheus.Gatherer) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return byName
}

func TestCollector(t *testing.T) {
	t.Parallel()

	graph := testGraph(t)
	graph.Start()

	prepare, ok := graph.Node("prepare")
	require.True(t, ok)
	prepare.Start()
	prepare.IncAttempt()
	prepare.IncAttempt()
	prepare.IncAttempt()
	prepare.Finish()

	verify, ok := graph.Node("verify")
	require.True(t, ok)
	verify.MarkCached("abc123")

	publish, ok := graph.Node("publish")
	require.True(t, ok)
	publish.Start()

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector("1.0.0", "calls", graph))
	families := gatherMap(t, registry)

	require.Contains(t, families, "weft_info")
	info := families["weft_info"].Metric[0]
	assert.Equal(t, float64(1), info.Gauge.GetValue())
	labels := make(map[string]string)
	for _, l := range info.Label {
		labels[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, "1.0.0", labels["version"])
	assert.Equal(t, "calls", labels["pipeline"])

	require.Contains(t, families, "weft_run_duration_seconds")
	assert.Greater(t, families["weft_run_duration_seconds"].Metric[0].Gauge.GetValue(), float64(0))

	require.Contains(t, families, "weft_instances_running")
	assert.Equal(t, float64(1), families["weft_instances_running"].Metric[0].Gauge.GetValue())

	require.Contains(t, families, "weft_instances_total")
	counts := make(map[string]float64)
	for _, m := range families["weft_instances_total"].Metric {
		for _, l := range m.Label {
			if l.GetName() == "status" {
				counts[l.GetValue()] = m.Counter.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), counts["succeeded"])
	assert.Equal(t, float64(1), counts["cached"])
	assert.Equal(t, float64(1), counts["running"])

	require.Contains(t, families, "weft_retries_total")
	assert.Equal(t, float64(2), families["weft_retries_total"].Metric[0].Counter.GetValue())

	require.Contains(t, families, "weft_cache_hits_total")
	assert.Equal(t, float64(1), families["weft_cache_hits_total"].Metric[0].Counter.GetValue())
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	graph := testGraph(t)
	registry := NewRegistry(NewCollector("dev", "calls", graph))
	families := gatherMap(t, registry)

	assert.Contains(t, families, "go_goroutines")
	assert.Contains(t, families, "weft_info")
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	graph := testGraph(t)
	graph.Start()
	graph.Finish()

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector("dev", "calls", graph))

	path := filepath.Join(t.TempDir(), "run-1", "metrics.prom")
	require.NoError(t, WriteFile(path, registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# HELP weft_info")
	assert.Contains(t, string(data), `weft_instances_total{status="pending"} 3`)
}
