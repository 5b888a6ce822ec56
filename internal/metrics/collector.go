// Package metrics exposes per-run Prometheus metrics and writes them to
// the run directory in text exposition format when the run finishes.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime"
)

var (
	infoDesc = prometheus.NewDesc(
		"weft_info",
		"Build and pipeline information",
		[]string{"version", "pipeline"}, nil,
	)
	durationDesc = prometheus.NewDesc(
		"weft_run_duration_seconds",
		"Wall-clock duration of the run",
		nil, nil,
	)
	runningDesc = prometheus.NewDesc(
		"weft_instances_running",
		"Number of instances currently dispatched or executing",
		nil, nil,
	)
	instancesDesc = prometheus.NewDesc(
		"weft_instances_total",
		"Number of instances by status",
		[]string{"status"}, nil,
	)
	retriesDesc = prometheus.NewDesc(
		"weft_retries_total",
		"Number of retry attempts across all instances",
		nil, nil,
	)
	cacheHitsDesc = prometheus.NewDesc(
		"weft_cache_hits_total",
		"Number of instances satisfied from recorded outputs",
		nil, nil,
	)
)

// Collector derives run metrics from the live graph on each scrape.
type Collector struct {
	version  string
	pipeline string
	graph    *runtime.Graph
}

// NewCollector creates a collector over the run graph.
func NewCollector(version, pipeline string, graph *runtime.Graph) *Collector {
	return &Collector{
		version:  version,
		pipeline: pipeline,
		graph:    graph,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(infoDesc, prometheus.GaugeValue, 1, c.version, c.pipeline)
	ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.GaugeValue, c.duration().Seconds())
	ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.GaugeValue, float64(c.graph.RunningCount()))

	byStatus := make(map[core.InstanceStatus]int)
	var retries, cacheHits int
	for _, node := range c.graph.Nodes() {
		state := node.State()
		byStatus[state.Status]++
		if state.AttemptCount > 1 {
			retries += state.AttemptCount - 1
		}
		if state.Status == core.InstanceCached {
			cacheHits++
		}
	}

	for _, status := range []core.InstanceStatus{
		core.InstancePending,
		core.InstanceReady,
		core.InstanceRunning,
		core.InstanceFailed,
		core.InstanceAborted,
		core.InstanceSucceeded,
		core.InstanceCached,
	} {
		ch <- prometheus.MustNewConstMetric(
			instancesDesc, prometheus.CounterValue,
			float64(byStatus[status]), status.String(),
		)
	}
	ch <- prometheus.MustNewConstMetric(retriesDesc, prometheus.CounterValue, float64(retries))
	ch <- prometheus.MustNewConstMetric(cacheHitsDesc, prometheus.CounterValue, float64(cacheHits))
}

func (c *Collector) duration() time.Duration {
	started := c.graph.StartedAt()
	if started.IsZero() {
		return 0
	}
	finished := c.graph.FinishedAt()
	if finished.IsZero() {
		return time.Since(started)
	}
	return finished.Sub(started)
}

// NewRegistry creates a registry with the given collectors plus the Go
// runtime and process collectors.
func NewRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range extra {
		registry.MustRegister(c)
	}
	return registry
}

// WriteFile gathers the registry and writes the metrics in text exposition
// format, creating parent directories as needed.
func WriteFile(path string, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	encoder := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("failed to encode %s: %w", family.GetName(), err)
		}
	}
	return f.Close()
}
