// Package agent drives one pipeline run end to end: input discovery, plan
// expansion, scheduling, and the run artifacts (manifest, metrics, traces,
// final report).
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weft-org/weft/internal/artifact"
	"github.com/weft-org/weft/internal/build"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/discovery"
	"github.com/weft-org/weft/internal/fileutil"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
	"github.com/weft-org/weft/internal/metrics"
	"github.com/weft-org/weft/internal/otel"
	"github.com/weft-org/weft/internal/plan"
	"github.com/weft-org/weft/internal/report"
	"github.com/weft-org/weft/internal/resource"
	"github.com/weft-org/weft/internal/runtime"
	"github.com/weft-org/weft/internal/signal"
)

// Options configures a single run.
type Options struct {
	// RunID identifies the run. Empty means a generated UUID.
	RunID string
	// Pattern overrides the pipeline's input discovery pattern.
	Pattern string
	// OutputDir overrides the pipeline output directory.
	OutputDir string
	// LogDir is the directory per-instance log files go to.
	LogDir string
	// DataDir holds the artifact store and fingerprint leases.
	DataDir string
	// Concurrency caps concurrently running instances. Zero falls back to
	// the pipeline setting, then to one slot per CPU.
	Concurrency int
	// Timeout bounds the whole run. Zero means no timeout.
	Timeout time.Duration
	// Params overrides run-level parameter defaults.
	Params map[string]string
	// CacheMode overrides every stage's cache mode when CacheModeSet.
	CacheMode    core.CacheMode
	CacheModeSet bool
	// RetryOverride overrides non-zero retry policy fields on every stage.
	RetryOverride *core.RetryPolicy
	// Dry expands and verifies the plan without executing commands.
	Dry bool
	// NoMetrics skips the metrics snapshot file.
	NoMetrics bool
	// MetricsDir also writes the metrics snapshot under a stable name
	// there, for node-exporter textfile collection.
	MetricsDir string
	// ReportOut receives the final report. Nil means os.Stdout.
	ReportOut io.Writer
}

// Agent runs one pipeline to completion.
type Agent struct {
	pipeline *core.Pipeline
	opts     Options

	lock      sync.RWMutex
	runID     string
	graph     *runtime.Graph
	scheduler *runtime.Scheduler
	finished  atomic.Bool
}

// New creates an agent for the pipeline.
func New(p *core.Pipeline, opts Options) *Agent {
	return &Agent{pipeline: p, opts: opts}
}

// RunID returns the run identifier, generated on first call if unset.
func (a *Agent) RunID() string {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.runID == "" {
		if a.opts.RunID != "" {
			a.runID = a.opts.RunID
		} else {
			a.runID = uuid.New().String()
		}
	}
	return a.runID
}

// Pattern returns the effective input discovery pattern: the override when
// set, otherwise the pipeline's samples pattern.
func (a *Agent) Pattern() string {
	if a.opts.Pattern != "" {
		return a.opts.Pattern
	}
	if a.pipeline.Samples != nil {
		return a.pipeline.Samples.Pattern
	}
	return ""
}

// Run executes the pipeline. The returned error is the last instance
// failure, or a GraphError/NoMatchError when the run never started.
func (a *Agent) Run(ctx context.Context) error {
	runID := a.RunID()
	ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(
		tag.Pipeline(a.pipeline.Name),
		tag.RunID(runID),
	))

	if err := a.loadDotenv(ctx); err != nil {
		return err
	}

	host := resource.Collect(ctx)
	samples, err := a.discover(ctx)
	if err != nil {
		return err
	}

	pl, err := plan.Build(a.pipeline, samples, plan.BuildConfig{
		RunID:         runID,
		OutputDir:     a.opts.OutputDir,
		Params:        a.opts.Params,
		CacheMode:     a.opts.CacheMode,
		CacheModeSet:  a.opts.CacheModeSet,
		RetryOverride: a.opts.RetryOverride,
	})
	if err != nil {
		return err
	}

	graph := runtime.NewGraph(pl)
	a.setGraph(graph)
	logger.Info(ctx, "Plan expanded",
		tag.Count(len(graph.Nodes())),
		tag.MaxConcurrency(a.concurrency(host)),
	)

	if a.opts.Dry {
		return a.dryRun(ctx, graph)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(ctx, "Failed to close artifact store", tag.Error(err))
		}
	}()

	tracer, err := otel.NewTracer(ctx, a.pipeline)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Failed to shut down tracer", tag.Error(err))
		}
	}()

	runCtx, rootSpan := tracer.Start(ctx, "run "+a.pipeline.Name, trace.WithAttributes(
		attribute.String("weft.pipeline", a.pipeline.Name),
		attribute.String("weft.run_id", runID),
		attribute.Int("weft.instances", len(graph.Nodes())),
	))

	manifest := report.NewWriter(filepath.Join(a.runDir(), "manifest.jsonl"))
	if err := manifest.Open(); err != nil {
		return err
	}
	_ = manifest.Write(ctx, report.RunRecord{
		Type:      "run",
		RunID:     runID,
		Pipeline:  a.pipeline.Name,
		Version:   build.Version,
		StartedAt: time.Now(),
		Params:    a.opts.Params,
		Host:      host,
	})

	done := make(chan *runtime.Node)
	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		for node := range done {
			a.recordInstance(runCtx, tracer, manifest, node)
		}
	}()

	sc := runtime.New(runtime.Config{
		MaxActiveInstances: a.concurrency(host),
		Timeout:            a.opts.Timeout,
		LogDir:             a.logDir(),
		LeaseDir:           filepath.Join(a.opts.DataDir, "leases"),
		RunID:              runID,
		Env:                a.pipeline.Env,
		Store:              store,
	})
	a.setScheduler(sc)

	lastErr := sc.Schedule(runCtx, graph, done)
	close(done)
	consumer.Wait()
	a.finished.Store(true)

	status := graph.Status()
	logger.Info(ctx, "Run finished", tag.Status(status.String()))

	_ = manifest.Write(ctx, report.NewSummaryRecord(graph))
	if err := manifest.Close(); err != nil {
		logger.Error(ctx, "Failed to close manifest", tag.Error(err))
	}

	if !a.opts.NoMetrics {
		registry := metrics.NewRegistry(metrics.NewCollector(build.Version, a.pipeline.Name, graph))
		paths := []string{filepath.Join(a.runDir(), "metrics.prom")}
		if a.opts.MetricsDir != "" {
			paths = append(paths, filepath.Join(a.opts.MetricsDir, a.pipeline.Name+".prom"))
		}
		for _, path := range paths {
			if err := metrics.WriteFile(path, registry); err != nil {
				logger.Error(ctx, "Failed to write metrics snapshot", tag.Error(err), tag.File(path))
			}
		}
	}

	rootSpan.SetAttributes(attribute.String("weft.status", status.String()))
	if lastErr != nil {
		rootSpan.SetStatus(codes.Error, lastErr.Error())
	} else {
		rootSpan.SetStatus(codes.Ok, "")
	}
	rootSpan.End()

	report.RenderSummary(a.reportOut(), graph)
	return lastErr
}

// Signal delivers the signal to every running instance and stops new
// dispatch. Non-termination signals are ignored, as are signals before the
// run starts or after it finishes.
func (a *Agent) Signal(ctx context.Context, sig os.Signal) {
	if !signal.IsTermination(sig) || a.finished.Load() {
		return
	}
	a.lock.RLock()
	sc, graph := a.scheduler, a.graph
	a.lock.RUnlock()
	if sc == nil || graph == nil {
		return
	}
	sc.Signal(ctx, graph, sig, nil)
}

// dryRun verifies the plan without executing: every instance runs on the
// scheduler's dry path and settles succeeded.
func (a *Agent) dryRun(ctx context.Context, graph *runtime.Graph) error {
	sc := runtime.New(runtime.Config{
		LogDir: a.logDir(),
		RunID:  a.RunID(),
		Env:    a.pipeline.Env,
		Dry:    true,
	})
	a.setScheduler(sc)

	err := sc.Schedule(ctx, graph, nil)
	a.finished.Store(true)
	report.RenderSummary(a.reportOut(), graph)
	return err
}

// loadDotenv overlays each configured dotenv file onto the process
// environment, later files winning. Missing files are skipped.
func (a *Agent) loadDotenv(ctx context.Context) error {
	for _, entry := range a.pipeline.Dotenv {
		resolved, err := fileutil.ResolvePath(entry)
		if err != nil {
			return fmt.Errorf("failed to resolve dotenv path %s: %w", entry, err)
		}
		if !filepath.IsAbs(resolved) && a.pipeline.Location != "" {
			resolved = filepath.Join(filepath.Dir(a.pipeline.Location), resolved)
		}
		if !fileutil.FileExists(resolved) {
			logger.Debug(ctx, "Dotenv file not found", tag.File(resolved))
			continue
		}
		if err := godotenv.Overload(resolved); err != nil {
			return fmt.Errorf("failed to load dotenv file %s: %w", resolved, err)
		}
		logger.Debug(ctx, "Loaded dotenv file", tag.File(resolved))
	}
	return nil
}

func (a *Agent) discover(ctx context.Context) ([]discovery.Sample, error) {
	src := a.pipeline.Samples
	if src == nil && a.opts.Pattern == "" {
		return nil, nil
	}

	cfg := discovery.Config{Pattern: a.opts.Pattern}
	if src != nil {
		cfg.PairTokens = src.PairTokens
		cfg.Extensions = src.Extensions
		cfg.Require = src.Require
		if cfg.Pattern == "" {
			cfg.Pattern = src.Pattern
		}
	}
	return discovery.Discover(ctx, cfg)
}

func (a *Agent) openStore() (*artifact.Store, error) {
	dir := a.opts.DataDir
	if dir == "" {
		dir = filepath.Join(a.runDir(), "data")
	}
	return artifact.Open(filepath.Join(dir, "artifacts"))
}

// recordInstance handles one terminal node: manifest line, progress log,
// and a child span covering the instance's execution window.
func (a *Agent) recordInstance(ctx context.Context, tracer *otel.Tracer, manifest *report.Writer, node *runtime.Node) {
	state := node.State()
	_ = manifest.Write(ctx, report.NewInstanceRecord(node))
	logger.Info(ctx, "Instance finished",
		tag.Instance(node.Name()),
		tag.Status(state.Status.String()),
		tag.Attempt(state.AttemptCount),
	)

	if !tracer.IsEnabled() {
		return
	}
	started, finished := state.StartedAt, state.FinishedAt
	if started.IsZero() {
		started = time.Now()
	}
	if finished.IsZero() {
		finished = started
	}
	_, span := tracer.Start(ctx, node.Name(),
		trace.WithTimestamp(started),
		trace.WithAttributes(
			attribute.String("weft.stage", node.Instance().Stage.Name),
			attribute.String("weft.key", node.Instance().Key),
			attribute.String("weft.status", state.Status.String()),
			attribute.Int("weft.attempts", state.AttemptCount),
			attribute.Bool("weft.cached", state.Status == core.InstanceCached),
		),
	)
	if state.Error != nil {
		span.SetStatus(codes.Error, state.Error.Error())
	}
	span.End(trace.WithTimestamp(finished))
}

// runDir is where the manifest and metrics snapshot for this run live.
func (a *Agent) runDir() string {
	base := a.opts.OutputDir
	if base == "" {
		base = a.pipeline.OutputDir
	}
	if base == "" {
		base = "."
	}
	return filepath.Join(base, "run-"+a.RunID())
}

func (a *Agent) logDir() string {
	if a.opts.LogDir != "" {
		return a.opts.LogDir
	}
	return filepath.Join(a.runDir(), "logs")
}

func (a *Agent) concurrency(host resource.Snapshot) int {
	if a.opts.Concurrency > 0 {
		return a.opts.Concurrency
	}
	if a.pipeline.MaxActiveInstances > 0 {
		return a.pipeline.MaxActiveInstances
	}
	return resource.DefaultConcurrency(host)
}

func (a *Agent) reportOut() io.Writer {
	if a.opts.ReportOut != nil {
		return a.opts.ReportOut
	}
	return os.Stdout
}

func (a *Agent) setGraph(g *runtime.Graph) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.graph = g
}

func (a *Agent) setScheduler(sc *runtime.Scheduler) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.scheduler = sc
}

// ExitCode maps a run error to the process exit code: 2 for errors before
// any instance ran (malformed graph, empty discovery), 1 for run failures,
// 0 for success.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case core.IsGraphError(err), core.IsNoMatchError(err):
		return 2
	default:
		return 1
	}
}
