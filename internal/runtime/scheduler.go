package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/weft-org/weft/internal/artifact"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
)

var (
	// ErrUpstreamFailed marks nodes that never ran because a dependency
	// failed terminally.
	ErrUpstreamFailed = errors.New("upstream failed")
	// ErrAborted marks nodes stopped before completion.
	ErrAborted = errors.New("run aborted")
)

// Config configures a Scheduler.
type Config struct {
	// MaxActiveInstances caps concurrently running instances. Zero or
	// negative means no cap.
	MaxActiveInstances int
	// Timeout bounds the whole run. Zero means no timeout.
	Timeout time.Duration
	// LogDir is the directory per-instance log files are written to.
	LogDir string
	// LeaseDir is the directory fingerprint leases are taken in.
	LeaseDir string
	// RunID identifies the run.
	RunID string
	// Env is the pipeline-level environment in key=value form.
	Env []string
	// Store records completed invocations. Nil disables deep caching and
	// artifact records.
	Store *artifact.Store
	// Dry skips execution and marks every instance succeeded.
	Dry bool
}

// Scheduler runs a graph of stage instances. A single coordinator loop
// polls for ready nodes and dispatches each onto its own goroutine; all
// cross-node coordination happens through node state and plan channels.
type Scheduler struct {
	cfg   Config
	pause time.Duration

	mu        sync.RWMutex
	canceled  bool
	lastError error
}

// New creates a Scheduler with the given config.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		pause: 50 * time.Millisecond,
	}
}

// Schedule runs the graph to completion. Each finished node is sent to
// done, if non-nil. The returned error is the last node failure, or nil
// when every instance succeeded.
func (sc *Scheduler) Schedule(ctx context.Context, graph *Graph, done chan *Node) error {
	if sc.cfg.LogDir != "" {
		if err := os.MkdirAll(sc.cfg.LogDir, 0750); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	graph.Start()
	defer graph.Finish()

	if sc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.cfg.Timeout)
		defer cancel()
	}

	var wg sync.WaitGroup

	for !graph.IsFinished() {
		if sc.isCanceled() || ctx.Err() != nil {
			break
		}

	NodesIteration:
		for _, node := range graph.Nodes() {
			if node.Status() != core.InstancePending {
				continue NodesIteration
			}
			if !sc.isReady(graph, node) {
				// Upstream failure or abort settles the node without a
				// dispatch; it still goes to done like any other terminal.
				if node.Status().IsTerminal() {
					node.Finish()
					if done != nil {
						done <- node
					}
				}
				continue NodesIteration
			}
			if sc.isCanceled() {
				break NodesIteration
			}
			if sc.cfg.MaxActiveInstances > 0 && graph.RunningCount() >= sc.cfg.MaxActiveInstances {
				continue NodesIteration
			}

			wg.Add(1)
			node.SetStatus(core.InstanceReady)
			logger.Info(ctx, "Instance execution started",
				tag.Instance(node.Name()),
				tag.Stage(node.Instance().Stage.Name),
				tag.Key(node.Instance().Key),
			)

			go func(ctx context.Context, node *Node) {
				defer func() {
					if panicObj := recover(); panicObj != nil {
						stack := string(debug.Stack())
						err := fmt.Errorf("panic recovered: %v\n%s", panicObj, stack)
						logger.Error(ctx, "Panic occurred", tag.Error(err), tag.Instance(node.Name()))
						node.MarkError(err)
						sc.setLastError(err)
					}
				}()
				defer func() {
					node.Finish()
					if done != nil {
						done <- node
					}
					wg.Done()
				}()

				if err := sc.executeNode(ctx, node); err != nil {
					if !node.Status().IsTerminal() {
						node.MarkError(err)
					}
					sc.setLastError(err)
					logger.Error(ctx, "Instance execution failed",
						tag.Instance(node.Name()),
						tag.Error(err),
					)
				}
			}(ctx, node)
		}

		time.Sleep(sc.pause)
	}

	wg.Wait()

	// Nodes that never got to run settle as aborted.
	for _, node := range graph.Nodes() {
		if !node.Status().IsTerminal() {
			node.MarkError(ErrAborted)
			node.SetStatus(core.InstanceAborted)
			if done != nil {
				done <- node
			}
		}
	}

	return sc.lastErr()
}

// isReady reports whether every upstream dependency is satisfied. A failed
// or aborted dependency settles the node immediately without running it.
func (sc *Scheduler) isReady(graph *Graph, node *Node) bool {
	ready := true
	for _, dep := range graph.Upstream(node) {
		switch dep.Status() {
		case core.InstanceSucceeded, core.InstanceCached:
			continue

		case core.InstanceFailed:
			ready = false
			node.MarkError(fmt.Errorf("%w: %s", ErrUpstreamFailed, dep.Name()))

		case core.InstanceAborted:
			ready = false
			node.MarkError(ErrAborted)
			node.SetStatus(core.InstanceAborted)

		default:
			ready = false
		}
	}
	return ready
}

// Signal stops the run: running nodes get the signal, nothing new is
// dispatched. If done is non-nil it receives true once every node stopped.
func (sc *Scheduler) Signal(ctx context.Context, graph *Graph, sig os.Signal, done chan bool) {
	sc.setCanceled()
	for _, node := range graph.Nodes() {
		node.Signal(ctx, sig)
	}
	if done != nil {
		go func() {
			for graph.IsRunning() {
				time.Sleep(sc.pause)
			}
			done <- true
		}()
	}
}

// Cancel stops the run without waiting.
func (sc *Scheduler) Cancel(ctx context.Context, graph *Graph) {
	sc.setCanceled()
	for _, node := range graph.Nodes() {
		node.Signal(ctx, os.Kill)
	}
}

func (sc *Scheduler) isCanceled() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.canceled
}

func (sc *Scheduler) setCanceled() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.canceled = true
}

func (sc *Scheduler) setLastError(err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastError = err
}

func (sc *Scheduler) lastErr() error {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastError
}
