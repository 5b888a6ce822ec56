// Package runtime executes a plan: it schedules stage instances onto
// executors as their inputs become available, applies retry policies and
// caching, and records produced artifacts.
package runtime

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
	"github.com/weft-org/weft/internal/plan"
	"github.com/weft-org/weft/internal/runtime/executor"
	"github.com/weft-org/weft/internal/signal"
)

// NodeState is a snapshot of a node's mutable run state.
type NodeState struct {
	Status       core.InstanceStatus
	AttemptCount int
	StartedAt    time.Time
	FinishedAt   time.Time
	ExitCode     int
	Error        error
	Fingerprint  string
	StderrTail   string
	LogFile      string
}

// Node pairs an immutable plan instance with its mutable run state. All
// state access goes through the mutex; the scheduler's coordinator and the
// per-node goroutines both touch it.
type Node struct {
	inst *plan.Instance

	mu       sync.RWMutex
	state    NodeState
	executor executor.Executor
}

// NewNode creates a pending node for the instance.
func NewNode(inst *plan.Instance) *Node {
	return &Node{inst: inst}
}

// Instance returns the plan instance the node runs.
func (n *Node) Instance() *plan.Instance { return n.inst }

// Name returns the instance display name.
func (n *Node) Name() string { return n.inst.Name() }

// State returns a snapshot of the node's run state.
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Status returns the current status.
func (n *Node) Status() core.InstanceStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Status
}

// SetStatus sets the current status.
func (n *Node) SetStatus(s core.InstanceStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Status = s
}

// Start marks the node running and stamps the start time.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Status = core.InstanceRunning
	n.state.StartedAt = time.Now()
}

// Finish stamps the finish time and settles the terminal status. A node
// still marked running finished cleanly.
func (n *Node) Finish() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.FinishedAt = time.Now()
	if n.state.Status == core.InstanceRunning {
		n.state.Status = core.InstanceSucceeded
	}
}

// MarkError marks the node failed with the given error.
func (n *Node) MarkError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Status = core.InstanceFailed
	n.state.Error = err
}

// MarkCached marks the node as satisfied from recorded outputs.
func (n *Node) MarkCached(fingerprint string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Status = core.InstanceCached
	n.state.Fingerprint = fingerprint
}

// IncAttempt increments the retry counter and returns the new count.
func (n *Node) IncAttempt() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.AttemptCount++
	return n.state.AttemptCount
}

// AttemptCount returns the number of retries performed so far.
func (n *Node) AttemptCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.AttemptCount
}

// SetExitCode records the exit code of the last attempt.
func (n *Node) SetExitCode(code int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.ExitCode = code
}

// SetFingerprint records the input fingerprint the node ran under.
func (n *Node) SetFingerprint(fp string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Fingerprint = fp
}

// SetLogFile records the path of the node's combined log file.
func (n *Node) SetLogFile(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.LogFile = path
}

// SetStderrTail records the last stderr bytes of the final attempt.
func (n *Node) SetStderrTail(tail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.StderrTail = tail
}

func (n *Node) setExecutor(e executor.Executor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executor = e
}

// Signal delivers the stop signal to the running executor, if any. The
// stage's signalOnStop overrides the requested signal.
func (n *Node) Signal(ctx context.Context, sig os.Signal) {
	n.mu.Lock()
	e := n.executor
	status := n.state.Status
	n.mu.Unlock()

	if status != core.InstanceRunning || e == nil {
		return
	}
	if override := n.inst.Stage.SignalOnStop; override != "" {
		if num, ok := signal.Lookup(override); ok {
			sig = num
		}
	}
	logger.Info(ctx, "Stopping instance", tag.Instance(n.Name()), tag.Signal(signal.Name(sig)))
	if err := e.Kill(sig); err != nil {
		logger.Error(ctx, "Failed to signal instance", tag.Instance(n.Name()), tag.Error(err))
	}
}
