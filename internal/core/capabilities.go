package core

import (
	"context"

	"github.com/weft-org/weft/internal/cmdutil"
)

// ExecutorCapabilities defines what an executor can do.
type ExecutorCapabilities struct {
	// Command indicates whether the executor runs the command field.
	Command bool
	// Shell indicates whether the executor wraps the command in a shell.
	Shell bool
	// Container indicates whether the executor honors stage-level container
	// hints.
	Container bool
	// FileOutputs indicates whether the executor can materialize declared
	// file outputs itself (as opposed to the command producing them).
	FileOutputs bool
	// GetEvalOptions returns eval options for command template rendering.
	// If nil, default evaluation is used.
	GetEvalOptions func(ctx context.Context, stage Stage) []cmdutil.EvalOption
}

// executorCapabilitiesRegistry is a typed registry of executor capabilities.
type executorCapabilitiesRegistry struct {
	caps map[string]ExecutorCapabilities
}

var executorCapabilities = executorCapabilitiesRegistry{
	caps: make(map[string]ExecutorCapabilities),
}

// Register registers capabilities for an executor type.
func (r *executorCapabilitiesRegistry) Register(executorType string, caps ExecutorCapabilities) {
	r.caps[executorType] = caps
}

// Get returns capabilities for an executor type.
// Returns an empty ExecutorCapabilities if not registered.
func (r *executorCapabilitiesRegistry) Get(executorType string) ExecutorCapabilities {
	if caps, ok := r.caps[executorType]; ok {
		return caps
	}
	return ExecutorCapabilities{}
}

// RegisterExecutorCapabilities registers capabilities for an executor type.
func RegisterExecutorCapabilities(executorType string, caps ExecutorCapabilities) {
	executorCapabilities.Register(executorType, caps)
}

// SupportsCommand returns whether the executor type runs the command field.
func SupportsCommand(executorType string) bool {
	return executorCapabilities.Get(executorType).Command
}

// SupportsShell returns whether the executor type uses shell configuration.
func SupportsShell(executorType string) bool {
	return executorCapabilities.Get(executorType).Shell
}

// SupportsContainer returns whether the executor type honors container hints.
func SupportsContainer(executorType string) bool {
	return executorCapabilities.Get(executorType).Container
}

// SupportsFileOutputs returns whether the executor type materializes declared
// outputs itself.
func SupportsFileOutputs(executorType string) bool {
	return executorCapabilities.Get(executorType).FileOutputs
}

// EvalOptions returns the eval options registered for the stage's executor.
func (s Stage) EvalOptions(ctx context.Context) []cmdutil.EvalOption {
	caps := executorCapabilities.Get(s.ExecutorConfig.Type)
	if caps.GetEvalOptions != nil {
		return caps.GetEvalOptions(ctx, s)
	}
	return nil
}
