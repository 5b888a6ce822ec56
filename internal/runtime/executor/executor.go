// Package executor defines the interface stage commands run behind and the
// registry executor implementations register into at init time.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
)

// Executor is an interface for executing a stage instance.
type Executor interface {
	SetStdout(out io.Writer)
	SetStderr(out io.Writer)
	Kill(sig os.Signal) error
	Run(ctx context.Context) error
}

// ExecutorFactory is a function type that creates an Executor from the
// stage configuration. The stage carries the already-rendered command.
type ExecutorFactory func(ctx context.Context, stage core.Stage) (Executor, error)

// NewExecutor creates a new Executor based on the stage's executor type.
func NewExecutor(ctx context.Context, stage core.Stage) (Executor, error) {
	factory, ok := executorRegistry[stage.ExecutorConfig.Type]
	if ok {
		return factory(ctx, stage)
	}

	logger.Error(ctx, "Executor type is not registered",
		tag.Type(stage.ExecutorConfig.Type),
		tag.Stage(stage.Name),
	)
	return nil, fmt.Errorf("executor type %q is not registered", stage.ExecutorConfig.Type)
}

// RegisterExecutor registers a new executor type with its factory,
// validator, and capabilities.
func RegisterExecutor(executorType string, factory ExecutorFactory, validator core.StageValidator, caps core.ExecutorCapabilities) {
	executorRegistry[executorType] = factory
	if validator != nil {
		core.RegisterStageValidator(executorType, validator)
	}
	core.RegisterExecutorCapabilities(executorType, caps)
}

var executorRegistry = make(map[string]ExecutorFactory)

// ExitCoder is an interface for executors that can return an exit code.
type ExitCoder interface {
	ExitCode() int
}
