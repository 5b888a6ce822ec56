package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/weft-org/weft/internal/cmdutil"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

var errNoCommandSpecified = errors.New("no command specified")

var _ executor.Executor = (*commandExecutor)(nil)
var _ executor.ExitCoder = (*commandExecutor)(nil)

type commandExecutor struct {
	mu       sync.Mutex
	stage    core.Stage
	cmd      *exec.Cmd
	stdout   io.Writer
	stderr   io.Writer
	exitCode int
}

// ExitCode implements ExitCoder.
func (e *commandExecutor) ExitCode() int {
	return e.exitCode
}

func (e *commandExecutor) Run(ctx context.Context) error {
	e.mu.Lock()

	cmd, err := e.newCmd(ctx)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create command: %w", err)
	}
	e.cmd = cmd

	if cmd.Dir != "" {
		if err := os.MkdirAll(cmd.Dir, 0750); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to create working directory: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		e.exitCode = exitCodeFromError(err)
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	if err := cmd.Wait(); err != nil {
		e.exitCode = exitCodeFromError(err)
		return err
	}

	return nil
}

// newCmd builds the process for the stage command. When a shell is
// available the command runs through `shell -c`, otherwise it is split
// into words and executed directly.
func (e *commandExecutor) newCmd(ctx context.Context) (*exec.Cmd, error) {
	if e.stage.Command == "" {
		return nil, errNoCommandSpecified
	}

	var cmd *exec.Cmd
	if shell := cmdutil.GetShellCommand(e.stage.Shell); shell != "" {
		cmd = exec.CommandContext(ctx, shell, "-c", e.stage.Command) // nolint: gosec
	} else {
		name, args, err := cmdutil.SplitCommand(e.stage.Command)
		if err != nil {
			return nil, err
		}
		cmd = exec.CommandContext(ctx, name, args...) // nolint: gosec
	}

	cmd.Env = append(os.Environ(), e.stage.Env...)
	cmd.Dir = e.stage.Dir
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmdutil.SetupCommand(cmd)

	return cmd, nil
}

func (e *commandExecutor) SetStdout(out io.Writer) {
	e.stdout = out
}

func (e *commandExecutor) SetStderr(out io.Writer) {
	e.stderr = out
}

func (e *commandExecutor) Kill(sig os.Signal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return cmdutil.KillProcessGroup(e.cmd, sig)
}

// exitCodeFromError returns the process exit code represented by err.
// 0 if err is nil; an *exec.ExitError yields its ExitCode(); otherwise 1.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// NewCommand creates an executor that runs the stage command as a local
// process.
func NewCommand(_ context.Context, stage core.Stage) (executor.Executor, error) {
	return &commandExecutor{stage: stage}, nil
}

func validateCommandStage(stage core.Stage) error {
	if stage.Command == "" {
		return errNoCommandSpecified
	}
	return nil
}

func init() {
	caps := core.ExecutorCapabilities{
		Command: true,
		Shell:   true,
		GetEvalOptions: func(_ context.Context, stage core.Stage) []cmdutil.EvalOption {
			if cmdutil.GetShellCommand(stage.Shell) != "" {
				// Shell will handle env expansion.
				return []cmdutil.EvalOption{cmdutil.WithoutExpandEnv()}
			}
			return nil
		},
	}
	executor.RegisterExecutor("", NewCommand, validateCommandStage, caps)
	executor.RegisterExecutor("command", NewCommand, validateCommandStage, caps)
	executor.RegisterExecutor("shell", NewCommand, validateCommandStage, caps)
}
