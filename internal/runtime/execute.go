package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/weft-org/weft/internal/artifact"
	"github.com/weft-org/weft/internal/backoff"
	"github.com/weft-org/weft/internal/cmdutil"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/fileutil"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
	"github.com/weft-org/weft/internal/plan"
	"github.com/weft-org/weft/internal/runtime/executor"
)

// executeNode runs one instance end to end: cache check, command
// rendering, executor run with retries, output verification, artifact
// recording, and channel publication.
func (sc *Scheduler) executeNode(ctx context.Context, node *Node) error {
	node.Start()

	inst := node.Instance()
	stage := inst.Stage

	vars, inputs, err := resolveInputs(inst)
	if err != nil {
		return err
	}

	fingerprint := ""
	if stage.CacheMode == core.CacheModeDeep {
		fingerprint, err = artifact.Fingerprint(stage.Name, inputs)
		if err != nil {
			return &core.ExecutionError{Stage: stage.Name, Key: inst.Key, ExitCode: -1,
				Err: fmt.Errorf("fingerprinting inputs: %w", err)}
		}
		node.SetFingerprint(fingerprint)
	}

	if sc.checkCache(ctx, node, fingerprint) {
		return publishOutputs(inst, node)
	}

	// A lease serializes identical work across concurrent runs. After
	// acquiring, re-check: the holder we waited on may have produced the
	// outputs already.
	if fingerprint != "" && sc.cfg.LeaseDir != "" {
		lease, err := artifact.NewLease(sc.cfg.LeaseDir, fingerprint)
		if err == nil {
			if err := lease.Acquire(ctx); err != nil {
				return &core.ExecutionError{Stage: stage.Name, Key: inst.Key, ExitCode: -1, Err: err}
			}
			defer func() { _ = lease.Release() }()
			if sc.checkCache(ctx, node, fingerprint) {
				return publishOutputs(inst, node)
			}
		}
	}

	if sc.cfg.Dry {
		node.SetStatus(core.InstanceSucceeded)
		return nil
	}

	if err := sc.runWithRetries(ctx, node, vars); err != nil {
		return err
	}

	if err := verifyOutputs(inst); err != nil {
		node.MarkError(err)
		return err
	}

	if sc.cfg.Store != nil && fingerprint != "" {
		rec := artifact.Record{
			Stage:       stage.Name,
			Fingerprint: fingerprint,
			Outputs:     inst.OutputPaths,
			RunID:       sc.cfg.RunID,
			CreatedAt:   time.Now(),
		}
		if err := sc.cfg.Store.Append(rec); err != nil {
			logger.Warn(ctx, "Failed to record artifact", tag.Instance(inst.Name()), tag.Error(err))
		}
	}

	node.SetStatus(core.InstanceSucceeded)
	return publishOutputs(inst, node)
}

// checkCache consults the artifact store under the stage's cache mode.
func (sc *Scheduler) checkCache(ctx context.Context, node *Node, fingerprint string) bool {
	inst := node.Instance()
	stage := inst.Stage
	if stage.CacheMode == core.CacheModeNone || sc.cfg.Store == nil {
		return false
	}
	decision := sc.cfg.Store.Check(stage.Name, stage.CacheMode, fingerprint, inst.OutputPaths)
	if !decision.Hit {
		return false
	}
	node.MarkCached(fingerprint)
	logger.Info(ctx, "Reusing cached outputs",
		tag.Instance(inst.Name()),
		tag.CacheMode(stage.CacheMode.String()),
		tag.Fingerprint(fingerprint),
	)
	return true
}

// runWithRetries renders the command and runs the executor, retrying
// execution failures per the stage retry policy.
func (sc *Scheduler) runWithRetries(ctx context.Context, node *Node, vars map[string]string) error {
	inst := node.Instance()
	stage := inst.Stage

	rendered, err := renderCommand(ctx, stage, vars)
	if err != nil {
		return &core.ExecutionError{Stage: stage.Name, Key: inst.Key, ExitCode: -1,
			Err: fmt.Errorf("rendering command: %w", err)}
	}

	if err := ensureOutputDirs(inst); err != nil {
		return &core.ExecutionError{Stage: stage.Name, Key: inst.Key, ExitCode: -1, Err: err}
	}

	eff := *stage
	eff.Command = rendered
	eff.Env = append(append([]string{}, sc.cfg.Env...), stage.Env...)

	policy := stage.RetryPolicy
	retrier := backoff.NewRetrier(backoffPolicy(policy))

	for {
		execErr := sc.runOnce(ctx, node, eff)
		if execErr == nil {
			return nil
		}

		exitCode := exitCodeFromError(execErr)
		node.SetExitCode(exitCode)

		if sc.isCanceled() || ctx.Err() != nil {
			node.SetStatus(core.InstanceAborted)
			return execErr
		}

		if node.AttemptCount() >= policy.Limit || !policy.ShouldRetry(exitCode) {
			return &core.ExecutionError{Stage: stage.Name, Key: inst.Key, ExitCode: exitCode, Err: execErr}
		}

		interval, rerr := retrier.Next(execErr)
		if rerr != nil {
			return &core.ExecutionError{Stage: stage.Name, Key: inst.Key, ExitCode: exitCode, Err: execErr}
		}
		attempt := node.IncAttempt()
		logger.Info(ctx, "Instance failed, retrying",
			tag.Instance(inst.Name()),
			tag.Attempt(attempt),
			tag.ExitCode(exitCode),
			tag.Duration(interval),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// runOnce performs a single executor invocation with log capture.
func (sc *Scheduler) runOnce(ctx context.Context, node *Node, stage core.Stage) error {
	inst := node.Instance()

	ex, err := executor.NewExecutor(ctx, stage)
	if err != nil {
		return err
	}

	var logFile io.WriteCloser
	var stdout io.Writer = os.Stdout
	var stderr io.Writer = os.Stderr
	if sc.cfg.LogDir != "" {
		name := fmt.Sprintf("%s.%02d.log", fileutil.SafeName(inst.ID), node.AttemptCount())
		path := filepath.Join(sc.cfg.LogDir, name)
		f, err := fileutil.OpenOrCreateFile(path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		stdout = f
		stderr = f
		node.SetLogFile(path)
	}
	if logFile != nil {
		defer func() { _ = logFile.Close() }()
	}

	tail := executor.NewTailWriter(stderr, 0)
	ex.SetStdout(stdout)
	ex.SetStderr(tail)
	node.setExecutor(ex)
	defer node.setExecutor(nil)

	runErr := ex.Run(ctx)
	node.SetStderrTail(tail.Tail())
	return runErr
}

// renderCommand expands param, output, and key placeholders in the command
// template. OS environment expansion stays enabled so commands can
// reference pipeline env entries.
func renderCommand(ctx context.Context, stage *core.Stage, vars map[string]string) (string, error) {
	opts := stage.EvalOptions(ctx)
	opts = append(opts, cmdutil.WithVariables(vars))
	return cmdutil.EvalString(stage.Command, opts...)
}

// resolveInputs binds every declared input of the instance and returns the
// command variables plus the fingerprint inputs.
func resolveInputs(inst *plan.Instance) (map[string]string, []artifact.Input, error) {
	vars := map[string]string{
		"key": inst.Key,
	}
	if inst.Stage.Threads > 0 {
		vars["threads"] = fmt.Sprintf("%d", inst.Stage.Threads)
	}
	for name, path := range inst.OutputPaths {
		vars[name] = path
	}

	inputs := make([]artifact.Input, 0, len(inst.Inputs))
	for _, src := range inst.Inputs {
		value, ok := src.Resolve(inst.Key)
		if !ok {
			return nil, nil, &core.ExecutionError{Stage: inst.Stage.Name, Key: inst.Key, ExitCode: -1,
				Err: fmt.Errorf("input %s has no committed value", src.Param.Name)}
		}
		vars[src.Param.Name] = value.String()
		inputs = append(inputs, artifact.Input{
			Name:   src.Param.Name,
			Kind:   src.Param.Kind,
			Values: value.Items,
		})
	}
	return vars, inputs, nil
}

// verifyOutputs checks that every declared output file exists. A missing
// output after a successful exit is a contract violation and is never
// retried.
func verifyOutputs(inst *plan.Instance) error {
	for _, out := range inst.Stage.Outputs {
		path := inst.OutputPaths[out.Name]
		if !fileutil.FileExists(path) {
			return &core.OutputContractViolation{
				Stage:  inst.Stage.Name,
				Key:    inst.Key,
				Output: out.Name,
				Path:   path,
			}
		}
	}
	return nil
}

// publishOutputs commits the instance's output paths to their channels so
// downstream consumers can bind them.
func publishOutputs(inst *plan.Instance, node *Node) error {
	for name, ch := range inst.OutputChannels {
		value := plan.Value{Kind: core.ParamKindFile, Items: []string{inst.OutputPaths[name]}}
		if err := ch.Publish(inst.Key, value); err != nil {
			node.MarkError(err)
			return err
		}
	}
	return nil
}

func ensureOutputDirs(inst *plan.Instance) error {
	for _, path := range inst.OutputPaths {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	return nil
}

// backoffPolicy translates the stage retry policy into a backoff policy.
func backoffPolicy(p core.RetryPolicy) backoff.RetryPolicy {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	if p.Backoff > 1 {
		policy := backoff.NewExponentialBackoffPolicy(interval)
		policy.BackoffFactor = p.Backoff
		if p.MaxInterval > 0 {
			policy.MaxInterval = p.MaxInterval
		}
		return policy
	}
	return backoff.NewConstantBackoffPolicy(interval)
}

// exitCodeFromError extracts the process exit code from an executor error.
func exitCodeFromError(err error) int {
	var coder executor.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
