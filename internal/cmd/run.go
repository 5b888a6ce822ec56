package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/weft-org/weft/internal/agent"
	"github.com/weft-org/weft/internal/config"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/fileutil"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
	"github.com/weft-org/weft/internal/pipeline"
)

// Errors for the run command.
var (
	// ErrRunIDFormat is returned when the provided run ID is not valid.
	ErrRunIDFormat = errors.New("run ID must only contain alphanumeric characters, dashes, and underscores")

	// ErrRunIDTooLong is returned when the provided run ID is too long.
	ErrRunIDTooLong = errors.New("run ID length must be less than 60 characters")
)

var regexRunID = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

const maxRunIDLen = 60

var runFlags = []commandLineFlag{
	paramsFlag, runIDFlag, inputFlag, outputDirFlag, maxActiveRunsFlag,
	cacheModeFlag, retryLimitFlag, retryIntervalFlag, timeoutFlag,
	dryRunFlag, watchFlag, noMetricsFlag,
}

var (
	retryLimitFlag = commandLineFlag{
		name:         "retry-limit",
		kind:         flagInt,
		defaultValue: "-1",
		usage:        "retry limit override for every stage, -1 keeps stage policies",
	}
	retryIntervalFlag = commandLineFlag{
		name:  "retry-interval",
		usage: "retry interval override for every stage, as a duration string",
	}
)

// CmdRun creates the command executing a pipeline.
func CmdRun() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "run [flags] <pipeline> [-- key=value ...]",
			Short: "Execute a pipeline",
			Long: `Execute a pipeline from its definition file.

The argument is a path to a pipeline file, or the name of a pipeline in the
configured pipelines directory. Parameters after the "--" separator override
the pipeline's parameter defaults as key=value pairs.

Example:
  weft run variant-calls.yaml --input 'reads/*.fastq.gz' -- reference=hg38.fa
`,
			Args: cobra.MinimumNArgs(1),
		}, runFlags, runRun,
	)
}

func runRun(ctx *Context, args []string) error {
	opts, err := runOptions(ctx, args)
	if err != nil {
		return err
	}

	if ctx.Quiet {
		opts.ReportOut = io.Discard
	} else {
		opts.ReportOut = ctx.Command.OutOrStdout()
	}

	path := resolvePipelinePath(ctx.Config, args[0])

	watch, _ := ctx.Command.Flags().GetBool("watch")
	if watch {
		return runWatch(ctx, path, opts)
	}

	p, err := loadRunPipeline(ctx, path)
	if err != nil {
		return err
	}

	ag := agent.New(p, opts)
	listenSignals(ctx, ag)

	if err := ag.Run(ctx); err != nil {
		logger.Error(ctx, "Run failed",
			tag.Pipeline(p.Name),
			tag.RunID(ag.RunID()),
			tag.Error(err),
		)
		os.Exit(agent.ExitCode(err))
	}
	return nil
}

// runOptions assembles the agent options from flags and configuration.
// Flags win over config file values.
func runOptions(ctx *Context, args []string) (agent.Options, error) {
	flags := ctx.Command.Flags()

	runID, err := ctx.StringParam("run-id")
	if err != nil {
		return agent.Options{}, err
	}
	if err := validateRunID(runID); err != nil {
		return agent.Options{}, err
	}

	params, err := parseParams(ctx, args)
	if err != nil {
		return agent.Options{}, err
	}

	rc := ctx.Config.Run
	if v, _ := flags.GetString("input"); v != "" {
		rc.Pattern = v
	}
	if v, _ := flags.GetString("output-dir"); v != "" {
		rc.OutputDir = v
	}
	if v, _ := flags.GetInt("max-active-runs"); v > 0 {
		rc.Concurrency = v
	}
	if v, _ := flags.GetString("cache-mode"); v != "" {
		rc.CacheMode = v
	}
	if v, _ := flags.GetInt("retry-limit"); v >= 0 {
		rc.RetryLimit = v
	}
	if v, _ := flags.GetString("retry-interval"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return agent.Options{}, fmt.Errorf("invalid retry interval %q: %w", v, err)
		}
		rc.RetryInterval = interval
	}

	cacheMode, cacheModeSet, err := rc.CacheModeOverride()
	if err != nil {
		return agent.Options{}, err
	}

	var timeout time.Duration
	if v, _ := flags.GetString("timeout"); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil {
			return agent.Options{}, fmt.Errorf("invalid timeout %q: %w", v, err)
		}
	}

	dry, _ := flags.GetBool("dry-run")
	noMetrics, _ := flags.GetBool("no-metrics")

	var metricsDir string
	if ctx.Config.Metrics.Enabled {
		metricsDir = ctx.Config.Metrics.TextfileDir
	}

	return agent.Options{
		RunID:         runID,
		Pattern:       rc.Pattern,
		OutputDir:     rc.OutputDir,
		LogDir:        ctx.Config.Paths.LogDir,
		DataDir:       ctx.Config.Paths.DataDir,
		Concurrency:   rc.Concurrency,
		Timeout:       timeout,
		Params:        params,
		CacheMode:     cacheMode,
		CacheModeSet:  cacheModeSet,
		RetryOverride: rc.RetryOverride(),
		Dry:           dry,
		NoMetrics:     noMetrics,
		MetricsDir:    metricsDir,
	}, nil
}

// loadRunPipeline loads the pipeline and applies the config-level tracing
// fallback for pipelines without an otel block.
func loadRunPipeline(ctx *Context, path string) (*core.Pipeline, error) {
	p, err := pipeline.Load(ctx, path, pipeline.WithBaseConfig(ctx.Config.Paths.BaseConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline from %s: %w", path, err)
	}
	if p.OTel == nil && ctx.Config.Tracing.Enabled {
		p.OTel = tracingConfigToOTel(ctx.Config.Tracing)
	}
	return p, nil
}

// tracingConfigToOTel maps config-level tracing settings to a pipeline otel
// block. The http protocol is expressed through the endpoint path.
func tracingConfigToOTel(tc config.TracingConfig) *core.OTelConfig {
	endpoint := tc.Endpoint
	if tc.Protocol == "http" && !strings.HasSuffix(endpoint, "/v1/traces") {
		endpoint = strings.TrimSuffix(endpoint, "/") + "/v1/traces"
	}
	return &core.OTelConfig{
		Enabled:  true,
		Endpoint: endpoint,
		Insecure: tc.Insecure,
		Headers:  tc.Headers,
	}
}

// resolvePipelinePath resolves a bare pipeline name against the configured
// pipelines directory. Paths and existing files pass through unchanged.
func resolvePipelinePath(cfg *config.Config, nameOrPath string) string {
	if strings.ContainsRune(nameOrPath, os.PathSeparator) || fileutil.FileExists(nameOrPath) {
		return nameOrPath
	}
	if cfg.Paths.PipelinesDir == "" {
		return nameOrPath
	}
	for _, ext := range []string{"", ".yaml", ".yml"} {
		candidate := filepath.Join(cfg.Paths.PipelinesDir, nameOrPath+ext)
		if fileutil.FileExists(candidate) {
			return candidate
		}
	}
	return nameOrPath
}

// parseParams merges key=value parameters from the --params flag and the
// arguments after the "--" separator.
func parseParams(ctx *Context, args []string) (map[string]string, error) {
	params := make(map[string]string)

	flagVal, err := ctx.StringParam("params")
	if err != nil {
		return nil, err
	}
	pairs := strings.Fields(flagVal)
	if dash := ctx.Command.ArgsLenAtDash(); dash != -1 {
		pairs = append(pairs, args[dash:]...)
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", pair)
		}
		params[key] = value
	}
	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}

func validateRunID(runID string) error {
	if runID == "" {
		return nil
	}
	if !regexRunID.MatchString(runID) {
		return ErrRunIDFormat
	}
	if len(runID) > maxRunIDLen {
		return ErrRunIDTooLong
	}
	return nil
}
