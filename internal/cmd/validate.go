package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/discovery"
	"github.com/weft-org/weft/internal/pipeline"
	"github.com/weft-org/weft/internal/plan"
	"github.com/weft-org/weft/internal/stringutil"
)

var validateFlags = []commandLineFlag{inputFlag, paramsFlag}

// CmdValidate creates the command checking a pipeline without running it.
func CmdValidate() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "validate [flags] <pipeline>",
			Short: "Check a pipeline definition without running it",
			Long: `Load a pipeline definition, discover inputs, and build the execution plan
without running any commands. Definition errors and graph errors such as
cycles, unknown stages, or arity conflicts are reported.

Example:
  weft validate variant-calls.yaml --input 'reads/*.fastq.gz'
`,
			Args: cobra.ExactArgs(1),
		}, validateFlags, runValidate,
	)
}

func runValidate(ctx *Context, args []string) error {
	out := ctx.Command.OutOrStdout()
	path := resolvePipelinePath(ctx.Config, args[0])

	p, err := pipeline.Load(ctx, path, pipeline.WithBaseConfig(ctx.Config.Paths.BaseConfig))
	if err != nil {
		return fmt.Errorf("failed to load pipeline from %s: %w", path, err)
	}

	params, err := parseParams(ctx, args)
	if err != nil {
		return err
	}

	samples, err := validateDiscover(ctx, p)
	if err != nil {
		return err
	}

	pl, err := plan.Build(p, samples, plan.BuildConfig{RunID: "validate", Params: params})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pipeline %s is valid\n", p.Name)
	fmt.Fprintf(out, "  Stages:    %d\n", len(p.Stages))
	fmt.Fprintf(out, "  Samples:   %d\n", len(samples))
	fmt.Fprintf(out, "  Instances: %d\n", len(pl.Instances()))

	now := time.Now()
	for _, s := range p.Schedule {
		next := s.Parsed.Next(now)
		fmt.Fprintf(out, "  Schedule:  %s (next run %s, in %s)\n",
			s.Expression,
			next.Format(time.RFC3339),
			stringutil.FormatDuration(next.Sub(now)),
		)
	}
	return nil
}

// validateDiscover runs input discovery when the pipeline or flags configure
// it. A pattern matching nothing is only an error when the pipeline requires
// matches.
func validateDiscover(ctx *Context, p *core.Pipeline) ([]discovery.Sample, error) {
	pattern, err := ctx.StringParam("input")
	if err != nil {
		return nil, err
	}
	if pattern == "" && ctx.Config.Run.Pattern != "" {
		pattern = ctx.Config.Run.Pattern
	}

	src := p.Samples
	if src == nil && pattern == "" {
		return nil, nil
	}

	cfg := discovery.Config{Pattern: pattern}
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
