package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/robfig/cron/v3"

	"github.com/weft-org/weft/internal/build"
	"github.com/weft-org/weft/internal/cmdutil"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/signal"
)

// BuilderFn is a function that builds a part of the pipeline.
type BuilderFn func(ctx BuildContext, def *definition, p *core.Pipeline) error

// BuildContext is the context for building a pipeline.
type BuildContext struct {
	ctx  context.Context
	file string
	opts BuildOpts
}

func (c BuildContext) WithOpts(opts BuildOpts) BuildContext {
	copy := c
	copy.opts = opts
	return copy
}

func (c BuildContext) WithFile(file string) BuildContext {
	copy := c
	copy.file = file
	return copy
}

// BuildOpts is used to control the behavior of the builder.
type BuildOpts struct {
	// Base specifies the base configuration file merged under the pipeline.
	Base string
	// Name of the pipeline if it's not defined in the file.
	Name string
	// OnlyMetadata specifies whether to build only the metadata fields.
	OnlyMetadata bool
	// NoEval specifies whether to skip evaluation of dynamic fields.
	NoEval bool
}

var builderRegistry = []builderEntry{
	{metadata: true, name: "name", fn: buildName},
	{metadata: true, name: "schedule", fn: buildSchedule},
	{metadata: true, name: "minVersion", fn: buildMinVersion},
	{metadata: true, name: "samples", fn: buildSamples},
	{metadata: true, name: "params", fn: buildParams},
	{name: "env", fn: buildEnv},
	{name: "dotenv", fn: buildDotenv},
	{name: "stages", fn: buildStages},
	{name: "bindings", fn: buildBindings},
	{name: "defaults", fn: buildDefaults},
	{name: "otel", fn: buildOTel},
}

type builderEntry struct {
	metadata bool
	name     string
	fn       BuilderFn
}

var stageBuilderRegistry = []stageBuilderEntry{
	{name: "executor", fn: buildExecutor},
	{name: "params", fn: buildStageParams},
	{name: "outputs", fn: buildOutputs},
	{name: "env", fn: buildStageEnv},
	{name: "retryPolicy", fn: buildRetryPolicy},
	{name: "container", fn: buildContainer},
	{name: "signalOnStop", fn: buildSignalOnStop},
}

type stageBuilderEntry struct {
	name string
	fn   StageBuilderFn
}

// StageBuilderFn is a function that builds a part of a stage.
type StageBuilderFn func(ctx BuildContext, def stageDef, stage *core.Stage) error

// buildPipeline builds a pipeline from the raw definition.
func buildPipeline(ctx BuildContext, def *definition) (*core.Pipeline, error) {
	p := &core.Pipeline{
		Location:    ctx.file,
		Name:        def.Name,
		Description: def.Description,
	}

	var errs core.ErrorList
	for _, builder := range builderRegistry {
		if !builder.metadata && ctx.opts.OnlyMetadata {
			continue
		}
		if err := builder.fn(ctx, def, p); err != nil {
			errs = append(errs, core.WrapError(builder.name, nil, err))
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if !ctx.opts.OnlyMetadata {
		if err := core.ValidateStages(p); err != nil {
			return nil, err
		}
		if err := core.ValidateBindings(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func buildName(ctx BuildContext, def *definition, p *core.Pipeline) error {
	if p.Name == "" {
		p.Name = ctx.opts.Name
	}
	if p.Name == "" {
		p.Name = defaultName(ctx.file)
	}
	if len(p.Name) > 40 {
		return core.ErrNameTooLong
	}
	return nil
}

func buildSchedule(_ BuildContext, def *definition, p *core.Pipeline) error {
	var exprs []string
	switch v := def.Schedule.(type) {
	case nil:
	case string:
		exprs = append(exprs, v)
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return core.WrapError("schedule", e, core.ErrScheduleMustBeStringOrArray)
			}
			exprs = append(exprs, s)
		}
	default:
		return core.WrapError("schedule", def.Schedule, core.ErrScheduleMustBeStringOrArray)
	}

	for _, expr := range exprs {
		parsed, err := cron.ParseStandard(expr)
		if err != nil {
			return core.WrapError("schedule", expr, fmt.Errorf("%w: %s", core.ErrInvalidSchedule, err))
		}
		p.Schedule = append(p.Schedule, core.Schedule{Expression: expr, Parsed: parsed})
	}
	return nil
}

func buildMinVersion(_ BuildContext, def *definition, p *core.Pipeline) error {
	if def.MinVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + def.MinVersion)
	if err != nil {
		return core.WrapError("minVersion", def.MinVersion, err)
	}
	p.MinVersion = def.MinVersion

	current, err := semver.NewVersion(strings.TrimPrefix(build.Version, "v"))
	if err != nil {
		// Non-semver builds (dev builds) skip the check.
		return nil
	}
	if !constraint.Check(current) {
		return fmt.Errorf("pipeline requires version >= %s, this is %s", def.MinVersion, build.Version)
	}
	return nil
}

func buildSamples(_ BuildContext, def *definition, p *core.Pipeline) error {
	if def.Samples == nil {
		return nil
	}
	p.Samples = &core.SampleSource{
		Pattern:    def.Samples.Pattern,
		PairTokens: def.Samples.PairTokens,
		Extensions: def.Samples.Extensions,
		Require:    def.Samples.Require,
	}
	return nil
}

func buildParams(_ BuildContext, def *definition, p *core.Pipeline) error {
	if len(def.Params) == 0 {
		return nil
	}
	p.Params = make(map[string]string, len(def.Params))
	for name, value := range def.Params {
		p.Params[name] = stringify(value)
	}
	return nil
}

func buildEnv(ctx BuildContext, def *definition, p *core.Pipeline) error {
	env, err := parseEnv(ctx, def.Env)
	if err != nil {
		return err
	}
	p.Env = env
	return nil
}

func buildDotenv(_ BuildContext, def *definition, p *core.Pipeline) error {
	switch v := def.Dotenv.(type) {
	case nil:
	case string:
		p.Dotenv = append(p.Dotenv, v)
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return core.WrapError("dotenv", e, core.ErrDotEnvMustBeStringOrArray)
			}
			p.Dotenv = append(p.Dotenv, s)
		}
	default:
		return core.WrapError("dotenv", def.Dotenv, core.ErrDotEnvMustBeStringOrArray)
	}
	return nil
}

func buildStages(ctx BuildContext, def *definition, p *core.Pipeline) error {
	for _, stageDef := range def.Stages {
		stage := core.Stage{
			Name:        stageDef.Name,
			Description: stageDef.Description,
			Command:     stageDef.Command,
			Shell:       stageDef.Shell,
			Dir:         stageDef.Dir,
			Threads:     stageDef.Threads,
			Stdout:      stageDef.Stdout,
			Stderr:      stageDef.Stderr,
		}
		var err error
		stage.CacheMode, err = parseCacheMode(stageDef.CacheMode)
		if err != nil {
			return core.WrapError("cacheMode", stageDef.CacheMode, err)
		}

		for _, builder := range stageBuilderRegistry {
			if err := builder.fn(ctx, stageDef, &stage); err != nil {
				return core.WrapError(builder.name, stageDef.Name, err)
			}
		}
		p.Stages = append(p.Stages, stage)
	}
	return nil
}

func buildBindings(_ BuildContext, def *definition, p *core.Pipeline) error {
	for _, b := range def.Bindings {
		if _, err := core.ParseProducerRef(b.Producer); err != nil {
			return err
		}
		if _, err := core.ParseConsumerRef(b.Consumer); err != nil {
			return err
		}
		p.Bindings = append(p.Bindings, core.Binding{
			Producer: b.Producer,
			Consumer: b.Consumer,
			Collect:  b.Collect,
		})
	}
	return nil
}

func buildDefaults(_ BuildContext, def *definition, p *core.Pipeline) error {
	p.MaxActiveInstances = def.MaxActiveInstances
	p.OutputDir = def.OutputDir
	p.WorkingDir = def.WorkingDir

	mode, err := parseCacheMode(def.CacheMode)
	if err != nil {
		return core.WrapError("cacheMode", def.CacheMode, err)
	}
	p.CacheMode = mode

	if def.RetryPolicy != nil {
		policy, err := parseRetryPolicy(def.RetryPolicy)
		if err != nil {
			return core.WrapError("retryPolicy", nil, err)
		}
		p.RetryPolicy = &policy
	}
	return nil
}

func buildOTel(_ BuildContext, def *definition, p *core.Pipeline) error {
	if def.OTel == nil {
		return nil
	}
	v, ok := def.OTel.(map[string]any)
	if !ok {
		return core.WrapError("otel", def.OTel, fmt.Errorf("otel must be a map"))
	}

	cfg := &core.OTelConfig{}
	if enabled, ok := v["enabled"].(bool); ok {
		cfg.Enabled = enabled
	}
	if endpoint, ok := v["endpoint"].(string); ok {
		cfg.Endpoint = endpoint
	}
	if headers, ok := v["headers"].(map[string]any); ok {
		cfg.Headers = make(map[string]string, len(headers))
		for key, val := range headers {
			if s, ok := val.(string); ok {
				cfg.Headers[key] = s
			}
		}
	}
	if insecure, ok := v["insecure"].(bool); ok {
		cfg.Insecure = insecure
	}
	if raw, ok := v["timeout"]; ok {
		timeout, err := parseDuration(raw)
		if err != nil {
			return core.WrapError("otel.timeout", raw, err)
		}
		cfg.Timeout = timeout
	}
	if res, ok := v["resource"].(map[string]any); ok {
		cfg.Resource = res
	}
	p.OTel = cfg
	return nil
}

func buildExecutor(_ BuildContext, def stageDef, stage *core.Stage) error {
	switch v := def.Executor.(type) {
	case nil:
		return nil
	case string:
		stage.ExecutorConfig.Type = v
	case map[string]any:
		for key, val := range v {
			switch key {
			case "type":
				typ, ok := val.(string)
				if !ok {
					return core.ErrExecutorTypeMustBeString
				}
				stage.ExecutorConfig.Type = typ
			case "config":
				cfg, ok := val.(map[string]any)
				if !ok {
					return core.ErrExecutorConfigValueMustBeMap
				}
				stage.ExecutorConfig.Config = cfg
			default:
				return fmt.Errorf("%w: %q", core.ErrExecutorHasInvalidKey, key)
			}
		}
	default:
		return core.ErrExecutorConfigMustBeStringOrMap
	}

	return core.ValidateExecutorConfig(stage.ExecutorConfig.Type, stage.ExecutorConfig.Config)
}

func buildStageParams(_ BuildContext, def stageDef, stage *core.Stage) error {
	for _, p := range def.Params {
		kind := core.ParamKind(p.Kind)
		if p.Kind == "" {
			kind = core.ParamKindValue
		}
		stage.Params = append(stage.Params, core.Param{
			Name:    p.Name,
			Kind:    kind,
			Default: stringify(p.Default),
		})
	}
	return nil
}

func buildOutputs(_ BuildContext, def stageDef, stage *core.Stage) error {
	for _, o := range def.Outputs {
		stage.Outputs = append(stage.Outputs, core.Output{Name: o.Name, Path: o.Path})
	}
	return nil
}

func buildStageEnv(ctx BuildContext, def stageDef, stage *core.Stage) error {
	env, err := parseEnv(ctx, def.Env)
	if err != nil {
		return err
	}
	stage.Env = env
	return nil
}

func buildRetryPolicy(_ BuildContext, def stageDef, stage *core.Stage) error {
	if def.RetryPolicy == nil {
		return nil
	}
	policy, err := parseRetryPolicy(def.RetryPolicy)
	if err != nil {
		return err
	}
	stage.RetryPolicy = policy
	return nil
}

func buildContainer(_ BuildContext, def stageDef, stage *core.Stage) error {
	if def.Container == nil {
		return nil
	}
	if def.Container.Image == "" {
		return fmt.Errorf("container image is required")
	}
	env, err := parseEnv(BuildContext{opts: BuildOpts{NoEval: true}}, def.Container.Env)
	if err != nil {
		return err
	}
	switch def.Container.Pull {
	case "", "always", "missing", "never":
	default:
		return fmt.Errorf("invalid pull policy %q", def.Container.Pull)
	}
	stage.Container = &core.Container{
		Image:      def.Container.Image,
		Platform:   def.Container.Platform,
		Env:        env,
		Volumes:    def.Container.Volumes,
		WorkingDir: def.Container.WorkingDir,
		Pull:       def.Container.Pull,
	}
	return nil
}

func buildSignalOnStop(_ BuildContext, def stageDef, stage *core.Stage) error {
	if def.SignalOnStop == "" {
		return nil
	}
	sig := strings.ToUpper(def.SignalOnStop)
	if !strings.HasPrefix(sig, "SIG") {
		sig = "SIG" + sig
	}
	if _, ok := signal.Lookup(sig); !ok {
		return fmt.Errorf("%w: %q", core.ErrInvalidSignal, def.SignalOnStop)
	}
	stage.SignalOnStop = sig
	return nil
}

// parseEnv accepts a name->value map or a list of name=value strings and
// returns sorted name=value pairs. Values are evaluated unless NoEval is
// set, so env entries can reference the process environment.
func parseEnv(ctx BuildContext, raw any) ([]string, error) {
	var pairs []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, k+"="+stringify(v[k]))
		}
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok || !strings.Contains(s, "=") {
				return nil, core.WrapError("env", e, core.ErrInvalidEnvValue)
			}
			pairs = append(pairs, s)
		}
	default:
		return nil, core.WrapError("env", raw, core.ErrInvalidEnvValue)
	}

	if ctx.opts.NoEval {
		return pairs, nil
	}
	evaled := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		name, value, _ := strings.Cut(pair, "=")
		expanded, err := cmdutil.EvalString(value)
		if err != nil {
			return nil, core.WrapError("env", pair, err)
		}
		evaled = append(evaled, name+"="+expanded)
	}
	return evaled, nil
}

func parseRetryPolicy(def *retryPolicyDef) (core.RetryPolicy, error) {
	interval, err := parseDuration(def.Interval)
	if err != nil {
		return core.RetryPolicy{}, fmt.Errorf("interval: %w", err)
	}
	maxInterval, err := parseDuration(def.MaxInterval)
	if err != nil {
		return core.RetryPolicy{}, fmt.Errorf("maxInterval: %w", err)
	}
	return core.RetryPolicy{
		Limit:       def.Limit,
		Interval:    interval,
		ExitCodes:   def.ExitCodes,
		Backoff:     def.Backoff,
		MaxInterval: maxInterval,
	}, nil
}

func parseCacheMode(s string) (core.CacheMode, error) {
	if s == "" {
		return "", nil
	}
	return core.ParseCacheMode(s)
}

// parseDuration accepts a Go duration string or a bare number of seconds.
func parseDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case string:
		return time.ParseDuration(v)
	case int:
		return time.Second * time.Duration(v), nil
	case int64:
		return time.Second * time.Duration(v), nil
	case uint64:
		return time.Second * time.Duration(v), nil
	case float64:
		return time.Duration(float64(time.Second) * v), nil
	default:
		return 0, fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
