package plan

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/weft-org/weft/internal/cmdutil"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/discovery"
)

// BuildConfig carries the run-level knobs applied during plan expansion.
type BuildConfig struct {
	// RunID identifies the run the plan belongs to.
	RunID string
	// OutputDir overrides the pipeline output directory when non-empty.
	OutputDir string
	// Params overrides run-level parameter defaults.
	Params map[string]string
	// CacheMode overrides every stage's cache mode when set.
	CacheMode core.CacheMode
	// CacheModeSet reports whether CacheMode carries an override.
	CacheModeSet bool
	// RetryOverride overrides non-zero retry policy fields on every stage.
	RetryOverride *core.RetryPolicy
}

// binding is a parsed consumer-side binding.
type binding struct {
	producer core.Ref
	collect  bool
}

// Build expands the pipeline and the discovered sample set into an
// instance DAG. All structural defects surface here as GraphErrors; a
// returned plan is guaranteed acyclic with every input bound.
func Build(pipeline *core.Pipeline, samples []discovery.Sample, cfg BuildConfig) (*Plan, error) {
	if err := core.ValidateStages(pipeline); err != nil {
		return nil, core.NewGraphError("", err)
	}
	if err := core.ValidateBindings(pipeline); err != nil {
		return nil, err
	}

	b := &builder{
		pipeline: pipeline,
		cfg:      cfg,
		params:   mergeParams(pipeline.Params, cfg.Params),
		samples:  samples,
		bindings: make(map[string]map[string]binding),
		keyed:    make(map[string]bool),
		channels: make(map[string]*Channel),
		byStage:  make(map[string][]*Instance),
	}
	if err := b.parseBindings(); err != nil {
		return nil, err
	}

	order, err := b.topoSort()
	if err != nil {
		return nil, err
	}
	b.computeKeyedness(order)
	b.createChannels()

	p := &Plan{
		Pipeline:   pipeline,
		Params:     b.params,
		byID:       make(map[string]*Instance),
		upstream:   make(map[string][]string),
		downstream: make(map[string][]string),
	}
	for _, name := range order {
		stage, _ := pipeline.Stage(name)
		if err := b.expandStage(p, stage); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type builder struct {
	pipeline *core.Pipeline
	cfg      BuildConfig
	params   map[string]string
	samples  []discovery.Sample

	// bindings maps stage name to param name to its parsed producer.
	bindings map[string]map[string]binding
	keyed    map[string]bool
	// channels maps "stage.output" producer refs to their channels.
	channels map[string]*Channel
	byStage  map[string][]*Instance
}

func (b *builder) parseBindings() error {
	for _, raw := range b.pipeline.Bindings {
		consumer, err := core.ParseConsumerRef(raw.Consumer)
		if err != nil {
			return core.NewGraphError("", err)
		}
		producer, err := core.ParseProducerRef(raw.Producer)
		if err != nil {
			return core.NewGraphError(consumer.Scope, err)
		}
		if b.bindings[consumer.Scope] == nil {
			b.bindings[consumer.Scope] = make(map[string]binding)
		}
		b.bindings[consumer.Scope][consumer.Name] = binding{producer: producer, collect: raw.Collect}
	}
	return nil
}

// topoSort orders stages with Kahn's algorithm, breaking ties by
// definition order so plans are deterministic.
func (b *builder) topoSort() ([]string, error) {
	indegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, stage := range b.pipeline.Stages {
		indegree[stage.Name] = 0
	}
	for consumer, params := range b.bindings {
		seen := make(map[string]struct{})
		for _, bind := range params {
			scope := bind.producer.Scope
			if bind.producer.IsSamples() || bind.producer.IsParams() {
				continue
			}
			if _, dup := seen[scope]; dup {
				continue
			}
			seen[scope] = struct{}{}
			indegree[consumer]++
			dependents[scope] = append(dependents[scope], consumer)
		}
	}

	var queue []string
	for _, stage := range b.pipeline.Stages {
		if indegree[stage.Name] == 0 {
			queue = append(queue, stage.Name)
		}
	}

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) != len(b.pipeline.Stages) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, core.NewGraphError("", fmt.Errorf("%w: involving %v", core.ErrCycleDetected, stuck))
	}
	return order, nil
}

// computeKeyedness marks a stage keyed when any non-collect input comes
// from the sample set or from a keyed producer. Collect bindings break the
// key propagation: they fan every keyed value into one scalar consumer.
func (b *builder) computeKeyedness(order []string) {
	for _, name := range order {
		for _, bind := range b.bindings[name] {
			if bind.collect {
				continue
			}
			if bind.producer.IsSamples() || (!bind.producer.IsParams() && b.keyed[bind.producer.Scope]) {
				b.keyed[name] = true
				break
			}
		}
	}
}

// createChannels allocates one channel per consumed producer output.
// Outputs no binding consumes get no channel; they exist only on disk.
func (b *builder) createChannels() {
	for _, params := range b.bindings {
		for _, bind := range params {
			if bind.producer.IsSamples() || bind.producer.IsParams() {
				continue
			}
			ref := bind.producer.String()
			if _, ok := b.channels[ref]; !ok {
				b.channels[ref] = NewChannel(ref, b.keyed[bind.producer.Scope])
			}
		}
	}
}

func (b *builder) expandStage(p *Plan, stage *core.Stage) error {
	effective := b.effectiveStage(stage)

	keys := []string{""}
	if b.keyed[stage.Name] {
		keys = make([]string, 0, len(b.samples))
		for _, s := range b.samples {
			keys = append(keys, s.Key)
		}
	}

	for _, key := range keys {
		inst, err := b.buildInstance(effective, key)
		if err != nil {
			return err
		}
		p.instances = append(p.instances, inst)
		p.byID[inst.ID] = inst
		b.byStage[stage.Name] = append(b.byStage[stage.Name], inst)
		b.wireEdges(p, inst)
	}
	return nil
}

// effectiveStage folds pipeline defaults and run overrides into a copy of
// the stage. The original pipeline definition stays untouched.
func (b *builder) effectiveStage(stage *core.Stage) *core.Stage {
	eff := *stage

	if eff.CacheMode == "" {
		eff.CacheMode = b.pipeline.CacheMode
	}
	if eff.CacheMode == "" {
		eff.CacheMode = core.CacheModeNone
	}
	if b.cfg.CacheModeSet {
		eff.CacheMode = b.cfg.CacheMode
	}

	base := core.RetryPolicy{}
	if b.pipeline.RetryPolicy != nil {
		base = *b.pipeline.RetryPolicy
	}
	eff.RetryPolicy = base.Merge(&stage.RetryPolicy).Merge(b.cfg.RetryOverride)

	if eff.Dir == "" {
		eff.Dir = b.pipeline.WorkingDir
	}
	return &eff
}

func (b *builder) buildInstance(stage *core.Stage, key string) (*Instance, error) {
	inst := &Instance{
		ID:             instanceID(stage.Name, key),
		Stage:          stage,
		Key:            key,
		OutputPaths:    make(map[string]string, len(stage.Outputs)),
		OutputChannels: make(map[string]*Channel),
	}

	for _, out := range stage.Outputs {
		path, err := b.renderOutputPath(out.Path, key)
		if err != nil {
			return nil, core.NewGraphError(stage.Name, fmt.Errorf("output %s: %w", out.Name, err))
		}
		inst.OutputPaths[out.Name] = path
		ref := core.Ref{Scope: stage.Name, Name: out.Name}
		if ch, ok := b.channels[ref.String()]; ok {
			inst.OutputChannels[out.Name] = ch
		}
	}

	for _, param := range stage.Params {
		src, err := b.bindInput(stage, param, key)
		if err != nil {
			return nil, err
		}
		inst.Inputs = append(inst.Inputs, src)
	}
	return inst, nil
}

func (b *builder) bindInput(stage *core.Stage, param core.Param, key string) (InputSource, error) {
	bind, bound := b.bindings[stage.Name][param.Name]
	if !bound {
		// Validation guarantees only value params reach here.
		val, ok := b.params[param.Name]
		if !ok {
			val = param.Default
		}
		return InputSource{
			Param:  param,
			Kind:   SourceParams,
			Static: Value{Kind: core.ParamKindValue, Items: []string{val}},
		}, nil
	}

	switch {
	case bind.producer.IsSamples():
		sample, ok := b.sampleByKey(key)
		if !ok {
			return InputSource{}, core.NewGraphError(stage.Name, fmt.Errorf("no sample for key %q", key))
		}
		if err := checkArity(param, sample); err != nil {
			return InputSource{}, core.NewGraphError(stage.Name, err)
		}
		return InputSource{
			Param:  param,
			Kind:   SourceSamples,
			Static: Value{Kind: param.Kind, Items: sample.Paths},
		}, nil
	case bind.producer.IsParams():
		val, ok := b.params[bind.producer.Name]
		if !ok {
			return InputSource{}, core.NewGraphError(stage.Name, fmt.Errorf("%w: %s", core.ErrBindingProducerUnknown, bind.producer))
		}
		return InputSource{
			Param:  param,
			Kind:   SourceParams,
			Static: Value{Kind: core.ParamKindValue, Items: []string{val}},
		}, nil
	default:
		ch := b.channels[bind.producer.String()]
		return InputSource{
			Param:   param,
			Kind:    SourceChannel,
			Channel: ch,
			Collect: bind.collect,
		}, nil
	}
}

// wireEdges connects the instance to the producer instances feeding its
// channel inputs. Producers always exist already because stages expand in
// topological order.
func (b *builder) wireEdges(p *Plan, inst *Instance) {
	seen := make(map[string]struct{})
	for _, src := range inst.Inputs {
		if src.Kind != SourceChannel {
			continue
		}
		bind := b.bindings[inst.Stage.Name][src.Param.Name]
		producers := b.byStage[bind.producer.Scope]
		for _, prod := range producers {
			if !src.Collect && src.Channel.Keyed() && prod.Key != inst.Key {
				continue
			}
			if _, dup := seen[prod.ID]; dup {
				continue
			}
			seen[prod.ID] = struct{}{}
			p.addEdge(prod, inst)
		}
	}
}

func (b *builder) renderOutputPath(template, key string) (string, error) {
	vars := map[string]string{"key": key}
	rendered, err := cmdutil.EvalString(template,
		cmdutil.WithVariables(vars),
		cmdutil.WithVariables(b.params),
		cmdutil.WithoutExpandEnv())
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(rendered) {
		rendered = filepath.Join(b.outputDir(), rendered)
	}
	return filepath.Clean(rendered), nil
}

func (b *builder) outputDir() string {
	if b.cfg.OutputDir != "" {
		return b.cfg.OutputDir
	}
	if b.pipeline.OutputDir != "" {
		return b.pipeline.OutputDir
	}
	return "."
}

func (b *builder) sampleByKey(key string) (discovery.Sample, bool) {
	for _, s := range b.samples {
		if s.Key == key {
			return s, true
		}
	}
	return discovery.Sample{}, false
}

func checkArity(param core.Param, sample discovery.Sample) error {
	switch param.Kind {
	case core.ParamKindFile:
		if len(sample.Paths) != 1 {
			return fmt.Errorf("param %s expects a single file, sample %s has %d", param.Name, sample.Key, len(sample.Paths))
		}
	case core.ParamKindFilePair:
		if len(sample.Paths) != 2 {
			return fmt.Errorf("%w: param %s expects a file pair, sample %s has %d file(s)", core.ErrUnpairedSample, param.Name, sample.Key, len(sample.Paths))
		}
	}
	return nil
}

func instanceID(stage, key string) string {
	if key == "" {
		return stage
	}
	return fmt.Sprintf("%s[%s]", stage, key)
}

func mergeParams(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
