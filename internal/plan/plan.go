// Package plan expands a pipeline definition and a discovered sample set
// into an immutable DAG of stage instances wired together by write-once
// channels. The scheduler in internal/runtime walks the result; nothing in
// this package executes anything.
package plan

import (
	"fmt"

	"github.com/weft-org/weft/internal/core"
)

// SourceKind discriminates where a consumer input comes from.
type SourceKind int

const (
	// SourceSamples binds the input to the discovered sample for the
	// instance key.
	SourceSamples SourceKind = iota
	// SourceParams binds the input to a run-level parameter value.
	SourceParams
	// SourceChannel binds the input to another stage's output channel.
	SourceChannel
)

// InputSource resolves one declared stage input for an instance.
type InputSource struct {
	// Param is the declared input this source feeds.
	Param core.Param
	// Kind discriminates the producer.
	Kind SourceKind
	// Static holds the pre-bound value for samples and params sources.
	Static Value
	// Channel is the producing channel for channel sources.
	Channel *Channel
	// Collect gathers every keyed value of the channel into one
	// collection value.
	Collect bool
}

// Resolve returns the bound value for the instance key. Channel sources
// only resolve after their producer committed; ok is false until then.
func (s InputSource) Resolve(key string) (Value, bool) {
	switch s.Kind {
	case SourceSamples, SourceParams:
		return s.Static, true
	default:
		if s.Collect {
			items := make([]string, 0)
			for _, v := range s.Channel.Collect() {
				items = append(items, v.Items...)
			}
			return Value{Kind: core.ParamKindCollection, Items: items}, true
		}
		return s.Channel.Get(key)
	}
}

// Instance is one concrete invocation of a stage bound to a key. Instances
// are immutable; all mutable run state lives on the scheduler's nodes.
type Instance struct {
	// ID uniquely identifies the instance within the run.
	ID string
	// Stage is the owning stage with run-level overrides applied.
	Stage *core.Stage
	// Key is the sample key, empty for scalar instances.
	Key string
	// Inputs resolves each declared input, in declaration order.
	Inputs []InputSource
	// OutputPaths maps declared output names to their rendered paths.
	OutputPaths map[string]string
	// OutputChannels maps declared output names to the channels consumers
	// read from. Unconsumed outputs have no channel.
	OutputChannels map[string]*Channel
}

// Name returns the display name, stage qualified by key for keyed
// instances.
func (inst *Instance) Name() string {
	if inst.Key == "" {
		return inst.Stage.Name
	}
	return fmt.Sprintf("%s[%s]", inst.Stage.Name, inst.Key)
}

// Plan is the immutable DAG for one run.
type Plan struct {
	// Pipeline is the definition the plan was expanded from.
	Pipeline *core.Pipeline
	// Params are the resolved run-level parameter values.
	Params map[string]string

	instances  []*Instance
	byID       map[string]*Instance
	upstream   map[string][]string
	downstream map[string][]string
}

// Instances returns every instance in stable creation order: stages in
// topological order, keys sorted within a stage.
func (p *Plan) Instances() []*Instance {
	return p.instances
}

// Instance returns the instance with the given id.
func (p *Plan) Instance(id string) (*Instance, bool) {
	inst, ok := p.byID[id]
	return inst, ok
}

// Find returns the instance for the stage and key.
func (p *Plan) Find(stage, key string) (*Instance, bool) {
	for _, inst := range p.instances {
		if inst.Stage.Name == stage && inst.Key == key {
			return inst, true
		}
	}
	return nil, false
}

// Upstream returns the direct dependencies of the instance.
func (p *Plan) Upstream(id string) []*Instance {
	return p.resolve(p.upstream[id])
}

// Downstream returns the direct dependents of the instance.
func (p *Plan) Downstream(id string) []*Instance {
	return p.resolve(p.downstream[id])
}

func (p *Plan) resolve(ids []string) []*Instance {
	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		if inst, ok := p.byID[id]; ok {
			out = append(out, inst)
		}
	}
	return out
}

func (p *Plan) addEdge(from, to *Instance) {
	p.upstream[to.ID] = append(p.upstream[to.ID], from.ID)
	p.downstream[from.ID] = append(p.downstream[from.ID], to.ID)
}
