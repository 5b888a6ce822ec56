package core

import (
	"github.com/robfig/cron/v3"
)

// Pipeline contains a parsed pipeline definition: the stages, the bindings
// wiring them together, and the run-level defaults.
type Pipeline struct {
	// Location is the absolute path to the pipeline file.
	Location string `json:"location,omitempty"`
	// Name is the name of the pipeline.
	Name string `json:"name"`
	// Description is the description of the pipeline. This is optional.
	Description string `json:"description,omitempty"`
	// Schedule contains the cron expressions the pipeline is meant to run
	// on. Validated at load; this tool does not daemonize, external cron
	// invokes the CLI.
	Schedule []Schedule `json:"schedule,omitempty"`
	// MinVersion is a semver constraint on the engine version.
	MinVersion string `json:"minVersion,omitempty"`
	// Env contains environment variables for every stage in key=value form.
	Env []string `json:"env,omitempty"`
	// Dotenv contains paths of dotenv files to load before a run.
	Dotenv []string `json:"dotenv,omitempty"`
	// Samples configures input discovery for sample-bound stages.
	Samples *SampleSource `json:"samples,omitempty"`
	// Params contains run-level parameter defaults, overridable per run.
	Params map[string]string `json:"params,omitempty"`
	// Stages contains the stage definitions.
	Stages []Stage `json:"stages"`
	// Bindings wires producers to consumer inputs.
	Bindings []Binding `json:"bindings,omitempty"`
	// MaxActiveInstances caps concurrently running instances. Zero means
	// the engine default.
	MaxActiveInstances int `json:"maxActiveInstances,omitempty"`
	// CacheMode is the default cache mode for stages that do not set one.
	CacheMode CacheMode `json:"cacheMode,omitempty"`
	// RetryPolicy is the default retry policy for stages that do not set one.
	RetryPolicy *RetryPolicy `json:"retryPolicy,omitempty"`
	// OutputDir is the directory output path templates are relative to.
	OutputDir string `json:"outputDir,omitempty"`
	// WorkingDir is the working directory for stages that do not set one.
	WorkingDir string `json:"workingDir,omitempty"`
	// OTel configures trace export for runs of this pipeline.
	OTel *OTelConfig `json:"otel,omitempty"`
}

// Stage returns the stage with the given name.
func (p *Pipeline) Stage(name string) (*Stage, bool) {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i], true
		}
	}
	return nil, false
}

// StageNames returns the stage names in definition order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i := range p.Stages {
		names[i] = p.Stages[i].Name
	}
	return names
}

// Schedule contains the parsed cron schedule.
type Schedule struct {
	// Expression is the original cron expression.
	Expression string `json:"expression"`
	// Parsed is the parsed cron schedule.
	Parsed cron.Schedule `json:"-"`
}

// SampleSource configures input discovery.
type SampleSource struct {
	// Pattern is the glob pattern matching input files. Supports ** for
	// recursive matching.
	Pattern string `json:"pattern,omitempty"`
	// PairTokens are the filename tokens marking pair members, in pair
	// order. Defaults to _R1 and _R2.
	PairTokens []string `json:"pairTokens,omitempty"`
	// Extensions are the filename suffixes stripped during key
	// derivation, e.g. .fastq.gz.
	Extensions []string `json:"extensions,omitempty"`
	// Require makes an empty match set an error.
	Require bool `json:"require,omitempty"`
}
