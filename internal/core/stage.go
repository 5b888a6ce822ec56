package core

import (
	"fmt"
	"strings"
	"time"
)

// Stage contains the runtime information for a stage in a pipeline.
// A stage is created from parsing a pipeline file written in YAML.
// It marshals/unmarshals to/from JSON when it is saved in the run manifest.
type Stage struct {
	// Name is the name of the stage.
	Name string `json:"name"`
	// Description is the description of the stage. This is optional.
	Description string `json:"description,omitempty"`
	// Params declares the inputs the stage consumes.
	Params []Param `json:"params,omitempty"`
	// Outputs declares the files the stage produces.
	Outputs []Output `json:"outputs,omitempty"`
	// Command is the command template. Placeholders reference params and
	// outputs by name using ${name} syntax.
	Command string `json:"command,omitempty"`
	// Shell is the shell program used to run the command. This is optional.
	Shell string `json:"shell,omitempty"`
	// Dir is the working directory for the stage.
	Dir string `json:"dir,omitempty"`
	// Env contains environment variables for the stage in key=value form.
	Env []string `json:"env,omitempty"`
	// ExecutorConfig contains the configuration for the executor.
	ExecutorConfig ExecutorConfig `json:"executorConfig,omitzero"`
	// RetryPolicy contains the retry policy for the stage.
	RetryPolicy RetryPolicy `json:"retryPolicy,omitzero"`
	// CacheMode controls whether completed invocations are reused.
	CacheMode CacheMode `json:"cacheMode,omitempty"`
	// Container holds the container image hint for container-backed runs.
	Container *Container `json:"container,omitempty"`
	// Threads is the thread count hint passed to the command template.
	Threads int `json:"threads,omitempty"`
	// Stdout is the file to store the standard output.
	Stdout string `json:"stdout,omitempty"`
	// Stderr is the file to store the standard error.
	Stderr string `json:"stderr,omitempty"`
	// SignalOnStop is the signal to send on stop.
	SignalOnStop string `json:"signalOnStop,omitempty"`
}

// String returns a formatted string representation of the stage.
func (s *Stage) String() string {
	paramNames := make([]string, len(s.Params))
	for i, p := range s.Params {
		paramNames[i] = p.Name
	}

	fields := []struct {
		name  string
		value string
	}{
		{"Name", s.Name},
		{"Dir", s.Dir},
		{"Command", s.Command},
		{"Params", fmt.Sprintf("[%s]", strings.Join(paramNames, ", "))},
		{"CacheMode", s.CacheMode.String()},
	}

	var parts []string
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field.name, field.value))
	}

	return strings.Join(parts, "\t")
}

// Param returns the declared param with the given name.
func (s *Stage) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Output returns the declared output with the given name.
func (s *Stage) Output(name string) (Output, bool) {
	for _, o := range s.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// ParamKind classifies a stage input.
type ParamKind string

const (
	// ParamKindValue is a plain configuration value.
	ParamKindValue ParamKind = "value"
	// ParamKindFile is a single input file.
	ParamKindFile ParamKind = "file"
	// ParamKindFilePair is a pair of related input files, bound in order.
	ParamKindFilePair ParamKind = "file-pair"
	// ParamKindCollection gathers every keyed value of the producer.
	ParamKindCollection ParamKind = "collection"
)

// Valid reports whether the kind is one of the known tokens.
func (k ParamKind) Valid() bool {
	switch k {
	case ParamKindValue, ParamKindFile, ParamKindFilePair, ParamKindCollection:
		return true
	default:
		return false
	}
}

// IsFileBacked reports whether values of this kind name files on disk.
func (k ParamKind) IsFileBacked() bool {
	return k == ParamKindFile || k == ParamKindFilePair || k == ParamKindCollection
}

// String returns the lowercase token for the kind.
func (k ParamKind) String() string {
	return string(k)
}

// Param declares a stage input.
type Param struct {
	// Name is the placeholder name in the command template.
	Name string `json:"name"`
	// Kind classifies the input.
	Kind ParamKind `json:"kind"`
	// Default is the value used when no binding or run config provides one.
	// Only meaningful for value params.
	Default string `json:"default,omitempty"`
}

// Output declares a file produced by a stage.
type Output struct {
	// Name is the placeholder name in the command template.
	Name string `json:"name"`
	// Path is the file path template, rendered per instance. The ${key}
	// placeholder expands to the instance key for keyed stages.
	Path string `json:"path"`
}

// ExecutorConfig contains the configuration for the executor.
type ExecutorConfig struct {
	// Type represents one of the registered executors.
	// See `executor.RegisterExecutor` in `internal/runtime/executor`.
	Type string `json:"type,omitempty"`
	// Config contains executor-specific configuration.
	Config map[string]any `json:"config,omitempty"`
}

// IsCommand returns true if the executor is a command executor.
func (e ExecutorConfig) IsCommand() bool {
	return e.Type == "" || e.Type == "command"
}

// RetryPolicy contains the retry policy for a stage.
type RetryPolicy struct {
	// Limit is the number of retries allowed. The first invocation does
	// not count, so Limit=2 allows three invocations in total.
	Limit int `json:"limit,omitempty"`
	// Interval is the time to wait between retries.
	Interval time.Duration `json:"interval,omitempty"`
	// ExitCodes is the list of exit codes that should trigger a retry.
	// Empty means any non-zero exit code is retriable.
	ExitCodes []int `json:"exitCode,omitempty"`
	// Backoff is the exponential backoff multiplier (e.g., 2.0 for doubling).
	Backoff float64 `json:"backoff,omitempty"`
	// MaxInterval is the maximum interval cap for exponential backoff.
	MaxInterval time.Duration `json:"maxInterval,omitempty"`
}

// ShouldRetry reports whether the given exit code is retriable under the policy.
func (p RetryPolicy) ShouldRetry(exitCode int) bool {
	if len(p.ExitCodes) == 0 {
		return exitCode != 0
	}
	for _, code := range p.ExitCodes {
		if code == exitCode {
			return true
		}
	}
	return false
}

// Merge returns the policy with non-zero fields of the override applied.
func (p RetryPolicy) Merge(override *RetryPolicy) RetryPolicy {
	if override == nil {
		return p
	}
	merged := p
	if override.Limit != 0 {
		merged.Limit = override.Limit
	}
	if override.Interval != 0 {
		merged.Interval = override.Interval
	}
	if len(override.ExitCodes) > 0 {
		merged.ExitCodes = override.ExitCodes
	}
	if override.Backoff != 0 {
		merged.Backoff = override.Backoff
	}
	if override.MaxInterval != 0 {
		merged.MaxInterval = override.MaxInterval
	}
	return merged
}

// Container specifies the container image a stage command runs in.
type Container struct {
	// Image is the container image reference.
	Image string `json:"image"`
	// Platform is the target platform (e.g. linux/amd64). This is optional.
	Platform string `json:"platform,omitempty"`
	// Env contains additional environment variables in key=value form.
	Env []string `json:"env,omitempty"`
	// Volumes contains bind mounts in host:container form.
	Volumes []string `json:"volumes,omitempty"`
	// WorkingDir is the working directory inside the container.
	WorkingDir string `json:"workingDir,omitempty"`
	// Pull controls whether the image is pulled before the run.
	// Accepts "always", "missing" (default), or "never".
	Pull string `json:"pull,omitempty"`
}
