package pipeline

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// schemaDef mirrors definition with the canonical type of each field, so
// the generated schema documents the normalized shape rather than the
// permissive decode shapes.
type schemaDef struct {
	Name               string            `json:"name,omitempty"`
	Description        string            `json:"description,omitempty"`
	Schedule           []string          `json:"schedule,omitempty"`
	MinVersion         string            `json:"minVersion,omitempty"`
	Env                map[string]string `json:"env,omitempty"`
	Dotenv             []string          `json:"dotenv,omitempty"`
	Samples            *schemaSamples    `json:"samples,omitempty"`
	Params             map[string]string `json:"params,omitempty"`
	Stages             []schemaStage     `json:"stages"`
	Bindings           []schemaBinding   `json:"bindings,omitempty"`
	MaxActiveInstances int               `json:"maxActiveInstances,omitempty"`
	CacheMode          string            `json:"cacheMode,omitempty"`
	RetryPolicy        *schemaRetry      `json:"retryPolicy,omitempty"`
	OutputDir          string            `json:"outputDir,omitempty"`
	WorkingDir         string            `json:"workingDir,omitempty"`
	OTel               *schemaOTel       `json:"otel,omitempty"`
}

type schemaSamples struct {
	Pattern    string   `json:"pattern,omitempty"`
	PairTokens []string `json:"pairTokens,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	Require    bool     `json:"require,omitempty"`
}

type schemaStage struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Params       []schemaParam     `json:"params,omitempty"`
	Outputs      []schemaOutput    `json:"outputs,omitempty"`
	Command      string            `json:"command,omitempty"`
	Shell        string            `json:"shell,omitempty"`
	Dir          string            `json:"dir,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Executor     *schemaExecutor   `json:"executor,omitempty"`
	RetryPolicy  *schemaRetry      `json:"retryPolicy,omitempty"`
	CacheMode    string            `json:"cacheMode,omitempty"`
	Container    *schemaContainer  `json:"container,omitempty"`
	Threads      int               `json:"threads,omitempty"`
	Stdout       string            `json:"stdout,omitempty"`
	Stderr       string            `json:"stderr,omitempty"`
	SignalOnStop string            `json:"signalOnStop,omitempty"`
}

type schemaParam struct {
	Name    string `json:"name"`
	Kind    string `json:"kind,omitempty"`
	Default any    `json:"default,omitempty"`
}

type schemaOutput struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type schemaBinding struct {
	Producer string `json:"producer"`
	Consumer string `json:"consumer"`
	Collect  bool   `json:"collect,omitempty"`
}

type schemaRetry struct {
	Limit       int     `json:"limit,omitempty"`
	Interval    string  `json:"interval,omitempty"`
	ExitCodes   []int   `json:"exitCodes,omitempty"`
	Backoff     float64 `json:"backoff,omitempty"`
	MaxInterval string  `json:"maxInterval,omitempty"`
}

type schemaExecutor struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

type schemaContainer struct {
	Image      string            `json:"image"`
	Platform   string            `json:"platform,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Volumes    []string          `json:"volumes,omitempty"`
	WorkingDir string            `json:"workingDir,omitempty"`
	Pull       string            `json:"pull,omitempty"`
}

type schemaOTel struct {
	Enabled  bool              `json:"enabled,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Insecure bool              `json:"insecure,omitempty"`
	Timeout  string            `json:"timeout,omitempty"`
	Resource map[string]any    `json:"resource,omitempty"`
}

// DefinitionSchema returns the JSON schema of the pipeline file format.
func DefinitionSchema() (*jsonschema.Schema, error) {
	return jsonschema.For[schemaDef](nil)
}
