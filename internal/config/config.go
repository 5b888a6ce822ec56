package config

import (
	"fmt"
	"time"

	"github.com/weft-org/weft/internal/core"
)

// Config holds the overall configuration for the application.
type Config struct {
	Core     Core
	Paths    PathsConfig
	Run      RunConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
	Warnings []string
}

// Core holds settings that apply to every command.
type Core struct {
	// Debug enables debug-level logging.
	Debug bool
	// LogFormat selects the log output format, "text" or "json".
	LogFormat string
	// Quiet suppresses stderr log output.
	Quiet bool
	// DefaultShell overrides the shell used to run stage commands.
	DefaultShell string
}

// PathsConfig holds resolved file system paths used by the application.
type PathsConfig struct {
	// ConfigDir is the primary configuration directory.
	ConfigDir string
	// PipelinesDir is the directory containing pipeline definitions,
	// used when a run names a pipeline instead of giving a file path.
	PipelinesDir string
	// DataDir is the directory for persisted run data: the artifact
	// store, fingerprint leases, and metrics snapshots.
	DataDir string
	// LogDir is the directory where per-instance log files are stored.
	LogDir string
	// BaseConfig is the full path to the base pipeline definition merged
	// under every loaded pipeline.
	BaseConfig string
	// ConfigFileUsed is the path of the loaded configuration file.
	ConfigFileUsed string
}

// RunConfig holds run-level defaults, overridable per invocation by flags.
type RunConfig struct {
	// Pattern is the default input glob pattern for discovery.
	Pattern string
	// Concurrency caps concurrently running instances. Zero means one
	// slot per CPU.
	Concurrency int
	// OutputDir is the directory stage output paths are rendered into.
	OutputDir string
	// CacheMode overrides the cache mode of every stage when non-empty.
	CacheMode string
	// RetryLimit overrides stage retry limits when >= 0. -1 leaves stage
	// policies untouched.
	RetryLimit int
	// RetryInterval overrides the stage retry interval when positive.
	RetryInterval time.Duration
}

// CacheModeOverride returns the parsed cache mode override, or ok=false when
// stage-level modes apply.
func (r RunConfig) CacheModeOverride() (core.CacheMode, bool, error) {
	if r.CacheMode == "" {
		return core.CacheModeNone, false, nil
	}
	mode, err := core.ParseCacheMode(r.CacheMode)
	if err != nil {
		return core.CacheModeNone, false, err
	}
	return mode, true, nil
}

// RetryOverride returns the retry policy override derived from run config,
// or nil when stage-level policies apply.
func (r RunConfig) RetryOverride() *core.RetryPolicy {
	if r.RetryLimit < 0 && r.RetryInterval <= 0 {
		return nil
	}
	override := &core.RetryPolicy{}
	if r.RetryLimit >= 0 {
		override.Limit = r.RetryLimit
	}
	if r.RetryInterval > 0 {
		override.Interval = r.RetryInterval
	}
	return override
}

// MetricsConfig holds settings for the metrics textfile export.
type MetricsConfig struct {
	// Enabled turns on writing a Prometheus textfile after each run.
	Enabled bool
	// TextfileDir is the directory the .prom snapshot is written to.
	TextfileDir string
}

// TracingConfig holds OpenTelemetry trace export settings.
type TracingConfig struct {
	// Enabled turns on span export for runs.
	Enabled bool
	// Endpoint is the OTLP collector endpoint, host:port.
	Endpoint string
	// Protocol selects the OTLP transport, "grpc" or "http".
	Protocol string
	// Insecure disables TLS on the exporter connection.
	Insecure bool
	// Headers are additional headers sent with each export request.
	Headers map[string]string
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Core.LogFormat != "" && c.Core.LogFormat != "text" && c.Core.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s", c.Core.LogFormat)
	}

	if c.Run.Concurrency < 0 {
		return fmt.Errorf("run concurrency must be >= 0, got %d", c.Run.Concurrency)
	}

	if _, _, err := c.Run.CacheModeOverride(); err != nil {
		return err
	}

	if c.Run.RetryInterval < 0 {
		return fmt.Errorf("run retry interval must be >= 0, got %s", c.Run.RetryInterval)
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint is required when tracing is enabled")
		}
		if c.Tracing.Protocol != "grpc" && c.Tracing.Protocol != "http" {
			return fmt.Errorf("invalid tracing protocol: %s", c.Tracing.Protocol)
		}
	}

	return nil
}
