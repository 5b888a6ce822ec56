package config

// Definition holds the raw configuration as read from external sources.
// Each field maps to a configuration key in the YAML config file.
type Definition struct {
	// Debug toggles debug mode; when true, the application outputs debug logs.
	Debug bool `mapstructure:"debug"`

	// LogFormat defines the output format for log messages, "json" or "text".
	LogFormat string `mapstructure:"logFormat"`

	// Quiet suppresses stderr log output.
	Quiet bool `mapstructure:"quiet"`

	// DefaultShell specifies the default shell to use for command execution.
	// If not provided, platform-specific defaults are used.
	DefaultShell string `mapstructure:"defaultShell"`

	// Paths holds filesystem path configurations.
	Paths *PathsDef `mapstructure:"paths"`

	// Run holds run-level defaults.
	Run *RunDef `mapstructure:"run"`

	// Metrics holds metrics textfile export settings.
	Metrics *MetricsDef `mapstructure:"metrics"`

	// Tracing holds OpenTelemetry export settings.
	Tracing *TracingDef `mapstructure:"tracing"`
}

// PathsDef holds raw filesystem path settings.
type PathsDef struct {
	PipelinesDir string `mapstructure:"pipelinesDir"`
	DataDir      string `mapstructure:"dataDir"`
	LogDir       string `mapstructure:"logDir"`
	BaseConfig   string `mapstructure:"baseConfig"`
}

// RunDef holds raw run-level defaults.
type RunDef struct {
	Pattern       string `mapstructure:"pattern"`
	Concurrency   int    `mapstructure:"concurrency"`
	OutputDir     string `mapstructure:"outputDir"`
	CacheMode     string `mapstructure:"cacheMode"`
	RetryLimit    *int   `mapstructure:"retryLimit"`
	RetryInterval string `mapstructure:"retryInterval"`
}

// MetricsDef holds raw metrics settings.
type MetricsDef struct {
	Enabled     bool   `mapstructure:"enabled"`
	TextfileDir string `mapstructure:"textfileDir"`
}

// TracingDef holds raw tracing settings.
type TracingDef struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Protocol string            `mapstructure:"protocol"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}
