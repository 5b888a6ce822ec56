package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/weft-org/weft/internal/build"
	"github.com/weft-org/weft/internal/fileutil"
)

// appHomeEnv overrides all path resolution when set.
var appHomeEnv = strings.ToUpper(build.Slug) + "_HOME"

// ConfigLoader reads and merges configuration from the config file, the
// environment, and defaults.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	appHomeDir string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithAppHomeDir returns a ConfigLoaderOption that places every application
// directory under the given home, overriding the default resolution.
func WithAppHomeDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.appHomeDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	// A .env in the working directory seeds the environment before viper
	// reads it. Missing files are fine.
	if fileutil.FileExists(".env") {
		if err := godotenv.Load(); err != nil {
			l.warnings = append(l.warnings, fmt.Sprintf("failed to load .env: %v", err))
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	paths := l.resolveAppPaths(homeDir)
	l.warnings = append(l.warnings, paths.Warnings...)

	if err := l.setupViper(paths); err != nil {
		return nil, err
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	configFileUsed, err := fileutil.ResolvePath(l.v.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	cfg.Paths.ConfigFileUsed = configFileUsed
	cfg.Warnings = l.warnings

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *ConfigLoader) resolveAppPaths(homeDir string) Paths {
	if l.appHomeDir != "" {
		_ = os.Setenv(appHomeEnv, l.appHomeDir)
	}
	return ResolvePaths(appHomeEnv, filepath.Join(homeDir, "."+build.Slug), XDGConfig{
		DataHome:   xdg.DataHome,
		ConfigHome: filepath.Join(homeDir, ".config"),
	})
}

func (l *ConfigLoader) setupViper(paths Paths) error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.AddConfigPath(paths.ConfigDir)
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
	}

	l.v.SetEnvPrefix(strings.ToUpper(build.Slug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	return nil
}

func (l *ConfigLoader) buildConfig(def Definition, paths Paths) (*Config, error) {
	cfg := &Config{
		Core: Core{
			Debug:        def.Debug,
			LogFormat:    def.LogFormat,
			Quiet:        def.Quiet,
			DefaultShell: def.DefaultShell,
		},
		Paths: PathsConfig{
			ConfigDir:    paths.ConfigDir,
			PipelinesDir: paths.PipelinesDir,
			DataDir:      paths.DataDir,
			LogDir:       paths.LogsDir,
			BaseConfig:   paths.BaseConfigFile,
		},
		Run: RunConfig{RetryLimit: -1},
	}
	if cfg.Core.LogFormat == "" {
		cfg.Core.LogFormat = "text"
	}

	if def.Paths != nil {
		if err := l.overridePath(&cfg.Paths.PipelinesDir, "pipelinesDir", def.Paths.PipelinesDir); err != nil {
			return nil, err
		}
		if err := l.overridePath(&cfg.Paths.DataDir, "dataDir", def.Paths.DataDir); err != nil {
			return nil, err
		}
		if err := l.overridePath(&cfg.Paths.LogDir, "logDir", def.Paths.LogDir); err != nil {
			return nil, err
		}
		if err := l.overridePath(&cfg.Paths.BaseConfig, "baseConfig", def.Paths.BaseConfig); err != nil {
			return nil, err
		}
	}

	if def.Run != nil {
		cfg.Run.Pattern = def.Run.Pattern
		cfg.Run.Concurrency = def.Run.Concurrency
		cfg.Run.OutputDir = def.Run.OutputDir
		cfg.Run.CacheMode = def.Run.CacheMode
		if def.Run.RetryLimit != nil {
			cfg.Run.RetryLimit = *def.Run.RetryLimit
		}
		cfg.Run.RetryInterval = l.parseDuration("run.retryInterval", def.Run.RetryInterval)
	}

	if def.Metrics != nil {
		cfg.Metrics.Enabled = def.Metrics.Enabled
		if err := l.overridePath(&cfg.Metrics.TextfileDir, "metrics.textfileDir", def.Metrics.TextfileDir); err != nil {
			return nil, err
		}
	}
	if cfg.Metrics.TextfileDir == "" {
		cfg.Metrics.TextfileDir = filepath.Join(cfg.Paths.DataDir, "metrics")
	}

	if def.Tracing != nil {
		cfg.Tracing.Enabled = def.Tracing.Enabled
		cfg.Tracing.Endpoint = def.Tracing.Endpoint
		cfg.Tracing.Protocol = def.Tracing.Protocol
		cfg.Tracing.Insecure = def.Tracing.Insecure
		cfg.Tracing.Headers = def.Tracing.Headers
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Protocol == "" {
		cfg.Tracing.Protocol = "grpc"
	}

	return cfg, nil
}

// overridePath resolves the value to an absolute path and assigns it to dst
// when non-empty.
func (l *ConfigLoader) overridePath(dst *string, fieldName, value string) error {
	if value == "" {
		return nil
	}
	resolved, err := fileutil.ResolvePath(value)
	if err != nil {
		return fmt.Errorf("failed to resolve %s path %q: %w", fieldName, value, err)
	}
	*dst = resolved
	return nil
}

// parseDuration parses a duration string, returning zero and adding a warning
// if invalid.
func (l *ConfigLoader) parseDuration(fieldName, value string) time.Duration {
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("invalid %s value: %s", fieldName, value))
		return 0
	}
	return duration
}
