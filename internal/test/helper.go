// Package test provides helpers for command and integration tests.
package test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/weft-org/weft/internal/build"
	"github.com/weft-org/weft/internal/config"
	"github.com/weft-org/weft/internal/fileutil"
	"github.com/weft-org/weft/internal/logger"
)

// Options holds setup options for the test helper.
type Options struct {
	// CaptureLoggingOutput routes log output into Helper.LoggingOutput.
	CaptureLoggingOutput bool
	// ConfigMutators run against the loaded config before the helper is
	// returned.
	ConfigMutators []func(*config.Config)
}

// HelperOption configures Setup.
type HelperOption func(*Options)

// WithCaptureLoggingOutput enables capturing of logging output.
func WithCaptureLoggingOutput() HelperOption {
	return func(opts *Options) {
		opts.CaptureLoggingOutput = true
	}
}

// WithConfigMutator adds a config mutation applied after loading.
func WithConfigMutator(fn func(*config.Config)) HelperOption {
	return func(opts *Options) {
		opts.ConfigMutators = append(opts.ConfigMutators, fn)
	}
}

// Helper carries the per-test application home, config, and context.
type Helper struct {
	Context       context.Context
	Cancel        context.CancelFunc
	Config        *config.Config
	LoggingOutput *SyncBuffer

	tmpDir string
}

// Setup creates an isolated application home in a temp directory, points the
// home environment variable at it, and loads the configuration from there.
func Setup(t *testing.T, opts ...HelperOption) Helper {
	t.Helper()

	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	tmpDir := fileutil.MustTempDir(build.Slug + "-test")
	t.Setenv(strings.ToUpper(build.Slug)+"_HOME", tmpDir)
	t.Setenv("TZ", "UTC")

	// An empty config file pins ConfigFileUsed so command tests can pass
	// it through the --config flag.
	configFile := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("{}\n"), 0600))

	cfg, err := config.NewConfigLoader(viper.New(), config.WithConfigFile(configFile)).Load()
	require.NoError(t, err)
	for _, mutate := range options.ConfigMutators {
		mutate(cfg)
	}

	ctx := context.Background()
	helper := Helper{
		Config: cfg,
		tmpDir: tmpDir,
	}

	if options.CaptureLoggingOutput {
		helper.LoggingOutput = &SyncBuffer{buf: new(bytes.Buffer)}
		loggerInstance := logger.NewLogger(
			logger.WithDebug(),
			logger.WithFormat("text"),
			logger.WithWriter(helper.LoggingOutput),
		)
		ctx = logger.WithFixedLogger(ctx, loggerInstance)
	}

	helper.Context, helper.Cancel = context.WithCancel(ctx)

	t.Cleanup(func() {
		helper.Cancel()
		_ = os.RemoveAll(tmpDir)
	})

	return helper
}

// TmpDir returns the per-test application home directory.
func (h Helper) TmpDir() string {
	return h.tmpDir
}

// SyncBuffer is a bytes.Buffer safe for concurrent writers.
type SyncBuffer struct {
	lock sync.Mutex
	buf  *bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}
