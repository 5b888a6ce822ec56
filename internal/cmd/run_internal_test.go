package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weft-org/weft/internal/config"
)

func TestValidateRunID(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateRunID(""))
	assert.NoError(t, validateRunID("run-1_a"))
	assert.ErrorIs(t, validateRunID("bad id!"), ErrRunIDFormat)
	assert.ErrorIs(t, validateRunID(strings.Repeat("a", maxRunIDLen+1)), ErrRunIDTooLong)
}

func TestResolvePipelinePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte("name: app\n"), 0o600))
	cfg := &config.Config{Paths: config.PathsConfig{PipelinesDir: dir}}

	t.Run("BareNameResolvesAgainstPipelinesDir", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, filepath.Join(dir, "app.yaml"), resolvePipelinePath(cfg, "app"))
	})

	t.Run("PathPassesThrough", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "some/dir/app.yaml", resolvePipelinePath(cfg, "some/dir/app.yaml"))
	})

	t.Run("UnknownNamePassesThrough", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "missing", resolvePipelinePath(cfg, "missing"))
	})
}

func TestTracingConfigToOTel(t *testing.T) {
	t.Parallel()

	t.Run("GRPCKeepsEndpoint", func(t *testing.T) {
		t.Parallel()
		o := tracingConfigToOTel(config.TracingConfig{
			Enabled:  true,
			Endpoint: "collector:4317",
			Protocol: "grpc",
			Insecure: true,
		})
		assert.True(t, o.Enabled)
		assert.Equal(t, "collector:4317", o.Endpoint)
		assert.True(t, o.Insecure)
	})

	t.Run("HTTPAppendsTracesPath", func(t *testing.T) {
		t.Parallel()
		o := tracingConfigToOTel(config.TracingConfig{
			Enabled:  true,
			Endpoint: "https://collector:4318",
			Protocol: "http",
		})
		assert.Equal(t, "https://collector:4318/v1/traces", o.Endpoint)
	})

	t.Run("HTTPKeepsExistingPath", func(t *testing.T) {
		t.Parallel()
		o := tracingConfigToOTel(config.TracingConfig{
			Enabled:  true,
			Endpoint: "https://collector:4318/v1/traces",
			Protocol: "http",
		})
		assert.Equal(t, "https://collector:4318/v1/traces", o.Endpoint)
	})
}

func TestInitFlags(t *testing.T) {
	t.Parallel()

	c := &cobra.Command{Use: "run"}
	initFlags(c, runFlags...)

	watch := c.Flags().Lookup("watch")
	require.NotNil(t, watch)
	assert.Equal(t, "bool", watch.Value.Type())

	retryLimit := c.Flags().Lookup("retry-limit")
	require.NotNil(t, retryLimit)
	assert.Equal(t, "-1", retryLimit.DefValue)

	assert.NotNil(t, c.Flags().Lookup("config"))
	assert.NotNil(t, c.Flags().Lookup("quiet"))
}
