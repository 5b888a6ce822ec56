package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
)

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	t.Run("FromExecutorConfig", func(t *testing.T) {
		t.Parallel()

		cfg, err := decodeConfig(core.Stage{
			ExecutorConfig: core.ExecutorConfig{
				Type: "docker",
				Config: map[string]any{
					"image":      "alpine:3.20",
					"platform":   "linux/amd64",
					"pull":       "never",
					"autoRemove": true,
					"volumes":    []string{"/data:/data"},
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "alpine:3.20", cfg.Image)
		assert.Equal(t, "linux/amd64", cfg.Platform)
		assert.Equal(t, "never", cfg.Pull)
		assert.True(t, cfg.AutoRemove)
		assert.Equal(t, []string{"/data:/data"}, cfg.Volumes)
	})

	t.Run("ContainerHintAsDefault", func(t *testing.T) {
		t.Parallel()

		cfg, err := decodeConfig(core.Stage{
			Container: &core.Container{
				Image:      "ubuntu:24.04",
				WorkingDir: "/work",
				Env:        []string{"A=1"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "ubuntu:24.04", cfg.Image)
		assert.Equal(t, "/work", cfg.WorkingDir)
		assert.Equal(t, []string{"A=1"}, cfg.Env)
	})

	t.Run("ExecutorConfigOverridesHint", func(t *testing.T) {
		t.Parallel()

		cfg, err := decodeConfig(core.Stage{
			Container: &core.Container{Image: "ubuntu:24.04"},
			ExecutorConfig: core.ExecutorConfig{
				Type:   "docker",
				Config: map[string]any{"image": "alpine:3.20"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "alpine:3.20", cfg.Image)
	})

	t.Run("MissingImage", func(t *testing.T) {
		t.Parallel()

		_, err := decodeConfig(core.Stage{})
		assert.ErrorIs(t, err, errNoImage)
	})

	t.Run("InvalidPullPolicy", func(t *testing.T) {
		t.Parallel()

		_, err := decodeConfig(core.Stage{
			Container: &core.Container{Image: "alpine", Pull: "sometimes"},
		})
		assert.ErrorContains(t, err, "invalid pull policy")
	})

	t.Run("InvalidPlatform", func(t *testing.T) {
		t.Parallel()

		_, err := decodeConfig(core.Stage{
			Container: &core.Container{Image: "alpine", Platform: "not/a/real/platform/at/all"},
		})
		assert.Error(t, err)
	})
}

func TestParsePullPolicy(t *testing.T) {
	t.Parallel()

	policy, err := parsePullPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PullMissing, policy)

	policy, err = parsePullPolicy("Always")
	require.NoError(t, err)
	assert.Equal(t, PullAlways, policy)

	_, err = parsePullPolicy("maybe")
	assert.Error(t, err)
}
