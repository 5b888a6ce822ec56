package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/platforms"
	"github.com/docker/docker/client"
	"github.com/go-viper/mapstructure/v2"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/weft-org/weft/internal/core"
)

// PullPolicy controls whether the image is pulled before the run.
type PullPolicy string

const (
	PullAlways  PullPolicy = "always"
	PullMissing PullPolicy = "missing"
	PullNever   PullPolicy = "never"
)

var errNoImage = errors.New("docker executor requires an image")

// Config is the docker executor configuration. Values from the stage
// container hint act as defaults for fields the executor config leaves
// empty.
type Config struct {
	// Image is the container image reference.
	Image string `mapstructure:"image" json:"image,omitempty"`
	// Platform is the target platform, e.g. linux/amd64.
	Platform string `mapstructure:"platform" json:"platform,omitempty"`
	// Pull is the image pull policy: always, missing, or never.
	Pull string `mapstructure:"pull" json:"pull,omitempty"`
	// Env contains additional environment variables in key=value form.
	Env []string `mapstructure:"env" json:"env,omitempty"`
	// Volumes contains bind mounts in host:container form.
	Volumes []string `mapstructure:"volumes" json:"volumes,omitempty"`
	// WorkingDir is the working directory inside the container.
	WorkingDir string `mapstructure:"workingDir" json:"workingDir,omitempty"`
	// AutoRemove removes the container after the run.
	AutoRemove bool `mapstructure:"autoRemove" json:"autoRemove,omitempty"`
}

// decodeConfig builds the effective configuration for a stage, layering
// the executor config over the stage-level container hint.
func decodeConfig(stage core.Stage) (*Config, error) {
	cfg := &Config{}
	if c := stage.Container; c != nil {
		cfg.Image = c.Image
		cfg.Platform = c.Platform
		cfg.Pull = c.Pull
		cfg.Env = append(cfg.Env, c.Env...)
		cfg.Volumes = append(cfg.Volumes, c.Volumes...)
		cfg.WorkingDir = c.WorkingDir
	}

	if raw := stage.ExecutorConfig.Config; len(raw) > 0 {
		md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}
		if err := md.Decode(raw); err != nil {
			return nil, fmt.Errorf("failed to decode docker config: %w", err)
		}
	}

	if cfg.Image == "" {
		return nil, errNoImage
	}
	if _, err := parsePullPolicy(cfg.Pull); err != nil {
		return nil, err
	}
	if cfg.Platform != "" {
		if _, err := platforms.Parse(cfg.Platform); err != nil {
			return nil, fmt.Errorf("failed to parse platform %s: %w", cfg.Platform, err)
		}
	}
	return cfg, nil
}

func parsePullPolicy(s string) (PullPolicy, error) {
	switch PullPolicy(strings.TrimSpace(strings.ToLower(s))) {
	case "":
		return PullMissing, nil
	case PullAlways:
		return PullAlways, nil
	case PullMissing:
		return PullMissing, nil
	case PullNever:
		return PullNever, nil
	default:
		return "", fmt.Errorf("invalid pull policy: %s (supported: always, missing, never)", s)
	}
}

// resolvePlatform parses the configured platform, falling back to the
// docker host platform.
func resolvePlatform(ctx context.Context, cli *client.Client, cfg *Config) (specs.Platform, error) {
	if cfg.Platform != "" {
		platform, err := platforms.Parse(cfg.Platform)
		if err != nil {
			return specs.Platform{}, fmt.Errorf("failed to parse platform %s: %w", cfg.Platform, err)
		}
		return platform, nil
	}
	info, err := cli.Info(ctx)
	if err != nil {
		return specs.Platform{}, fmt.Errorf("failed to get docker host info: %w", err)
	}
	return platforms.Normalize(specs.Platform{
		Architecture: info.Architecture,
		OS:           info.OSType,
	}), nil
}
