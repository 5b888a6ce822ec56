package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/weft-org/weft/internal/cmdutil"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/runtime/executor"
	"github.com/weft-org/weft/internal/signal"
)

var _ executor.Executor = (*dockerExecutor)(nil)
var _ executor.ExitCoder = (*dockerExecutor)(nil)

// dockerExecutor runs the stage command inside a container created from
// the configured image.
type dockerExecutor struct {
	mu          sync.Mutex
	cfg         *Config
	stage       core.Stage
	stdout      io.Writer
	stderr      io.Writer
	cli         *client.Client
	containerID string
	exitCode    int
	cancel      context.CancelFunc
}

func (e *dockerExecutor) SetStdout(out io.Writer) {
	e.stdout = out
}

func (e *dockerExecutor) SetStderr(out io.Writer) {
	e.stderr = out
}

// ExitCode implements ExitCoder.
func (e *dockerExecutor) ExitCode() int {
	return e.exitCode
}

func (e *dockerExecutor) Kill(sig os.Signal) error {
	e.mu.Lock()
	cli, id, cancel := e.cli, e.containerID, e.cancel
	e.mu.Unlock()

	if cancel != nil {
		defer cancel()
	}
	if cli == nil || id == "" {
		return nil
	}
	var sigName string
	if _, ok := sig.(syscall.Signal); ok {
		sigName = signal.Name(sig)
	}
	err := cli.ContainerStop(context.Background(), id, container.StopOptions{Signal: sigName})
	if err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}

func (e *dockerExecutor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer func() {
		_ = cli.Close()
	}()

	e.mu.Lock()
	e.cli = cli
	e.cancel = cancel
	e.mu.Unlock()

	platform, err := resolvePlatform(ctx, cli, e.cfg)
	if err != nil {
		return err
	}

	if err := e.ensureImage(ctx, cli, platform); err != nil {
		return err
	}

	name, args, err := cmdutil.SplitCommand(e.stage.Command)
	if err != nil {
		return fmt.Errorf("failed to split command: %w", err)
	}

	containerConfig := &container.Config{
		Image:      e.cfg.Image,
		Cmd:        append([]string{name}, args...),
		Env:        append(append([]string{}, e.stage.Env...), e.cfg.Env...),
		WorkingDir: e.cfg.WorkingDir,
	}
	hostConfig := &container.HostConfig{
		Binds: e.cfg.Volumes,
	}

	resp, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, &platform, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	e.mu.Lock()
	e.containerID = resp.ID
	e.mu.Unlock()

	defer func() {
		if !e.cfg.AutoRemove {
			return
		}
		err := cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		if err != nil && !errdefs.IsNotFound(err) {
			logger.Error(ctx, "Failed to remove container", "container", resp.ID, "err", err)
		}
	}()

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	return e.attachAndWait(ctx, cli, resp.ID)
}

// ensureImage pulls the image according to the pull policy. Under the
// missing policy a local image matching the platform skips the pull.
func (e *dockerExecutor) ensureImage(ctx context.Context, cli *client.Client, platform specs.Platform) error {
	policy, err := parsePullPolicy(e.cfg.Pull)
	if err != nil {
		return err
	}

	pull := true
	switch policy {
	case PullNever:
		pull = false
	case PullMissing:
		have, err := e.haveLocalImage(ctx, cli, platform)
		if err != nil {
			return err
		}
		pull = !have
	case PullAlways:
	}
	if !pull {
		return nil
	}

	logger.Info(ctx, "Pulling image", "image", e.cfg.Image, "platform", platforms.Format(platform))
	reader, err := cli.ImagePull(ctx, e.cfg.Image, image.PullOptions{Platform: platforms.Format(platform)})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", e.cfg.Image, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (e *dockerExecutor) haveLocalImage(ctx context.Context, cli *client.Client, platform specs.Platform) (bool, error) {
	args := filters.NewArgs()
	args.Add("reference", e.cfg.Image)

	images, err := cli.ImageList(ctx, image.ListOptions{Filters: args})
	if err != nil {
		return false, fmt.Errorf("failed to list local images %s: %w", e.cfg.Image, err)
	}
	for _, summary := range images {
		inspect, err := cli.ImageInspect(ctx, summary.ID)
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return false, fmt.Errorf("failed to inspect image %s: %w", summary.ID, err)
		}
		if platform.OS == inspect.Os && platform.Architecture == inspect.Architecture && platform.Variant == inspect.Variant {
			return true, nil
		}
	}
	return false, nil
}

func (e *dockerExecutor) attachAndWait(ctx context.Context, cli *client.Client, containerID string) error {
	out, err := cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to attach container logs: %w", err)
	}

	go func() {
		if _, err := stdcopy.StdCopy(e.stdout, e.stderr, out); err != nil {
			logger.Error(ctx, "Failed to copy container logs", "err", err)
		}
	}()

	statusCh, errCh := cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			e.mu.Lock()
			e.exitCode = int(status.StatusCode)
			e.mu.Unlock()
			return fmt.Errorf("exit status %d", status.StatusCode)
		}
	}
	return nil
}

// NewDocker creates an executor that runs the stage command in a
// container.
func NewDocker(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg, err := decodeConfig(stage)
	if err != nil {
		return nil, err
	}
	return &dockerExecutor{
		cfg:    cfg,
		stage:  stage,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}, nil
}

func validateDockerStage(stage core.Stage) error {
	_, err := decodeConfig(stage)
	return err
}

func init() {
	core.RegisterExecutorConfigType[Config]("docker")
	executor.RegisterExecutor("docker", NewDocker, validateDockerStage, core.ExecutorCapabilities{
		Command:   true,
		Container: true,
	})
}
