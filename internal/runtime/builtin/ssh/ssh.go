package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

var _ executor.Executor = (*sshExecutor)(nil)
var _ executor.ExitCoder = (*sshExecutor)(nil)

type sshExecutor struct {
	mu       sync.Mutex
	stage    core.Stage
	client   *Client
	cfg      *Config
	stdout   io.Writer
	stderr   io.Writer
	session  *ssh.Session
	exitCode int
}

// NewSSH creates an executor that runs the stage command on a remote
// host and retrieves configured outputs over SFTP.
func NewSSH(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg, err := decodeConfig(stage)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &sshExecutor{
		stage:  stage,
		client: client,
		cfg:    cfg,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}, nil
}

func (e *sshExecutor) SetStdout(out io.Writer) {
	e.stdout = out
}

func (e *sshExecutor) SetStderr(out io.Writer) {
	e.stderr = out
}

// ExitCode implements ExitCoder.
func (e *sshExecutor) ExitCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode
}

func (e *sshExecutor) Kill(_ os.Signal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return e.session.Close()
	}
	return nil
}

func (e *sshExecutor) Run(ctx context.Context) error {
	if e.stage.Command == "" {
		return fmt.Errorf("%w: command is required", ErrConfig)
	}

	conn, err := e.client.Dial()
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	session, err := conn.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	e.mu.Lock()
	e.session = session
	e.mu.Unlock()
	defer func() {
		_ = session.Close()
	}()

	session.Stdout = e.stdout
	session.Stderr = e.stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(e.stage.Command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				e.mu.Lock()
				e.exitCode = exitErr.ExitStatus()
				e.mu.Unlock()
			}
			return err
		}
	}

	if len(e.cfg.Fetch) > 0 {
		return e.fetchOutputs(ctx, conn)
	}
	return nil
}

// fetchOutputs downloads each configured remote file after the command
// succeeded.
func (e *sshExecutor) fetchOutputs(ctx context.Context, conn *ssh.Client) error {
	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("failed to create sftp client: %w", err)
	}
	defer func() {
		_ = sftpClient.Close()
	}()

	for remote, local := range e.cfg.Fetch {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := downloadFile(sftpClient, remote, local); err != nil {
			return fmt.Errorf("failed to fetch %s: %w", remote, err)
		}
	}
	return nil
}

func downloadFile(sftpClient *sftp.Client, remotePath, localPath string) error {
	src, err := sftpClient.Open(remotePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(localPath), 0750); err != nil {
		return err
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = dst.Close()
	}()

	_, err = io.Copy(dst, src)
	return err
}

func validateSSHStage(stage core.Stage) error {
	_, err := decodeConfig(stage)
	return err
}

func init() {
	core.RegisterExecutorConfigType[Config]("ssh")
	executor.RegisterExecutor("ssh", NewSSH, validateSSHStage, core.ExecutorCapabilities{
		Command:     true,
		FileOutputs: true,
	})
}
