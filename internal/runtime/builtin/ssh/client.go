package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/weft-org/weft/internal/core"
)

const defaultTimeout = 30 * time.Second

var (
	ErrConfig = errors.New("ssh: configuration error")
	errNoAuth = errors.New("ssh: key or password is required")
)

// Config represents the SSH connection settings.
type Config struct {
	// User is the remote user name.
	User string `mapstructure:"user" json:"user"`
	// Host is the remote host name or address.
	Host string `mapstructure:"host" json:"host"`
	// Port is the remote port. Defaults to 22.
	Port string `mapstructure:"port" json:"port,omitempty"`
	// Key is the path to the private key file.
	Key string `mapstructure:"key" json:"key,omitempty"`
	// Password authenticates with a password instead of a key.
	Password string `mapstructure:"password" json:"password,omitempty"`
	// StrictHostKey enables host key verification against known hosts.
	StrictHostKey bool `mapstructure:"strictHostKey" json:"strictHostKey,omitempty"`
	// KnownHostFile is the known_hosts path. Defaults to ~/.ssh/known_hosts.
	KnownHostFile string `mapstructure:"knownHostFile" json:"knownHostFile,omitempty"`
	// Fetch maps remote output paths to local destinations, retrieved
	// over SFTP after the command succeeds.
	Fetch map[string]string `mapstructure:"fetch" json:"fetch,omitempty"`
}

func decodeConfig(stage core.Stage) (*Config, error) {
	cfg := &Config{}
	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := md.Decode(stage.ExecutorConfig.Config); err != nil {
		return nil, fmt.Errorf("failed to decode ssh config: %w", err)
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrConfig)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("%w: user is required", ErrConfig)
	}
	if cfg.Key == "" && cfg.Password == "" {
		return nil, errNoAuth
	}
	if cfg.Port == "" || cfg.Port == "0" {
		cfg.Port = "22"
	}
	return cfg, nil
}

// Client dials SSH sessions for a configured host.
type Client struct {
	hostPort string
	cfg      *ssh.ClientConfig
}

// NewClient builds a client from the connection settings.
func NewClient(cfg *Config) (*Client, error) {
	authMethod, err := selectAuthMethod(cfg)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(cfg.StrictHostKey, cfg.KnownHostFile)
	if err != nil {
		return nil, fmt.Errorf("failed to setup host key verification: %w", err)
	}

	return &Client{
		hostPort: net.JoinHostPort(cfg.Host, cfg.Port),
		cfg: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{authMethod},
			HostKeyCallback: hostKeyCallback,
			Timeout:         defaultTimeout,
		},
	}, nil
}

// Dial opens the SSH connection.
func (c *Client) Dial() (*ssh.Client, error) {
	return ssh.Dial("tcp", c.hostPort, c.cfg)
}

func selectAuthMethod(cfg *Config) (ssh.AuthMethod, error) {
	if cfg.Key != "" {
		key, err := os.ReadFile(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key %s: %w", cfg.Key, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	if cfg.Password != "" {
		return ssh.Password(cfg.Password), nil
	}
	return nil, errNoAuth
}

func hostKeyCallback(strict bool, knownHostFile string) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil // nolint: gosec
	}
	if knownHostFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		knownHostFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(knownHostFile)
}
