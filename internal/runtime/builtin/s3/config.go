package s3

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/weft-org/weft/internal/core"
)

// ErrConfig reports an invalid s3 executor configuration.
var ErrConfig = errors.New("s3 config error")

// Config contains runtime options for the s3 executor.
type Config struct {
	// Connection
	Region          string `mapstructure:"region" json:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"accessKeyId" json:"accessKeyId,omitempty"`
	SecretAccessKey string `mapstructure:"secretAccessKey" json:"secretAccessKey,omitempty"`
	SessionToken    string `mapstructure:"sessionToken" json:"sessionToken,omitempty"`
	DisableSSL      bool   `mapstructure:"disableSSL" json:"disableSSL,omitempty"`

	// Common
	Bucket      string `mapstructure:"bucket" json:"bucket"`
	Key         string `mapstructure:"key" json:"key,omitempty"`
	Source      string `mapstructure:"source" json:"source,omitempty"`
	Destination string `mapstructure:"destination" json:"destination,omitempty"`

	// Upload options
	ContentType  string            `mapstructure:"contentType" json:"contentType,omitempty"`
	StorageClass string            `mapstructure:"storageClass" json:"storageClass,omitempty"`
	Metadata     map[string]string `mapstructure:"metadata" json:"metadata,omitempty"`
	Tags         map[string]string `mapstructure:"tags" json:"tags,omitempty"`

	// List options
	Prefix    string `mapstructure:"prefix" json:"prefix,omitempty"`
	Recursive bool   `mapstructure:"recursive" json:"recursive,omitempty"`
	MaxKeys   int    `mapstructure:"maxKeys" json:"maxKeys,omitempty"`

	// Delete options
	Quiet bool `mapstructure:"quiet" json:"quiet,omitempty"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "s3.amazonaws.com",
		MaxKeys:  1000,
	}
}

func decodeConfig(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// ValidateForOperation validates the config for the given operation.
func (c *Config) ValidateForOperation(operation string) error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", ErrConfig)
	}

	switch operation {
	case opUpload:
		if c.Source == "" {
			return fmt.Errorf("%w: source is required for upload", ErrConfig)
		}
		if c.Key == "" {
			return fmt.Errorf("%w: key is required for upload", ErrConfig)
		}
	case opDownload:
		if c.Key == "" {
			return fmt.Errorf("%w: key is required for download", ErrConfig)
		}
		if c.Destination == "" {
			return fmt.Errorf("%w: destination is required for download", ErrConfig)
		}
	case opList:
	case opDelete:
		if c.Key == "" && c.Prefix == "" {
			return fmt.Errorf("%w: key or prefix is required for delete", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrConfig, operation)
	}

	if c.MaxKeys < 0 {
		return fmt.Errorf("%w: maxKeys must be >= 0", ErrConfig)
	}
	return nil
}

func init() {
	core.RegisterExecutorConfigType[Config](executorType)
}
