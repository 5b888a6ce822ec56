package archive

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-viper/mapstructure/v2"

	"github.com/weft-org/weft/internal/core"
)

// Config contains runtime options for the archive executor.
type Config struct {
	// Source is the file or directory to archive, or the archive to read.
	Source string `mapstructure:"source" json:"source"`
	// Destination is the archive path for create, or the extraction
	// directory for extract.
	Destination string `mapstructure:"destination" json:"destination,omitempty"`
	// Format overrides format detection: zip, tar, tar.gz, tgz.
	Format string `mapstructure:"format" json:"format,omitempty"`
	// Include holds glob patterns selecting entries.
	Include []string `mapstructure:"include" json:"include,omitempty"`
	// Exclude holds glob patterns skipping entries.
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty"`
	// StripComponents strips leading path components on extract.
	StripComponents int `mapstructure:"stripComponents" json:"stripComponents,omitempty"`
	// Overwrite allows replacing existing files.
	Overwrite bool `mapstructure:"overwrite" json:"overwrite,omitempty"`
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

func validateConfig(operation string, cfg *Config) error {
	switch operation {
	case opExtract, opList:
		if cfg.Source == "" {
			return fmt.Errorf("%w: source is required for %s", ErrConfig, operation)
		}
	case opCreate:
		if cfg.Source == "" {
			return fmt.Errorf("%w: source is required for %s", ErrConfig, operation)
		}
		if cfg.Destination == "" {
			return fmt.Errorf("%w: destination is required for %s", ErrConfig, operation)
		}
	}

	if cfg.StripComponents < 0 {
		return fmt.Errorf("%w: stripComponents must be >= 0", ErrConfig)
	}

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: invalid glob pattern %q", ErrConfig, pattern)
		}
	}
	return nil
}

func init() {
	core.RegisterExecutorConfigType[Config]("archive")
}
