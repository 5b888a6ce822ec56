package jq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/itchyny/gojq"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

var _ executor.Executor = (*jqExecutor)(nil)

var (
	errNoQuery = errors.New("jq executor requires a query")
	errNoInput = errors.New("jq executor requires input or inputFile")
)

// Config is the jq executor configuration.
type Config struct {
	// Query is the jq program. Defaults to the stage command.
	Query string `mapstructure:"query" json:"query,omitempty"`
	// Input is an inline JSON document to run the query over.
	Input string `mapstructure:"input" json:"input,omitempty"`
	// InputFile reads the JSON document from a file instead.
	InputFile string `mapstructure:"inputFile" json:"inputFile,omitempty"`
	// OutputFile writes results to the given file instead of stdout.
	OutputFile string `mapstructure:"outputFile" json:"outputFile,omitempty"`
	// Raw prints string results without JSON quoting.
	Raw bool `mapstructure:"raw" json:"raw,omitempty"`
}

type jqExecutor struct {
	cfg    *Config
	stdout io.Writer
	stderr io.Writer
}

func decodeConfig(stage core.Stage) (*Config, error) {
	cfg := &Config{}
	if raw := stage.ExecutorConfig.Config; len(raw) > 0 {
		md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           cfg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}
		if err := md.Decode(raw); err != nil {
			return nil, fmt.Errorf("failed to decode jq config: %w", err)
		}
	}
	if cfg.Query == "" {
		cfg.Query = stage.Command
	}
	if cfg.Query == "" {
		return nil, errNoQuery
	}
	if _, err := gojq.Parse(cfg.Query); err != nil {
		return nil, fmt.Errorf("invalid jq query: %w", err)
	}
	return cfg, nil
}

func (e *jqExecutor) SetStdout(out io.Writer) {
	e.stdout = out
}

func (e *jqExecutor) SetStderr(out io.Writer) {
	e.stderr = out
}

func (e *jqExecutor) Kill(_ os.Signal) error {
	return nil
}

func (e *jqExecutor) Run(ctx context.Context) error {
	input, err := e.readInput()
	if err != nil {
		return err
	}

	query, err := gojq.Parse(e.cfg.Query)
	if err != nil {
		return err
	}

	out := e.stdout
	if e.cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(e.cfg.OutputFile), 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(e.cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}

	iter := query.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return fmt.Errorf("jq query failed: %w", err)
		}
		if err := e.writeResult(out, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *jqExecutor) writeResult(out io.Writer, v any) error {
	if s, ok := v.(string); ok && e.cfg.Raw {
		_, err := fmt.Fprintln(out, s)
		return err
	}
	val, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(val))
	return err
}

func (e *jqExecutor) readInput() (any, error) {
	raw := []byte(e.cfg.Input)
	if e.cfg.InputFile != "" {
		data, err := os.ReadFile(e.cfg.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return nil, errNoInput
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to parse input JSON: %w", err)
	}
	return input, nil
}

// NewJq creates an executor that runs a jq query over a JSON document.
func NewJq(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg, err := decodeConfig(stage)
	if err != nil {
		return nil, err
	}
	return &jqExecutor{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}, nil
}

func validateJqStage(stage core.Stage) error {
	_, err := decodeConfig(stage)
	return err
}

func init() {
	core.RegisterExecutorConfigType[Config]("jq")
	executor.RegisterExecutor("jq", NewJq, validateJqStage, core.ExecutorCapabilities{
		Command:     true,
		FileOutputs: true,
	})
}
