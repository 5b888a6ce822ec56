package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-viper/mapstructure/v2"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

var _ executor.Executor = (*httpExecutor)(nil)

var (
	errHTTPStatusCode = errors.New("http status code not 2xx")
	errNoURL          = errors.New("http executor requires a url")
)

// Config is the http executor configuration.
type Config struct {
	// Method is the request method. Defaults to GET.
	Method string `mapstructure:"method" json:"method,omitempty"`
	// URL is the request URL.
	URL string `mapstructure:"url" json:"url,omitempty"`
	// Timeout is the request timeout in seconds.
	Timeout int `mapstructure:"timeout" json:"timeout,omitempty"`
	// Headers are request headers.
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	// Query are query string parameters.
	Query map[string]string `mapstructure:"query" json:"query,omitempty"`
	// Body is the request body.
	Body string `mapstructure:"body" json:"body,omitempty"`
	// Silent suppresses status and headers in the output.
	Silent bool `mapstructure:"silent" json:"silent,omitempty"`
	// JSON renders the response as a JSON envelope with status, headers
	// and parsed body.
	JSON bool `mapstructure:"json" json:"json,omitempty"`
	// OutputFile writes the response body to the given file instead of
	// stdout.
	OutputFile string `mapstructure:"outputFile" json:"outputFile,omitempty"`
}

type jsonResult struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       any                 `json:"body"`
}

type httpExecutor struct {
	cfg    *Config
	stdout io.Writer
	cancel context.CancelFunc
}

// decodeConfig builds the request configuration. When the config omits
// method and url they are taken from the rendered stage command,
// written as "METHOD URL".
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
			return nil, fmt.Errorf("failed to decode http config: %w", err)
		}
	}

	if cfg.URL == "" {
		fields := strings.Fields(stage.Command)
		switch len(fields) {
		case 1:
			cfg.URL = fields[0]
		case 2:
			cfg.Method = fields[0]
			cfg.URL = fields[1]
		}
	}
	if cfg.URL == "" {
		return nil, errNoURL
	}
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	return cfg, nil
}

func (e *httpExecutor) SetStdout(out io.Writer) {
	e.stdout = out
}

func (e *httpExecutor) SetStderr(_ io.Writer) {}

func (e *httpExecutor) Kill(_ os.Signal) error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *httpExecutor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	client := resty.New()
	if e.cfg.Timeout > 0 {
		client.SetTimeout(time.Second * time.Duration(e.cfg.Timeout))
	}

	req := client.R().SetContext(ctx)
	if len(e.cfg.Headers) > 0 {
		req = req.SetHeaders(e.cfg.Headers)
	}
	if len(e.cfg.Query) > 0 {
		req = req.SetQueryParams(e.cfg.Query)
	}
	if e.cfg.Body != "" {
		req = req.SetBody([]byte(e.cfg.Body))
	}
	if e.cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(e.cfg.OutputFile), 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		req = req.SetOutput(e.cfg.OutputFile)
	}

	rsp, err := req.Execute(strings.ToUpper(e.cfg.Method), e.cfg.URL)
	if err != nil {
		return err
	}

	if e.cfg.OutputFile == "" {
		if e.cfg.JSON {
			err = e.writeJSONResult(rsp)
		} else {
			err = e.writeTextResult(rsp)
		}
		if err != nil {
			return err
		}
	}

	if !rsp.IsSuccess() {
		return fmt.Errorf("%w: %d", errHTTPStatusCode, rsp.StatusCode())
	}
	return nil
}

func (e *httpExecutor) writeJSONResult(rsp *resty.Response) error {
	result := &jsonResult{}
	if !rsp.IsSuccess() || !e.cfg.Silent {
		result.StatusCode = rsp.StatusCode()
		result.Headers = rsp.Header()
	}
	if err := json.Unmarshal(rsp.Body(), &result.Body); err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", " ")
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(out)
	return err
}

func (e *httpExecutor) writeTextResult(rsp *resty.Response) error {
	if !rsp.IsSuccess() || !e.cfg.Silent {
		if _, err := e.stdout.Write([]byte(rsp.Status() + "\n")); err != nil {
			return err
		}
		if err := rsp.Header().Write(e.stdout); err != nil {
			return err
		}
	}
	_, err := e.stdout.Write(rsp.Body())
	return err
}

// NewHTTP creates an executor that performs an HTTP request.
func NewHTTP(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg, err := decodeConfig(stage)
	if err != nil {
		return nil, err
	}
	return &httpExecutor{cfg: cfg, stdout: os.Stdout}, nil
}

func validateHTTPStage(stage core.Stage) error {
	_, err := decodeConfig(stage)
	return err
}

func init() {
	core.RegisterExecutorConfigType[Config]("http")
	executor.RegisterExecutor("http", NewHTTP, validateHTTPStage, core.ExecutorCapabilities{
		Command:     true,
		FileOutputs: true,
	})
}
