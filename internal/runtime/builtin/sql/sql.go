// Package sql provides an executor that runs queries against PostgreSQL
// and SQLite databases.
package sql

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

var (
	ErrConfig  = errors.New("sql: configuration error")
	errNoQuery = errors.New("sql: no query provided")
)

var _ executor.Executor = (*sqlExecutor)(nil)

// Config contains runtime options for the sql executor.
type Config struct {
	// Driver selects the backend: sqlite or postgres.
	Driver string `mapstructure:"driver" json:"driver"`
	// DSN is the connection string.
	DSN string `mapstructure:"dsn" json:"dsn"`
	// Query is the statement to run. Defaults to the stage command.
	Query string `mapstructure:"query" json:"query,omitempty"`
	// QueryFile reads the statement from a file instead.
	QueryFile string `mapstructure:"queryFile" json:"queryFile,omitempty"`
	// Params binds named parameters (:name) in the query.
	Params map[string]any `mapstructure:"params" json:"params,omitempty"`
	// Timeout is the statement timeout in seconds.
	Timeout int `mapstructure:"timeout" json:"timeout,omitempty"`
	// Transaction wraps execution in a transaction.
	Transaction bool `mapstructure:"transaction" json:"transaction,omitempty"`
	// Output selects the row format: json (default) or csv.
	Output string `mapstructure:"output" json:"output,omitempty"`
	// OutputFile writes rows to the given file instead of stdout.
	OutputFile string `mapstructure:"outputFile" json:"outputFile,omitempty"`
}

type execResult struct {
	RowsAffected int64  `json:"rows_affected"`
	Duration     string `json:"duration"`
}

type sqlExecutor struct {
	mu     sync.Mutex
	cfg    *Config
	driver Driver
	query  string
	stdout io.Writer
	stderr io.Writer
	cancel context.CancelFunc
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
		return nil, fmt.Errorf("failed to decode sql config: %w", err)
	}

	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if _, ok := GetDriver(cfg.Driver); !ok {
		return nil, fmt.Errorf("%w: unknown driver %q (valid: sqlite, postgres)", ErrConfig, cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: dsn is required", ErrConfig)
	}
	if cfg.Output != "" && cfg.Output != "json" && cfg.Output != "csv" {
		return nil, fmt.Errorf("%w: output must be json or csv", ErrConfig)
	}
	return cfg, nil
}

// resolveQuery extracts the statement from the config or stage command.
func resolveQuery(cfg *Config, stage core.Stage) (string, error) {
	if cfg.QueryFile != "" {
		content, err := os.ReadFile(cfg.QueryFile)
		if err != nil {
			return "", fmt.Errorf("failed to read query file %q: %w", cfg.QueryFile, err)
		}
		return string(content), nil
	}
	if cfg.Query != "" {
		return cfg.Query, nil
	}
	if stage.Command != "" {
		return stage.Command, nil
	}
	return "", errNoQuery
}

// NewSQL creates an executor that runs a statement against the
// configured database.
func NewSQL(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg, err := decodeConfig(stage)
	if err != nil {
		return nil, err
	}
	query, err := resolveQuery(cfg, stage)
	if err != nil {
		return nil, err
	}
	driver, _ := GetDriver(cfg.Driver)
	return &sqlExecutor{
		cfg:    cfg,
		driver: driver,
		query:  query,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}, nil
}

func (e *sqlExecutor) SetStdout(out io.Writer) {
	e.stdout = out
}

func (e *sqlExecutor) SetStderr(out io.Writer) {
	e.stderr = out
}

func (e *sqlExecutor) Kill(_ os.Signal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *sqlExecutor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	if e.cfg.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, time.Duration(e.cfg.Timeout)*time.Second)
		defer timeoutCancel()
	}

	db, err := e.driver.Open(e.cfg.DSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	query, params, err := convertNamedParams(e.query, e.cfg.Params, e.driver.Placeholder)
	if err != nil {
		return err
	}

	if e.cfg.Transaction {
		return e.runInTransaction(ctx, db, query, params)
	}
	return e.execute(ctx, db, query, params)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (e *sqlExecutor) runInTransaction(ctx context.Context, db *sql.DB, query string, params []any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := e.execute(ctx, tx, query, params); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (e *sqlExecutor) execute(ctx context.Context, q querier, query string, params []any) error {
	start := time.Now()

	if isSelectQuery(query) {
		rows, err := q.QueryContext(ctx, query, params...)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		defer func() {
			_ = rows.Close()
		}()
		return e.writeRows(rows)
	}

	result, err := q.ExecContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	affected, _ := result.RowsAffected()

	out, err := e.output()
	if err != nil {
		return err
	}
	defer out.close()
	enc := json.NewEncoder(out.w)
	return enc.Encode(execResult{
		RowsAffected: affected,
		Duration:     time.Since(start).Round(time.Millisecond).String(),
	})
}

// writeRows renders the result set as JSON lines or CSV.
func (e *sqlExecutor) writeRows(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	out, err := e.output()
	if err != nil {
		return err
	}
	defer out.close()

	var csvWriter *csv.Writer
	if e.cfg.Output == "csv" {
		csvWriter = csv.NewWriter(out.w)
		if err := csvWriter.Write(cols); err != nil {
			return err
		}
		defer csvWriter.Flush()
	}

	values := make([]any, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}
		if csvWriter != nil {
			record := make([]string, len(cols))
			for i, v := range values {
				record[i] = formatValue(v)
			}
			if err := csvWriter.Write(record); err != nil {
				return err
			}
			continue
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out.w, string(line)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

type outputTarget struct {
	w     io.Writer
	close func()
}

func (e *sqlExecutor) output() (*outputTarget, error) {
	if e.cfg.OutputFile == "" {
		return &outputTarget{w: e.stdout, close: func() {}}, nil
	}
	if err := os.MkdirAll(filepath.Dir(e.cfg.OutputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(e.cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &outputTarget{w: f, close: func() { _ = f.Close() }}, nil
}

func validateSQLStage(stage core.Stage) error {
	cfg, err := decodeConfig(stage)
	if err != nil {
		return err
	}
	// Query files may be produced by upstream stages, so only their
	// presence in the config is checked here.
	if cfg.QueryFile == "" && strings.TrimSpace(cfg.Query) == "" && strings.TrimSpace(stage.Command) == "" {
		return errNoQuery
	}
	return nil
}

func init() {
	core.RegisterExecutorConfigType[Config]("sql")
	executor.RegisterExecutor("sql", NewSQL, validateSQLStage, core.ExecutorCapabilities{
		Command:     true,
		FileOutputs: true,
	})
}
