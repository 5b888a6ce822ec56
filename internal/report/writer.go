// Package report records run progress to a JSONL manifest and renders the
// final run summary.
package report

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/fileutil"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
	"github.com/weft-org/weft/internal/resource"
	"github.com/weft-org/weft/internal/runtime"
)

var ErrWriterNotOpen = errors.New("manifest writer is not open")

// RunRecord is the manifest header line, written once when the run starts.
type RunRecord struct {
	Type      string            `json:"type"` // "run"
	RunID     string            `json:"runId"`
	Pipeline  string            `json:"pipeline"`
	Version   string            `json:"version,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	Params    map[string]string `json:"params,omitempty"`
	Host      resource.Snapshot `json:"host"`
}

// InstanceRecord is one manifest line per terminal instance transition.
type InstanceRecord struct {
	Type        string    `json:"type"` // "instance"
	ID          string    `json:"id"`
	Stage       string    `json:"stage"`
	Key         string    `json:"key,omitempty"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts,omitempty"`
	ExitCode    int       `json:"exitCode,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitzero"`
	FinishedAt  time.Time `json:"finishedAt,omitzero"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	Error       string    `json:"error,omitempty"`
	StderrTail  string    `json:"stderrTail,omitempty"`
	LogFile     string    `json:"logFile,omitempty"`
}

// SummaryRecord is the final manifest line.
type SummaryRecord struct {
	Type       string        `json:"type"` // "summary"
	Status     string        `json:"status"`
	Succeeded  int           `json:"succeeded"`
	Cached     int           `json:"cached"`
	Failed     int           `json:"failed"`
	Aborted    int           `json:"aborted"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
}

// Writer appends JSON lines to the run manifest. Writes are flushed per
// line; the underlying file is opened with O_SYNC so a crash loses at most
// the line being written.
type Writer struct {
	target string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewWriter creates a closed writer for the target path.
func NewWriter(target string) *Writer {
	return &Writer{target: target}
}

// Open creates parent directories and opens the manifest for appending.
// Opening an open writer is a no-op.
func (w *Writer) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.target), 0750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	file, err := fileutil.OpenOrCreateFile(w.target)
	if err != nil {
		return fmt.Errorf("failed to open manifest %s: %w", w.target, err)
	}
	w.file = file
	w.writer = bufio.NewWriter(file)
	return nil
}

// Path returns the manifest path.
func (w *Writer) Path() string { return w.target }

// Write appends one record as a JSON line.
func (w *Writer) Write(ctx context.Context, record any) error {
	if err := w.write(record); err != nil {
		logger.Error(ctx, "Failed to write manifest record", tag.Error(err))
		return err
	}
	return nil
}

func (w *Writer) write(record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrWriterNotOpen
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest record: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	return w.writer.Flush()
}

// Close flushes and closes the manifest. Safe to call twice.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	var errs []error
	if err := w.writer.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}
	w.file = nil
	w.writer = nil
	return errors.Join(errs...)
}

// NewInstanceRecord snapshots a node into a manifest line.
func NewInstanceRecord(node *runtime.Node) InstanceRecord {
	state := node.State()
	rec := InstanceRecord{
		Type:        "instance",
		ID:          node.Instance().ID,
		Stage:       node.Instance().Stage.Name,
		Key:         node.Instance().Key,
		Status:      state.Status.String(),
		Attempts:    state.AttemptCount,
		ExitCode:    state.ExitCode,
		StartedAt:   state.StartedAt,
		FinishedAt:  state.FinishedAt,
		Fingerprint: state.Fingerprint,
		StderrTail:  state.StderrTail,
		LogFile:     state.LogFile,
	}
	if state.Error != nil {
		rec.Error = state.Error.Error()
		rec.ErrorKind = classifyError(state.Error)
	}
	return rec
}

// NewSummaryRecord derives the final manifest line from the settled graph.
func NewSummaryRecord(graph *runtime.Graph) SummaryRecord {
	summary := SummaryRecord{
		Type:       "summary",
		Status:     graph.Status().String(),
		FinishedAt: graph.FinishedAt(),
	}
	if started := graph.StartedAt(); !started.IsZero() && !summary.FinishedAt.IsZero() {
		summary.Duration = summary.FinishedAt.Sub(started)
	}
	for _, node := range graph.Nodes() {
		switch node.Status() {
		case core.InstanceSucceeded:
			summary.Succeeded++
		case core.InstanceCached:
			summary.Cached++
		case core.InstanceAborted:
			summary.Aborted++
		case core.InstanceFailed:
			summary.Failed++
		}
	}
	return summary
}

// classifyError maps a node error to the manifest error kind token.
func classifyError(err error) string {
	switch {
	case errors.Is(err, runtime.ErrUpstreamFailed):
		return "upstream"
	case core.IsOutputContractViolation(err):
		return "output-contract"
	case core.IsExecutionError(err):
		return "execution"
	case core.IsGraphError(err):
		return "graph"
	default:
		return "internal"
	}
}
