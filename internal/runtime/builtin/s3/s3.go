package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

const (
	executorType = "s3"

	opUpload   = "upload"
	opDownload = "download"
	opList     = "list"
	opDelete   = "delete"
)

var (
	ErrSourceNotFound = errors.New("source file not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
)

var _ executor.Executor = (*s3Executor)(nil)

type s3Executor struct {
	mu        sync.Mutex
	stdout    io.Writer
	cancel    context.CancelFunc
	cfg       *Config
	operation string
	client    *minio.Client
}

// objectResult is the JSON envelope written for each completed operation.
type objectResult struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key,omitempty"`
	URI       string `json:"uri,omitempty"`
	ETag      string `json:"etag,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Duration  string `json:"duration"`
}

type listEntry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

func newExecutor(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg := DefaultConfig()
	if stage.ExecutorConfig.Config != nil {
		if err := decodeConfig(stage.ExecutorConfig.Config, cfg); err != nil {
			return nil, fmt.Errorf("invalid s3 configuration: %w", err)
		}
	}

	op, err := parseOperation(stage.Command)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateForOperation(op); err != nil {
		return nil, err
	}

	client, err := createClient(cfg)
	if err != nil {
		return nil, err
	}

	return &s3Executor{
		stdout:    os.Stdout,
		cfg:       cfg,
		operation: op,
		client:    client,
	}, nil
}

// parseOperation extracts the s3 operation from the stage command.
func parseOperation(command string) (string, error) {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: command must specify an operation (upload, download, list, delete)", ErrConfig)
	}
	op := fields[0]
	switch op {
	case opUpload, opDownload, opList, opDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unsupported operation %q (valid: upload, download, list, delete)", ErrConfig, op)
	}
}

func (e *s3Executor) SetStdout(out io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stdout = out
}

func (e *s3Executor) SetStderr(_ io.Writer) {}

func (e *s3Executor) Kill(_ os.Signal) error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (e *s3Executor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	switch e.operation {
	case opUpload:
		return e.runUpload(ctx)
	case opDownload:
		return e.runDownload(ctx)
	case opList:
		return e.runList(ctx)
	case opDelete:
		return e.runDelete(ctx)
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrConfig, e.operation)
	}
}

func (e *s3Executor) runUpload(ctx context.Context) error {
	start := time.Now()

	info, err := os.Stat(e.cfg.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrSourceNotFound, e.cfg.Source)
		}
		return fmt.Errorf("%w: cannot access %q: %v", ErrSourceNotFound, e.cfg.Source, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: source %q is a directory", ErrConfig, e.cfg.Source)
	}

	contentType := e.cfg.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(e.cfg.Source))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: e.cfg.Metadata,
		UserTags:     e.cfg.Tags,
		StorageClass: e.cfg.StorageClass,
	}

	uploaded, err := e.client.FPutObject(ctx, e.cfg.Bucket, e.cfg.Key, e.cfg.Source, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return e.writeResult(objectResult{
		Operation: opUpload,
		Success:   true,
		Bucket:    e.cfg.Bucket,
		Key:       e.cfg.Key,
		URI:       fmt.Sprintf("s3://%s/%s", e.cfg.Bucket, e.cfg.Key),
		ETag:      uploaded.ETag,
		Size:      uploaded.Size,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	})
}

func (e *s3Executor) runDownload(ctx context.Context) error {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(e.cfg.Destination), 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := e.client.FGetObject(ctx, e.cfg.Bucket, e.cfg.Key, e.cfg.Destination, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	info, err := os.Stat(e.cfg.Destination)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return e.writeResult(objectResult{
		Operation: opDownload,
		Success:   true,
		Bucket:    e.cfg.Bucket,
		Key:       e.cfg.Key,
		URI:       fmt.Sprintf("s3://%s/%s", e.cfg.Bucket, e.cfg.Key),
		Size:      info.Size(),
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	})
}

func (e *s3Executor) runList(ctx context.Context) error {
	opts := minio.ListObjectsOptions{
		Prefix:    e.cfg.Prefix,
		Recursive: e.cfg.Recursive,
		MaxKeys:   e.cfg.MaxKeys,
	}

	var entries []listEntry
	for obj := range e.client.ListObjects(ctx, e.cfg.Bucket, opts) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		entries = append(entries, listEntry{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
		if e.cfg.MaxKeys > 0 && len(entries) >= e.cfg.MaxKeys {
			break
		}
	}
	return e.writeResult(entries)
}

func (e *s3Executor) runDelete(ctx context.Context) error {
	start := time.Now()

	if e.cfg.Key != "" {
		if err := e.client.RemoveObject(ctx, e.cfg.Bucket, e.cfg.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
		if e.cfg.Quiet {
			return nil
		}
		return e.writeResult(objectResult{
			Operation: opDelete,
			Success:   true,
			Bucket:    e.cfg.Bucket,
			Key:       e.cfg.Key,
			Duration:  time.Since(start).Round(time.Millisecond).String(),
		})
	}

	// Prefix delete removes every matching object.
	deleted := 0
	for obj := range e.client.ListObjects(ctx, e.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    e.cfg.Prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if err := e.client.RemoveObject(ctx, e.cfg.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to delete object %q: %w", obj.Key, err)
		}
		deleted++
	}
	if e.cfg.Quiet {
		return nil
	}
	return e.writeResult(objectResult{
		Operation: opDelete,
		Success:   true,
		Bucket:    e.cfg.Bucket,
		Key:       e.cfg.Prefix,
		Size:      int64(deleted),
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	})
}

func (e *s3Executor) writeResult(v any) error {
	e.mu.Lock()
	out := e.stdout
	e.mu.Unlock()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateS3Stage(stage core.Stage) error {
	cfg := DefaultConfig()
	if stage.ExecutorConfig.Config != nil {
		if err := decodeConfig(stage.ExecutorConfig.Config, cfg); err != nil {
			return fmt.Errorf("invalid s3 configuration: %w", err)
		}
	}
	op, err := parseOperation(stage.Command)
	if err != nil {
		return err
	}
	return cfg.ValidateForOperation(op)
}

func init() {
	executor.RegisterExecutor(executorType, newExecutor, validateS3Stage, core.ExecutorCapabilities{Command: true})
}
