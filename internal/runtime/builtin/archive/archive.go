package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mholt/archives"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime/executor"
)

const (
	opCreate  = "create"
	opExtract = "extract"
	opList    = "list"
)

var (
	ErrConfig          = errors.New("archive: configuration error")
	ErrSourceNotFound  = errors.New("archive: source not found")
	ErrFormatDetection = errors.New("archive: format detection failed")
	ErrExtract         = errors.New("archive: extraction failed")
	ErrCreate          = errors.New("archive: creation failed")
)

var _ executor.Executor = (*archiveExecutor)(nil)

type archiveExecutor struct {
	mu        sync.Mutex
	stdout    io.Writer
	cancel    context.CancelFunc
	cfg       *Config
	operation string
}

type listResult struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Dir  bool   `json:"dir,omitempty"`
}

func newExecutor(_ context.Context, stage core.Stage) (executor.Executor, error) {
	cfg := &Config{}
	if stage.ExecutorConfig.Config != nil {
		if err := decodeConfig(stage.ExecutorConfig.Config, cfg); err != nil {
			return nil, fmt.Errorf("invalid archive configuration: %w", err)
		}
	}

	op, err := parseOperation(stage.Command)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(op, cfg); err != nil {
		return nil, err
	}

	return &archiveExecutor{
		stdout:    os.Stdout,
		cfg:       cfg,
		operation: op,
	}, nil
}

func parseOperation(command string) (string, error) {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: command must specify an operation (create, extract, list)", ErrConfig)
	}
	switch fields[0] {
	case opCreate, opExtract, opList:
		return fields[0], nil
	default:
		return "", fmt.Errorf("%w: unsupported operation %q (valid: create, extract, list)", ErrConfig, fields[0])
	}
}

func (e *archiveExecutor) SetStdout(out io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stdout = out
}

func (e *archiveExecutor) SetStderr(_ io.Writer) {}

func (e *archiveExecutor) Kill(_ os.Signal) error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (e *archiveExecutor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	switch e.operation {
	case opCreate:
		return e.runCreate(ctx)
	case opExtract:
		return e.runExtract(ctx)
	case opList:
		return e.runList(ctx)
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrConfig, e.operation)
	}
}

func (e *archiveExecutor) runCreate(ctx context.Context) error {
	info, err := os.Stat(e.cfg.Source)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrSourceNotFound, e.cfg.Source)
	}

	names := map[string]string{}
	if info.IsDir() {
		err := filepath.WalkDir(e.cfg.Source, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(e.cfg.Source, p)
			if err != nil {
				return err
			}
			if !e.selected(rel) {
				return nil
			}
			names[p] = filepath.ToSlash(rel)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCreate, err)
		}
	} else {
		names[e.cfg.Source] = filepath.Base(e.cfg.Source)
	}

	files, err := archives.FilesFromDisk(ctx, nil, names)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreate, err)
	}

	format, err := formatByName(e.cfg.Format, e.cfg.Destination)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(e.cfg.Destination), 0750); err != nil {
		return fmt.Errorf("%w: %v", ErrCreate, err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !e.cfg.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	out, err := os.OpenFile(e.cfg.Destination, flags, 0644) // nolint: gosec
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreate, err)
	}
	defer func() {
		_ = out.Close()
	}()

	if err := format.Archive(ctx, out, files); err != nil {
		return fmt.Errorf("%w: %v", ErrCreate, err)
	}

	e.mu.Lock()
	stdout := e.stdout
	e.mu.Unlock()
	_, _ = fmt.Fprintf(stdout, "created %s (%d entries)\n", e.cfg.Destination, len(files))
	return nil
}

func (e *archiveExecutor) runExtract(ctx context.Context) error {
	dest := e.cfg.Destination
	if dest == "" {
		dest = "."
	}
	if err := os.MkdirAll(dest, 0750); err != nil {
		return fmt.Errorf("%w: %v", ErrExtract, err)
	}

	return e.walkArchive(ctx, func(_ context.Context, fi archives.FileInfo) error {
		name := e.stripped(fi.NameInArchive)
		if name == "" || !e.selected(name) {
			return nil
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry %q escapes destination", ErrExtract, fi.NameInArchive)
		}

		if fi.IsDir() {
			return os.MkdirAll(target, 0750)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return err
		}
		if !e.cfg.Overwrite {
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%w: %q already exists", ErrExtract, target)
			}
		}

		src, err := fi.Open()
		if err != nil {
			return err
		}
		defer func() {
			_ = src.Close()
		}()

		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm()) // nolint: gosec
		if err != nil {
			return err
		}
		defer func() {
			_ = dst.Close()
		}()

		_, err = io.Copy(dst, src)
		return err
	})
}

func (e *archiveExecutor) runList(ctx context.Context) error {
	var entries []listResult
	err := e.walkArchive(ctx, func(_ context.Context, fi archives.FileInfo) error {
		name := e.stripped(fi.NameInArchive)
		if name == "" || !e.selected(name) {
			return nil
		}
		entries = append(entries, listResult{
			Name: name,
			Size: fi.Size(),
			Dir:  fi.IsDir(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	stdout := e.stdout
	e.mu.Unlock()
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// walkArchive identifies the archive format and visits every entry.
func (e *archiveExecutor) walkArchive(ctx context.Context, handle archives.FileHandler) error {
	f, err := os.Open(e.cfg.Source)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrSourceNotFound, e.cfg.Source)
	}
	defer func() {
		_ = f.Close()
	}()

	format, reader, err := archives.Identify(ctx, e.cfg.Source, f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormatDetection, err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%w: %s does not support extraction", ErrFormatDetection, format.Extension())
	}
	if err := ex.Extract(ctx, reader, handle); err != nil {
		return fmt.Errorf("%w: %v", ErrExtract, err)
	}
	return nil
}

// selected applies include and exclude patterns to an entry name.
func (e *archiveExecutor) selected(name string) bool {
	name = filepath.ToSlash(name)
	if len(e.cfg.Include) > 0 {
		matched := false
		for _, pattern := range e.cfg.Include {
			if ok, _ := doublestar.Match(pattern, name); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pattern := range e.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return false
		}
	}
	return true
}

// stripped drops leading path components per the config.
func (e *archiveExecutor) stripped(name string) string {
	name = path.Clean(filepath.ToSlash(name))
	if e.cfg.StripComponents <= 0 {
		return name
	}
	parts := strings.Split(name, "/")
	if len(parts) <= e.cfg.StripComponents {
		return ""
	}
	return path.Join(parts[e.cfg.StripComponents:]...)
}

// formatByName resolves the archive format from the explicit config value
// or the destination file name.
func formatByName(format, filename string) (archives.Archiver, error) {
	name := strings.ToLower(format)
	if name == "" {
		name = strings.ToLower(filename)
	}
	switch {
	case strings.HasSuffix(name, "tar.gz"), strings.HasSuffix(name, "tgz"):
		return archives.CompressedArchive{
			Compression: archives.Gz{},
			Archival:    archives.Tar{},
		}, nil
	case strings.HasSuffix(name, "tar"):
		return archives.Tar{}, nil
	case strings.HasSuffix(name, "zip"):
		return archives.Zip{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported format %q (valid: zip, tar, tar.gz, tgz)", ErrFormatDetection, name)
	}
}

func validateArchiveStage(stage core.Stage) error {
	cfg := &Config{}
	if stage.ExecutorConfig.Config != nil {
		if err := decodeConfig(stage.ExecutorConfig.Config, cfg); err != nil {
			return fmt.Errorf("invalid archive configuration: %w", err)
		}
	}
	op, err := parseOperation(stage.Command)
	if err != nil {
		return err
	}
	return validateConfig(op, cfg)
}

func init() {
	executor.RegisterExecutor("archive", newExecutor, validateArchiveStage, core.ExecutorCapabilities{
		Command:     true,
		FileOutputs: true,
	})
}
