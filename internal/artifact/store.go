// Package artifact records the outputs of completed stage invocations,
// keyed by the fingerprint of their bound inputs. The record log is
// append-only so concurrent readers are always safe, and it survives across
// runs to back caching.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/fileutil"
)

// Record maps one completed invocation to its produced outputs.
type Record struct {
	// Stage is the owning stage name.
	Stage string `json:"stage"`
	// Fingerprint is the input fingerprint the invocation ran under.
	Fingerprint string `json:"fingerprint"`
	// Outputs maps declared output names to the produced file paths.
	Outputs map[string]string `json:"outputs"`
	// RunID identifies the run that produced the outputs.
	RunID string `json:"runId"`
	// CreatedAt is the completion time.
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the append-only record log. Records are never mutated after
// first write; a later record for the same fingerprint shadows earlier ones
// on lookup.
type Store struct {
	dir   string
	mu    sync.Mutex
	index map[string]Record
	file  *os.File
	bw    *bufio.Writer
}

// recordsFile is the JSONL log under the store directory.
const recordsFile = "records.jsonl"

// Open loads the record log under dir, creating the directory when absent.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir %s: %w", dir, err)
	}

	s := &Store{dir: dir, index: make(map[string]Record)}
	path := filepath.Join(dir, recordsFile)

	if fileutil.FileExists(path) {
		if err := s.loadIndex(path); err != nil {
			return nil, err
		}
	}

	file, err := fileutil.OpenOrCreateFile(path)
	if err != nil {
		return nil, err
	}
	s.file = file
	s.bw = bufio.NewWriter(file)
	return s, nil
}

func (s *Store) loadIndex(path string) error {
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to open artifact log: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn final line from a crashed run is skipped, not fatal.
			continue
		}
		s.index[indexKey(rec.Stage, rec.Fingerprint)] = rec
	}
	return scanner.Err()
}

// Append writes a new record and makes it visible to lookups.
func (s *Store) Append(rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.bw.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append artifact record: %w", err)
	}
	if err := s.bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush artifact record: %w", err)
	}
	s.index[indexKey(rec.Stage, rec.Fingerprint)] = rec
	return nil
}

// Lookup returns the most recent record for the stage and fingerprint.
func (s *Store) Lookup(stage, fingerprint string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.index[indexKey(stage, fingerprint)]
	return rec, ok
}

// Len returns the number of distinct (stage, fingerprint) records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Close flushes and closes the underlying log file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bw.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}

func indexKey(stage, fingerprint string) string {
	return stage + "\x00" + fingerprint
}

// CacheDecision is the outcome of a cache check.
type CacheDecision struct {
	// Hit reports whether the invocation can be skipped.
	Hit bool
	// Outputs holds the reusable output paths on a hit.
	Outputs map[string]string
}

// Check consults the store under the stage's cache mode. Shallow mode hits
// when every declared output path already exists on disk; deep mode hits
// only when a record exists for the exact fingerprint and its recorded
// outputs are still present.
func (s *Store) Check(stage string, mode core.CacheMode, fingerprint string, declaredOutputs map[string]string) CacheDecision {
	switch mode {
	case core.CacheModeShallow:
		if len(declaredOutputs) == 0 {
			return CacheDecision{}
		}
		for _, path := range declaredOutputs {
			if !fileutil.FileExists(path) {
				return CacheDecision{}
			}
		}
		return CacheDecision{Hit: true, Outputs: declaredOutputs}

	case core.CacheModeDeep:
		rec, ok := s.Lookup(stage, fingerprint)
		if !ok {
			return CacheDecision{}
		}
		for _, path := range rec.Outputs {
			if !fileutil.FileExists(path) {
				return CacheDecision{}
			}
		}
		return CacheDecision{Hit: true, Outputs: rec.Outputs}

	default:
		return CacheDecision{}
	}
}
