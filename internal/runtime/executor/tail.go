package executor

import (
	"io"
	"os"
	"sync"
)

// defaultStderrTailLimit is the fallback maximum number of bytes to retain
// from recent stderr output if no override is provided.
const defaultStderrTailLimit = 1024

// TailWriter forwards to an underlying writer and keeps a rolling tail of
// recent output up to max bytes. Safe for concurrent use. The tail is
// attached to failure reports so the operator sees the last stderr lines
// without opening the log file.
type TailWriter struct {
	mu         sync.Mutex
	underlying io.Writer
	max        int
	buf        []byte
}

// NewTailWriter creates a TailWriter that forwards writes to the provided
// writer and retains a rolling tail of recent bytes. If out is nil it
// defaults to os.Stderr. If max <= 0 the package default limit is used.
func NewTailWriter(out io.Writer, max int) *TailWriter {
	if out == nil {
		out = os.Stderr
	}
	if max <= 0 {
		max = defaultStderrTailLimit
	}
	return &TailWriter{underlying: out, max: max}
}

func (t *TailWriter) Write(p []byte) (int, error) {
	n, err := t.underlying.Write(p)

	t.mu.Lock()
	if len(p) > 0 {
		t.buf = append(t.buf, p...)
		if len(t.buf) > t.max {
			t.buf = t.buf[len(t.buf)-t.max:]
		}
	}
	t.mu.Unlock()

	return n, err
}

// Tail returns the rolling tail buffer as a string.
func (t *TailWriter) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
