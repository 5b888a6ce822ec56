// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"log/slog"
	"time"
)

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// Stage creates a tag for stage names.
func Stage(name string) slog.Attr {
	return slog.String("stage", name)
}

// Key creates a tag for instance keys.
func Key(key string) slog.Attr {
	return slog.String("key", key)
}

// Instance creates a tag for stage instance IDs.
func Instance(id string) slog.Attr {
	return slog.String("instance", id)
}

// Pipeline creates a tag for pipeline names.
func Pipeline(name string) slog.Attr {
	return slog.String("pipeline", name)
}

// RunID creates a tag for run execution IDs.
func RunID(id string) slog.Attr {
	return slog.String("run-id", id)
}

// Attempt creates a tag for attempt numbers.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Fingerprint creates a tag for input fingerprints.
func Fingerprint(fp string) slog.Attr {
	return slog.String("fingerprint", fp)
}

// CacheMode creates a tag for cache modes.
func CacheMode(mode string) slog.Attr {
	return slog.String("cache-mode", mode)
}

// Status creates a tag for statuses.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// ExitCode creates a tag for process exit codes.
func ExitCode(code int) slog.Attr {
	return slog.Int("exit-code", code)
}

// Executor creates a tag for executor types.
func Executor(t string) slog.Attr {
	return slog.String("executor", t)
}

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Pattern creates a tag for glob patterns.
func Pattern(p string) slog.Attr {
	return slog.String("pattern", p)
}

// Count creates a tag for counts.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration creates a tag for durations.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// MaxConcurrency creates a tag for concurrency limits.
func MaxConcurrency(n int) slog.Attr {
	return slog.Int("max-concurrency", n)
}

// Signal creates a tag for OS signal names.
func Signal(sig string) slog.Attr {
	return slog.String("signal", sig)
}

// Type creates a tag for generic type discriminators.
func Type(t string) slog.Attr {
	return slog.String("type", t)
}
