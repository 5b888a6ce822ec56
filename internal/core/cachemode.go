package core

import "fmt"

// CacheMode controls whether a stage reuses outputs of completed invocations.
type CacheMode string

const (
	// CacheModeNone always re-executes the stage.
	CacheModeNone CacheMode = "none"
	// CacheModeShallow reuses outputs when every declared output path
	// already exists on disk, without consulting recorded invocations.
	CacheModeShallow CacheMode = "shallow"
	// CacheModeDeep reuses outputs only when a recorded invocation with
	// the exact input fingerprint exists and its outputs are still present.
	CacheModeDeep CacheMode = "deep"
)

// String returns the lowercase token for the cache mode.
func (m CacheMode) String() string {
	return string(m)
}

// Valid reports whether the mode is one of the known tokens.
func (m CacheMode) Valid() bool {
	switch m {
	case CacheModeNone, CacheModeShallow, CacheModeDeep:
		return true
	default:
		return false
	}
}

// ParseCacheMode parses a cache mode token. The empty string parses to
// CacheModeNone.
func ParseCacheMode(s string) (CacheMode, error) {
	switch CacheMode(s) {
	case CacheModeNone, "":
		return CacheModeNone, nil
	case CacheModeShallow:
		return CacheModeShallow, nil
	case CacheModeDeep:
		return CacheModeDeep, nil
	default:
		return CacheModeNone, fmt.Errorf("%w: %q", ErrUnknownCacheMode, s)
	}
}
