// Package discovery materializes the initial keyed input set for a run by
// matching files on disk and pairing them into samples.
package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
	"github.com/weft-org/weft/internal/stringutil"
)

// DefaultPairTokens are the filename tokens marking pair members, in pair
// order.
var DefaultPairTokens = []string{"_R1", "_R2"}

// Sample is one keyed input: the derived sample key and its file paths in
// pair-token order.
type Sample struct {
	Key   string   `json:"key"`
	Paths []string `json:"paths"`
}

// Config controls file discovery and key derivation.
type Config struct {
	// Pattern is the glob pattern matching input files. Supports ** for
	// recursive matching.
	Pattern string
	// PairTokens are the filename tokens marking pair members, in pair
	// order. Defaults to DefaultPairTokens.
	PairTokens []string
	// Extensions are the filename suffixes stripped during key derivation.
	// When empty, the full extension chain is stripped.
	Extensions []string
	// Require makes an empty match set an error.
	Require bool
}

// Discover matches the pattern against the filesystem and derives one Sample
// per key. Files sharing a key after token stripping form a pair in token
// order. The pairing policy is strict: a file carrying a pair token whose
// partner is missing is an error, and two files resolving to the same key
// outside legal pairing are an error.
func Discover(ctx context.Context, cfg Config) ([]Sample, error) {
	matches, err := doublestar.FilepathGlob(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", cfg.Pattern, err)
	}

	if len(matches) == 0 {
		if cfg.Require {
			return nil, &core.NoMatchError{Pattern: cfg.Pattern}
		}
		return nil, nil
	}

	pairTokens := cfg.PairTokens
	if len(pairTokens) == 0 {
		pairTokens = DefaultPairTokens
	}

	groups := make(map[string][]member)
	for _, path := range matches {
		stripped := stripExtensions(filepath.Base(path), cfg.Extensions)
		token := stringutil.MatchToken(stripped, pairTokens)
		key := stringutil.NormalizeKey(stripped, pairTokens, nil)
		groups[key] = append(groups[key], member{path: path, token: token})
	}

	samples := make([]Sample, 0, len(groups))
	for key, members := range groups {
		sample, err := pair(key, members, pairTokens)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	// Sorted by key so instance order, fingerprints, and plans are stable
	// across runs.
	sort.Slice(samples, func(i, j int) bool { return samples[i].Key < samples[j].Key })

	logger.Debug(ctx, "Discovered samples", tag.Pattern(cfg.Pattern), tag.Count(len(samples)))
	return samples, nil
}

type member struct {
	path  string
	token string
}

// pair validates one key group and orders its members by pair token.
func pair(key string, members []member, pairTokens []string) (Sample, error) {
	tokenless := 0
	byToken := make(map[string]string, len(members))
	for _, m := range members {
		if m.token == "" {
			tokenless++
			continue
		}
		if prev, dup := byToken[m.token]; dup {
			return Sample{}, core.NewGraphError("", fmt.Errorf("%w: %q and %q both resolve to %q",
				core.ErrDuplicateSampleKey, prev, m.path, key))
		}
		byToken[m.token] = m.path
	}

	switch {
	case tokenless == len(members):
		// Unpaired single files are fine; two unrelated files on one key
		// are not.
		if len(members) > 1 {
			return Sample{}, core.NewGraphError("", fmt.Errorf("%w: %q and %q both resolve to %q",
				core.ErrDuplicateSampleKey, members[0].path, members[1].path, key))
		}
		return Sample{Key: key, Paths: []string{members[0].path}}, nil

	case tokenless > 0:
		return Sample{}, core.NewGraphError("", fmt.Errorf("%w: key %q mixes paired and unpaired files",
			core.ErrDuplicateSampleKey, key))

	case len(byToken) != len(pairTokens):
		missing := make([]string, 0, len(pairTokens))
		for _, tok := range pairTokens {
			if _, ok := byToken[tok]; !ok {
				missing = append(missing, tok)
			}
		}
		return Sample{}, core.NewGraphError("", fmt.Errorf("%w: key %q is missing %s",
			core.ErrUnpairedSample, key, strings.Join(missing, ", ")))
	}

	paths := make([]string, 0, len(pairTokens))
	for _, tok := range pairTokens {
		paths = append(paths, byToken[tok])
	}
	return Sample{Key: key, Paths: paths}, nil
}

// stripExtensions removes the configured suffixes from the name, or the full
// extension chain when no suffixes are configured.
func stripExtensions(name string, extensions []string) string {
	if len(extensions) > 0 {
		for _, ext := range extensions {
			if strings.HasSuffix(name, ext) {
				return strings.TrimSuffix(name, ext)
			}
		}
		return name
	}
	for {
		ext := filepath.Ext(name)
		if ext == "" || ext == name {
			return name
		}
		name = strings.TrimSuffix(name, ext)
	}
}
