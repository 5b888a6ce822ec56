package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/fileutil"
)

// Input is one bound input value contributing to a fingerprint.
type Input struct {
	// Name is the declared param name.
	Name string
	// Kind classifies the input; file-backed kinds are hashed by content.
	Kind core.ParamKind
	// Values holds the bound values: one literal for value params, file
	// paths otherwise.
	Values []string
}

// contentHashes memoizes file content hashes keyed by path. Entries go stale
// when the file's size or mtime changes.
var contentHashes = fileutil.NewCache[string]("content-hash", 1024, time.Hour)

// Fingerprint computes the deterministic cache key for one stage invocation:
// a sha256 over the stage name and every bound input in name order. File
// values contribute their content hash, so changing one byte of any input
// file changes the fingerprint.
func Fingerprint(stageName string, inputs []Input) (string, error) {
	sorted := make([]Input, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	writeField(h, stageName)
	for _, in := range sorted {
		writeField(h, in.Name)
		writeField(h, in.Kind.String())
		for _, v := range in.Values {
			if in.Kind.IsFileBacked() {
				sum, err := hashFile(v)
				if err != nil {
					return "", fmt.Errorf("failed to fingerprint input %s: %w", in.Name, err)
				}
				writeField(h, sum)
			} else {
				writeField(h, v)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField writes a length-prefixed field so adjacent values cannot
// collide.
func writeField(h io.Writer, s string) {
	_, _ = fmt.Fprintf(h, "%d:%s", len(s), s)
}

// hashFile returns the hex sha256 of the file contents.
func hashFile(path string) (string, error) {
	return contentHashes.LoadLatest(path, func() (string, error) {
		f, err := os.Open(path) // nolint:gosec
		if err != nil {
			return "", err
		}
		defer func() { _ = f.Close() }()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	})
}
