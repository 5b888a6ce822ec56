package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	}
}

func newArchiveExecutor(t *testing.T, command string, config map[string]any) *archiveExecutor {
	t.Helper()
	ex, err := newExecutor(context.Background(), core.Stage{
		Command: command,
		ExecutorConfig: core.ExecutorConfig{
			Type:   "archive",
			Config: config,
		},
	})
	require.NoError(t, err)
	impl, ok := ex.(*archiveExecutor)
	require.True(t, ok)
	return impl
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{
		"a.txt":        "alpha",
		"sub/b.txt":    "beta",
		"sub/skip.log": "noise",
	})

	archivePath := filepath.Join(t.TempDir(), "bundle.tar.gz")

	create := newArchiveExecutor(t, "create", map[string]any{
		"source":      srcDir,
		"destination": archivePath,
		"exclude":     []string{"**/*.log"},
	})
	var createOut bytes.Buffer
	create.SetStdout(&createOut)
	require.NoError(t, create.Run(context.Background()))
	assert.FileExists(t, archivePath)
	assert.Contains(t, createOut.String(), "2 entries")

	list := newArchiveExecutor(t, "list", map[string]any{"source": archivePath})
	var listOut bytes.Buffer
	list.SetStdout(&listOut)
	require.NoError(t, list.Run(context.Background()))

	var entries []listResult
	require.NoError(t, json.Unmarshal(listOut.Bytes(), &entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, names)

	destDir := t.TempDir()
	extract := newArchiveExecutor(t, "extract", map[string]any{
		"source":      archivePath,
		"destination": destDir,
	})
	require.NoError(t, extract.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(destDir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))
}

func TestArchiveValidation(t *testing.T) {
	t.Parallel()

	t.Run("UnknownOperation", func(t *testing.T) {
		t.Parallel()
		_, err := parseOperation("compress")
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("CreateNeedsDestination", func(t *testing.T) {
		t.Parallel()
		err := validateConfig(opCreate, &Config{Source: "/tmp/data"})
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("BadGlob", func(t *testing.T) {
		t.Parallel()
		err := validateConfig(opList, &Config{Source: "a.zip", Include: []string{"[unclosed"}})
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		t.Parallel()
		_, err := formatByName("", "bundle.rar")
		assert.ErrorIs(t, err, ErrFormatDetection)
	})
}

func TestStripComponents(t *testing.T) {
	t.Parallel()

	e := &archiveExecutor{cfg: &Config{StripComponents: 1}}
	assert.Equal(t, "b.txt", e.stripped("sub/b.txt"))
	assert.Equal(t, "", e.stripped("top.txt"))
}
