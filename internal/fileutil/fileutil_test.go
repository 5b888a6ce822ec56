package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenOrCreateFile(t *testing.T) {
	t.Run("FileCreationAndPermissions", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "test.log")

		file, err := OpenOrCreateFile(filePath)
		require.NoError(t, err)
		defer func() {
			_ = file.Close()
		}()

		assert.NotNil(t, file)
		assert.Equal(t, filePath, file.Name())

		info, err := file.Stat()
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("InvalidPath", func(t *testing.T) {
		_, err := OpenOrCreateFile("/nonexistent/directory/test.log")
		assert.Error(t, err)
	})

	t.Run("Append", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "append.log")

		for _, chunk := range []string{"one\n", "two\n"} {
			file, err := OpenOrCreateFile(filePath)
			require.NoError(t, err)
			_, err = file.WriteString(chunk)
			require.NoError(t, err)
			require.NoError(t, file.Close())
		}

		data, err := os.ReadFile(filePath)
		require.NoError(t, err)
		assert.Equal(t, "one\ntwo\n", string(data))
	})
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0600))

	assert.True(t, FileExists(filePath))
	assert.False(t, FileExists(filepath.Join(dir, "missing.txt")))
	assert.True(t, IsFile(filePath))
	assert.False(t, IsFile(dir))
	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(filePath))
}

func TestIsYAMLFile(t *testing.T) {
	assert.True(t, IsYAMLFile("pipeline.yaml"))
	assert.True(t, IsYAMLFile("pipeline.yml"))
	assert.False(t, IsYAMLFile("pipeline.json"))
	assert.False(t, IsYAMLFile(""))
}

func TestResolvePath(t *testing.T) {
	t.Run("EmptyPath", func(t *testing.T) {
		got, err := ResolvePath("")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("Tilde", func(t *testing.T) {
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		got, err := ResolvePath("~/data")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "data"), got)
	})

	t.Run("EnvVar", func(t *testing.T) {
		t.Setenv("WEFT_TEST_DIR", "/opt/weft")
		got, err := ResolvePath("$WEFT_TEST_DIR/runs")
		require.NoError(t, err)
		assert.Equal(t, "/opt/weft/runs", got)
	})

	t.Run("Relative", func(t *testing.T) {
		cwd, err := os.Getwd()
		require.NoError(t, err)
		got, err := ResolvePath("runs")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cwd, "runs"), got)
	})
}

func TestCache(t *testing.T) {
	t.Run("LoadLatest", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "data.txt")
		require.NoError(t, os.WriteFile(filePath, []byte("v1"), 0600))

		cache := NewCache[string]("test", 0, time.Hour)

		loads := 0
		loader := func() (string, error) {
			loads++
			data, err := os.ReadFile(filePath)
			return string(data), err
		}

		got, err := cache.LoadLatest(filePath, loader)
		require.NoError(t, err)
		assert.Equal(t, "v1", got)
		assert.Equal(t, 1, loads)

		// Unchanged file serves from cache.
		got, err = cache.LoadLatest(filePath, loader)
		require.NoError(t, err)
		assert.Equal(t, "v1", got)
		assert.Equal(t, 1, loads)

		// Changing size invalidates the entry.
		require.NoError(t, os.WriteFile(filePath, []byte("v2x"), 0600))
		got, err = cache.LoadLatest(filePath, loader)
		require.NoError(t, err)
		assert.Equal(t, "v2x", got)
		assert.Equal(t, 2, loads)
	})

	t.Run("Invalidate", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "data.txt")
		require.NoError(t, os.WriteFile(filePath, []byte("v1"), 0600))

		cache := NewCache[string]("test", 0, time.Hour)
		fi, err := os.Stat(filePath)
		require.NoError(t, err)
		cache.Store(filePath, "v1", fi)
		assert.Equal(t, 1, cache.Size())

		cache.Invalidate(filePath)
		_, ok := cache.Load(filePath)
		assert.False(t, ok)
	})
}
