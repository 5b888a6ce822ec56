package jq

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
)

func TestJqExecutor(t *testing.T) {
	t.Parallel()

	t.Run("QueryFromCommand", func(t *testing.T) {
		t.Parallel()

		ex, err := NewJq(context.Background(), core.Stage{
			Command: ".name",
			ExecutorConfig: core.ExecutorConfig{
				Type:   "jq",
				Config: map[string]any{"input": `{"name":"weft"}`},
			},
		})
		require.NoError(t, err)

		var stdout bytes.Buffer
		ex.SetStdout(&stdout)
		require.NoError(t, ex.Run(context.Background()))
		assert.Equal(t, "\"weft\"\n", stdout.String())
	})

	t.Run("RawStrings", func(t *testing.T) {
		t.Parallel()

		ex, err := NewJq(context.Background(), core.Stage{
			ExecutorConfig: core.ExecutorConfig{
				Type: "jq",
				Config: map[string]any{
					"query": ".items[]",
					"input": `{"items":["a","b"]}`,
					"raw":   true,
				},
			},
		})
		require.NoError(t, err)

		var stdout bytes.Buffer
		ex.SetStdout(&stdout)
		require.NoError(t, ex.Run(context.Background()))
		assert.Equal(t, "a\nb\n", stdout.String())
	})

	t.Run("InputFileToOutputFile", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		inFile := filepath.Join(dir, "in.json")
		outFile := filepath.Join(dir, "out", "result.json")
		require.NoError(t, os.WriteFile(inFile, []byte(`{"count":3}`), 0600))

		ex, err := NewJq(context.Background(), core.Stage{
			ExecutorConfig: core.ExecutorConfig{
				Type: "jq",
				Config: map[string]any{
					"query":      ".count",
					"inputFile":  inFile,
					"outputFile": outFile,
				},
			},
		})
		require.NoError(t, err)
		require.NoError(t, ex.Run(context.Background()))

		data, err := os.ReadFile(outFile)
		require.NoError(t, err)
		assert.Equal(t, "3\n", string(data))
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		t.Parallel()

		_, err := NewJq(context.Background(), core.Stage{Command: ".foo["})
		assert.ErrorContains(t, err, "invalid jq query")
	})

	t.Run("MissingInput", func(t *testing.T) {
		t.Parallel()

		ex, err := NewJq(context.Background(), core.Stage{Command: "."})
		require.NoError(t, err)
		assert.ErrorIs(t, ex.Run(context.Background()), errNoInput)
	})
}
