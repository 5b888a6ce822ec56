package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	t.Parallel()

	op, err := parseOperation("upload")
	require.NoError(t, err)
	assert.Equal(t, opUpload, op)

	op, err = parseOperation("LIST")
	require.NoError(t, err)
	assert.Equal(t, opList, op)

	_, err = parseOperation("")
	assert.ErrorIs(t, err, ErrConfig)

	_, err = parseOperation("copy")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidateForOperation(t *testing.T) {
	t.Parallel()

	t.Run("BucketRequired", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		assert.ErrorIs(t, cfg.ValidateForOperation(opList), ErrConfig)
	})

	t.Run("UploadNeedsSourceAndKey", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Bucket = "results"
		assert.ErrorIs(t, cfg.ValidateForOperation(opUpload), ErrConfig)

		cfg.Source = "/tmp/report.tsv"
		cfg.Key = "runs/report.tsv"
		assert.NoError(t, cfg.ValidateForOperation(opUpload))
	})

	t.Run("DownloadNeedsKeyAndDestination", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Bucket = "results"
		cfg.Key = "runs/report.tsv"
		assert.ErrorIs(t, cfg.ValidateForOperation(opDownload), ErrConfig)

		cfg.Destination = "/tmp/report.tsv"
		assert.NoError(t, cfg.ValidateForOperation(opDownload))
	})

	t.Run("DeleteNeedsKeyOrPrefix", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Bucket = "results"
		assert.ErrorIs(t, cfg.ValidateForOperation(opDelete), ErrConfig)

		cfg.Prefix = "runs/"
		assert.NoError(t, cfg.ValidateForOperation(opDelete))
	})
}

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	err := decodeConfig(map[string]any{
		"bucket":    "results",
		"key":       "runs/report.tsv",
		"source":    "/tmp/report.tsv",
		"endpoint":  "minio.local:9000",
		"recursive": "true",
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "results", cfg.Bucket)
	assert.Equal(t, "minio.local:9000", cfg.Endpoint)
	assert.True(t, cfg.Recursive)
	assert.Equal(t, 1000, cfg.MaxKeys)
}
