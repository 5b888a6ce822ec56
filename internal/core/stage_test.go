package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamKind(t *testing.T) {
	t.Parallel()

	valid := []ParamKind{ParamKindValue, ParamKindFile, ParamKindFilePair, ParamKindCollection}
	for _, k := range valid {
		assert.True(t, k.Valid(), "expected %s to be valid", k)
	}
	assert.False(t, ParamKind("directory").Valid())

	assert.False(t, ParamKindValue.IsFileBacked())
	assert.True(t, ParamKindFile.IsFileBacked())
	assert.True(t, ParamKindFilePair.IsFileBacked())
	assert.True(t, ParamKindCollection.IsFileBacked())
}

func TestParseCacheMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected CacheMode
		wantErr  bool
	}{
		{"", CacheModeNone, false},
		{"none", CacheModeNone, false},
		{"shallow", CacheModeShallow, false},
		{"deep", CacheModeDeep, false},
		{"DEEP", CacheModeNone, true},
		{"full", CacheModeNone, true},
	}

	for _, tt := range tests {
		mode, err := ParseCacheMode(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownCacheMode, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, mode)
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	t.Run("any non-zero exit code by default", func(t *testing.T) {
		t.Parallel()
		policy := RetryPolicy{Limit: 2}
		assert.True(t, policy.ShouldRetry(1))
		assert.True(t, policy.ShouldRetry(127))
		assert.False(t, policy.ShouldRetry(0))
	})

	t.Run("restricted to listed exit codes", func(t *testing.T) {
		t.Parallel()
		policy := RetryPolicy{Limit: 2, ExitCodes: []int{42, 75}}
		assert.True(t, policy.ShouldRetry(42))
		assert.True(t, policy.ShouldRetry(75))
		assert.False(t, policy.ShouldRetry(1))
	})
}

func TestRetryPolicy_Merge(t *testing.T) {
	t.Parallel()

	base := RetryPolicy{Limit: 2, Interval: time.Second, Backoff: 2.0}

	t.Run("nil override keeps base", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, base, base.Merge(nil))
	})

	t.Run("override replaces non-zero fields", func(t *testing.T) {
		t.Parallel()
		merged := base.Merge(&RetryPolicy{Limit: 5, Interval: 3 * time.Second})
		assert.Equal(t, 5, merged.Limit)
		assert.Equal(t, 3*time.Second, merged.Interval)
		assert.Equal(t, 2.0, merged.Backoff)
	})
}

func TestStageLookups(t *testing.T) {
	t.Parallel()

	stage := Stage{
		Name: "align",
		Params: []Param{
			{Name: "reads", Kind: ParamKindFilePair},
			{Name: "threads", Kind: ParamKindValue, Default: "4"},
		},
		Outputs: []Output{
			{Name: "bam", Path: "aligned/${key}.bam"},
		},
	}

	param, ok := stage.Param("reads")
	require.True(t, ok)
	assert.Equal(t, ParamKindFilePair, param.Kind)

	_, ok = stage.Param("missing")
	assert.False(t, ok)

	output, ok := stage.Output("bam")
	require.True(t, ok)
	assert.Equal(t, "aligned/${key}.bam", output.Path)

	_, ok = stage.Output("missing")
	assert.False(t, ok)
}

func TestExecutorConfigIsCommand(t *testing.T) {
	t.Parallel()

	assert.True(t, ExecutorConfig{}.IsCommand())
	assert.True(t, ExecutorConfig{Type: "command"}.IsCommand())
	assert.False(t, ExecutorConfig{Type: "http"}.IsCommand())
}
