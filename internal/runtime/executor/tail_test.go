package executor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailWriter(t *testing.T) {
	t.Parallel()

	t.Run("ForwardsAndRetains", func(t *testing.T) {
		var out bytes.Buffer
		tw := NewTailWriter(&out, 64)

		n, err := tw.Write([]byte("hello\n"))
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, "hello\n", out.String())
		assert.Equal(t, "hello\n", tw.Tail())
	})

	t.Run("KeepsOnlyLastMaxBytes", func(t *testing.T) {
		var out bytes.Buffer
		tw := NewTailWriter(&out, 8)

		_, err := tw.Write([]byte(strings.Repeat("x", 20)))
		require.NoError(t, err)
		_, err = tw.Write([]byte("tail"))
		require.NoError(t, err)

		assert.Equal(t, "xxxxtail", tw.Tail())
		assert.Len(t, out.String(), 24, "underlying writer sees everything")
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		var out bytes.Buffer
		tw := NewTailWriter(&out, 0)
		_, err := tw.Write([]byte(strings.Repeat("y", defaultStderrTailLimit+100)))
		require.NoError(t, err)
		assert.Len(t, tw.Tail(), defaultStderrTailLimit)
	})
}
