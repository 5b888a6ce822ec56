package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
)

func TestChannel(t *testing.T) {
	t.Parallel()

	t.Run("KeyedWriteOnce", func(t *testing.T) {
		ch := NewChannel("align.bam", true)
		require.NoError(t, ch.Publish("s1", Value{Kind: core.ParamKindFile, Items: []string{"/out/s1.bam"}}))

		err := ch.Publish("s1", Value{Kind: core.ParamKindFile, Items: []string{"/out/other.bam"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrChannelAlreadyWritten)
		assert.True(t, core.IsGraphError(err))

		v, ok := ch.Get("s1")
		require.True(t, ok)
		assert.Equal(t, []string{"/out/s1.bam"}, v.Items)
	})

	t.Run("ScalarIgnoresKey", func(t *testing.T) {
		ch := NewChannel("merge.report", false)
		require.NoError(t, ch.Publish("whatever", Value{Kind: core.ParamKindFile, Items: []string{"/out/report.txt"}}))

		v, ok := ch.Get("different")
		require.True(t, ok)
		assert.Equal(t, "/out/report.txt", v.String())

		assert.ErrorIs(t, ch.Publish("", Value{}), core.ErrChannelAlreadyWritten)
	})

	t.Run("CollectSortsByKey", func(t *testing.T) {
		ch := NewChannel("align.bam", true)
		require.NoError(t, ch.Publish("b", Value{Items: []string{"/out/b.bam"}}))
		require.NoError(t, ch.Publish("a", Value{Items: []string{"/out/a.bam"}}))
		require.NoError(t, ch.Publish("c", Value{Items: []string{"/out/c.bam"}}))

		values := ch.Collect()
		require.Len(t, values, 3)
		assert.Equal(t, "/out/a.bam", values[0].String())
		assert.Equal(t, "/out/b.bam", values[1].String())
		assert.Equal(t, "/out/c.bam", values[2].String())
	})

	t.Run("GetBeforePublish", func(t *testing.T) {
		ch := NewChannel("align.bam", true)
		_, ok := ch.Get("s1")
		assert.False(t, ok)
		assert.Zero(t, ch.Len())
	})
}

func TestValueString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", Value{Items: []string{"a", "b", "c"}}.String())
	assert.Equal(t, "", Value{}.String())
}
