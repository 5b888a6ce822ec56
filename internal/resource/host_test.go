package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	snap := Collect(context.Background())
	assert.GreaterOrEqual(t, snap.CPUCount, 1)
}

func TestDefaultConcurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 8, DefaultConcurrency(Snapshot{CPUCount: 8}))
	assert.Equal(t, 1, DefaultConcurrency(Snapshot{}))
}
