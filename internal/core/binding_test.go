package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProducerRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected Ref
		wantErr  bool
	}{
		{"samples", Ref{Scope: "samples"}, false},
		{"params.threads", Ref{Scope: "params", Name: "threads"}, false},
		{"align.bam", Ref{Scope: "align", Name: "bam"}, false},
		{" align.bam ", Ref{Scope: "align", Name: "bam"}, false},
		{"align", Ref{}, true},
		{".bam", Ref{}, true},
		{"align.", Ref{}, true},
		{"", Ref{}, true},
	}

	for _, tt := range tests {
		ref, err := ParseProducerRef(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrBindingMalformed, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, ref)
	}
}

func TestParseConsumerRef(t *testing.T) {
	t.Parallel()

	ref, err := ParseConsumerRef("align.reads")
	require.NoError(t, err)
	assert.Equal(t, Ref{Scope: "align", Name: "reads"}, ref)

	_, err = ParseConsumerRef("samples")
	assert.ErrorIs(t, err, ErrBindingMalformed)

	_, err = ParseConsumerRef("samples.reads")
	assert.ErrorIs(t, err, ErrBindingMalformed)

	_, err = ParseConsumerRef("params.threads")
	assert.ErrorIs(t, err, ErrBindingMalformed)
}

func TestRefString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "samples", Ref{Scope: "samples"}.String())
	assert.Equal(t, "align.bam", Ref{Scope: "align", Name: "bam"}.String())
	assert.True(t, Ref{Scope: "samples"}.IsSamples())
	assert.True(t, Ref{Scope: "params", Name: "x"}.IsParams())
	assert.False(t, Ref{Scope: "align", Name: "bam"}.IsSamples())
}

func TestBindingString(t *testing.T) {
	t.Parallel()

	plain := Binding{Producer: "align.bam", Consumer: "sort.bam"}
	assert.Equal(t, "align.bam => sort.bam", plain.String())

	collect := Binding{Producer: "sort.sorted", Consumer: "merge.bams", Collect: true}
	assert.Equal(t, "sort.sorted =collect=> merge.bams", collect.String())
}
