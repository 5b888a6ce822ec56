package fileutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "AlreadySafe",
			input:    "align_sampleA-01",
			expected: "align_sampleA-01",
		},
		{
			name:     "BracketsAndSpaces",
			input:    "align[sample A]",
			expected: "align_sample_A_",
		},
		{
			name:     "PathSeparators",
			input:    "stage/with/slashes",
			expected: "stage_with_slashes",
		},
		{
			name:     "Truncated",
			input:    strings.Repeat("a", MaxSafeNameLength+50),
			expected: strings.Repeat("a", MaxSafeNameLength),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeName(tt.input))
		})
	}
}
