package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	t.Run("Stable", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		r1 := writeFile(t, dir, "s1_R1.fq", "AAAA")
		r2 := writeFile(t, dir, "s1_R2.fq", "CCCC")

		inputs := []Input{
			{Name: "reads", Kind: core.ParamKindFilePair, Values: []string{r1, r2}},
			{Name: "threads", Kind: core.ParamKindValue, Values: []string{"4"}},
		}

		fp1, err := Fingerprint("trim", inputs)
		require.NoError(t, err)
		fp2, err := Fingerprint("trim", inputs)
		require.NoError(t, err)
		assert.Equal(t, fp1, fp2)
		assert.Len(t, fp1, 64)
	})

	t.Run("InputOrderIrrelevant", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		f := writeFile(t, dir, "in.txt", "data")

		a := []Input{
			{Name: "a", Kind: core.ParamKindValue, Values: []string{"1"}},
			{Name: "b", Kind: core.ParamKindFile, Values: []string{f}},
		}
		b := []Input{
			{Name: "b", Kind: core.ParamKindFile, Values: []string{f}},
			{Name: "a", Kind: core.ParamKindValue, Values: []string{"1"}},
		}

		fpA, err := Fingerprint("s", a)
		require.NoError(t, err)
		fpB, err := Fingerprint("s", b)
		require.NoError(t, err)
		assert.Equal(t, fpA, fpB)
	})

	t.Run("ContentSensitive", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		f1 := writeFile(t, dir, "a.txt", "AAAA")
		f2 := writeFile(t, dir, "b.txt", "AAAB")

		fp1, err := Fingerprint("s", []Input{{Name: "in", Kind: core.ParamKindFile, Values: []string{f1}}})
		require.NoError(t, err)
		fp2, err := Fingerprint("s", []Input{{Name: "in", Kind: core.ParamKindFile, Values: []string{f2}}})
		require.NoError(t, err)
		assert.NotEqual(t, fp1, fp2, "one changed byte must change the fingerprint")
	})

	t.Run("StageNameSensitive", func(t *testing.T) {
		t.Parallel()
		inputs := []Input{{Name: "x", Kind: core.ParamKindValue, Values: []string{"v"}}}
		fp1, err := Fingerprint("stage-a", inputs)
		require.NoError(t, err)
		fp2, err := Fingerprint("stage-b", inputs)
		require.NoError(t, err)
		assert.NotEqual(t, fp1, fp2)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		_, err := Fingerprint("s", []Input{{Name: "in", Kind: core.ParamKindFile, Values: []string{"/no/such/file"}}})
		require.Error(t, err)
	})
}
