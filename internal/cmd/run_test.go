package cmd_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weft-org/weft/internal/cmd"
	"github.com/weft-org/weft/internal/test"

	_ "github.com/weft-org/weft/internal/runtime/builtin/command"
)

func writeInputs(t *testing.T, dir string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		path := filepath.Join(dir, key+".fastq")
		require.NoError(t, os.WriteFile(path, []byte(key+" reads\n"), 0o600))
	}
}

func copyPipeline(inDir string) string {
	return fmt.Sprintf(`
name: copy
samples:
  pattern: "%s/*.fastq"
  extensions: [".fastq"]
  require: true
stages:
  - name: copy
    command: "cp ${reads} ${out}"
    params:
      - name: reads
        kind: file
    outputs:
      - name: out
        path: "${key}.out"
bindings:
  - producer: samples
    consumer: copy.reads
`, inDir)
}

func TestRunCommand(t *testing.T) {
	th := test.SetupCommand(t)
	inDir, outDir := t.TempDir(), t.TempDir()
	writeInputs(t, inDir, "s1", "s2")
	file := th.CreatePipelineFile(t, "copy.yaml", copyPipeline(inDir))

	tests := []test.CmdTest{
		{
			Name: "RunPipeline",
			Args: []string{
				"run", file,
				"--output-dir", outDir,
				"--run-id", "cmd-run-1",
				"--no-metrics",
			},
			ExpectedOut: []string{"Run finished", "status=succeeded"},
		},
		{
			Name: "RunByName",
			Args: []string{
				"run", "copy",
				"--output-dir", outDir,
				"--run-id", "cmd-run-2",
				"--no-metrics",
			},
			ExpectedOut: []string{"Run finished"},
		},
		{
			Name: "DryRun",
			Args: []string{
				"run", file,
				"--output-dir", t.TempDir(),
				"--dry-run",
			},
			ExpectedOut: []string{"succeeded"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			th.RunCommand(t, cmd.CmdRun(), tc)
		})
	}

	assert.FileExists(t, filepath.Join(outDir, "s1.out"))
	assert.FileExists(t, filepath.Join(outDir, "s2.out"))
	assert.FileExists(t, filepath.Join(outDir, "run-cmd-run-1", "manifest.jsonl"))
}

func TestRunCommandParams(t *testing.T) {
	th := test.SetupCommand(t)
	outDir := t.TempDir()

	file := th.CreatePipelineFile(t, "greet.yaml", `
name: greet
params:
  who: world
stages:
  - name: greet
    command: "echo hello ${name} > ${out}"
    params:
      - name: name
    outputs:
      - name: out
        path: "greeting.txt"
bindings:
  - producer: params.who
    consumer: greet.name
`)

	tc := test.CmdTest{
		Name: "ParamsAfterDash",
		Args: []string{
			"run", file,
			"--output-dir", outDir,
			"--no-metrics",
			"--", "who=weft",
		},
		ExpectedOut: []string{"Run finished"},
	}
	th.RunCommand(t, cmd.CmdRun(), tc)

	data, err := os.ReadFile(filepath.Join(outDir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello weft\n", string(data))
}

func TestRunCommandBadFlags(t *testing.T) {
	th := test.SetupCommand(t)

	err := th.RunCommandWithError(t, cmd.CmdRun(), test.CmdTest{
		Name: "MissingPipeline",
		Args: []string{"run"},
	})
	require.Error(t, err)
}
