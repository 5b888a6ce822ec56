package agent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-org/weft/internal/core"
	_ "github.com/weft-org/weft/internal/runtime/builtin/command"
)

func writeSampleFiles(t *testing.T, dir string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		path := filepath.Join(dir, key+".fastq")
		require.NoError(t, os.WriteFile(path, []byte(key+" reads\n"), 0o600))
	}
}

func testPipeline(inDir, outDir string) *core.Pipeline {
	return &core.Pipeline{
		Name:      "smoke",
		OutputDir: outDir,
		Samples: &core.SampleSource{
			Pattern:    filepath.Join(inDir, "*.fastq"),
			Extensions: []string{".fastq"},
			Require:    true,
		},
		Stages: []core.Stage{
			{
				Name:    "align",
				Command: "cp ${reads} ${bam}",
				Params:  []core.Param{{Name: "reads", Kind: core.ParamKindFile}},
				Outputs: []core.Output{{Name: "bam", Path: "${key}.bam"}},
			},
			{
				Name:    "merge",
				Command: "cat ${bams} > ${report}",
				Params:  []core.Param{{Name: "bams", Kind: core.ParamKindCollection}},
				Outputs: []core.Output{{Name: "report", Path: "report.txt"}},
			},
		},
		Bindings: []core.Binding{
			{Producer: "samples", Consumer: "align.reads"},
			{Producer: "align.bam", Consumer: "merge.bams", Collect: true},
		},
	}
}

func TestAgentRun(t *testing.T) {
	t.Parallel()

	inDir, outDir := t.TempDir(), t.TempDir()
	writeSampleFiles(t, inDir, "s1", "s2")

	var out bytes.Buffer
	a := New(testPipeline(inDir, outDir), Options{
		RunID:     "run-test",
		DataDir:   filepath.Join(outDir, "data"),
		ReportOut: &out,
	})

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, 0, ExitCode(nil))

	assert.FileExists(t, filepath.Join(outDir, "s1.bam"))
	assert.FileExists(t, filepath.Join(outDir, "s2.bam"))
	assert.FileExists(t, filepath.Join(outDir, "report.txt"))

	runDir := filepath.Join(outDir, "run-run-test")
	manifest, err := os.ReadFile(filepath.Join(runDir, "manifest.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	assert.Len(t, lines, 5, "header + 3 instances + summary")
	assert.Contains(t, lines[0], `"type":"run"`)
	assert.Contains(t, lines[len(lines)-1], `"type":"summary"`)

	metricsData, err := os.ReadFile(filepath.Join(runDir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metricsData), "weft_instances_total")

	assert.Contains(t, out.String(), "succeeded")
}

func TestAgentRunFailure(t *testing.T) {
	t.Parallel()

	inDir, outDir := t.TempDir(), t.TempDir()
	writeSampleFiles(t, inDir, "s1")

	p := testPipeline(inDir, outDir)
	p.Stages[0].Command = "exit 3"

	var out bytes.Buffer
	a := New(p, Options{
		RunID:     "run-fail",
		DataDir:   filepath.Join(outDir, "data"),
		ReportOut: &out,
	})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsExecutionError(err))
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, out.String(), "failed")
}

func TestAgentDryRun(t *testing.T) {
	t.Parallel()

	inDir, outDir := t.TempDir(), t.TempDir()
	writeSampleFiles(t, inDir, "s1")

	var out bytes.Buffer
	a := New(testPipeline(inDir, outDir), Options{
		RunID:     "run-dry",
		Dry:       true,
		ReportOut: &out,
	})

	require.NoError(t, a.Run(context.Background()))
	assert.NoFileExists(t, filepath.Join(outDir, "s1.bam"), "dry run executes nothing")
	assert.NoFileExists(t, filepath.Join(outDir, "run-run-dry", "manifest.jsonl"))
	assert.Contains(t, out.String(), "succeeded")
}

func TestAgentNoMatch(t *testing.T) {
	t.Parallel()

	inDir, outDir := t.TempDir(), t.TempDir()

	a := New(testPipeline(inDir, outDir), Options{RunID: "run-empty"})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsNoMatchError(err))
	assert.Equal(t, 2, ExitCode(err))
}

func TestAgentGraphError(t *testing.T) {
	t.Parallel()

	inDir, outDir := t.TempDir(), t.TempDir()
	writeSampleFiles(t, inDir, "s1")

	p := testPipeline(inDir, outDir)
	p.Bindings = p.Bindings[:1] // merge.bams left unbound

	a := New(p, Options{RunID: "run-bad"})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsGraphError(err))
	assert.Equal(t, 2, ExitCode(err))
}

func TestAgentRunID(t *testing.T) {
	t.Parallel()

	a := New(&core.Pipeline{Name: "x"}, Options{})
	id := a.RunID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, a.RunID(), "run id is stable")
}

func TestSignalBeforeRun(t *testing.T) {
	t.Parallel()

	a := New(&core.Pipeline{Name: "x"}, Options{})
	a.Signal(context.Background(), os.Interrupt) // must not panic
}

func TestAgentDotenv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outDir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WEFT_AGENT_TEST_TOKEN=hunter2\n"), 0o600))

	p := &core.Pipeline{
		Name:      "dotenv",
		OutputDir: outDir,
		Dotenv:    []string{envFile, filepath.Join(dir, "missing.env")},
		Stages: []core.Stage{
			{
				Name:    "emit",
				Command: "printenv WEFT_AGENT_TEST_TOKEN > ${token}",
				Outputs: []core.Output{{Name: "token", Path: "token.txt"}},
			},
		},
	}

	a := New(p, Options{RunID: "run-env", DataDir: filepath.Join(outDir, "data"), ReportOut: &bytes.Buffer{}})
	require.NoError(t, a.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(outDir, "token.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", strings.TrimSpace(string(data)))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&core.NoMatchError{Pattern: "x"}))
	assert.Equal(t, 2, ExitCode(core.NewGraphError("s", errors.New("cycle"))))
	assert.Equal(t, 1, ExitCode(&core.ExecutionError{Stage: "s", ExitCode: 3, Err: errors.New("boom")}))
	assert.Equal(t, 1, ExitCode(errors.New("other")))
}

func TestAgentTimeout(t *testing.T) {
	t.Parallel()

	inDir, outDir := t.TempDir(), t.TempDir()
	writeSampleFiles(t, inDir, "s1")

	p := testPipeline(inDir, outDir)
	p.Stages = p.Stages[:1]
	p.Bindings = p.Bindings[:1]
	p.Stages[0].Command = "sleep 10"

	a := New(p, Options{
		RunID:     "run-timeout",
		Timeout:   200 * time.Millisecond,
		DataDir:   filepath.Join(outDir, "data"),
		ReportOut: &bytes.Buffer{},
	})

	start := time.Now()
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
