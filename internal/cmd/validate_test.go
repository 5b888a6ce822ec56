package cmd_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weft-org/weft/internal/cmd"
	"github.com/weft-org/weft/internal/test"
)

func TestValidateCommand(t *testing.T) {
	th := test.SetupCommand(t)
	inDir := t.TempDir()
	writeInputs(t, inDir, "s1", "s2", "s3")

	file := th.CreatePipelineFile(t, "copy.yaml", copyPipeline(inDir))

	th.RunCommand(t, cmd.CmdValidate(), test.CmdTest{
		Name: "ValidPipeline",
		Args: []string{"validate", file},
		ExpectedOut: []string{
			"Pipeline copy is valid",
			"Samples:   3",
			"Instances: 3",
		},
	})
}

func TestValidateCommandSchedule(t *testing.T) {
	th := test.SetupCommand(t)

	file := th.CreatePipelineFile(t, "nightly.yaml", `
name: nightly
schedule: "0 2 * * *"
stages:
  - name: sweep
    command: "echo sweep > ${out}"
    outputs:
      - name: out
        path: "sweep.txt"
`)

	th.RunCommand(t, cmd.CmdValidate(), test.CmdTest{
		Name:        "ShowsNextRun",
		Args:        []string{"validate", file},
		ExpectedOut: []string{"Pipeline nightly is valid", "Schedule:  0 2 * * *"},
	})
}

func TestValidateCommandArgs(t *testing.T) {
	th := test.SetupCommand(t)

	err := th.RunCommandWithError(t, cmd.CmdValidate(), test.CmdTest{
		Name: "NoArgs",
		Args: []string{"validate"},
	})
	require.Error(t, err)
}
