package test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/weft-org/weft/internal/config"
)

// CmdTest describes one command invocation and its expected output.
type CmdTest struct {
	Name        string   // Name of the test.
	Args        []string // Arguments to pass to the command.
	ExpectedOut []string // Expected fragments of the captured log output.
}

// Command is a helper for testing cobra commands.
type Command struct {
	Helper
}

// SetupCommand creates a command test helper with logging capture enabled.
func SetupCommand(t *testing.T, opts ...HelperOption) Command {
	t.Helper()

	opts = append(opts, WithCaptureLoggingOutput())
	return Command{Helper: Setup(t, opts...)}
}

// RunCommand executes the command under a throwaway root and asserts the
// expected output fragments appear in the captured log output.
func (th Command) RunCommand(t *testing.T, cmd *cobra.Command, testCase CmdTest) {
	t.Helper()

	require.NoError(t, th.runCommand(cmd, testCase.Args))

	output := th.LoggingOutput.String()
	for _, expected := range testCase.ExpectedOut {
		require.Contains(t, output, expected)
	}
}

// RunCommandWithError runs a command and returns the error without failing
// the test.
func (th Command) RunCommandWithError(t *testing.T, cmd *cobra.Command, testCase CmdTest) error {
	t.Helper()
	return th.runCommand(cmd, testCase.Args)
}

func (th Command) runCommand(cmd *cobra.Command, args []string) error {
	cmdRoot := &cobra.Command{Use: "root"}
	cmdRoot.AddCommand(cmd)
	cmdRoot.SetArgs(withConfigFlag(args, th.Config))
	if th.LoggingOutput != nil {
		cmdRoot.SetOut(th.LoggingOutput)
		cmdRoot.SetErr(th.LoggingOutput)
	}
	return cmdRoot.ExecuteContext(th.Context)
}

// withConfigFlag appends --config <file> unless already present, inserting it
// before any "--" passthrough arguments.
func withConfigFlag(args []string, cfg *config.Config) []string {
	if cfg == nil || cfg.Paths.ConfigFileUsed == "" {
		return args
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" || arg == "-c" || hasConfigInline(arg) {
			return args
		}
		if arg == "--" {
			withFlag := append([]string{}, args[:i]...)
			withFlag = append(withFlag, "--config", cfg.Paths.ConfigFileUsed)
			withFlag = append(withFlag, args[i:]...)
			return withFlag
		}
	}
	return append(args, "--config", cfg.Paths.ConfigFileUsed)
}

func hasConfigInline(arg string) bool {
	return strings.HasPrefix(arg, "--config=") || strings.HasPrefix(arg, "-c=")
}

// CreatePipelineFile writes a pipeline file into the pipelines directory.
func (th Command) CreatePipelineFile(t *testing.T, name string, content string) string {
	t.Helper()

	file := filepath.Join(th.Config.Paths.PipelinesDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0750))
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))
	return file
}
