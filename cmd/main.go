package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/weft-org/weft/internal/build"
	"github.com/weft-org/weft/internal/cmd"

	_ "github.com/weft-org/weft/internal/runtime/builtin" // Register built-in executors
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "Weft is a pipeline runner for sample-parallel batch workloads",
	Long: `Weft is a pipeline runner for sample-parallel batch workloads.

It discovers input sample sets, fans stages out across them, caches stage
results by content fingerprint, and collects the outputs back together.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.CmdRun())
	rootCmd.AddCommand(cmd.CmdValidate())
	rootCmd.AddCommand(cmd.CmdSchema())
	rootCmd.AddCommand(cmd.CmdVersion())
}
