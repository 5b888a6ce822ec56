package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type flagKind int

const (
	flagString flagKind = iota
	flagBool
	flagInt
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	kind                                 flagKind
	required                             bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $XDG_CONFIG_HOME/weft/config.yaml)",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		kind:      flagBool,
		usage:     "suppress log output",
	}
	paramsFlag = commandLineFlag{
		name:      "params",
		shorthand: "p",
		usage:     "parameters to pass to the pipeline as key=value pairs",
	}
	runIDFlag = commandLineFlag{
		name:      "run-id",
		shorthand: "r",
		usage:     "run identifier (default is a generated UUID)",
	}
	inputFlag = commandLineFlag{
		name:      "input",
		shorthand: "i",
		usage:     "input glob pattern, overrides the pipeline samples pattern",
	}
	outputDirFlag = commandLineFlag{
		name:      "output-dir",
		shorthand: "o",
		usage:     "directory stage output paths are rendered into",
	}
	maxActiveRunsFlag = commandLineFlag{
		name:  "max-active-runs",
		kind:  flagInt,
		usage: "maximum concurrently running instances (default is one per CPU)",
	}
	cacheModeFlag = commandLineFlag{
		name:  "cache-mode",
		usage: "cache mode override for every stage: none, shallow or deep",
	}
	timeoutFlag = commandLineFlag{
		name:  "timeout",
		usage: "bound on the whole run, as a duration string",
	}
	dryRunFlag = commandLineFlag{
		name:  "dry-run",
		kind:  flagBool,
		usage: "expand and verify the plan without executing commands",
	}
	watchFlag = commandLineFlag{
		name:      "watch",
		shorthand: "w",
		kind:      flagBool,
		usage:     "watch the pipeline file and inputs, re-run on change",
	}
	noMetricsFlag = commandLineFlag{
		name:  "no-metrics",
		kind:  flagBool,
		usage: "skip writing the metrics snapshot",
	}
)

// initFlags registers the given flags plus the common config and quiet
// flags on the command.
func initFlags(cmd *cobra.Command, addFlags ...commandLineFlag) {
	addFlags = append(addFlags, configFlag, quietFlag)
	for _, flag := range addFlags {
		switch flag.kind {
		case flagBool:
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
		case flagInt:
			def, _ := strconv.Atoi(flag.defaultValue)
			cmd.Flags().IntP(flag.name, flag.shorthand, def, flag.usage)
		default:
			cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
		}
		if flag.required {
			if err := cmd.MarkFlagRequired(flag.name); err != nil {
				fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
			}
		}
	}
}

// bindFlags exposes the flags to viper so config file values and flags
// resolve through the same lookup.
func bindFlags(cmd *cobra.Command, addFlags ...commandLineFlag) {
	names := []string{"config", "quiet"}
	for _, flag := range addFlags {
		names = append(names, flag.name)
	}
	for _, name := range names {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = viper.BindPFlag(name, f)
		}
	}
}
