package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/pipeline"
)

// CmdSchema creates the command printing JSON schemas.
func CmdSchema() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "schema [executor-type]",
			Short: "Print the pipeline definition JSON schema",
			Long: `Print the JSON schema of the pipeline file format, for editor completion
and definition linting. With an executor type argument, print the schema of
that executor's config block instead.

Example:
  weft schema
  weft schema http
`,
			Args: cobra.MaximumNArgs(1),
		}, nil, runSchema,
	)
}

func runSchema(ctx *Context, args []string) error {
	out := ctx.Command.OutOrStdout()

	var schema any
	if len(args) == 0 {
		s, err := pipeline.DefinitionSchema()
		if err != nil {
			return fmt.Errorf("failed to generate definition schema: %w", err)
		}
		schema = s
	} else {
		s, ok := core.ExecutorConfigSchema(args[0])
		if !ok {
			types := core.ExecutorTypesWithSchema()
			sort.Strings(types)
			return fmt.Errorf("unknown executor type %q, known types: %s",
				args[0], strings.Join(types, ", "))
		}
		schema = s
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
