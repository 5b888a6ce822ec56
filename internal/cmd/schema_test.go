package cmd_test

import (
	"testing"

	"github.com/weft-org/weft/internal/cmd"
	"github.com/weft-org/weft/internal/test"

	_ "github.com/weft-org/weft/internal/runtime/builtin/http"
)

func TestSchemaCommand(t *testing.T) {
	th := test.SetupCommand(t)

	th.RunCommand(t, cmd.CmdSchema(), test.CmdTest{
		Name:        "DefinitionSchema",
		Args:        []string{"schema"},
		ExpectedOut: []string{`"stages"`, `"bindings"`, `"cacheMode"`},
	})
}

func TestSchemaCommandExecutor(t *testing.T) {
	th := test.SetupCommand(t)

	th.RunCommand(t, cmd.CmdSchema(), test.CmdTest{
		Name:        "HTTPExecutor",
		Args:        []string{"schema", "http"},
		ExpectedOut: []string{`"properties"`},
	})
}
