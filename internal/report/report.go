package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/weft-org/weft/internal/core"
	"github.com/weft-org/weft/internal/runtime"
	"github.com/weft-org/weft/internal/stringutil"
)

var instanceHeader = table.Row{
	"#",
	"Instance",
	"Status",
	"Attempts",
	"Duration",
	"Error",
}

// RenderSummary writes the final run report: a one-line verdict, a table of
// instances, and the diagnostic tail of each failed instance. Status tokens
// are colored when out is a terminal.
func RenderSummary(out io.Writer, graph *runtime.Graph) {
	colorize := isTerminal(out)

	summary := NewSummaryRecord(graph)
	fmt.Fprintf(out, "\nRun %s (%d succeeded, %d cached, %d failed, %d aborted) in %s\n",
		statusToken(colorize, graph.Status().String(), graph.Status().IsSuccess()),
		summary.Succeeded, summary.Cached, summary.Failed, summary.Aborted,
		stringutil.FormatDuration(summary.Duration),
	)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(instanceHeader)
	for i, node := range graph.Nodes() {
		state := node.State()
		row := table.Row{
			i + 1,
			node.Name(),
			statusToken(colorize, state.Status.String(), state.Status.IsSuccess()),
			state.AttemptCount,
			formatNodeDuration(state),
		}
		if state.Error != nil {
			row = append(row, stringutil.TruncString(state.Error.Error(), 80))
		} else {
			row = append(row, "")
		}
		t.AppendRow(row)
	}
	t.Render()

	for _, node := range graph.Nodes() {
		state := node.State()
		if state.Status != core.InstanceFailed || state.StderrTail == "" {
			continue
		}
		fmt.Fprintf(out, "\n%s stderr (last lines):\n%s\n", node.Name(), state.StderrTail)
		if state.LogFile != "" {
			fmt.Fprintf(out, "full log: %s\n", state.LogFile)
		}
	}
}

func formatNodeDuration(state runtime.NodeState) string {
	if state.StartedAt.IsZero() || state.FinishedAt.IsZero() {
		return "-"
	}
	return stringutil.FormatDuration(state.FinishedAt.Sub(state.StartedAt))
}

func statusToken(colorize bool, token string, success bool) string {
	if !colorize {
		return token
	}
	if success {
		return color.GreenString(token)
	}
	switch token {
	case "running", "pending", "ready", "not_started":
		return color.YellowString(token)
	default:
		return color.RedString(token)
	}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
