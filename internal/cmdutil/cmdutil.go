package cmdutil

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrCommandIsEmpty is returned when a command string contains no words.
var ErrCommandIsEmpty = fmt.Errorf("command is empty")

// SplitCommand splits a shell-style command string into the command and its
// arguments, honoring quoting.
func SplitCommand(cmd string) (string, []string, error) {
	words, err := splitWords(cmd)
	if err != nil {
		return "", nil, err
	}
	if len(words) == 0 {
		return "", nil, ErrCommandIsEmpty
	}
	return words[0], words[1:], nil
}

func splitWords(cmd string) ([]string, error) {
	parser := syntax.NewParser()
	var words []string
	err := parser.Words(strings.NewReader(cmd), func(w *syntax.Word) bool {
		words = append(words, literalOf(w, cmd))
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", cmd, err)
	}
	return words, nil
}

// literalOf renders a parsed word back to its unquoted text.
func literalOf(w *syntax.Word, src string) string {
	if lit := w.Lit(); lit != "" {
		return lit
	}
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, dp := range p.Parts {
				if lit, ok := dp.(*syntax.Lit); ok {
					b.WriteString(lit.Value)
				} else {
					b.WriteString(rawText(dp, src))
				}
			}
		default:
			b.WriteString(rawText(part, src))
		}
	}
	return b.String()
}

func rawText(part syntax.WordPart, src string) string {
	start := part.Pos().Offset()
	end := part.End().Offset()
	if start >= uint(len(src)) || end > uint(len(src)) || start > end {
		return ""
	}
	return src[start:end]
}

// GetShellCommand returns the shell to wrap stage commands in. An explicit
// configured shell wins, then $SHELL, then a platform default.
func GetShellCommand(configuredShell string) string {
	if configuredShell != "" {
		return configuredShell
	}
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}
