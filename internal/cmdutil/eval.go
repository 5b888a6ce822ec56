package cmdutil

import (
	"errors"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// EvalOptions controls how strings are evaluated.
type EvalOptions struct {
	// ExpandEnv enables expansion of OS environment variables for names
	// not bound by any variable map.
	ExpandEnv bool
	// Variables are consulted in order; the first map holding a name wins.
	Variables []map[string]string
}

// EvalOption is a functional option for EvalString.
type EvalOption func(*EvalOptions)

// WithVariables adds a variable map consulted before the environment.
func WithVariables(vars map[string]string) EvalOption {
	return func(opts *EvalOptions) {
		opts.Variables = append(opts.Variables, vars)
	}
}

// WithoutExpandEnv disables fallback to OS environment variables.
func WithoutExpandEnv() EvalOption {
	return func(opts *EvalOptions) {
		opts.ExpandEnv = false
	}
}

func newEvalOptions() *EvalOptions {
	return &EvalOptions{ExpandEnv: true}
}

// EvalString performs POSIX shell-style variable expansion on the input,
// resolving ${name} and $name references from the bound variable maps and
// falling back to the OS environment. References that resolve nowhere are
// preserved in braced form rather than expanded to empty.
func EvalString(input string, opts ...EvalOption) (string, error) {
	options := newEvalOptions()
	for _, opt := range opts {
		opt(options)
	}

	parser := syntax.NewParser()
	word, err := parser.Document(strings.NewReader(input))
	if err != nil {
		return expandWithLookup(input, options.lookup), nil
	}
	if word == nil {
		return "", nil
	}

	cfg := &expand.Config{
		Env: expand.FuncEnviron(func(name string) string {
			if val, ok := options.lookup(name); ok {
				return val
			}
			// A missing binding stays visible in the rendered command
			// instead of expanding to empty.
			return "${" + name + "}"
		}),
	}

	result, err := expand.Literal(cfg, word)
	if err != nil {
		// Command substitution and other constructs the expander cannot
		// evaluate fall back to plain variable replacement.
		var unexpected expand.UnexpectedCommandError
		if errors.As(err, &unexpected) {
			return expandWithLookup(input, options.lookup), nil
		}
		return "", err
	}
	return result, nil
}

func (o *EvalOptions) lookup(name string) (string, bool) {
	for _, vars := range o.Variables {
		if val, ok := vars[name]; ok {
			return val, true
		}
	}
	if o.ExpandEnv {
		return os.LookupEnv(name)
	}
	return "", false
}

// expandWithLookup expands ${name} and $name references using the lookup
// function, preserving unresolved references.
func expandWithLookup(s string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '$' || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteByte(s[i])
				i++
				continue
			}
			name := s[i+2 : i+2+end]
			if val, ok := lookup(name); ok {
				b.WriteString(val)
			} else {
				b.WriteString(s[i : i+3+end])
			}
			i += 3 + end
			continue
		}
		j := i + 1
		for j < len(s) && isNameByte(s[j], j > i+1) {
			j++
		}
		if j == i+1 {
			b.WriteByte(s[i])
			i++
			continue
		}
		name := s[i+1 : j]
		if val, ok := lookup(name); ok {
			b.WriteString(val)
		} else {
			b.WriteString(s[i:j])
		}
		i = j
	}
	return b.String()
}

func isNameByte(c byte, allowDigit bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return allowDigit && c >= '0' && c <= '9'
}
