package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// namedParamRegex matches named parameters like :param_name.
var namedParamRegex = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)

// convertNamedParams rewrites named parameters (:param) to the driver's
// positional placeholders and returns the ordered values. Repeated names
// reuse the same position for "$" drivers and repeat the value for "?".
func convertNamedParams(query string, params map[string]any, placeholder string) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	matches := namedParamRegex.FindAllStringSubmatchIndex(query, -1)
	if len(matches) == 0 {
		return query, nil, nil
	}

	positions := make(map[string]int)
	var ordered []any
	var result strings.Builder

	lastEnd := 0
	for _, match := range matches {
		name := query[match[2]:match[3]]
		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("parameter %q not found in params", name)
		}

		result.WriteString(query[lastEnd:match[0]])

		if placeholder == "?" {
			ordered = append(ordered, value)
			result.WriteString("?")
		} else {
			pos, seen := positions[name]
			if !seen {
				ordered = append(ordered, value)
				pos = len(ordered)
				positions[name] = pos
			}
			result.WriteString(placeholder + strconv.Itoa(pos))
		}

		lastEnd = match[1]
	}
	result.WriteString(query[lastEnd:])

	return result.String(), ordered, nil
}

// isSelectQuery reports whether the query returns rows.
func isSelectQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range []string{"select", "with", "show", "explain", "pragma"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}
