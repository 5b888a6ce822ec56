package stringutil

import (
	"fmt"
	"strings"
	"time"
)

// FormatTime returns formatted time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ParseTime parses time string.
func ParseTime(val string) (time.Time, error) {
	if val == "" || val == "-" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.RFC3339, val, time.Local)
}

// TruncString returns truncated string.
func TruncString(val string, max int) string {
	if len(val) > max {
		return val[:max]
	}
	return val
}

// FormatDuration formats a duration into a human-readable string.
// Examples:
//   - 500ms -> "500ms"
//   - 1.5s -> "1.5s"
//   - 2m30s -> "2m 30s"
//   - 1h30m -> "1h 30m"
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < 0 {
		return "-" + FormatDuration(-d)
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// NormalizeKey derives a grouping key from a file basename by stripping
// the first matching token from tokens and any of the listed suffixes.
// Tokens are matched anywhere in the name; suffixes only at the end.
func NormalizeKey(base string, tokens, suffixes []string) string {
	key := base
	for _, sfx := range suffixes {
		if strings.HasSuffix(key, sfx) {
			key = strings.TrimSuffix(key, sfx)
			break
		}
	}
	for _, tok := range tokens {
		if idx := strings.LastIndex(key, tok); idx >= 0 {
			key = key[:idx] + key[idx+len(tok):]
			break
		}
	}
	return key
}

// MatchToken reports which token from tokens occurs in base, or "" when
// none does.
func MatchToken(base string, tokens []string) string {
	for _, tok := range tokens {
		if strings.Contains(base, tok) {
			return tok
		}
	}
	return ""
}
