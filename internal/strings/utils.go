// Package strings holds the small text helpers shared by the CLI renderer
// and the run logs.
package strings

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most n runes, ending in "..." when cut.
// Titles and overviews are often non-ASCII, so bytes are never split.
func Truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// FormatArgs renders tool arguments as "key=value" pairs in key order.
func FormatArgs(args map[string]any, maxLen int) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := args[k]
		if s, ok := v.(string); ok {
			v = fmt.Sprintf("%q", s)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return Truncate(strings.Join(parts, ", "), maxLen)
}

// Plural returns "1 movie" or "3 movies".
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// WordWrap wraps text at width on word boundaries. Existing newlines are
// kept and ANSI escapes do not count towards the width.
func WordWrap(s string, width int) string {
	if width <= 0 {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if visibleLength(line) > width {
			lines[i] = wrapLine(line, width)
		}
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	var out strings.Builder
	col := 0
	for _, word := range strings.Fields(line) {
		n := visibleLength(word)
		switch {
		case col == 0:
		case col+1+n > width:
			out.WriteByte('\n')
			col = 0
		default:
			out.WriteByte(' ')
			col++
		}
		out.WriteString(word)
		col += n
		// an overlong word gets a line of its own
		if n > width {
			out.WriteByte('\n')
			col = 0
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func visibleLength(s string) int {
	inEscape := false
	count := 0
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		default:
			count++
		}
	}
	return count
}
