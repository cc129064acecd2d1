package dataset

import (
	"strings"
	"unicode/utf8"
)

// isLineBreak reports the line boundaries Python's str.splitlines uses.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// splitLines splits on every line boundary, treating \r\n as one. A
// trailing line break does not produce an empty final element, and ""
// yields no lines.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// joinFrom joins lines[start:] with "\n"; an out-of-range start yields "".
func joinFrom(lines []string, start int) string {
	if start >= len(lines) {
		return ""
	}
	return strings.Join(lines[start:], "\n")
}

// countCodeLines counts lines that are not whitespace-only.
func countCodeLines(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
