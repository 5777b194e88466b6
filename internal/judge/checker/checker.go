// Package checker compares expected and observed program output under
// whitespace normalization: per-line token equality after trimming and
// dropping empty lines.
package checker

import "strings"

// Match reports whether expected and actual are equal after
// normalization. It is symmetric and Match(s, s) holds for any s.
func Match(expected, actual string) bool {
	expectedLines := normalize(expected)
	actualLines := normalize(actual)

	if len(expectedLines) != len(actualLines) {
		return false
	}
	for i := range expectedLines {
		if !tokensEqual(expectedLines[i], actualLines[i]) {
			return false
		}
	}
	return true
}

// normalize splits into lines, trims each line, and drops empty ones.
func normalize(s string) []string {
	raw := strings.Split(s, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// tokensEqual compares two lines as sequences of whitespace-separated
// tokens.
func tokensEqual(a, b string) bool {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) != len(bt) {
		return false
	}
	for i := range at {
		if at[i] != bt[i] {
			return false
		}
	}
	return true
}
