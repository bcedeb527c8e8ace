// Package textutil provides small text-formatting helpers.
package textutil

import "strings"

// Dedent removes the common leading whitespace from every non-blank line of
// s, drops leading and trailing blank lines, and trims trailing whitespace
// from the result. It lets multi-line descriptions be written as indented
// raw string literals.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")

	// Drop leading and trailing blank lines.
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[start:end]
	if len(lines) == 0 {
		return ""
	}

	// Common whitespace prefix across non-blank lines.
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(line, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
