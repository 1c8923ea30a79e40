// Package normalizers tidies the help text of commands written as indented
// raw string literals.
package normalizers

import (
	"strings"
)

const Indentation = `  `

// LongDesc strips the indentation shared by every line of s and trims the
// surrounding blank lines.
func LongDesc(s string) string {
	return strings.Join(dedent(s), "\n")
}

// Examples dedents s like LongDesc and indents every non-empty line by
// Indentation, keeping the relative indentation of the lines.
func Examples(s string) string {
	lines := dedent(s)
	for i, line := range lines {
		if line != "" {
			lines[i] = Indentation + line
		}
	}
	return strings.Join(lines, "\n")
}

func dedent(s string) []string {
	s = strings.Trim(s, "\n")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	lines := strings.Split(s, "\n")

	margin := -1
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		lines[i] = line
		if line == "" {
			continue
		}
		width := len(line) - len(strings.TrimLeft(line, " \t"))
		if margin < 0 || width < margin {
			margin = width
		}
	}

	for i, line := range lines {
		if len(line) >= margin {
			lines[i] = line[margin:]
		}
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
