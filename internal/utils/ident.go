package utils

import "strings"

// IsIdentChar reports whether b can appear in an identifier.
func IsIdentChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

// IdentAt finds the identifier containing or immediately preceding col in
// line. Returns the name and its [start, end) byte span.
func IdentAt(line string, col int) (string, int, int, bool) {
	if col > len(line) {
		col = len(line)
	}
	if col < 0 {
		col = 0
	}
	// Back off onto the identifier when the cursor sits just past its end.
	if (col == len(line) || !IsIdentChar(line[col])) && col > 0 && IsIdentChar(line[col-1]) {
		col--
	}
	if col == len(line) || !IsIdentChar(line[col]) {
		return "", 0, 0, false
	}
	start := col
	for start > 0 && IsIdentChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && IsIdentChar(line[end]) {
		end++
	}
	return line[start:end], start, end, true
}

// IdentRunEndingAt extracts the maximal identifier run ending at col.
// Returns the run's start column and the run itself, which is empty when the
// character before col is not an identifier character.
func IdentRunEndingAt(line string, col int) (int, string) {
	if col > len(line) {
		col = len(line)
	}
	start := col
	for start > 0 && IsIdentChar(line[start-1]) {
		start--
	}
	return start, line[start:col]
}

// SplitHints tokenizes user-supplied hint input on whitespace and
// punctuation, keeping only identifier-shaped tokens.
func SplitHints(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	})
}
