package util

import "strings"

// NormalizeAnswer prepares a submitted answer for exact comparison:
// trims surrounding whitespace, folds case, and collapses inner runs of
// whitespace to a single space.
func NormalizeAnswer(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
}
