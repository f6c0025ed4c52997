package utils

import (
	"strings"
	"unicode/utf8"
)

// MatchKeywords returns the keywords that occur in text as substrings, in keyword order.
// Empty keywords never match.
func MatchKeywords(text string, keywords []string) []string {
	var found []string
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			found = append(found, keyword)
		}
	}
	return found
}

// AppendUnique appends the values of extra that are not already in base, keeping first-seen order
func AppendUnique(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, group := range [][]string{base, extra} {
		for _, v := range group {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Truncate shortens s to at most n runes, appending suffix when it was cut
func Truncate(s string, n int, suffix string) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + suffix
		}
		i++
	}
	return s
}

// IsBlank reports whether s is empty or whitespace only
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
