package util

import "strings"

// MatchesKeywords reports whether any keyword occurs in the folded text.
// An empty keyword list matches everything.
func MatchesKeywords(keywords []string, fields ...string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := Fold(strings.Join(fields, " "))
	for _, k := range keywords {
		k = Fold(strings.TrimSpace(k))
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
