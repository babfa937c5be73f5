package search

import (
	"strings"
	"unicode/utf8"
)

// Snippet returns a window of at most maxLen runes from text, centred on the first query term found.
// Without a match it returns the leading text. Cut ends are marked with "...".
func Snippet(text, query string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	n := utf8.RuneCountInString(text)
	if maxLen <= 0 || n <= maxLen {
		return text
	}
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))

	start := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := runeIndex(lower, []rune(term)); i >= 0 {
			start = max(i-maxLen/3, 0)
			break
		}
	}
	end := min(start+maxLen, n)
	start = max(end-maxLen, 0)

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < n {
		out += "..."
	}
	return out
}

func runeIndex(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
