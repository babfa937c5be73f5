package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSnippet(t *testing.T) {
	long := strings.Repeat("filler words here ", 20) + "Acme signed a cloud deal " + strings.Repeat("more text ", 20)

	tests := []struct {
		name   string
		text   string
		query  string
		maxLen int
		check  func(string) bool
	}{
		{"short unchanged", "short  text", "x", 50, func(s string) bool { return s == "short text" }},
		{"zero max", "anything", "x", 0, func(s string) bool { return s == "anything" }},
		{"centres on match", long, "cloud", 60, func(s string) bool {
			return strings.HasPrefix(s, "...") && strings.HasSuffix(s, "...") && strings.Contains(s, "cloud")
		}},
		{"no match leads", long, "zzz", 20, func(s string) bool {
			return strings.HasPrefix(s, "filler") && strings.HasSuffix(s, "...")
		}},
		{"case insensitive", long, "ACME", 60, func(s string) bool { return strings.Contains(s, "Acme") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Snippet(tt.text, tt.query, tt.maxLen); !tt.check(got) {
				t.Errorf("Snippet = %q", got)
			}
		})
	}
}

func TestSnippet_RuneSafe(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 10)
	got := Snippet(text, "テキスト", 15)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(strings.Trim(got, ".")); n != 15 {
		t.Errorf("rune count = %d, want 15", n)
	}
}
