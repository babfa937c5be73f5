package search

import (
	"context"
	"testing"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "acme", 4},
		{"acme", "acme", 0},
		{"acme", "acne", 1},
		{"globex", "glbex", 1},
		{"kubernetes", "kuberentes", 1},
		{"ab", "ba", 1},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := editDistance(tt.b, tt.a); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestQueryTerms(t *testing.T) {
	got := queryTerms("  Acme-Corp, Kubernetes!  ")
	want := []string{"acme", "corp", "kubernetes"}
	if len(got) != len(want) {
		t.Fatalf("queryTerms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("queryTerms[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDigestIndex_Suggest(t *testing.T) {
	x := newIndex(t)
	ctx := context.Background()
	_ = x.Index(ctx, "digest-Acme_Corp-2025-03", testDigest("Acme Corp", "Acme builds rockets.", "Opened a Kubernetes platform team"))
	_ = x.Index(ctx, "digest-Globex-2025-03", testDigest("Globex", "Globex ships semiconductors."))
	_ = x.Index(ctx, "digest-Initech-2025-03", testDigest("Initech", "Initech signed a tie-up with Globex."))

	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"globx", "globex", true},
		{"kuberentes platform", "kubernetes platform", true},
		{"acme rockets", "", false},
		{"rockets of the acme", "", false},
		{"tie the initech", "", false},
		{"globx of the", "globex of the", true},
		{"zzzzzzzz", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := x.Suggest(tt.query)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Suggest(%q) = %q, %v; want %q, %v", tt.query, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDigestIndex_SuggestEmptyIndex(t *testing.T) {
	x := newIndex(t)
	if got, ok := x.Suggest("acme"); ok {
		t.Errorf("empty index suggested %q", got)
	}
}
