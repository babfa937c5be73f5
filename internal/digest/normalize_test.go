package digest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/accionlabs/intelhub/internal/models"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestCleanupText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Revenue grew [3, 7] this quarter.", "Revenue grew this quarter."},
		{"Acme grew [1].", "Acme grew."},
		{"a [12] b [3,4,5] c", "a b c"},
		{"  spaced\n\tout  ", "spaced out"},
		{"keep [a] and [1a]", "keep [a] and [1a]"},
		{"list (see [2])", "list (see)"},
	}
	for _, tt := range tests {
		if got := CleanupText(tt.in); got != tt.want {
			t.Errorf("CleanupText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"bare", `{"a":1}`, `{"a":1}`, nil},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`, nil},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`, nil},
		{"surrounding prose", `Here is the result: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`, nil},
		{"no braces", "sorry, I cannot help", "", ErrNoJSONObject},
		{"only open", "{ nope", "", ErrNoJSONObject},
		{"reversed", "} and {", "", ErrNoJSONObject},
		{"empty", "", "", ErrNoJSONObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_AcmeScenario(t *testing.T) {
	raw := `Here is the result: {"overview":"Acme grew [1].","keyHighlights":[],"openPositions":[` +
		`{"title":"Engineer","link":"https://x.com/1","source":"LinkedIn","datePosted":"2025-01-01","region":"USA"},` +
		`{"title":"Bad","link":""}]}`

	d, err := Normalize("Acme Corp", raw, nil, fixedNow)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if d.Overview != "Acme grew." {
		t.Errorf("overview = %q", d.Overview)
	}
	if len(d.OpenPositions) != 1 {
		t.Fatalf("open positions = %+v, want 1", d.OpenPositions)
	}
	want := models.OpenPosition{Title: "Engineer", Link: "https://x.com/1", Source: "LinkedIn", DatePosted: "2025-01-01", Region: "USA"}
	if d.OpenPositions[0] != want {
		t.Errorf("position = %+v, want %+v", d.OpenPositions[0], want)
	}
	if d.ID != "Acme-Corp-1741944600000" {
		t.Errorf("id = %q", d.ID)
	}
	if d.CompanyName != "Acme Corp" || !d.GeneratedAt.Equal(fixedNow) {
		t.Errorf("identity = %q %v", d.CompanyName, d.GeneratedAt)
	}
}

func TestNormalize_DefaultsEveryField(t *testing.T) {
	d, err := Normalize("Acme", `{}`, nil, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if d.Overview != "" || d.TechFocus != "" || d.StrategicAndHiringInsights != "" {
		t.Errorf("text fields should default to empty: %+v", d)
	}
	if d.KeyHighlights == nil || d.KeyFinancials == nil || d.RevenueGrowth == nil ||
		d.QuarterlyReleases == nil || d.NewsAndPressReleases == nil || d.NewJoiners == nil ||
		d.TechDistribution == nil || d.OpenPositions == nil || d.AttentionPoints == nil || d.Sources == nil {
		t.Errorf("list fields should be non-nil: %+v", d)
	}
}

func TestNormalize_WrongTypesFallBackToDefaults(t *testing.T) {
	raw := `{"overview": 42, "keyHighlights": "not a list", "techFocus": ["x"], "newJoiners": [1, "Jane Doe - CFO [4]", null, ""]}`
	d, err := Normalize("Acme", raw, nil, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if d.Overview != "" || d.TechFocus != "" {
		t.Errorf("wrongly typed text fields should be empty, got %q %q", d.Overview, d.TechFocus)
	}
	if len(d.KeyHighlights) != 0 {
		t.Errorf("highlights = %v", d.KeyHighlights)
	}
	if len(d.NewJoiners) != 1 || d.NewJoiners[0] != "Jane Doe - CFO" {
		t.Errorf("new joiners = %q", d.NewJoiners)
	}
}

func TestNormalize_FiltersStructuredLists(t *testing.T) {
	raw := `{
		"keyFinancials": [{"metric":"Market Cap","value":"$2T"},{"metric":"P/E"},{"metric":"X","value":30.5},"junk"],
		"revenueGrowth": [{"period":"2024 Q4","revenue":50.5},{"period":"2025 Q1","revenue":"52"},{"revenue":1}],
		"techDistribution": [{"tech":"AI","percentage":40},{"tech":"","percentage":10},{"tech":"Cloud"}],
		"openPositions": [
			{"title":"SRE","link":"http://jobs.example.com/2"},
			{"title":"","link":"https://jobs.example.com/3"},
			{"title":"PM","link":"not a url"},
			{"title":"Relative","link":"/careers/4"},
			{"title":"FTP","link":"ftp://jobs.example.com/5"}
		]
	}`
	d, err := Normalize("Acme", raw, nil, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.KeyFinancials) != 1 || d.KeyFinancials[0].Metric != "Market Cap" {
		t.Errorf("financials = %+v", d.KeyFinancials)
	}
	if len(d.RevenueGrowth) != 1 || d.RevenueGrowth[0].Revenue != 50.5 {
		t.Errorf("revenue = %+v", d.RevenueGrowth)
	}
	if len(d.TechDistribution) != 1 || d.TechDistribution[0].Tech != "AI" {
		t.Errorf("tech = %+v", d.TechDistribution)
	}
	if len(d.OpenPositions) != 1 || d.OpenPositions[0].Title != "SRE" {
		t.Fatalf("positions = %+v", d.OpenPositions)
	}
	if d.OpenPositions[0].Region != "N/A" {
		t.Errorf("region = %q, want N/A", d.OpenPositions[0].Region)
	}
}

func TestNormalize_Sources(t *testing.T) {
	grounding := []models.Source{
		{Link: "https://a.example", Title: "A"},
		{Link: "https://b.example", Title: "B"},
		{Link: "https://a.example", Title: "A again"},
		{Link: "", Title: "no link"},
		{Link: "https://c.example", Title: ""},
	}
	raw := `{"sources":[{"uri":"https://b.example","title":"B json"},{"link":"https://d.example","title":"D"}]}`
	d, err := Normalize("Acme", raw, grounding, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Source{
		{Link: "https://a.example", Title: "A"},
		{Link: "https://b.example", Title: "B"},
		{Link: "https://d.example", Title: "D"},
	}
	if len(d.Sources) != len(want) {
		t.Fatalf("sources = %+v, want %+v", d.Sources, want)
	}
	for i := range want {
		if d.Sources[i] != want[i] {
			t.Errorf("source[%d] = %+v, want %+v", i, d.Sources[i], want[i])
		}
	}
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize("Acme", "I could not find anything.", nil, fixedNow)
	if !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("err = %v, want ErrNoJSONObject", err)
	}

	raw := `Result: {"overview": "unterminated}`
	d, err := Normalize("Acme", raw, nil, fixedNow)
	if d != nil {
		t.Errorf("digest = %+v, want nil", d)
	}
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
	if errors.Is(err, ErrNoJSONObject) {
		t.Error("malformed and missing JSON must be distinguishable")
	}
	var me *MalformedError
	if !errors.As(err, &me) || !strings.Contains(me.Snippet, "unterminated") {
		t.Errorf("snippet missing from %v", err)
	}
}

func TestNormalize_LongMalformedSnippetTruncated(t *testing.T) {
	raw := "{" + strings.Repeat("x", 2000) + "}"
	_, err := Normalize("Acme", raw, nil, fixedNow)
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v", err)
	}
	if len(me.Snippet) > snippetLen+3 {
		t.Errorf("snippet length = %d", len(me.Snippet))
	}
}
