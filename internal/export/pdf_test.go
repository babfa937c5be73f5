package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/accionlabs/intelhub/internal/models"
)

func pdfText(t *testing.T, content []byte) (string, int) {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("open PDF: %v", err)
	}
	var buf strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			t.Fatalf("extract page %d: %v", i, err)
		}
		buf.WriteString(text)
	}
	return buf.String(), r.NumPage()
}

func sampleDigest() *models.Digest {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return &models.Digest{
		ID:            models.DigestID("Acme Corp", at),
		CompanyName:   "Acme Corp",
		GeneratedAt:   at,
		Overview:      "Acme builds rockets and anvils.",
		KeyHighlights: []string{"Record launch cadence"},
		KeyFinancials: []models.FinancialMetric{{Metric: "Market Cap", Value: "$12B"}},
		RevenueGrowth: []models.RevenuePoint{{Period: "Q4 2024", Revenue: 1.2}},
		TechFocus:     "Cloud migration",
		TechDistribution: []models.TechShare{
			{Tech: "Cloud", Percentage: 60},
			{Tech: "AI", Percentage: 40},
		},
		OpenPositions: []models.OpenPosition{
			{Title: "Platform Engineer", Link: "https://jobs.example.com/1", Region: "EMEA"},
			{Title: "Data Engineer", Region: "EMEA"},
			{Title: "SRE", Region: "N/A"},
		},
		AttentionPoints: []string{"Pitch the data platform offering"},
		Sources:         []models.Source{{Link: "https://news.example.com/acme", Title: "Acme news"}},
	}
}

func TestRender(t *testing.T) {
	b, err := Render(sampleDigest())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", b[:min(len(b), 16)])
	}
	text, pages := pdfText(t, b)
	if pages < 1 {
		t.Fatalf("pages = %d", pages)
	}
	for _, want := range []string{"Acme Corp", "Overview", "Open Positions", "Attention Points"} {
		if !strings.Contains(text, want) {
			t.Errorf("PDF text missing %q", want)
		}
	}
}

func TestRender_PaginatesLongDigests(t *testing.T) {
	d := sampleDigest()
	for i := 0; i < 200; i++ {
		d.NewsAndPressReleases = append(d.NewsAndPressReleases, "Acme announced another partnership in a long running series of announcements.")
	}
	b, err := Render(d)
	if err != nil {
		t.Fatal(err)
	}
	if _, pages := pdfText(t, b); pages < 2 {
		t.Errorf("pages = %d, want automatic page breaks", pages)
	}
}

func TestRender_MinimalDigest(t *testing.T) {
	b, err := Render(&models.Digest{CompanyName: "Initech"})
	if err != nil {
		t.Fatal(err)
	}
	if text, _ := pdfText(t, b); !strings.Contains(text, "Initech") {
		t.Errorf("PDF text = %q", text)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("  Acme   Corp Inc "); got != "digest-Acme-Corp-Inc.pdf" {
		t.Errorf("Filename = %q", got)
	}
}

func TestRegionSummary(t *testing.T) {
	tests := []struct {
		positions []models.OpenPosition
		want      string
	}{
		{nil, ""},
		{sampleDigest().OpenPositions, "EMEA: 2 | N/A: 1"},
		{[]models.OpenPosition{{Title: "x"}, {Title: "y", Region: "US"}}, "N/A: 1 | US: 1"},
	}
	for _, tt := range tests {
		if got := RegionSummary(tt.positions); got != tt.want {
			t.Errorf("RegionSummary = %q, want %q", got, tt.want)
		}
	}
}
