// Package cli formats intelhub command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/accionlabs/intelhub/internal/export"
	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/internal/search"
	"github.com/accionlabs/intelhub/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a -output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const rule = "─────────────────────────────────────────────────────────"

// WriteDigest writes one digest with all of its sections.
func WriteDigest(w io.Writer, d *models.Digest, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, d)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s\n", d.CompanyName)
	fmt.Fprintf(w, "ID: %s | Generated: %s\n", d.ID, d.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintln(w, rule)

	section(w, "Overview", d.Overview)
	list(w, "Key Highlights", d.KeyHighlights)
	if len(d.RevenueGrowth) > 0 {
		fmt.Fprintln(w, "\nQuarterly Revenue Growth")
		for _, r := range d.RevenueGrowth {
			fmt.Fprintf(w, "  %-12s %sB\n", r.Period, strconv.FormatFloat(r.Revenue, 'f', -1, 64))
		}
	}
	if len(d.KeyFinancials) > 0 {
		fmt.Fprintln(w, "\nKey Metrics")
		for _, f := range d.KeyFinancials {
			fmt.Fprintf(w, "  %s: %s\n", f.Metric, f.Value)
		}
	}
	list(w, "Quarterly Releases", d.QuarterlyReleases)
	list(w, "News and Press Releases", d.NewsAndPressReleases)
	list(w, "New Joiners (CXO, VP)", d.NewJoiners)
	section(w, "Technology in Focus", d.TechFocus)
	for _, t := range d.TechDistribution {
		fmt.Fprintf(w, "  %-20s %s%%\n", t.Tech, strconv.FormatFloat(t.Percentage, 'f', -1, 64))
	}
	section(w, "Strategic & Hiring Insights", d.StrategicAndHiringInsights)
	if len(d.OpenPositions) > 0 {
		fmt.Fprintf(w, "\nOpen Positions (%s)\n", export.RegionSummary(d.OpenPositions))
		for _, p := range d.OpenPositions {
			fmt.Fprintf(w, "  • %s [%s]", p.Title, p.Region)
			if p.Link != "" {
				fmt.Fprintf(w, " %s", p.Link)
			}
			fmt.Fprintln(w)
		}
	}
	list(w, "Attention Points for Accionlabs", d.AttentionPoints)
	if len(d.Sources) > 0 {
		fmt.Fprintln(w, "\nSources")
		for _, s := range d.Sources {
			fmt.Fprintf(w, "  - %s <%s>\n", s.Title, s.Link)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func section(w io.Writer, title, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n%s\n  %s\n", title, text)
}

func list(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  • %s\n", it)
	}
}

// WriteDigestList writes one line per digest, newest first as given.
func WriteDigestList(w io.Writer, digests []*models.Digest, format OutputFormat) error {
	if format == OutputJSON {
		if digests == nil {
			digests = []*models.Digest{}
		}
		return writeJSON(w, map[string]interface{}{"digests": digests, "count": len(digests)})
	}
	fmt.Fprintf(w, "%d digest(s)\n", len(digests))
	for _, d := range digests {
		fmt.Fprintf(w, "%s  %-30s  %s\n", d.GeneratedAt.UTC().Format("2006-01-02 15:04"), d.CompanyName, d.ID)
	}
	return nil
}

// WriteFacts writes the fact list for company.
func WriteFacts(w io.Writer, company string, facts []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"company": company, "facts": facts})
	}
	if len(facts) == 0 {
		fmt.Fprintf(w, "No facts available for %s.\n", company)
		return nil
	}
	fmt.Fprintf(w, "Did you know? (%s)\n", company)
	for i, f := range facts {
		fmt.Fprintf(w, "  %d. %s\n", i+1, f)
	}
	return nil
}

// WriteHits writes digest search results.
func WriteHits(w io.Writer, query string, hits []search.Hit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []search.Hit{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "hits": hits, "total": len(hits)})
	}
	fmt.Fprintf(w, "\nFound %d digest(s) for %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, h.Score)
		fmt.Fprintf(w, "Company: %s\nID: %s\n", h.Company, h.DigestID)
		if h.Snippet != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(h.Snippet, 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteAnswer writes a chat answer. Text output is the Markdown as returned by the model.
func WriteAnswer(w io.Writer, question, answer string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]string{"question": question, "answer": answer})
	}
	fmt.Fprintln(w, strings.TrimSpace(answer))
	return nil
}
