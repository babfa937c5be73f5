// Package digest generates company digests through the model API and turns the model's
// free-form JSON into a trusted models.Digest.
package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/accionlabs/intelhub/internal/models"
	"github.com/accionlabs/intelhub/pkg/utils"
)

var (
	// ErrNoJSONObject means the response contained no {...} span.
	ErrNoJSONObject = errors.New("no JSON object found in model response")
	// ErrMalformedResponse means the {...} span did not parse as a JSON object.
	ErrMalformedResponse = errors.New("malformed model response")
)

// snippetLen bounds the raw text carried by a MalformedError.
const snippetLen = 500

// MalformedError carries a snippet of the unparseable response. It matches ErrMalformedResponse.
type MalformedError struct {
	Snippet string
	Err     error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %v (response: %q)", ErrMalformedResponse, e.Err, e.Snippet)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

func (e *MalformedError) Unwrap() error { return e.Err }

const defaultRegion = "N/A"

var (
	citationRe    = regexp.MustCompile(`\[\d+(?:\s*,\s*\d+)*\]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	spaceBeforeRe = regexp.MustCompile(`\s+([.,;:!?)])`)
)

// CleanupText removes numeric citation markers such as [3] or [3, 7] and normalizes spacing.
func CleanupText(s string) string {
	if s == "" {
		return ""
	}
	s = citationRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = spaceBeforeRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// ExtractJSON strips code fences and returns the span from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return s[start : end+1], nil
}

// Normalize validates a raw model response into a digest for company stamped with now.
// grounding holds citations reported by the API; they precede any sources listed in the JSON.
// Either a complete digest or an error is returned, never both.
func Normalize(company, raw string, grounding []models.Source, now time.Time) (*models.Digest, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, &MalformedError{Snippet: utils.Truncate(raw, snippetLen), Err: err}
	}

	d := &models.Digest{
		ID:                         models.DigestID(company, now),
		CompanyName:                company,
		GeneratedAt:                now,
		Overview:                   CleanupText(stringField(obj, "overview")),
		KeyHighlights:              stringList(obj["keyHighlights"]),
		KeyFinancials:              financials(obj["keyFinancials"]),
		RevenueGrowth:              revenue(obj["revenueGrowth"]),
		QuarterlyReleases:          stringList(obj["quarterlyReleases"]),
		NewsAndPressReleases:       stringList(obj["newsAndPressReleases"]),
		NewJoiners:                 stringList(obj["newJoiners"]),
		TechFocus:                  CleanupText(stringField(obj, "techFocus")),
		TechDistribution:           techShares(obj["techDistribution"]),
		StrategicAndHiringInsights: CleanupText(stringField(obj, "strategicAndHiringInsights")),
		OpenPositions:              positions(obj["openPositions"]),
		AttentionPoints:            stringList(obj["attentionPointsForAccionlabs"]),
		Sources:                    sources(grounding, obj["sources"]),
	}
	return d, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func objects(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = CleanupText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func financials(v any) []models.FinancialMetric {
	out := make([]models.FinancialMetric, 0)
	for _, m := range objects(v) {
		metric := CleanupText(stringField(m, "metric"))
		value := CleanupText(stringField(m, "value"))
		if metric == "" || value == "" {
			continue
		}
		out = append(out, models.FinancialMetric{Metric: metric, Value: value})
	}
	return out
}

func revenue(v any) []models.RevenuePoint {
	out := make([]models.RevenuePoint, 0)
	for _, m := range objects(v) {
		period := CleanupText(stringField(m, "period"))
		amount, ok := m["revenue"].(float64)
		if period == "" || !ok {
			continue
		}
		out = append(out, models.RevenuePoint{Period: period, Revenue: amount})
	}
	return out
}

func techShares(v any) []models.TechShare {
	out := make([]models.TechShare, 0)
	for _, m := range objects(v) {
		tech := CleanupText(stringField(m, "tech"))
		pct, ok := m["percentage"].(float64)
		if tech == "" || !ok {
			continue
		}
		out = append(out, models.TechShare{Tech: tech, Percentage: pct})
	}
	return out
}

func positions(v any) []models.OpenPosition {
	out := make([]models.OpenPosition, 0)
	for _, m := range objects(v) {
		title := CleanupText(stringField(m, "title"))
		link := strings.TrimSpace(stringField(m, "link"))
		if title == "" || !validLink(link) {
			continue
		}
		region := CleanupText(stringField(m, "region"))
		if region == "" {
			region = defaultRegion
		}
		out = append(out, models.OpenPosition{
			Title:      title,
			Link:       link,
			Source:     CleanupText(stringField(m, "source")),
			DatePosted: CleanupText(stringField(m, "datePosted")),
			Region:     region,
		})
	}
	return out
}

func validLink(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sources(grounding []models.Source, v any) []models.Source {
	out := make([]models.Source, 0, len(grounding))
	seen := make(map[string]bool)
	add := func(link, title string) {
		link = strings.TrimSpace(link)
		title = strings.TrimSpace(whitespaceRe.ReplaceAllString(title, " "))
		if link == "" || title == "" || seen[link] {
			return
		}
		seen[link] = true
		out = append(out, models.Source{Link: link, Title: title})
	}
	for _, s := range grounding {
		add(s.Link, s.Title)
	}
	for _, m := range objects(v) {
		link := stringField(m, "uri")
		if link == "" {
			link = stringField(m, "link")
		}
		add(link, stringField(m, "title"))
	}
	return out
}
