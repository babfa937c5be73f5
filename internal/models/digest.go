// Package models defines core data structures for digests, datasets, and chat sessions.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Digest is a structured intelligence report about one company for one generation cycle.
// JSON field names follow the contract given to the model.
type Digest struct {
	ID                         string            `json:"id"`
	CompanyName                string            `json:"companyName"`
	GeneratedAt                time.Time         `json:"generatedAt"`
	Overview                   string            `json:"overview"`
	KeyHighlights              []string          `json:"keyHighlights"`
	KeyFinancials              []FinancialMetric `json:"keyFinancials"`
	RevenueGrowth              []RevenuePoint    `json:"revenueGrowth"`
	QuarterlyReleases          []string          `json:"quarterlyReleases"`
	NewsAndPressReleases       []string          `json:"newsAndPressReleases"`
	NewJoiners                 []string          `json:"newJoiners"`
	TechFocus                  string            `json:"techFocus"`
	TechDistribution           []TechShare       `json:"techDistribution"`
	StrategicAndHiringInsights string            `json:"strategicAndHiringInsights"`
	OpenPositions              []OpenPosition    `json:"openPositions"`
	AttentionPoints            []string          `json:"attentionPointsForAccionlabs"`
	Sources                    []Source          `json:"sources"`
}

// FinancialMetric is a named headline figure such as market cap.
type FinancialMetric struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// RevenuePoint is revenue for one reporting period.
type RevenuePoint struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
}

// TechShare is one slice of the technology focus distribution.
type TechShare struct {
	Tech       string  `json:"tech"`
	Percentage float64 `json:"percentage"`
}

// OpenPosition is a public job posting.
type OpenPosition struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	Source     string `json:"source"`
	DatePosted string `json:"datePosted"`
	Region     string `json:"region"`
}

// Source is a grounding citation.
type Source struct {
	Link  string `json:"uri"`
	Title string `json:"title"`
}

// DigestID builds the identity of a digest generated at t.
func DigestID(company string, t time.Time) string {
	return strings.Join(strings.Fields(company), "-") + "-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// Timestamp returns the millisecond timestamp embedded at the tail of the ID, or 0.
func (d *Digest) Timestamp() int64 {
	i := strings.LastIndex(d.ID, "-")
	if i < 0 {
		return 0
	}
	ts, err := strconv.ParseInt(d.ID[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// FileSlug returns the company name with whitespace runs replaced by sep.
func FileSlug(company, sep string) string {
	return strings.Join(strings.Fields(company), sep)
}
