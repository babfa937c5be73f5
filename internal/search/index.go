// Package search provides a Bleve full-text index over saved digests.
package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/accionlabs/intelhub/internal/archive"
	"github.com/accionlabs/intelhub/internal/models"
)

const (
	fieldCompany  = "company"
	fieldDigestID = "digest_id"
	fieldContent  = "content"
	fieldOverview = "overview"

	companyBoost  = 3.0
	defaultLimit  = 20
	snippetLength = 200
)

// Options tune a search. Nil means exact-term matching.
type Options struct {
	// Fuzziness is the edit distance allowed per term (0 disables, max 2).
	Fuzziness int
}

// Hit is a digest matching a query.
type Hit struct {
	Key      string  `json:"key"`
	DigestID string  `json:"id"`
	Company  string  `json:"company"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet,omitempty"`
}

// DigestIndex indexes digests by their storage key, so a newer digest for the same company
// and month replaces the older one.
type DigestIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	doc.AddFieldMappingsAt(fieldContent, text)

	company := bleve.NewTextFieldMapping()
	company.Analyzer = standard.Name
	doc.AddFieldMappingsAt(fieldCompany, company)

	id := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt(fieldDigestID, id)

	overview := bleve.NewTextFieldMapping()
	overview.Index = false
	doc.AddFieldMappingsAt(fieldOverview, overview)

	im.AddDocumentMapping("digest", doc)
	im.DefaultType = "digest"
	im.DefaultMapping = doc
	return im
}

// NewDigestIndex creates or opens a Bleve index at path. An empty path gives an in-memory index.
// If you change the mapping, remove the index directory; it is rebuilt from the archive at startup.
func NewDigestIndex(path string) (*DigestIndex, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &DigestIndex{index: idx}, nil
	}
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", err)
		}
		return &DigestIndex{index: idx}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &DigestIndex{index: idx}, nil
}

func document(d *models.Digest) map[string]any {
	parts := []string{d.Overview, d.TechFocus, d.StrategicAndHiringInsights}
	parts = append(parts, d.KeyHighlights...)
	parts = append(parts, d.NewsAndPressReleases...)
	parts = append(parts, d.QuarterlyReleases...)
	parts = append(parts, d.NewJoiners...)
	parts = append(parts, d.AttentionPoints...)
	for _, t := range d.TechDistribution {
		parts = append(parts, t.Tech)
	}
	for _, p := range d.OpenPositions {
		parts = append(parts, p.Title, p.Region)
	}
	return map[string]any{
		fieldCompany:  d.CompanyName,
		fieldDigestID: d.ID,
		fieldContent:  strings.Join(parts, "\n"),
		fieldOverview: d.Overview,
	}
}

// Index adds or replaces the digest stored under key.
func (x *DigestIndex) Index(ctx context.Context, key string, d *models.Digest) error {
	return x.index.Index(key, document(d))
}

// Rebuild indexes every archive entry in one batch.
func (x *DigestIndex) Rebuild(ctx context.Context, entries []archive.Entry) error {
	batch := x.index.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.Key, document(e.Digest)); err != nil {
			return fmt.Errorf("failed to index %s: %w", e.Key, err)
		}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	return nil
}

// Search matches query against company names (boosted) and digest text.
func (x *DigestIndex) Search(ctx context.Context, query string, limit int, opts *Options) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	fuzziness := 0
	if opts != nil {
		fuzziness = min(max(opts.Fuzziness, 0), 2)
	}

	company := bleve.NewMatchQuery(query)
	company.SetField(fieldCompany)
	company.SetBoost(companyBoost)
	company.SetFuzziness(fuzziness)
	content := bleve.NewMatchQuery(query)
	content.SetField(fieldContent)
	content.SetFuzziness(fuzziness)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(company, content))
	req.Size = limit
	req.Fields = []string{fieldCompany, fieldDigestID, fieldOverview}
	results, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hit := Hit{Key: h.ID, Score: h.Score}
		hit.Company, _ = h.Fields[fieldCompany].(string)
		hit.DigestID, _ = h.Fields[fieldDigestID].(string)
		if overview, ok := h.Fields[fieldOverview].(string); ok {
			hit.Snippet = Snippet(overview, query, snippetLength)
		}
		out = append(out, hit)
	}
	return out, nil
}

// Delete removes the digest stored under key.
func (x *DigestIndex) Delete(ctx context.Context, key string) error {
	return x.index.Delete(key)
}

// DocCount returns the number of indexed digests.
func (x *DigestIndex) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *DigestIndex) Close() error {
	return x.index.Close()
}
