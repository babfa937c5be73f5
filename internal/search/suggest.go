package search

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// Results is the response shape of a digest search.
type Results struct {
	Query      string `json:"query"`
	Hits       []Hit  `json:"hits"`
	Total      int    `json:"total"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Suggest proposes a corrected query when some of its terms are not in the index.
// Each unknown term is replaced by the indexed company or content term closest to it,
// preferring terms found in more digests. Terms the analyzer drops, such as stop words,
// are kept as typed. It reports false when nothing was corrected.
func (x *DigestIndex) Suggest(query string) (string, bool) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return "", false
	}
	dict, err := x.termCounts()
	if err != nil || len(dict) == 0 {
		return "", false
	}

	analyzed := x.analyzedTerms(query)
	corrected := false
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t
		if _, ok := dict[t]; ok {
			continue
		}
		if analyzed != nil && !analyzed[t] {
			continue
		}
		if best, ok := closestTerm(t, dict); ok {
			out[i] = best
			corrected = true
		}
	}
	if !corrected {
		return "", false
	}
	return strings.Join(out, " "), true
}

// termCounts returns every indexed company and content term with the number of digests containing it.
func (x *DigestIndex) termCounts() (map[string]uint64, error) {
	counts := make(map[string]uint64)
	for _, field := range []string{fieldCompany, fieldContent} {
		d, err := x.index.FieldDict(field)
		if err != nil {
			return nil, err
		}
		for {
			entry, err := d.Next()
			if err != nil || entry == nil {
				break
			}
			counts[entry.Term] += entry.Count
		}
		_ = d.Close()
	}
	return counts, nil
}

// analyzedTerms returns the terms the content analyzer keeps from query, or nil if analysis fails.
func (x *DigestIndex) analyzedTerms(query string) map[string]bool {
	tokens, err := x.index.Mapping().AnalyzeText(standard.Name, []byte(query))
	if err != nil {
		return nil
	}
	kept := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		kept[string(tok.Term)] = true
	}
	return kept
}

func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// maxEdits allows one edit for short terms and two otherwise.
func maxEdits(term string) int {
	if len([]rune(term)) <= 4 {
		return 1
	}
	return 2
}

func closestTerm(term string, dict map[string]uint64) (string, bool) {
	limit := maxEdits(term)
	n := len([]rune(term))
	best, bestScore := "", 0.0
	for cand, count := range dict {
		if diff := len([]rune(cand)) - n; diff > limit || -diff > limit {
			continue
		}
		dist := editDistance(term, cand)
		if dist == 0 || dist > limit {
			continue
		}
		score := float64(count) / float64(dist+1)
		if score > bestScore || (score == bestScore && cand < best) {
			best, bestScore = cand, score
		}
	}
	return best, best != ""
}

// editDistance is the Damerau-Levenshtein distance (optimal string alignment) over runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
