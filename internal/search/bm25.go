package search

import (
	"math"
	"strings"
	"unicode"
)

// Okapi BM25 parameters, the standard defaults
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// tokenize lowercases and splits on every non-alphanumeric rune. Dots and
// dashes inside identifiers split too, which works in favor of code-heavy
// documentation queries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// bm25Scorer scores documents against a query within a fixed corpus. The
// corpus here is the vector-recall candidate set, not the whole store, so
// document frequencies reflect what the query is being re-ranked against.
type bm25Scorer struct {
	docTokens []map[string]int
	docLens   []int
	avgDocLen float64
	docFreq   map[string]int
	corpusLen int
}

func newBM25Scorer(docs []string) *bm25Scorer {
	s := &bm25Scorer{
		docTokens: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		docFreq:   make(map[string]int),
		corpusLen: len(docs),
	}

	totalLen := 0
	for i, doc := range docs {
		tokens := tokenize(doc)
		counts := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[tok]++
		}
		s.docTokens[i] = counts
		s.docLens[i] = len(tokens)
		totalLen += len(tokens)

		for tok := range counts {
			s.docFreq[tok]++
		}
	}
	if s.corpusLen > 0 {
		s.avgDocLen = float64(totalLen) / float64(s.corpusLen)
	}
	return s
}

// Score computes the BM25 relevance of document i for the query terms
func (s *bm25Scorer) Score(query string, i int) float64 {
	if s.corpusLen == 0 || s.avgDocLen == 0 {
		return 0
	}

	score := 0.0
	docLen := float64(s.docLens[i])
	for _, term := range tokenize(query) {
		tf := float64(s.docTokens[i][term])
		if tf == 0 {
			continue
		}
		df := float64(s.docFreq[term])
		idf := math.Log(1 + (float64(s.corpusLen)-df+0.5)/(df+0.5))
		score += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/s.avgDocLen))
	}
	return score
}
