// Package similarity provides text similarity metrics used for knowledge
// deduplication and retrieval ranking. The metric is an interface so the
// word-overlap heuristic can be swapped for embedding-based scoring without
// touching the stores that depend on it.
package similarity

import "strings"

// Metric scores the similarity of two texts in [0, 1].
type Metric interface {
	// Score returns 0 for disjoint texts and 1 for identical token sets.
	Score(a, b string) float64
}

// Jaccard computes word-set overlap: the size of the intersection of
// whitespace-tokenized lowercase words over the size of their union.
type Jaccard struct{}

// Score implements Metric.
func (Jaccard) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}

	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
