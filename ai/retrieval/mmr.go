package retrieval

import (
	"context"

	"github.com/pkg/errors"
)

// mmrPrefixLength bounds how much of each document is embedded for the
// diversity signal. Full-transcript embeddings add latency and cost without
// improving redundancy detection.
const mmrPrefixLength = 500

// mmrSelect greedily picks k documents trading relevance to the query
// against redundancy with already-selected documents. The output is in
// selection order: the top pick by relevance leads, and subsequent picks
// trade relevance for diversity, so boosted-score order is not preserved
// past index 0.
func (r *Retriever) mmrSelect(ctx context.Context, documents []Document, queryVector []float32, k int, diversity float64) ([]Document, error) {
	if len(documents) <= k {
		return documents, nil
	}

	prefixes := make([]string, len(documents))
	for i, doc := range documents {
		prefixes[i] = truncateRunes(doc.Content, mmrPrefixLength)
	}

	docVectors, err := r.embedder.EmbedBatch(ctx, prefixes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed documents for mmr")
	}
	if len(docVectors) != len(documents) {
		return nil, errors.Errorf("mmr embedding count mismatch: %d documents, %d vectors", len(documents), len(docVectors))
	}

	// Embeddings are pre-normalized, so the dot product is cosine
	// similarity. Relevance here is similarity to the query, not the
	// post-boost score.
	relevance := make([]float32, len(documents))
	for i := range docVectors {
		relevance[i] = dotProduct(queryVector, docVectors[i])
	}

	selected := make([]int, 0, k)
	remaining := make([]int, 0, len(documents))

	// First pick: highest similarity to the query. Strict > keeps the
	// first-encountered candidate on ties, making selection deterministic.
	best := 0
	for i := 1; i < len(relevance); i++ {
		if relevance[i] > relevance[best] {
			best = i
		}
	}
	selected = append(selected, best)
	for i := range documents {
		if i != best {
			remaining = append(remaining, i)
		}
	}

	for len(selected) < k && len(remaining) > 0 {
		bestPos := -1
		var bestScore float64

		for pos, idx := range remaining {
			redundancy := dotProduct(docVectors[idx], docVectors[selected[0]])
			for _, sel := range selected[1:] {
				if sim := dotProduct(docVectors[idx], docVectors[sel]); sim > redundancy {
					redundancy = sim
				}
			}
			mmr := (1-diversity)*float64(relevance[idx]) - diversity*float64(redundancy)
			if bestPos < 0 || mmr > bestScore {
				bestPos = pos
				bestScore = mmr
			}
		}

		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	result := make([]Document, 0, len(selected))
	for _, idx := range selected {
		result = append(result, documents[idx])
	}
	return result, nil
}

func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
