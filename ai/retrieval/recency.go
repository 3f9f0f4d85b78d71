package retrieval

import (
	"sort"
	"time"
)

// Recency boost tiers. Deliberately a step function rather than a smooth
// exponential decay: three tiers are enough signal and trivially testable.
const (
	recentBoost   = 1.2
	midBoost      = 1.1
	midBoostLimit = 30 * 24 * time.Hour
)

// applyRecencyBoost multiplies each document's score by an age-dependent
// factor and re-sorts descending. A document with no usable timestamp keeps
// its score untouched; it is never dropped.
func (r *Retriever) applyRecencyBoost(documents []Document, now time.Time) []Document {
	recentLimit := time.Duration(r.config.RecencyBoostDays) * 24 * time.Hour

	for i := range documents {
		if documents[i].Timestamp.IsZero() {
			continue
		}

		age := now.Sub(documents[i].Timestamp)
		var boost float32
		switch {
		case age <= recentLimit:
			boost = recentBoost
		case age <= midBoostLimit:
			boost = midBoost
		default:
			boost = 1.0
		}

		documents[i].Score *= boost
		documents[i].TimeBoost = boost
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return documents[i].Score > documents[j].Score
	})
	return documents
}
