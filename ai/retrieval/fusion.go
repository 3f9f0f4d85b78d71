package retrieval

import (
	"sort"

	"github.com/hrygo/athena/store"
)

// keywordRankNormalizer rescales the raw ts_rank statistic into roughly
// [0,1]. The constant is empirical, not calibrated against the vector
// similarity scale; the blended scores are a documented approximation.
const keywordRankNormalizer = 0.3

// fuse merges the two candidate lists by record identity. When an ID appears
// in both, the vector-sourced entry wins: its similarity score is considered
// higher-fidelity than the rescaled lexical rank. The merged list is sorted
// descending by score.
func fuse(vectorResults, keywordResults []*store.ConversationWithScore) []Document {
	seen := make(map[string]struct{}, len(vectorResults)+len(keywordResults))
	merged := make([]Document, 0, len(vectorResults)+len(keywordResults))

	for _, result := range vectorResults {
		if _, ok := seen[result.Conversation.ID]; ok {
			continue
		}
		seen[result.Conversation.ID] = struct{}{}
		merged = append(merged, toDocument(result, result.Score, SourceVector))
	}

	for _, result := range keywordResults {
		if _, ok := seen[result.Conversation.ID]; ok {
			continue
		}
		seen[result.Conversation.ID] = struct{}{}
		score := result.Score / keywordRankNormalizer
		if score > 1.0 {
			score = 1.0
		}
		merged = append(merged, toDocument(result, score, SourceKeyword))
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

func toDocument(result *store.ConversationWithScore, score float32, source Source) Document {
	conversation := result.Conversation
	return Document{
		ID:        conversation.ID,
		Title:     conversation.Title,
		Content:   conversation.Transcript,
		Score:     score,
		Source:    source,
		Timestamp: conversation.CreatedAt,
		Metadata:  conversation.Metadata,
	}
}
