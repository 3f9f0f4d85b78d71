// Package retrieval implements the hybrid retrieval engine: vector and
// keyword candidate generation, score fusion, recency re-weighting, and
// MMR diversity selection over persisted conversations.
package retrieval

import (
	"time"

	"github.com/hrygo/athena/store"
)

// Source tags which candidate generator produced a document. Informational
// only; it never gates a result.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
)

// Document is one retrieved conversation fragment, transient per retrieval
// call. Score is unit-less: vector similarity, rescaled lexical rank, and
// multiplicative recency boosts live on different scales, so values above
// 1.0 are possible after boosting.
type Document struct {
	ID        string
	Title     string
	Content   string
	Score     float32
	TimeBoost float32 // recency multiplier applied to Score (0 when skipped)
	Source    Source
	Timestamp time.Time
	Metadata  store.ConversationMetadata
}
