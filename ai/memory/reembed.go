package memory

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/store"
)

const defaultReembedBatchSize = 50

// EmbeddingBackfillStore is the slice of the store the re-embedding job
// needs.
type EmbeddingBackfillStore interface {
	FindConversationsWithoutEmbedding(ctx context.Context, find *store.FindConversationsWithoutEmbedding) ([]*store.Conversation, error)
	UpdateConversationEmbedding(ctx context.Context, id string, embedding []float32) error
}

// Reembedder backfills embeddings for conversations that were saved while
// the embedding provider was unavailable.
type Reembedder struct {
	store     EmbeddingBackfillStore
	embedder  ai.EmbeddingService
	batchSize int
}

// NewReembedder creates a Reembedder. batchSize <= 0 uses the default.
func NewReembedder(backfillStore EmbeddingBackfillStore, embedder ai.EmbeddingService, batchSize int) *Reembedder {
	if batchSize <= 0 {
		batchSize = defaultReembedBatchSize
	}
	return &Reembedder{
		store:     backfillStore,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Run embeds every pending conversation and reports how many were updated.
// A single conversation failing to embed is logged and skipped so one bad
// record cannot stall the whole backfill.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	updated := 0
	for {
		conversations, err := r.store.FindConversationsWithoutEmbedding(ctx, &store.FindConversationsWithoutEmbedding{
			Limit: r.batchSize,
		})
		if err != nil {
			return updated, errors.Wrap(err, "failed to list conversations without embedding")
		}
		if len(conversations) == 0 {
			return updated, nil
		}

		progressed := false
		for _, conversation := range conversations {
			if err := ctx.Err(); err != nil {
				return updated, err
			}
			embedding, err := r.embedder.Embed(ctx, conversation.Transcript)
			if err != nil {
				slog.WarnContext(ctx, "failed to embed conversation, skipping",
					slog.String("id", conversation.ID),
					slog.Any("error", err))
				continue
			}
			if err := r.store.UpdateConversationEmbedding(ctx, conversation.ID, embedding); err != nil {
				return updated, errors.Wrapf(err, "failed to update embedding for conversation %s", conversation.ID)
			}
			updated++
			progressed = true
		}

		// Every record in the batch failed to embed. They would come
		// straight back on the next find, so stop instead of spinning.
		if !progressed {
			return updated, errors.Errorf("no conversation in batch of %d could be embedded", len(conversations))
		}
		if len(conversations) < r.batchSize {
			return updated, nil
		}
	}
}
