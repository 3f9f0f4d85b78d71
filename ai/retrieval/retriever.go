package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/ai/metrics"
	"github.com/hrygo/athena/store"
)

// Searcher is the subset of the store the retriever consumes.
type Searcher interface {
	VectorSearchConversations(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ConversationWithScore, error)
	LexicalSearchConversations(ctx context.Context, opts *store.LexicalSearchOptions) ([]*store.ConversationWithScore, error)
}

// Request describes one retrieval call.
type Request struct {
	// Query is the user's current message.
	Query string

	// ConversationID identifies the live session; its recent turns are
	// excluded from results.
	ConversationID string

	// TurnNumber is the current turn count of the live session.
	TurnNumber int

	// TopK overrides the configured result count when positive.
	TopK int

	// Logger overrides slog.Default for this call.
	Logger *slog.Logger
}

// Retriever selects past conversation fragments relevant to a query. It
// never fails: any internal error degrades to an empty result set, because
// "no memories found" must not block the conversation turn.
type Retriever struct {
	searcher Searcher
	embedder ai.EmbeddingService
	config   Config
	exporter *metrics.Exporter
	now      func() time.Time
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMetrics attaches a metrics exporter.
func WithMetrics(exporter *metrics.Exporter) Option {
	return func(r *Retriever) { r.exporter = exporter }
}

// WithClock overrides the time source. Used by tests to pin recency boosts.
func WithClock(now func() time.Time) Option {
	return func(r *Retriever) { r.now = now }
}

// NewRetriever creates a new Retriever.
func NewRetriever(searcher Searcher, embedder ai.EmbeddingService, config Config, opts ...Option) *Retriever {
	config.normalize()
	r := &Retriever{
		searcher: searcher,
		embedder: embedder,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve runs the full pipeline: embed query, generate candidates in
// parallel, fuse, boost recency, then select the final set with MMR when the
// pool exceeds TopK. The returned slice is never nil and has no duplicate
// record IDs.
func (r *Retriever) Retrieve(ctx context.Context, req *Request) []Document {
	start := r.now()
	logger := slog.Default()
	if req != nil && req.Logger != nil {
		logger = req.Logger
	}
	if req == nil || req.Query == "" {
		return []Document{}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = r.config.TopK
	}

	queryVector, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		logger.ErrorContext(ctx, "Retrieval degraded: query embedding failed", "error", err)
		r.exporter.RecordRetrieval(r.now().Sub(start), 0, 0, 0, true)
		return []Document{}
	}

	sessionCutoff := req.TurnNumber - r.config.SessionHistoryLimit

	// The two generators are independent with no shared mutable state, so
	// they run concurrently. Each recovers store errors to an empty list.
	vectorCh := make(chan []*store.ConversationWithScore, 1)
	keywordCh := make(chan []*store.ConversationWithScore, 1)

	go func() {
		vectorCh <- r.vectorCandidates(ctx, logger, queryVector, req.ConversationID, sessionCutoff)
	}()
	go func() {
		keywordCh <- r.keywordCandidates(ctx, logger, req.Query, req.ConversationID, sessionCutoff)
	}()

	vectorResults := <-vectorCh
	keywordResults := <-keywordCh

	merged := fuse(vectorResults, keywordResults)
	boosted := r.applyRecencyBoost(merged, r.now())

	final := boosted
	if len(boosted) > topK {
		final, err = r.mmrSelect(ctx, boosted, queryVector, topK, r.config.MMRDiversity)
		if err != nil {
			logger.ErrorContext(ctx, "Retrieval degraded: mmr selection failed", "error", err)
			r.exporter.RecordRetrieval(r.now().Sub(start), len(vectorResults), len(keywordResults), 0, true)
			return []Document{}
		}
	}

	logger.InfoContext(ctx, "Retrieved conversations",
		"query_len", len(req.Query),
		"vector_candidates", len(vectorResults),
		"keyword_candidates", len(keywordResults),
		"fused", len(merged),
		"returned", len(final),
	)
	r.exporter.RecordRetrieval(r.now().Sub(start), len(vectorResults), len(keywordResults), len(final), false)
	return final
}

func (r *Retriever) vectorCandidates(ctx context.Context, logger *slog.Logger, queryVector []float32, conversationID string, cutoff int) []*store.ConversationWithScore {
	results, err := r.searcher.VectorSearchConversations(ctx, &store.VectorSearchOptions{
		Vector:                queryVector,
		ExcludeConversationID: conversationID,
		ExcludeTurnCutoff:     cutoff,
		Limit:                 r.config.VectorSearchK,
	})
	if err != nil {
		logger.WarnContext(ctx, "Vector search failed, continuing without vector candidates", "error", err)
		return nil
	}
	return results
}

func (r *Retriever) keywordCandidates(ctx context.Context, logger *slog.Logger, query, conversationID string, cutoff int) []*store.ConversationWithScore {
	results, err := r.searcher.LexicalSearchConversations(ctx, &store.LexicalSearchOptions{
		Query:                 query,
		ExcludeConversationID: conversationID,
		ExcludeTurnCutoff:     cutoff,
		Limit:                 r.config.KeywordSearchK,
	})
	if err != nil {
		logger.WarnContext(ctx, "Keyword search failed, continuing without keyword candidates", "error", err)
		return nil
	}
	return results
}
