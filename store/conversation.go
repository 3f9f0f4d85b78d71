package store

import (
	"time"

	"github.com/pkg/errors"
)

// Conversation represents one persisted chat session. Records are immutable
// after creation except for the embedding, which may be backfilled by the
// re-embedding job when it was unavailable at save time.
type Conversation struct {
	ID         string
	Title      string
	Transcript string
	Embedding  []float32 // nil until computed
	Metadata   ConversationMetadata
	CreatedAt  time.Time
}

// ConversationMetadata is the structured metadata bag stored as JSONB
// alongside each conversation.
type ConversationMetadata struct {
	ConversationID string   `json:"conversation_id"`
	TurnNumber     int      `json:"turn_number"`
	StartTime      string   `json:"start_time,omitempty"`
	EndTime        string   `json:"end_time,omitempty"`
	TotalTokens    int      `json:"total_tokens,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	Participants   []string `json:"participants,omitempty"`
}

// ConversationWithScore is a search result with its generator-native score.
// For vector search the score is cosine similarity; for lexical search it is
// the raw ts_rank statistic.
type ConversationWithScore struct {
	Conversation *Conversation
	Score        float32
}

// VectorSearchOptions are the options for conversation vector search.
//
// Records tagged with ExcludeConversationID whose turn_number exceeds
// ExcludeTurnCutoff are excluded, so the active session's recent turns never
// leak back in as memory. A record without a turn_number counts as turn 0.
type VectorSearchOptions struct {
	Vector                []float32
	ExcludeConversationID string
	ExcludeTurnCutoff     int
	Limit                 int
}

// Validate validates the VectorSearchOptions.
func (o *VectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.Errorf("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 15 // Default limit
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	return nil
}

// LexicalSearchOptions are the options for conversation full-text search.
// The query is parsed websearch-style: implicit AND of terms with
// quoted-phrase support.
type LexicalSearchOptions struct {
	Query                 string
	ExcludeConversationID string
	ExcludeTurnCutoff     int
	Limit                 int
}

// Validate validates the LexicalSearchOptions.
func (o *LexicalSearchOptions) Validate() error {
	if o.Query == "" {
		return errors.Errorf("query cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10 // Default limit
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	return nil
}

// FindConversationsWithoutEmbedding is the find condition for conversations
// pending embedding backfill.
type FindConversationsWithoutEmbedding struct {
	Limit int // Maximum number of conversations to return
}

// FindConversationsSince is the find condition for conversations created
// within a time window, newest first.
type FindConversationsSince struct {
	Since time.Time
	Limit int
}
