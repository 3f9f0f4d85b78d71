// Package memory persists completed chat sessions as retrievable
// conversation records and backfills embeddings that were unavailable at
// save time.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/store"
)

const (
	titleMaxLength       = 100
	maxTopics            = 5
	transcriptTimeLayout = "2006-01-02 15:04:05"
)

// investmentKeywords is the topic vocabulary used for lightweight keyword
// extraction over saved transcripts.
var investmentKeywords = map[string]struct{}{
	"dividend": {}, "dividends": {}, "stock": {}, "stocks": {},
	"portfolio": {}, "allocation": {}, "risk": {}, "investing": {},
	"investment": {}, "bonds": {}, "equity": {}, "value": {},
	"growth": {}, "income": {}, "retirement": {}, "diversification": {},
	"market": {}, "analysis": {}, "valuation": {}, "yield": {},
	"returns": {}, "strategy": {},
}

// Message is one turn of a live chat session.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
	Tokens    int
}

// ConversationCreator is the slice of the store the saver needs.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error)
}

// Saver turns a finished session into a conversation record. An embedding
// failure is tolerated: the record is saved without one and picked up later
// by the re-embedding job.
type Saver struct {
	store    ConversationCreator
	embedder ai.EmbeddingService
	now      func() time.Time
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithSaverClock overrides the saver's time source.
func WithSaverClock(now func() time.Time) SaverOption {
	return func(s *Saver) { s.now = now }
}

// NewSaver creates a Saver on top of the given store and embedder.
func NewSaver(conversationStore ConversationCreator, embedder ai.EmbeddingService, options ...SaverOption) *Saver {
	s := &Saver{
		store:    conversationStore,
		embedder: embedder,
		now:      time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Save persists the session transcript. conversationID ties the record to
// the live session it came from; when empty a fresh UUID is assigned.
func (s *Saver) Save(ctx context.Context, messages []Message, conversationID string) (*store.Conversation, error) {
	if len(messages) == 0 {
		return nil, errors.Errorf("no messages to save")
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	transcript := FormatTranscript(messages)
	title := generateTitle(messages, s.now())
	topics := extractTopics(transcript, maxTopics)

	embedding, err := s.embedder.Embed(ctx, transcript)
	if err != nil {
		slog.WarnContext(ctx, "failed to embed transcript, saving without embedding",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
		embedding = nil
	}

	totalTokens := 0
	for _, msg := range messages {
		totalTokens += msg.Tokens
	}

	created, err := s.store.CreateConversation(ctx, &store.Conversation{
		Title:      title,
		Transcript: transcript,
		Embedding:  embedding,
		Metadata: store.ConversationMetadata{
			ConversationID: conversationID,
			TurnNumber:     len(messages),
			StartTime:      s.messageTime(messages[0]),
			EndTime:        s.messageTime(messages[len(messages)-1]),
			TotalTokens:    totalTokens,
			Topics:         topics,
			Participants:   []string{"user", "assistant"},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}

	slog.InfoContext(ctx, "conversation saved",
		slog.String("id", created.ID),
		slog.String("conversation_id", conversationID),
		slog.Int("turns", len(messages)),
		slog.Bool("embedded", embedding != nil))
	return created, nil
}

func (s *Saver) messageTime(msg Message) string {
	if msg.Timestamp.IsZero() {
		return s.now().Format(time.RFC3339)
	}
	return msg.Timestamp.Format(time.RFC3339)
}

// FormatTranscript renders messages as a readable transcript, one
// "[time] Role: content" line per turn separated by blank lines. Turns
// without a timestamp drop the bracketed prefix.
func FormatTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := capitalizeRole(msg.Role)
		if msg.Timestamp.IsZero() {
			lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.Timestamp.Format(transcriptTimeLayout), role, msg.Content))
	}
	return strings.Join(lines, "\n\n")
}

func capitalizeRole(role string) string {
	if role == "" {
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + strings.ToLower(role[1:])
}

// generateTitle derives a title from the first non-empty user message,
// truncated to titleMaxLength with an ellipsis.
func generateTitle(messages []Message, now time.Time) string {
	for _, msg := range messages {
		if msg.Role != "user" || msg.Content == "" {
			continue
		}
		runes := []rune(msg.Content)
		if len(runes) > titleMaxLength {
			return string(runes[:titleMaxLength-3]) + "..."
		}
		return msg.Content
	}
	return "Conversation " + now.Format("2006-01-02 15:04")
}

// extractTopics counts vocabulary hits in the transcript and returns the
// most frequent ones, first occurrence winning ties.
func extractTopics(transcript string, limit int) []string {
	type topicCount struct {
		topic string
		count int
	}

	index := map[string]*topicCount{}
	var order []*topicCount
	for _, word := range strings.Fields(strings.ToLower(transcript)) {
		clean := stripNonAlnum(word)
		if _, ok := investmentKeywords[clean]; !ok {
			continue
		}
		tc, ok := index[clean]
		if !ok {
			tc = &topicCount{topic: clean}
			index[clean] = tc
			order = append(order, tc)
		}
		tc.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	if len(order) > limit {
		order = order[:limit]
	}
	topics := make([]string, 0, len(order))
	for _, tc := range order {
		topics = append(topics, tc.topic)
	}
	return topics
}

func stripNonAlnum(word string) string {
	var b strings.Builder
	for _, r := range word {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
