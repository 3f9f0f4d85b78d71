package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/athena/store"
)

var saverNow = time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC)

type fakeConversationStore struct {
	created   []*store.Conversation
	createErr error
}

func (f *fakeConversationStore) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	saved := *create
	saved.ID = "saved-id"
	saved.CreatedAt = saverNow
	f.created = append(f.created, &saved)
	return &saved, nil
}

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		v, err := s.Embed(ctx, "")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }

func newTestSaver(conversationStore *fakeConversationStore, embedder *stubEmbedder) *Saver {
	return NewSaver(conversationStore, embedder, WithSaverClock(func() time.Time { return saverNow }))
}

func TestSave_BuildsRecord(t *testing.T) {
	conversationStore := &fakeConversationStore{}
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2}}
	saver := newTestSaver(conversationStore, embedder)

	start := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	messages := []Message{
		{Role: "user", Content: "Should I rebalance my portfolio toward bonds?", Timestamp: start, Tokens: 12},
		{Role: "assistant", Content: "Your bond allocation depends on risk tolerance.", Timestamp: start.Add(time.Minute), Tokens: 30},
	}

	created, err := saver.Save(context.Background(), messages, "session-7")

	require.NoError(t, err)
	require.Len(t, conversationStore.created, 1)
	assert.Equal(t, "Should I rebalance my portfolio toward bonds?", created.Title)
	assert.Equal(t, []float32{0.1, 0.2}, created.Embedding)
	assert.Equal(t, "session-7", created.Metadata.ConversationID)
	assert.Equal(t, 2, created.Metadata.TurnNumber)
	assert.Equal(t, 42, created.Metadata.TotalTokens)
	assert.Equal(t, start.Format(time.RFC3339), created.Metadata.StartTime)
	assert.Equal(t, start.Add(time.Minute).Format(time.RFC3339), created.Metadata.EndTime)
	assert.Equal(t, []string{"user", "assistant"}, created.Metadata.Participants)
	assert.Contains(t, created.Metadata.Topics, "portfolio")
	assert.Contains(t, created.Metadata.Topics, "bonds")
}

func TestSave_EmptyMessages(t *testing.T) {
	saver := newTestSaver(&fakeConversationStore{}, &stubEmbedder{})

	_, err := saver.Save(context.Background(), nil, "")

	assert.Error(t, err)
}

func TestSave_AssignsConversationID(t *testing.T) {
	conversationStore := &fakeConversationStore{}
	saver := newTestSaver(conversationStore, &stubEmbedder{vector: []float32{1}})

	created, err := saver.Save(context.Background(), []Message{{Role: "user", Content: "hi"}}, "")

	require.NoError(t, err)
	assert.NotEmpty(t, created.Metadata.ConversationID)
}

func TestSave_EmbeddingFailureSavesWithoutEmbedding(t *testing.T) {
	conversationStore := &fakeConversationStore{}
	embedder := &stubEmbedder{err: errors.New("provider down")}
	saver := newTestSaver(conversationStore, embedder)

	created, err := saver.Save(context.Background(), []Message{{Role: "user", Content: "hello"}}, "s")

	require.NoError(t, err)
	assert.Nil(t, created.Embedding)
}

func TestSave_StoreFailure(t *testing.T) {
	conversationStore := &fakeConversationStore{createErr: errors.New("db down")}
	saver := newTestSaver(conversationStore, &stubEmbedder{vector: []float32{1}})

	_, err := saver.Save(context.Background(), []Message{{Role: "user", Content: "hello"}}, "s")

	assert.Error(t, err)
}

func TestFormatTranscript(t *testing.T) {
	ts := time.Date(2026, 8, 28, 9, 15, 30, 0, time.UTC)
	messages := []Message{
		{Role: "user", Content: "first question", Timestamp: ts},
		{Role: "assistant", Content: "an answer"},
	}

	got := FormatTranscript(messages)

	want := "[2026-08-28 09:15:30] User: first question\n\nAssistant: an answer"
	assert.Equal(t, want, got)
}

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name:     "first user message",
			messages: []Message{{Role: "assistant", Content: "hi"}, {Role: "user", Content: "tell me about yield"}},
			want:     "tell me about yield",
		},
		{
			name:     "long message truncated",
			messages: []Message{{Role: "user", Content: strings.Repeat("a", 150)}},
			want:     strings.Repeat("a", 97) + "...",
		},
		{
			name:     "no user message falls back to timestamp",
			messages: []Message{{Role: "assistant", Content: "hi"}},
			want:     "Conversation 2026-08-29 15:30",
		},
		{
			name:     "empty user content skipped",
			messages: []Message{{Role: "user", Content: ""}, {Role: "user", Content: "real question"}},
			want:     "real question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateTitle(tt.messages, saverNow)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), titleMaxLength)
		})
	}
}

func TestExtractTopics(t *testing.T) {
	transcript := "Dividend stocks and dividend growth. My portfolio needs dividend income. Stocks, bonds, and more stocks!"

	topics := extractTopics(transcript, 5)

	require.NotEmpty(t, topics)
	assert.Equal(t, "dividend", topics[0], "most frequent keyword first")
	assert.Contains(t, topics, "stocks")
	assert.LessOrEqual(t, len(topics), 5)
	assert.NotContains(t, topics, "needs", "non-vocabulary words are ignored")
}

func TestExtractTopics_TieBreaksByFirstSeen(t *testing.T) {
	topics := extractTopics("yield risk yield risk bonds", 5)

	require.Len(t, topics, 3)
	assert.Equal(t, []string{"yield", "risk", "bonds"}, topics)
}

func TestExtractTopics_NoMatches(t *testing.T) {
	assert.Empty(t, extractTopics("the weather is nice today", 5))
}
