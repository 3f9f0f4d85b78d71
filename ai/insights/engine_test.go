package insights

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/store"
)

// Sunday evening, well past the 6pm gate.
var insightsNow = time.Date(2026, 8, 30, 19, 0, 0, 0, time.UTC)

type fakeStore struct {
	conversations []*store.Conversation
	listErr       error

	similar   []*store.ConversationWithScore
	searchErr error

	latestDigest *store.WeeklyDigest
	latestErr    error
	digests      []*store.WeeklyDigest

	alerts     []*store.InsightAlert
	pending    []*store.InsightAlert
	dismissed  []string
	dismissErr error
}

func (f *fakeStore) ListConversationsSince(_ context.Context, _ *store.FindConversationsSince) ([]*store.Conversation, error) {
	return f.conversations, f.listErr
}

func (f *fakeStore) VectorSearchConversations(_ context.Context, _ *store.VectorSearchOptions) ([]*store.ConversationWithScore, error) {
	return f.similar, f.searchErr
}

func (f *fakeStore) CreateWeeklyDigest(_ context.Context, create *store.WeeklyDigest) (*store.WeeklyDigest, error) {
	saved := *create
	saved.ID = "digest-1"
	saved.CreatedAt = insightsNow
	f.digests = append(f.digests, &saved)
	return &saved, nil
}

func (f *fakeStore) GetLatestWeeklyDigest(context.Context) (*store.WeeklyDigest, error) {
	return f.latestDigest, f.latestErr
}

func (f *fakeStore) CreateInsightAlert(_ context.Context, create *store.InsightAlert) (*store.InsightAlert, error) {
	saved := *create
	saved.ID = "alert-1"
	saved.CreatedAt = insightsNow
	f.alerts = append(f.alerts, &saved)
	return &saved, nil
}

func (f *fakeStore) ListPendingInsightAlerts(context.Context, int) ([]*store.InsightAlert, error) {
	return f.pending, nil
}

func (f *fakeStore) DismissInsightAlert(_ context.Context, id string) error {
	if f.dismissErr != nil {
		return f.dismissErr
	}
	f.dismissed = append(f.dismissed, id)
	return nil
}

type fakeLLM struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeLLM) Chat(_ context.Context, messages []ai.Message) (string, error) {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no canned response")
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

func (f *fakeLLM) ChatStream(context.Context, []ai.Message) (<-chan string, <-chan error) {
	contentCh := make(chan string)
	errCh := make(chan error, 1)
	close(contentCh)
	errCh <- errors.New("not used in tests")
	return contentCh, errCh
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vector, s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, s.err
}

func (s *stubEmbedder) Dimensions() int { return len(s.vector) }

func newTestEngine(s *fakeStore, llm *fakeLLM) *Engine {
	return NewEngine(s, llm, &stubEmbedder{vector: []float32{0.1, 0.2}}, WithClock(func() time.Time { return insightsNow }))
}

func oldConversation(id, title string, age time.Duration) *store.Conversation {
	return &store.Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: insightsNow.Add(-age),
		Metadata:  store.ConversationMetadata{ConversationID: "past-" + id},
	}
}

func TestShouldGenerateWeeklyDigest(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		latest *store.WeeklyDigest
		err    error
		want   bool
	}{
		{
			name: "sunday evening no prior digest",
			now:  insightsNow,
			want: true,
		},
		{
			name: "not sunday",
			now:  time.Date(2026, 8, 31, 19, 0, 0, 0, time.UTC), // Monday
			want: false,
		},
		{
			name: "sunday before six pm",
			now:  time.Date(2026, 8, 30, 17, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name:   "digest this week already",
			now:    insightsNow,
			latest: &store.WeeklyDigest{CreatedAt: insightsNow.Add(-2 * 24 * time.Hour)},
			want:   false,
		},
		{
			name:   "last digest old enough",
			now:    insightsNow,
			latest: &store.WeeklyDigest{CreatedAt: insightsNow.Add(-7 * 24 * time.Hour)},
			want:   true,
		},
		{
			name: "store error is not due",
			now:  insightsNow,
			err:  errors.New("db down"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeStore{latestDigest: tt.latest, latestErr: tt.err}
			now := tt.now
			engine := NewEngine(s, &fakeLLM{}, &stubEmbedder{}, WithClock(func() time.Time { return now }))
			assert.Equal(t, tt.want, engine.ShouldGenerateWeeklyDigest(context.Background()))
		})
	}
}

func TestGenerateWeeklyDigest(t *testing.T) {
	s := &fakeStore{conversations: []*store.Conversation{
		{
			ID:        "c1",
			CreatedAt: insightsNow.Add(-24 * time.Hour),
			Metadata:  store.ConversationMetadata{Topics: []string{"dividend", "risk"}},
		},
		{
			ID:        "c2",
			CreatedAt: insightsNow.Add(-48 * time.Hour),
			Metadata:  store.ConversationMetadata{Topics: []string{"dividend"}},
		},
	}}
	llm := &fakeLLM{responses: []string{"A quiet week focused on dividends."}}
	engine := newTestEngine(s, llm)

	digest, err := engine.GenerateWeeklyDigest(context.Background())

	require.NoError(t, err)
	require.NotNil(t, digest)
	assert.Equal(t, 2, digest.ConversationCount)
	assert.Equal(t, []string{"dividend", "risk"}, digest.TopTopics)
	assert.Equal(t, "A quiet week focused on dividends.", digest.Content)
	assert.Equal(t, insightsNow.Add(-7*24*time.Hour), digest.WeekStart)
	assert.Equal(t, insightsNow, digest.WeekEnd)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "CONVERSATION COUNT: 2")
	assert.Contains(t, llm.prompts[0], "dividend")
}

func TestGenerateWeeklyDigest_EmptyWeek(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeLLM{})

	digest, err := engine.GenerateWeeklyDigest(context.Background())

	require.NoError(t, err)
	assert.Nil(t, digest)
}

func TestGenerateWeeklyDigest_LLMError(t *testing.T) {
	s := &fakeStore{conversations: []*store.Conversation{{ID: "c1", CreatedAt: insightsNow}}}
	engine := newTestEngine(s, &fakeLLM{err: errors.New("provider down")})

	_, err := engine.GenerateWeeklyDigest(context.Background())

	assert.Error(t, err)
}

func TestCheckContradiction_Found(t *testing.T) {
	past := oldConversation("old-1", "Bonds are too risky for me", 60*24*time.Hour)
	s := &fakeStore{similar: []*store.ConversationWithScore{{Conversation: past, Score: 0.85}}}
	llm := &fakeLLM{responses: []string{"YES: opposite stance on bonds"}}
	engine := newTestEngine(s, llm)

	alert := engine.CheckContradiction(context.Background(), "I want to go all in on bonds", "live-session")

	require.NotNil(t, alert)
	assert.Equal(t, store.AlertTypeContradiction, alert.AlertType)
	assert.Equal(t, store.AlertSeverityMedium, alert.Severity)
	assert.Equal(t, []string{"live-session", "old-1"}, alert.RelatedConversationIDs)
	assert.Contains(t, alert.Content, "opposite stance on bonds")
	assert.Contains(t, alert.Content, "Bonds are too risky for me")
	require.Len(t, s.alerts, 1)
}

func TestCheckContradiction_BelowSimilarityThreshold(t *testing.T) {
	past := oldConversation("old-1", "Thoughts on gold", 60*24*time.Hour)
	s := &fakeStore{similar: []*store.ConversationWithScore{{Conversation: past, Score: 0.5}}}
	llm := &fakeLLM{}
	engine := newTestEngine(s, llm)

	alert := engine.CheckContradiction(context.Background(), "message", "live")

	assert.Nil(t, alert)
	assert.Empty(t, llm.prompts, "model is never consulted below the similarity bar")
}

func TestCheckContradiction_RecentConversationsIgnored(t *testing.T) {
	recent := oldConversation("new-1", "Bonds look great", 5*24*time.Hour)
	s := &fakeStore{similar: []*store.ConversationWithScore{{Conversation: recent, Score: 0.95}}}
	llm := &fakeLLM{}
	engine := newTestEngine(s, llm)

	alert := engine.CheckContradiction(context.Background(), "bonds are terrible", "live")

	assert.Nil(t, alert)
	assert.Empty(t, llm.prompts)
}

func TestCheckContradiction_ModelSaysNo(t *testing.T) {
	past := oldConversation("old-1", "Dividend stocks beat growth", 60*24*time.Hour)
	s := &fakeStore{similar: []*store.ConversationWithScore{{Conversation: past, Score: 0.8}}}
	llm := &fakeLLM{responses: []string{"NO"}}
	engine := newTestEngine(s, llm)

	alert := engine.CheckContradiction(context.Background(), "growth has been strong lately", "live")

	assert.Nil(t, alert)
	assert.Empty(t, s.alerts)
}

func TestCheckContradiction_ChecksTopThreeOnly(t *testing.T) {
	var similar []*store.ConversationWithScore
	for i := 0; i < 5; i++ {
		similar = append(similar, &store.ConversationWithScore{
			Conversation: oldConversation("old-"+strings.Repeat("x", i+1), "past view", 60*24*time.Hour),
			Score:        0.9 - float32(i)*0.02,
		})
	}
	s := &fakeStore{similar: similar}
	llm := &fakeLLM{responses: []string{"NO", "NO", "NO", "NO", "NO"}}
	engine := newTestEngine(s, llm)

	engine.CheckContradiction(context.Background(), "message", "live")

	assert.Len(t, llm.prompts, 3)
}

func TestCheckContradiction_DegradesOnErrors(t *testing.T) {
	t.Run("embedder error", func(t *testing.T) {
		engine := NewEngine(&fakeStore{}, &fakeLLM{}, &stubEmbedder{err: errors.New("down")},
			WithClock(func() time.Time { return insightsNow }))
		assert.Nil(t, engine.CheckContradiction(context.Background(), "m", "c"))
	})

	t.Run("search error", func(t *testing.T) {
		engine := newTestEngine(&fakeStore{searchErr: errors.New("down")}, &fakeLLM{})
		assert.Nil(t, engine.CheckContradiction(context.Background(), "m", "c"))
	})

	t.Run("llm error", func(t *testing.T) {
		past := oldConversation("old-1", "title", 60*24*time.Hour)
		s := &fakeStore{similar: []*store.ConversationWithScore{{Conversation: past, Score: 0.9}}}
		engine := newTestEngine(s, &fakeLLM{err: errors.New("down")})
		assert.Nil(t, engine.CheckContradiction(context.Background(), "m", "c"))
	})
}

func TestDismissAlert(t *testing.T) {
	s := &fakeStore{}
	engine := newTestEngine(s, &fakeLLM{})

	require.NoError(t, engine.DismissAlert(context.Background(), "alert-7"))
	assert.Equal(t, []string{"alert-7"}, s.dismissed)

	s.dismissErr = errors.New("not found")
	assert.Error(t, engine.DismissAlert(context.Background(), "missing"))
}

func TestPendingAlerts(t *testing.T) {
	s := &fakeStore{pending: []*store.InsightAlert{{ID: "a1"}, {ID: "a2"}}}
	engine := newTestEngine(s, &fakeLLM{})

	alerts, err := engine.PendingAlerts(context.Background())

	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestTopTopics(t *testing.T) {
	conversations := []*store.Conversation{
		{Metadata: store.ConversationMetadata{Topics: []string{"risk", "yield"}}},
		{Metadata: store.ConversationMetadata{Topics: []string{"risk"}}},
	}

	assert.Equal(t, []string{"risk", "yield"}, topTopics(conversations, 10))
	assert.Equal(t, []string{"risk"}, topTopics(conversations, 1))
}

func TestMostActiveDay(t *testing.T) {
	conversations := []*store.Conversation{
		{CreatedAt: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}, // Monday
		{CreatedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)}, // Tuesday
		{CreatedAt: time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)}, // Tuesday
	}

	assert.Equal(t, "Tuesday", mostActiveDay(conversations))
	assert.Equal(t, "Unknown", mostActiveDay(nil))
}
