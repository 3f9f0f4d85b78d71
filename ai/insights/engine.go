// Package insights generates proactive analysis from conversation history:
// weekly digests of activity and contradiction alerts against past views.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/athena/ai"
	"github.com/hrygo/athena/store"
)

const (
	digestWindow       = 7 * 24 * time.Hour
	digestMinGapDays   = 6
	digestHour         = 18 // Sundays after 6pm
	maxDigestTopics    = 10
	contradictionLimit = 20
	// Candidates younger than this are skipped: positions restated within a
	// month are iteration, not contradiction.
	contradictionMinAge       = 30 * 24 * time.Hour
	contradictionSimilarity   = 0.7
	contradictionCheckTop     = 3
	pendingAlertsDefaultLimit = 10
)

// Store is the slice of the store the insights engine needs.
type Store interface {
	ListConversationsSince(ctx context.Context, find *store.FindConversationsSince) ([]*store.Conversation, error)
	VectorSearchConversations(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ConversationWithScore, error)
	CreateWeeklyDigest(ctx context.Context, create *store.WeeklyDigest) (*store.WeeklyDigest, error)
	GetLatestWeeklyDigest(ctx context.Context) (*store.WeeklyDigest, error)
	CreateInsightAlert(ctx context.Context, create *store.InsightAlert) (*store.InsightAlert, error)
	ListPendingInsightAlerts(ctx context.Context, limit int) ([]*store.InsightAlert, error)
	DismissInsightAlert(ctx context.Context, id string) error
}

// Engine generates digests and contradiction alerts.
type Engine struct {
	store    Store
	llm      ai.LLMService
	embedder ai.EmbeddingService
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an insights Engine.
func NewEngine(s Store, llm ai.LLMService, embedder ai.EmbeddingService, options ...Option) *Engine {
	e := &Engine{
		store:    s,
		llm:      llm,
		embedder: embedder,
		now:      time.Now,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ShouldGenerateWeeklyDigest reports whether a new digest is due. Digests
// run on Sundays after 6pm, at most once per week.
func (e *Engine) ShouldGenerateWeeklyDigest(ctx context.Context) bool {
	now := e.now()
	if now.Weekday() != time.Sunday || now.Hour() < digestHour {
		return false
	}

	latest, err := e.store.GetLatestWeeklyDigest(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check digest status", slog.Any("error", err))
		return false
	}
	if latest == nil {
		return true
	}
	return now.Sub(latest.CreatedAt) >= digestMinGapDays*24*time.Hour
}

// GenerateWeeklyDigest summarizes the past week of conversations and stores
// the result. Returns nil without error when the week had no activity.
func (e *Engine) GenerateWeeklyDigest(ctx context.Context) (*store.WeeklyDigest, error) {
	now := e.now()
	weekAgo := now.Add(-digestWindow)

	conversations, err := e.store.ListConversationsSince(ctx, &store.FindConversationsSince{Since: weekAgo})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations for digest")
	}
	if len(conversations) == 0 {
		slog.InfoContext(ctx, "no conversations in past week, skipping digest")
		return nil, nil
	}

	topics := topTopics(conversations, maxDigestTopics)
	content, err := e.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt("You are generating a weekly insight digest for an investor. Be concise and actionable."),
		ai.UserMessage(digestPrompt(conversations, topics)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate digest content")
	}

	digest, err := e.store.CreateWeeklyDigest(ctx, &store.WeeklyDigest{
		WeekStart:         weekAgo,
		WeekEnd:           now,
		ConversationCount: len(conversations),
		TopTopics:         topics,
		Content:           content,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to save weekly digest")
	}

	slog.InfoContext(ctx, "weekly digest generated",
		slog.String("id", digest.ID),
		slog.Int("conversations", len(conversations)))
	return digest, nil
}

// CheckContradiction compares a new message against sufficiently similar
// conversations older than thirty days and raises a medium-severity alert
// when the model flags a clear contradiction. Detection is conservative and
// every failure degrades to "no contradiction".
func (e *Engine) CheckContradiction(ctx context.Context, newMessage, currentConversationID string) *store.InsightAlert {
	embedding, err := e.embedder.Embed(ctx, newMessage)
	if err != nil {
		slog.WarnContext(ctx, "failed to embed message for contradiction check", slog.Any("error", err))
		return nil
	}

	results, err := e.store.VectorSearchConversations(ctx, &store.VectorSearchOptions{
		Vector:                embedding,
		ExcludeConversationID: currentConversationID,
		// turn_number is never negative, so a negative cutoff excludes the
		// whole live session.
		ExcludeTurnCutoff: -1,
		Limit:             contradictionLimit,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to search for similar conversations", slog.Any("error", err))
		return nil
	}

	cutoff := e.now().Add(-contradictionMinAge)
	candidates := make([]*store.ConversationWithScore, 0, contradictionCheckTop)
	for _, result := range results {
		if !result.Conversation.CreatedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, result)
		if len(candidates) == contradictionCheckTop {
			break
		}
	}

	if len(candidates) == 0 || candidates[0].Score < contradictionSimilarity {
		return nil
	}

	for _, candidate := range candidates {
		verdict, err := e.llm.Chat(ctx, []ai.Message{
			ai.SystemPrompt("You detect clear contradictions. Be conservative - only flag obvious opposites."),
			ai.UserMessage(contradictionPrompt(newMessage, candidate.Conversation)),
		})
		if err != nil {
			slog.WarnContext(ctx, "contradiction check failed", slog.Any("error", err))
			return nil
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(verdict)), "YES") {
			continue
		}

		explanation := "Views conflict"
		if _, after, found := strings.Cut(verdict, ":"); found {
			explanation = strings.TrimSpace(after)
		}

		alert, err := e.store.CreateInsightAlert(ctx, &store.InsightAlert{
			AlertType: store.AlertTypeContradiction,
			Title:     "Potential Contradiction Detected",
			Content: fmt.Sprintf("Today: %s\n\nPast (%s): %s\n\nNote: %s",
				newMessage,
				candidate.Conversation.CreatedAt.Format("2006-01-02"),
				candidate.Conversation.Title,
				explanation),
			RelatedConversationIDs: []string{currentConversationID, candidate.Conversation.ID},
			Severity:               store.AlertSeverityMedium,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to save contradiction alert", slog.Any("error", err))
			return nil
		}

		slog.InfoContext(ctx, "contradiction detected",
			slog.String("alert_id", alert.ID),
			slog.String("past_conversation", candidate.Conversation.ID))
		return alert
	}

	return nil
}

// PendingAlerts returns undismissed alerts, newest first.
func (e *Engine) PendingAlerts(ctx context.Context) ([]*store.InsightAlert, error) {
	alerts, err := e.store.ListPendingInsightAlerts(ctx, pendingAlertsDefaultLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending alerts")
	}
	return alerts, nil
}

// DismissAlert marks an alert as handled.
func (e *Engine) DismissAlert(ctx context.Context, id string) error {
	if err := e.store.DismissInsightAlert(ctx, id); err != nil {
		return errors.Wrapf(err, "failed to dismiss alert %s", id)
	}
	return nil
}

// LatestDigest returns the most recent weekly digest, nil when none exists.
func (e *Engine) LatestDigest(ctx context.Context) (*store.WeeklyDigest, error) {
	digest, err := e.store.GetLatestWeeklyDigest(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load latest digest")
	}
	return digest, nil
}

func digestPrompt(conversations []*store.Conversation, topics []string) string {
	var b strings.Builder
	b.WriteString("Analyze these conversation patterns from the past week and create a concise weekly digest.\n\n")
	fmt.Fprintf(&b, "CONVERSATION COUNT: %d\n\n", len(conversations))
	b.WriteString("TOP TOPICS:\n")
	for _, topic := range topics {
		fmt.Fprintf(&b, "- %s\n", topic)
	}
	fmt.Fprintf(&b, "\nPATTERNS:\n- average per day: %.1f\n- most active day: %s\n",
		float64(len(conversations))/7, mostActiveDay(conversations))
	b.WriteString(`
Create a weekly digest with:
1. Summary of conversation activity
2. Top 3 insights or patterns
3. Notable themes or shifts in thinking
4. 1-2 actionable suggestions

Be concise, insightful, and investor-focused. Format in clear sections.`)
	return b.String()
}

func contradictionPrompt(newMessage string, past *store.Conversation) string {
	return fmt.Sprintf(`Compare these two statements for CLEAR contradictions only:

CURRENT (Today): %q

PAST (%s): %q

Are these CLEARLY contradictory? Only flag if they express opposite views on the same topic.

Respond ONLY with:
- "YES: [brief explanation]" if clearly contradictory
- "NO" if not contradictory or just nuanced differences`,
		newMessage, past.CreatedAt.Format("2006-01-02"), past.Title)
}

// topTopics aggregates per-conversation topic tags and returns the most
// frequent, first occurrence winning ties.
func topTopics(conversations []*store.Conversation, limit int) []string {
	type topicCount struct {
		topic string
		count int
	}
	index := map[string]*topicCount{}
	var order []*topicCount
	for _, conversation := range conversations {
		for _, topic := range conversation.Metadata.Topics {
			tc, ok := index[topic]
			if !ok {
				tc = &topicCount{topic: topic}
				index[topic] = tc
				order = append(order, tc)
			}
			tc.count++
		}
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

func mostActiveDay(conversations []*store.Conversation) string {
	counts := map[time.Weekday]int{}
	for _, conversation := range conversations {
		counts[conversation.CreatedAt.Weekday()]++
	}
	best := ""
	bestCount := 0
	for day := time.Sunday; day <= time.Saturday; day++ {
		if counts[day] > bestCount {
			best = day.String()
			bestCount = counts[day]
		}
	}
	if best == "" {
		return "Unknown"
	}
	return best
}
