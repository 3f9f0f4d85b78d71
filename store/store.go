package store

import (
	"context"
	"database/sql"

	"github.com/hrygo/athena/internal/profile"
)

// Driver is an interface for database drivers.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Conversation model
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	VectorSearchConversations(ctx context.Context, opts *VectorSearchOptions) ([]*ConversationWithScore, error)
	LexicalSearchConversations(ctx context.Context, opts *LexicalSearchOptions) ([]*ConversationWithScore, error)
	FindConversationsWithoutEmbedding(ctx context.Context, find *FindConversationsWithoutEmbedding) ([]*Conversation, error)
	UpdateConversationEmbedding(ctx context.Context, id string, embedding []float32) error
	ListConversationsSince(ctx context.Context, find *FindConversationsSince) ([]*Conversation, error)

	// Insights model
	CreateWeeklyDigest(ctx context.Context, create *WeeklyDigest) (*WeeklyDigest, error)
	GetLatestWeeklyDigest(ctx context.Context) (*WeeklyDigest, error)
	CreateInsightAlert(ctx context.Context, create *InsightAlert) (*InsightAlert, error)
	ListPendingInsightAlerts(ctx context.Context, limit int) ([]*InsightAlert, error)
	DismissInsightAlert(ctx context.Context, id string) error
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return s.driver.GetConversation(ctx, id)
}

// VectorSearchConversations performs cosine-similarity search over
// conversation embeddings.
func (s *Store) VectorSearchConversations(ctx context.Context, opts *VectorSearchOptions) ([]*ConversationWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.VectorSearchConversations(ctx, opts)
}

// LexicalSearchConversations performs relevance-ranked full-text search over
// conversation transcripts.
func (s *Store) LexicalSearchConversations(ctx context.Context, opts *LexicalSearchOptions) ([]*ConversationWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.LexicalSearchConversations(ctx, opts)
}

func (s *Store) FindConversationsWithoutEmbedding(ctx context.Context, find *FindConversationsWithoutEmbedding) ([]*Conversation, error) {
	return s.driver.FindConversationsWithoutEmbedding(ctx, find)
}

func (s *Store) UpdateConversationEmbedding(ctx context.Context, id string, embedding []float32) error {
	return s.driver.UpdateConversationEmbedding(ctx, id, embedding)
}

func (s *Store) ListConversationsSince(ctx context.Context, find *FindConversationsSince) ([]*Conversation, error) {
	return s.driver.ListConversationsSince(ctx, find)
}

func (s *Store) CreateWeeklyDigest(ctx context.Context, create *WeeklyDigest) (*WeeklyDigest, error) {
	return s.driver.CreateWeeklyDigest(ctx, create)
}

func (s *Store) GetLatestWeeklyDigest(ctx context.Context) (*WeeklyDigest, error) {
	return s.driver.GetLatestWeeklyDigest(ctx)
}

func (s *Store) CreateInsightAlert(ctx context.Context, create *InsightAlert) (*InsightAlert, error) {
	return s.driver.CreateInsightAlert(ctx, create)
}

func (s *Store) ListPendingInsightAlerts(ctx context.Context, limit int) ([]*InsightAlert, error) {
	return s.driver.ListPendingInsightAlerts(ctx, limit)
}

func (s *Store) DismissInsightAlert(ctx context.Context, id string) error {
	return s.driver.DismissInsightAlert(ctx, id)
}
