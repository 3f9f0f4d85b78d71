package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Postgres driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/athena/internal/profile"
	"github.com/hrygo/athena/store"
)

// DB is the postgres implementation of store.Driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a pooled postgres connection for the given profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}

	// One pool per process; the store is shared across all sessions.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "cannot connect to database")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema. Statements are idempotent so migration runs on
// every startup.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL DEFAULT '',
			full_transcript TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			search_vector tsvector GENERATED ALWAYS AS (to_tsvector('english', full_transcript)) STORED,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, d.profile.EmbeddingDimensions),
		`CREATE INDEX IF NOT EXISTS idx_conversations_search_vector ON conversations USING GIN (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_conversation_id ON conversations ((metadata->>'conversation_id'))`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS weekly_digests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			week_start DATE NOT NULL,
			week_end DATE NOT NULL,
			conversation_count INT NOT NULL DEFAULT 0,
			top_topics TEXT[] NOT NULL DEFAULT '{}',
			digest_content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS insight_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			alert_type TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			related_conversation_ids TEXT[] NOT NULL DEFAULT '{}',
			severity TEXT NOT NULL DEFAULT 'low',
			dismissed BOOLEAN NOT NULL DEFAULT FALSE,
			dismissed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration failed: %.60s", stmt)
		}
	}

	// The ivfflat index requires existing rows to build meaningful lists;
	// creation failure on an empty or small table is not fatal.
	ivfflat := `CREATE INDEX IF NOT EXISTS idx_conversations_embedding
		ON conversations USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`
	if _, err := d.db.ExecContext(ctx, ivfflat); err != nil {
		slog.Warn("skipping ivfflat index creation", "error", err)
	}

	return nil
}

// placeholder returns the postgres positional parameter for 1-based index n.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
