package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/athena/store"
)

// CreateConversation inserts a conversation record. The search_vector column
// is a generated column maintained by postgres, not written here.
func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	metadata, err := json.Marshal(create.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal conversation metadata")
	}

	// The embedding may be absent when the provider was unavailable at save
	// time; the re-embedding job backfills it later.
	var embedding any
	if len(create.Embedding) > 0 {
		embedding = pgvector.NewVector(create.Embedding)
	}

	stmt := `
		INSERT INTO conversations (title, full_transcript, embedding, metadata)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `)
		RETURNING id, created_at
	`
	err = d.db.QueryRowContext(ctx, stmt,
		create.Title,
		create.Transcript,
		embedding,
		metadata,
	).Scan(&create.ID, &create.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}

	return create, nil
}

// GetConversation returns a single conversation by ID. The embedding column
// is not loaded; no read path needs the stored vector back.
func (d *DB) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	stmt := `
		SELECT id, title, full_transcript, metadata, created_at
		FROM conversations
		WHERE id = ` + placeholder(1)

	var conversation store.Conversation
	var metadata []byte
	err := d.db.QueryRowContext(ctx, stmt, id).Scan(
		&conversation.ID,
		&conversation.Title,
		&conversation.Transcript,
		&metadata,
		&conversation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get conversation")
	}

	if err := json.Unmarshal(metadata, &conversation.Metadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal conversation metadata")
	}
	return &conversation, nil
}

// sessionExclusion builds the predicate that keeps the active session's
// recent turns out of the candidate set. A record missing turn_number counts
// as turn 0 and stays eligible.
func sessionExclusion(argIdx int) string {
	return `NOT (
			metadata->>'conversation_id' = ` + placeholder(argIdx) + `
			AND COALESCE((metadata->>'turn_number')::int, 0) > ` + placeholder(argIdx+1) + `
		)`
}

// VectorSearchConversations performs cosine similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so
// ordering by distance ASC returns the most similar first.
func (d *DB) VectorSearchConversations(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ConversationWithScore, error) {
	vector := pgvector.NewVector(opts.Vector)

	where := []string{
		"embedding IS NOT NULL",
		sessionExclusion(2),
	}

	query := `
		SELECT
			id, title, full_transcript, metadata, created_at,
			1 - (embedding <=> ` + placeholder(1) + `) AS similarity
		FROM conversations
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> ` + placeholder(4) + `
		LIMIT ` + placeholder(5)

	rows, err := d.db.QueryContext(ctx, query,
		vector,
		opts.ExcludeConversationID,
		opts.ExcludeTurnCutoff,
		vector,
		opts.Limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search conversations")
	}
	defer rows.Close()

	return scanConversationsWithScore(rows)
}

// LexicalSearchConversations performs relevance-ranked full-text search.
// websearch_to_tsquery gives web-search-style parsing: implicit AND of terms
// with quoted-phrase support.
func (d *DB) LexicalSearchConversations(ctx context.Context, opts *store.LexicalSearchOptions) ([]*store.ConversationWithScore, error) {
	query := `
		SELECT
			id, title, full_transcript, metadata, created_at,
			ts_rank(search_vector, websearch_to_tsquery('english', ` + placeholder(1) + `)) AS rank
		FROM conversations
		WHERE search_vector @@ websearch_to_tsquery('english', ` + placeholder(2) + `)
		AND ` + sessionExclusion(3) + `
		ORDER BY rank DESC
		LIMIT ` + placeholder(5)

	rows, err := d.db.QueryContext(ctx, query,
		opts.Query,
		opts.Query,
		opts.ExcludeConversationID,
		opts.ExcludeTurnCutoff,
		opts.Limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lexical search conversations")
	}
	defer rows.Close()

	return scanConversationsWithScore(rows)
}

func scanConversationsWithScore(rows *sql.Rows) ([]*store.ConversationWithScore, error) {
	list := []*store.ConversationWithScore{}
	for rows.Next() {
		var conversation store.Conversation
		var metadata []byte
		var score float32
		err := rows.Scan(
			&conversation.ID,
			&conversation.Title,
			&conversation.Transcript,
			&metadata,
			&conversation.CreatedAt,
			&score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}

		if err := json.Unmarshal(metadata, &conversation.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal conversation metadata")
		}

		list = append(list, &store.ConversationWithScore{
			Conversation: &conversation,
			Score:        score,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// FindConversationsWithoutEmbedding finds conversations pending embedding
// backfill, newest first.
func (d *DB) FindConversationsWithoutEmbedding(ctx context.Context, find *store.FindConversationsWithoutEmbedding) ([]*store.Conversation, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, title, full_transcript, metadata, created_at
		FROM conversations
		WHERE embedding IS NULL
			AND LENGTH(full_transcript) > 0
		ORDER BY created_at DESC
		LIMIT ` + placeholder(1)

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find conversations without embedding")
	}
	defer rows.Close()

	return scanConversations(rows)
}

// UpdateConversationEmbedding backfills the embedding of a single record.
// This is the only mutation allowed on a saved conversation.
func (d *DB) UpdateConversationEmbedding(ctx context.Context, id string, embedding []float32) error {
	stmt := `UPDATE conversations SET embedding = ` + placeholder(1) + ` WHERE id = ` + placeholder(2)
	result, err := d.db.ExecContext(ctx, stmt, pgvector.NewVector(embedding), id)
	if err != nil {
		return errors.Wrap(err, "failed to update conversation embedding")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("conversation %s not found", id)
	}
	return nil
}

// ListConversationsSince lists conversations created after the given time,
// newest first.
func (d *DB) ListConversationsSince(ctx context.Context, find *store.FindConversationsSince) ([]*store.Conversation, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT id, title, full_transcript, metadata, created_at
		FROM conversations
		WHERE created_at >= ` + placeholder(1) + `
		ORDER BY created_at DESC
		LIMIT ` + placeholder(2)

	rows, err := d.db.QueryContext(ctx, query, find.Since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	return scanConversations(rows)
}

func scanConversations(rows *sql.Rows) ([]*store.Conversation, error) {
	list := []*store.Conversation{}
	for rows.Next() {
		var conversation store.Conversation
		var metadata []byte
		err := rows.Scan(
			&conversation.ID,
			&conversation.Title,
			&conversation.Transcript,
			&metadata,
			&conversation.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}

		if err := json.Unmarshal(metadata, &conversation.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal conversation metadata")
		}

		list = append(list, &conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
