package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/athena/store"
)

// CreateWeeklyDigest inserts a weekly digest record.
func (d *DB) CreateWeeklyDigest(ctx context.Context, create *store.WeeklyDigest) (*store.WeeklyDigest, error) {
	stmt := `
		INSERT INTO weekly_digests (week_start, week_end, conversation_count, top_topics, digest_content)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `)
		RETURNING id, created_at
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.WeekStart,
		create.WeekEnd,
		create.ConversationCount,
		pq.Array(create.TopTopics),
		create.Content,
	).Scan(&create.ID, &create.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create weekly digest")
	}
	return create, nil
}

// GetLatestWeeklyDigest returns the most recent digest, or nil when none
// exists yet.
func (d *DB) GetLatestWeeklyDigest(ctx context.Context) (*store.WeeklyDigest, error) {
	stmt := `
		SELECT id, week_start, week_end, conversation_count, top_topics, digest_content, created_at
		FROM weekly_digests
		ORDER BY created_at DESC
		LIMIT 1
	`
	var digest store.WeeklyDigest
	err := d.db.QueryRowContext(ctx, stmt).Scan(
		&digest.ID,
		&digest.WeekStart,
		&digest.WeekEnd,
		&digest.ConversationCount,
		pq.Array(&digest.TopTopics),
		&digest.Content,
		&digest.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get latest weekly digest")
	}
	return &digest, nil
}

// CreateInsightAlert inserts an insight alert.
func (d *DB) CreateInsightAlert(ctx context.Context, create *store.InsightAlert) (*store.InsightAlert, error) {
	stmt := `
		INSERT INTO insight_alerts (alert_type, title, content, related_conversation_ids, severity)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `, ` + placeholder(5) + `)
		RETURNING id, created_at
	`
	err := d.db.QueryRowContext(ctx, stmt,
		create.AlertType,
		create.Title,
		create.Content,
		pq.Array(create.RelatedConversationIDs),
		create.Severity,
	).Scan(&create.ID, &create.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create insight alert")
	}
	return create, nil
}

// ListPendingInsightAlerts lists non-dismissed alerts, newest first.
func (d *DB) ListPendingInsightAlerts(ctx context.Context, limit int) ([]*store.InsightAlert, error) {
	if limit <= 0 {
		limit = 10
	}

	stmt := `
		SELECT id, alert_type, title, content, related_conversation_ids, severity, dismissed, created_at
		FROM insight_alerts
		WHERE dismissed = FALSE
		ORDER BY created_at DESC
		LIMIT ` + placeholder(1)

	rows, err := d.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list insight alerts")
	}
	defer rows.Close()

	list := []*store.InsightAlert{}
	for rows.Next() {
		var alert store.InsightAlert
		err := rows.Scan(
			&alert.ID,
			&alert.AlertType,
			&alert.Title,
			&alert.Content,
			pq.Array(&alert.RelatedConversationIDs),
			&alert.Severity,
			&alert.Dismissed,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan insight alert")
		}
		list = append(list, &alert)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DismissInsightAlert marks an alert as dismissed.
func (d *DB) DismissInsightAlert(ctx context.Context, id string) error {
	stmt := `UPDATE insight_alerts SET dismissed = TRUE, dismissed_at = NOW() WHERE id = ` + placeholder(1)
	result, err := d.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return errors.Wrap(err, "failed to dismiss insight alert")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("insight alert %s not found", id)
	}
	return nil
}
