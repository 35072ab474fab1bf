package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigcredit/backend/internal/jobs"
	"github.com/gigcredit/backend/internal/ws"
)

type FeedRepository struct {
	pool *pgxpool.Pool
}

func NewFeedRepository(pool *pgxpool.Pool) *FeedRepository {
	return &FeedRepository{pool: pool}
}

func (r *FeedRepository) Insert(ctx context.Context, entries []jobs.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := `INSERT INTO notification_feed (recipient_role, recipient_id, event, payload) VALUES ($1, $2, $3, $4::jsonb)`
	for _, e := range entries {
		if _, err := r.pool.Exec(ctx, q, e.RecipientRole, e.RecipientID, e.Event, e.Payload); err != nil {
			return err
		}
	}
	return nil
}

func (r *FeedRepository) Head(ctx context.Context) (int64, error) {
	var head int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM notification_feed`).Scan(&head)
	return head, err
}

func (r *FeedRepository) ListSince(ctx context.Context, lastID int64, limit int32) ([]ws.FeedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT id, recipient_role, recipient_id, event, payload, created_at
FROM notification_feed
WHERE id > $1
ORDER BY id ASC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ws.FeedEvent, 0)
	for rows.Next() {
		var ev ws.FeedEvent
		if err := rows.Scan(&ev.ID, &ev.RecipientRole, &ev.RecipientID, &ev.Event, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *FeedRepository) ListByRecipient(ctx context.Context, role, recipientID string, limit int32) ([]ws.FeedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
SELECT id, recipient_role, recipient_id, event, payload, created_at
FROM notification_feed
WHERE recipient_role = $1 AND recipient_id = $2
ORDER BY id DESC
LIMIT $3
`
	rows, err := r.pool.Query(ctx, q, role, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ws.FeedEvent, 0)
	for rows.Next() {
		var ev ws.FeedEvent
		if err := rows.Scan(&ev.ID, &ev.RecipientRole, &ev.RecipientID, &ev.Event, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
