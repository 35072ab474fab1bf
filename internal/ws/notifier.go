package ws

import (
	"context"
	"encoding/json"
	"time"
)

// FeedEvent is one row of the notification feed.
type FeedEvent struct {
	ID            int64
	RecipientRole string
	RecipientID   string
	Event         string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

type FeedRepository interface {
	Head(ctx context.Context) (int64, error)
	ListSince(ctx context.Context, lastID int64, limit int32) ([]FeedEvent, error)
}

// Notifier tails the notification feed and pushes each entry to the
// recipient's channel. It starts from the feed head at boot; missed history
// stays available through the notifications endpoint.
type Notifier struct {
	repo         FeedRepository
	hub          *Hub
	pollInterval time.Duration
	lastID       int64
}

func NewNotifier(repo FeedRepository, hub *Hub, pollInterval time.Duration) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Notifier{repo: repo, hub: hub, pollInterval: pollInterval}
}

func (n *Notifier) Run(ctx context.Context) error {
	head, err := n.repo.Head(ctx)
	if err != nil {
		return err
	}
	n.lastID = head

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (n *Notifier) tick(ctx context.Context) error {
	events, err := n.repo.ListSince(ctx, n.lastID, 100)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.ID > n.lastID {
			n.lastID = ev.ID
		}
		payload, _ := json.Marshal(map[string]any{
			"event":      ev.Event,
			"data":       ev.Payload,
			"created_at": ev.CreatedAt.UTC().Format(time.RFC3339),
		})
		n.hub.Publish(Channel(ev.RecipientRole, ev.RecipientID), payload)
	}
	return nil
}
