package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gigcredit/backend/internal/domain/loan"
)

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

// FeedEntry is one notification addressed to a single recipient.
type FeedEntry struct {
	RecipientRole string
	RecipientID   string
	Event         string
	Payload       []byte
}

type FeedRepository interface {
	Insert(ctx context.Context, entries []FeedEntry) error
}

type Worker struct {
	outboxRepo   OutboxRepository
	feedRepo     FeedRepository
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, feedRepo FeedRepository) *Worker {
	return &Worker{
		outboxRepo:  outboxRepo,
		feedRepo:    feedRepo,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	switch job.Topic {
	case loan.OutboxTopicNotify:
		return w.processNotify(ctx, job)
	default:
		if job.Attempts >= w.maxAttempts {
			return w.outboxRepo.MarkFailed(ctx, job.ID, "unsupported_topic")
		}
		next := w.now().Add(w.retryBackoff(job.Attempts))
		return w.outboxRepo.MarkRetry(ctx, job.ID, next, "unsupported_topic")
	}
}

func (w *Worker) processNotify(ctx context.Context, job OutboxJob) error {
	var payload loan.EventPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return w.handleJobError(ctx, job, errors.New("invalid_payload"))
	}
	if payload.Event == "" || payload.LoanID == "" {
		return w.handleJobError(ctx, job, errors.New("missing_event_fields"))
	}

	entries := fanOut(payload, job.Payload)
	if len(entries) == 0 {
		return w.outboxRepo.MarkDone(ctx, job.ID)
	}
	if err := w.feedRepo.Insert(ctx, entries); err != nil {
		return w.handleJobError(ctx, job, err)
	}

	return w.outboxRepo.MarkDone(ctx, job.ID)
}

// fanOut addresses one marketplace event to each party on the loan. The raw
// payload is carried through unchanged so feed readers see the same shape
// the domain emitted.
func fanOut(p loan.EventPayload, raw []byte) []FeedEntry {
	entries := make([]FeedEntry, 0, 2)
	if p.BorrowerID != "" {
		entries = append(entries, FeedEntry{
			RecipientRole: "borrower",
			RecipientID:   p.BorrowerID,
			Event:         p.Event,
			Payload:       raw,
		})
	}
	if p.LenderID != "" {
		entries = append(entries, FeedEntry{
			RecipientRole: "lender",
			RecipientID:   p.LenderID,
			Event:         p.Event,
			Payload:       raw,
		})
	}
	return entries
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	if job.Attempts >= w.maxAttempts {
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}
