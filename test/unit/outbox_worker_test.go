package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	loandomain "github.com/gigcredit/backend/internal/domain/loan"
	"github.com/gigcredit/backend/internal/jobs"
)

type fakeOutboxRepo struct {
	jobs      []jobs.OutboxJob
	doneIDs   []int64
	retryIDs  []int64
	failedIDs []int64
}

func (r *fakeOutboxRepo) ClaimPending(_ context.Context, _ int32) ([]jobs.OutboxJob, error) {
	return r.jobs, nil
}

func (r *fakeOutboxRepo) MarkDone(_ context.Context, jobID int64) error {
	r.doneIDs = append(r.doneIDs, jobID)
	return nil
}

func (r *fakeOutboxRepo) MarkRetry(_ context.Context, jobID int64, _ time.Time, _ string) error {
	r.retryIDs = append(r.retryIDs, jobID)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, jobID int64, _ string) error {
	r.failedIDs = append(r.failedIDs, jobID)
	return nil
}

type fakeFeedRepo struct {
	entries []jobs.FeedEntry
	err     error
}

func (r *fakeFeedRepo) Insert(_ context.Context, entries []jobs.FeedEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entries...)
	return nil
}

func notifyJob(id int64, attempts int32) jobs.OutboxJob {
	return jobs.OutboxJob{
		ID:       id,
		Topic:    loandomain.OutboxTopicNotify,
		Attempts: attempts,
		Payload:  []byte(`{"event":"offer_received","loan_id":"loan-1","borrower_id":"b-1","lender_id":"l-1"}`),
	}
}

func TestWorkerFansOutToBothParties(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{notifyJob(1, 1)}}
	feed := &fakeFeedRepo{}
	worker := jobs.NewWorker(outbox, feed)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.doneIDs) != 1 || outbox.doneIDs[0] != 1 {
		t.Fatalf("expected job marked done")
	}
	if len(feed.entries) != 2 {
		t.Fatalf("expected borrower and lender entries, got %d", len(feed.entries))
	}
	roles := map[string]string{}
	for _, e := range feed.entries {
		roles[e.RecipientRole] = e.RecipientID
		if e.Event != "offer_received" {
			t.Fatalf("unexpected event: %s", e.Event)
		}
	}
	if roles["borrower"] != "b-1" || roles["lender"] != "l-1" {
		t.Fatalf("unexpected recipients: %v", roles)
	}
}

func TestWorkerBorrowerOnlyEvent(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{{
		ID:       2,
		Topic:    loandomain.OutboxTopicNotify,
		Attempts: 1,
		Payload:  []byte(`{"event":"loan_cancelled","loan_id":"loan-1","borrower_id":"b-1"}`),
	}}}
	feed := &fakeFeedRepo{}
	worker := jobs.NewWorker(outbox, feed)

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(feed.entries) != 1 || feed.entries[0].RecipientRole != "borrower" {
		t.Fatalf("expected a single borrower entry, got %+v", feed.entries)
	}
}

func TestWorkerRetryOnFeedError(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{notifyJob(3, 1)}}
	worker := jobs.NewWorker(outbox, &fakeFeedRepo{err: errors.New("db down")})

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.retryIDs) != 1 || outbox.retryIDs[0] != 3 {
		t.Fatalf("expected job marked retry")
	}
}

func TestWorkerTerminalFailureAfterMaxAttempts(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{notifyJob(9, 5)}}
	worker := jobs.NewWorker(outbox, &fakeFeedRepo{err: errors.New("db down")})

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.failedIDs) != 1 || outbox.failedIDs[0] != 9 {
		t.Fatalf("expected job marked failed")
	}
}

func TestWorkerInvalidPayloadRetries(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{{
		ID:       4,
		Topic:    loandomain.OutboxTopicNotify,
		Attempts: 1,
		Payload:  []byte(`not-json`),
	}}}
	worker := jobs.NewWorker(outbox, &fakeFeedRepo{})

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.retryIDs) != 1 {
		t.Fatalf("expected invalid payload to retry")
	}
}

func TestWorkerUnsupportedTopic(t *testing.T) {
	outbox := &fakeOutboxRepo{jobs: []jobs.OutboxJob{{ID: 5, Topic: "mystery", Attempts: 5}}}
	worker := jobs.NewWorker(outbox, &fakeFeedRepo{})

	if err := worker.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(outbox.failedIDs) != 1 || outbox.failedIDs[0] != 5 {
		t.Fatalf("expected unsupported topic to fail terminally")
	}
}
