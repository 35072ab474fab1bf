package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	loandomain "github.com/gigcredit/backend/internal/domain/loan"
	"github.com/gigcredit/backend/internal/jobs"
)

type fakeOverdueLister struct {
	loans []loandomain.OverdueLoan
}

func (f *fakeOverdueLister) ListOverdue(_ context.Context, _ time.Time, _ int32) ([]loandomain.OverdueLoan, error) {
	return f.loans, nil
}

type fakeEnqueuer struct {
	topics   []string
	payloads [][]byte
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, topic string, payload []byte) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestOverdueScanEmitsReminderEvents(t *testing.T) {
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	lister := &fakeOverdueLister{loans: []loandomain.OverdueLoan{
		{LoanID: "loan-1", BorrowerID: "b-1", LenderID: "l-1", OutstandingMinor: 250_000, DueDate: due},
		{LoanID: "loan-2", BorrowerID: "b-2", LenderID: "l-2", OutstandingMinor: 90_000, DueDate: due},
	}}
	outbox := &fakeEnqueuer{}
	scanner := jobs.NewOverdueScanner(lister, outbox)

	emitted, err := scanner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if emitted != 2 || len(outbox.topics) != 2 {
		t.Fatalf("expected two reminders, got %d", emitted)
	}
	for _, topic := range outbox.topics {
		if topic != loandomain.OutboxTopicNotify {
			t.Fatalf("unexpected topic: %s", topic)
		}
	}

	var payload loandomain.EventPayload
	if err := json.Unmarshal(outbox.payloads[0], &payload); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if payload.Event != loandomain.EventLoanOverdue || payload.LoanID != "loan-1" || payload.AmountMinor != 250_000 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestOverdueScanQuietWhenNothingDue(t *testing.T) {
	outbox := &fakeEnqueuer{}
	scanner := jobs.NewOverdueScanner(&fakeOverdueLister{}, outbox)

	emitted, err := scanner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if emitted != 0 || len(outbox.topics) != 0 {
		t.Fatalf("expected no events, got %d", emitted)
	}
}
