package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gigcredit/backend/internal/domain/loan"
)

type OverdueLister interface {
	ListOverdue(ctx context.Context, asOf time.Time, limit int32) ([]loan.OverdueLoan, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

// OverdueScanner enqueues reminder events for disbursed loans past their due
// date with money still outstanding. It never changes loan state; marking a
// default stays an explicit lender action.
type OverdueScanner struct {
	loans     OverdueLister
	outbox    Enqueuer
	batchSize int32
	now       func() time.Time
}

func NewOverdueScanner(loans OverdueLister, outbox Enqueuer) *OverdueScanner {
	return &OverdueScanner{
		loans:     loans,
		outbox:    outbox,
		batchSize: 200,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *OverdueScanner) RunOnce(ctx context.Context) (int, error) {
	asOf := s.now()
	overdue, err := s.loans.ListOverdue(ctx, asOf, s.batchSize)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, o := range overdue {
		payload, err := json.Marshal(loan.EventPayload{
			Event:       loan.EventLoanOverdue,
			LoanID:      o.LoanID,
			BorrowerID:  o.BorrowerID,
			LenderID:    o.LenderID,
			AmountMinor: o.OutstandingMinor,
			OccurredAt:  asOf,
		})
		if err != nil {
			return emitted, err
		}
		if err := s.outbox.Enqueue(ctx, loan.OutboxTopicNotify, payload); err != nil {
			return emitted, err
		}
		emitted++
	}
	return emitted, nil
}
