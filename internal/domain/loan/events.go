package loan

import (
	"context"
	"encoding/json"
	"time"
)

// Outbox topic for marketplace notifications. The worker fans each event out
// to the recipients named in the payload.
const OutboxTopicNotify = "marketplace_notify"

const (
	EventOfferReceived    = "offer_received"
	EventOfferAccepted    = "offer_accepted"
	EventOfferRejected    = "offer_rejected"
	EventOfferWithdrawn   = "offer_withdrawn"
	EventLoanCancelled    = "loan_cancelled"
	EventLoanDisbursed    = "loan_disbursed"
	EventPaymentSubmitted = "payment_submitted"
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentRejected  = "payment_rejected"
	EventLoanRepaid       = "loan_repaid"
	EventLoanDefaulted    = "loan_defaulted"
	EventLoanOverdue      = "loan_overdue"
)

type EventPayload struct {
	Event       string    `json:"event"`
	LoanID      string    `json:"loan_id"`
	BorrowerID  string    `json:"borrower_id"`
	LenderID    string    `json:"lender_id,omitempty"`
	OfferID     string    `json:"offer_id,omitempty"`
	RecordID    string    `json:"record_id,omitempty"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// notify enqueues a marketplace event for the worker to fan out. It runs
// after the versioned update has committed, so a failed enqueue must not fail
// the request; the event is logged and dropped instead.
func (s *Service) notify(ctx context.Context, p EventPayload) {
	p.OccurredAt = s.now()
	payload, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("dropping notification event", "event", p.Event, "loan_id", p.LoanID, "err", err)
		return
	}
	if err := s.outboxRepo.Enqueue(ctx, OutboxTopicNotify, payload); err != nil {
		s.logger.Error("dropping notification event", "event", p.Event, "loan_id", p.LoanID, "err", err)
	}
}
