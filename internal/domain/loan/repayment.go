package loan

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Disburse releases the approved amount. Legal only for the accepted lender
// while the loan is approved.
func (s *Service) Disburse(ctx context.Context, lenderID, loanID string) (*Entity, error) {
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.LenderID != lenderID {
			return Preconditionf("not_loan_owner", "only the accepted lender can disburse this loan")
		}
		if e.Status == StatusDisbursed {
			return AlreadyInState(StatusDisbursed)
		}
		if e.Status != StatusApproved {
			return Preconditionf("loan_not_approved", "loan must be approved before disbursal, loan is %s", e.Status)
		}
		now := s.now()
		e.Status = StatusDisbursed
		e.DisbursedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventLoanDisbursed, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: lenderID, AmountMinor: e.ApprovedAmountMinor})
	return e, nil
}

type SubmitPaymentInput struct {
	AmountMinor int64         `json:"amount_minor"`
	Method      PaymentMethod `json:"method"`
	Reference   string        `json:"reference"`
	Note        string        `json:"note"`
}

// SubmitPayment records a borrower installment as pending_confirmation. It
// does not touch totals: only the lender's confirmation moves money.
func (s *Service) SubmitPayment(ctx context.Context, borrowerID, loanID string, in SubmitPaymentInput) (*Entity, error) {
	if in.AmountMinor <= 0 {
		return nil, Validationf("invalid_amount", "payment amount must be positive")
	}
	method := in.Method
	if method == "" {
		method = MethodBankTransfer
	}
	if !ValidPaymentMethod(method) {
		return nil, Validationf("invalid_payment_method", "payment method %q is not recognized", in.Method)
	}

	var recordID string
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.BorrowerID != borrowerID {
			return NotFound("loan_not_found")
		}
		if e.Status != StatusDisbursed {
			return Preconditionf("loan_not_disbursed", "repayments are only accepted on disbursed loans, loan is %s", e.Status)
		}
		if e.PendingRepayment() != nil {
			return Preconditionf("payment_pending_confirmation", "a payment is already awaiting lender confirmation")
		}
		if in.AmountMinor > e.OutstandingMinor() {
			return Validationf("amount_exceeds_outstanding", "payment %d exceeds outstanding balance %d", in.AmountMinor, e.OutstandingMinor())
		}
		recordID = s.newID()
		e.Repayments = append(e.Repayments, RepaymentRecord{
			ID:          recordID,
			LoanID:      e.ID,
			AmountMinor: in.AmountMinor,
			Method:      method,
			Reference:   strings.TrimSpace(in.Reference),
			Note:        strings.TrimSpace(in.Note),
			Status:      RepaymentPendingConfirmation,
			SubmittedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventPaymentSubmitted, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: e.LenderID, RecordID: recordID, AmountMinor: in.AmountMinor})
	return e, nil
}

// ConfirmPayment moves a pending record to confirmed and credits the ledger.
// When the confirmation settles the full amount the loan transitions to
// repaid in the same atomic step, so there is no window where the ledger is
// settled but the loan still reads disbursed.
func (s *Service) ConfirmPayment(ctx context.Context, lenderID, loanID, recordID string) (*Entity, error) {
	var settled bool
	var amount int64
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.LenderID != lenderID {
			return Preconditionf("not_loan_owner", "only the accepted lender can confirm payments")
		}
		if e.Status != StatusDisbursed {
			return Preconditionf("loan_not_disbursed", "loan is not in disbursed state, loan is %s", e.Status)
		}
		rec := e.RepaymentByID(recordID)
		if rec == nil {
			return NotFound("payment_not_found")
		}
		if rec.Status != RepaymentPendingConfirmation {
			return Preconditionf("payment_not_pending", "payment is already %s", rec.Status)
		}
		now := s.now()
		rec.Status = RepaymentConfirmed
		rec.ConfirmedAt = &now
		rec.ReceiptHash = repaymentReceipt(e.ID, rec.ID, rec.AmountMinor)
		e.TotalRepaidMinor += rec.AmountMinor
		amount = rec.AmountMinor
		if e.TotalRepaidMinor >= e.TotalRepayableMinor {
			e.Status = StatusRepaid
			e.SettledAt = &now
			settled = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventPaymentConfirmed, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: lenderID, RecordID: recordID, AmountMinor: amount})
	if settled {
		s.notify(ctx, EventPayload{Event: EventLoanRepaid, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: lenderID})
	}
	return e, nil
}

// RejectPayment voids a pending record without touching totals, freeing the
// borrower to submit again.
func (s *Service) RejectPayment(ctx context.Context, lenderID, loanID, recordID, reason string) (*Entity, error) {
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.LenderID != lenderID {
			return Preconditionf("not_loan_owner", "only the accepted lender can reject payments")
		}
		rec := e.RepaymentByID(recordID)
		if rec == nil {
			return NotFound("payment_not_found")
		}
		if rec.Status != RepaymentPendingConfirmation {
			return Preconditionf("payment_not_pending", "payment is already %s", rec.Status)
		}
		rec.Status = RepaymentRejected
		if reason = strings.TrimSpace(reason); reason != "" {
			rec.Note = strings.TrimSpace(rec.Note + " [rejected: " + reason + "]")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventPaymentRejected, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: lenderID, RecordID: recordID})
	return e, nil
}

// MarkDefault is an explicit lender decision on a disbursed loan. There is
// no automatic timer: the overdue scan only emits reminders.
func (s *Service) MarkDefault(ctx context.Context, lenderID, loanID string) (*Entity, error) {
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.LenderID != lenderID {
			return Preconditionf("not_loan_owner", "only the accepted lender can default this loan")
		}
		if e.Status == StatusDefaulted {
			return AlreadyInState(StatusDefaulted)
		}
		if e.Status != StatusDisbursed {
			return Preconditionf("loan_not_disbursed", "only disbursed loans can be defaulted, loan is %s", e.Status)
		}
		now := s.now()
		e.Status = StatusDefaulted
		e.DefaultedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventLoanDefaulted, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: lenderID})
	return e, nil
}

// repaymentReceipt derives an audit fingerprint for a confirmed installment.
func repaymentReceipt(loanID, recordID string, amountMinor int64) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%s:%d", loanID, recordID, amountMinor)))
	return hex.EncodeToString(h.Sum(nil))
}
