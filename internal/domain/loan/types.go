package loan

import (
	"context"
	"time"

	"github.com/gigcredit/backend/internal/domain/credit"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDisbursed Status = "disbursed"
	StatusRepaid    Status = "repaid"
	StatusDefaulted Status = "defaulted"
	StatusCancelled Status = "cancelled"
)

type OfferStatus string

const (
	OfferOffered          OfferStatus = "offered"
	OfferAccepted         OfferStatus = "accepted"
	OfferBorrowerRejected OfferStatus = "borrower_rejected"
	OfferWithdrawn        OfferStatus = "withdrawn"
)

type RepaymentStatus string

const (
	RepaymentPendingConfirmation RepaymentStatus = "pending_confirmation"
	RepaymentConfirmed           RepaymentStatus = "confirmed"
	RepaymentRejected            RepaymentStatus = "rejected"
)

type Purpose string

const (
	PurposeMedical         Purpose = "medical"
	PurposeVehicleRepair   Purpose = "vehicle_repair"
	PurposeFamilyEmergency Purpose = "family_emergency"
	PurposeRent            Purpose = "rent"
	PurposeEquipment       Purpose = "equipment"
	PurposeEducation       Purpose = "education"
	PurposeOther           Purpose = "other"
)

func ValidPurpose(p Purpose) bool {
	switch p {
	case PurposeMedical, PurposeVehicleRepair, PurposeFamilyEmergency, PurposeRent, PurposeEquipment, PurposeEducation, PurposeOther:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
)

func ValidUrgency(u Urgency) bool {
	return u == UrgencyCritical || u == UrgencyHigh || u == UrgencyMedium
}

type PaymentMethod string

const (
	MethodUPI          PaymentMethod = "upi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodAutoDebit    PaymentMethod = "auto_debit"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	return m == MethodUPI || m == MethodBankTransfer || m == MethodCash || m == MethodAutoDebit
}

type Offer struct {
	ID                  string      `json:"id"`
	LoanID              string      `json:"loan_id"`
	LenderID            string      `json:"lender_id"`
	LenderName          string      `json:"lender_name"`
	LenderOrganization  string      `json:"lender_organization"`
	InterestRateBPS     int32       `json:"interest_rate_bps"`
	RepaymentTermMonths int32       `json:"repayment_term_months"`
	OfferedAmountMinor  int64       `json:"offered_amount_minor"`
	LenderNotes         string      `json:"lender_notes,omitempty"`
	Status              OfferStatus `json:"status"`
	OfferedAt           time.Time   `json:"offered_at"`
	RespondedAt         *time.Time  `json:"responded_at,omitempty"`
}

type RepaymentRecord struct {
	ID          string          `json:"id"`
	LoanID      string          `json:"loan_id"`
	AmountMinor int64           `json:"amount_minor"`
	Method      PaymentMethod   `json:"method"`
	Reference   string          `json:"reference,omitempty"`
	Note        string          `json:"note,omitempty"`
	Status      RepaymentStatus `json:"status"`
	ReceiptHash string          `json:"receipt_hash,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}

// Pass records a lender declining an open application. Audit only: it never
// changes loan state, it just hides the loan from that lender's open feed.
type Pass struct {
	ID        string    `json:"id"`
	LoanID    string    `json:"loan_id"`
	LenderID  string    `json:"lender_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Entity is the loan aggregate. It is the unit of mutual exclusion: every
// state-changing operation loads it, mutates it, and persists it under an
// optimistic version check scoped to this loan id.
type Entity struct {
	ID         string `json:"id"`
	BorrowerID string `json:"borrower_id"`

	AmountMinor        int64   `json:"amount_minor"`
	Purpose            Purpose `json:"purpose"`
	PurposeDescription string  `json:"purpose_description"`
	UrgencyLevel       Urgency `json:"urgency_level"`

	Status Status `json:"status"`

	// Snapshot fields, immutable once set at application time.
	CreditScoreAtApplication int32            `json:"credit_score_at_application"`
	RiskLevelAtApplication   credit.RiskLevel `json:"risk_level_at_application"`
	EligibleAmountMinor      int64            `json:"eligible_amount_minor"`

	// Accepted terms, set only by AcceptOffer.
	LenderID            string     `json:"lender_id,omitempty"`
	LenderOrganization  string     `json:"lender_organization,omitempty"`
	InterestRateBPS     int32      `json:"interest_rate_bps,omitempty"`
	RepaymentTermMonths int32      `json:"repayment_term_months,omitempty"`
	ApprovedAmountMinor int64      `json:"approved_amount_minor,omitempty"`
	MonthlyEMIMinor     int64      `json:"monthly_emi_minor,omitempty"`
	TotalRepayableMinor int64      `json:"total_repayable_minor,omitempty"`
	DueDate             *time.Time `json:"due_date,omitempty"`

	// Sum of confirmed repayment records.
	TotalRepaidMinor int64 `json:"total_repaid_minor"`

	Offers     []Offer           `json:"offers"`
	Repayments []RepaymentRecord `json:"repayment_history"`

	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	DisbursedAt *time.Time `json:"disbursed_at,omitempty"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	DefaultedAt *time.Time `json:"defaulted_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OfferByID returns a pointer into the aggregate's offer slice so callers
// mutate it in place before persisting.
func (e *Entity) OfferByID(offerID string) *Offer {
	for i := range e.Offers {
		if e.Offers[i].ID == offerID {
			return &e.Offers[i]
		}
	}
	return nil
}

func (e *Entity) RepaymentByID(recordID string) *RepaymentRecord {
	for i := range e.Repayments {
		if e.Repayments[i].ID == recordID {
			return &e.Repayments[i]
		}
	}
	return nil
}

func (e *Entity) ActiveOfferByLender(lenderID string) *Offer {
	for i := range e.Offers {
		if e.Offers[i].LenderID == lenderID && e.Offers[i].Status == OfferOffered {
			return &e.Offers[i]
		}
	}
	return nil
}

// LatestOfferByLender prefers an active offer but falls back to the most
// recent responded one; used for ownership tagging.
func (e *Entity) LatestOfferByLender(lenderID string) *Offer {
	var found *Offer
	for i := range e.Offers {
		if e.Offers[i].LenderID != lenderID {
			continue
		}
		if e.Offers[i].Status == OfferOffered {
			return &e.Offers[i]
		}
		found = &e.Offers[i]
	}
	return found
}

func (e *Entity) PendingRepayment() *RepaymentRecord {
	for i := range e.Repayments {
		if e.Repayments[i].Status == RepaymentPendingConfirmation {
			return &e.Repayments[i]
		}
	}
	return nil
}

func (e *Entity) OutstandingMinor() int64 {
	return e.TotalRepayableMinor - e.TotalRepaidMinor
}

// LenderFilter drives ListForLender. Status "pending" selects open loans the
// lender has not acted on, "offered" selects loans carrying this lender's
// active offer, "all" combines both with owned loans, and any loan status
// selects owned loans in that status.
type LenderFilter struct {
	LenderID string
	Status   string
	Limit    int32
	Offset   int32
}

// OverdueLoan is the slim read model the overdue scan works from.
type OverdueLoan struct {
	LoanID           string
	BorrowerID       string
	LenderID         string
	OutstandingMinor int64
	DueDate          time.Time
}

type LenderStats struct {
	LenderID                 string `json:"lender_id"`
	OpenPendingCount         int64  `json:"open_pending_count"`
	ActiveOfferCount         int64  `json:"active_offer_count"`
	ApprovedCount            int64  `json:"approved_count"`
	DisbursedCount           int64  `json:"disbursed_count"`
	RepaidCount              int64  `json:"repaid_count"`
	DefaultedCount           int64  `json:"defaulted_count"`
	TotalApprovedAmountMinor int64  `json:"total_approved_amount_minor"`
	TotalRepaidAmountMinor   int64  `json:"total_repaid_amount_minor"`
}

type Repository interface {
	Create(ctx context.Context, e *Entity) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	// Update persists the aggregate (loan row plus offer and repayment
	// changes) in one transaction, guarded by e.Version. Returns
	// ErrVersionConflict when another writer committed first.
	Update(ctx context.Context, e *Entity) error
	ListByBorrower(ctx context.Context, borrowerID string, limit, offset int32) ([]Entity, error)
	ListForLender(ctx context.Context, f LenderFilter) ([]Entity, error)
	RecordPass(ctx context.Context, p Pass) error
	HasPassed(ctx context.Context, loanID, lenderID string) (bool, error)
	LenderStats(ctx context.Context, lenderID string) (*LenderStats, error)
	ListOverdue(ctx context.Context, asOf time.Time, limit int32) ([]OverdueLoan, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}
