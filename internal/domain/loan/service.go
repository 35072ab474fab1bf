package loan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigcredit/backend/internal/domain/credit"
)

const maxPurposeDescriptionLen = 500

type Service struct {
	loanRepo   Repository
	snapshots  credit.SnapshotProvider
	outboxRepo OutboxRepository
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

func NewService(loanRepo Repository, snapshots credit.SnapshotProvider, outboxRepo OutboxRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loanRepo:   loanRepo,
		snapshots:  snapshots,
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.NewString() },
	}
}

type ApplyInput struct {
	AmountMinor        int64   `json:"amount_minor"`
	Purpose            Purpose `json:"purpose"`
	PurposeDescription string  `json:"purpose_description"`
	UrgencyLevel       Urgency `json:"urgency_level"`
}

// GetEligibility evaluates the borrower's current credit snapshot. Read only.
func (s *Service) GetEligibility(ctx context.Context, borrowerID string) (*credit.Eligibility, error) {
	snap, err := s.snapshots.Latest(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, credit.ErrNoSnapshot) {
			out := credit.Eligibility{
				RiskLevel: credit.RiskHigh,
				Reasons:   []string{"no credit profile found, complete credit analysis first"},
			}
			return &out, nil
		}
		return nil, Internal(err)
	}
	out := credit.Evaluate(*snap)
	return &out, nil
}

// Apply creates a loan in pending with immutable snapshot fields captured
// from a fresh eligibility evaluation. No partial loan is created on failure.
func (s *Service) Apply(ctx context.Context, borrowerID string, in ApplyInput) (*Entity, error) {
	if strings.TrimSpace(borrowerID) == "" {
		return nil, Validationf("missing_borrower_id", "borrower id is required")
	}
	if !ValidPurpose(in.Purpose) {
		return nil, Validationf("invalid_purpose", "purpose %q is not a recognized category", in.Purpose)
	}
	desc := strings.TrimSpace(in.PurposeDescription)
	if desc == "" {
		return nil, Validationf("missing_purpose_description", "purpose description is required")
	}
	if len(desc) > maxPurposeDescriptionLen {
		return nil, Validationf("purpose_description_too_long", "purpose description exceeds %d characters", maxPurposeDescriptionLen)
	}
	if !ValidUrgency(in.UrgencyLevel) {
		return nil, Validationf("invalid_urgency_level", "urgency level %q is not recognized", in.UrgencyLevel)
	}
	if in.AmountMinor < credit.MinLoanAmountMinor() {
		return nil, Validationf("amount_below_minimum", "minimum loan amount is %d minor units", credit.MinLoanAmountMinor())
	}

	snap, err := s.snapshots.Latest(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, credit.ErrNoSnapshot) {
			return nil, Ineligible([]string{"no credit profile found, complete credit analysis first"})
		}
		return nil, Internal(err)
	}
	elig := credit.Evaluate(*snap)
	if !elig.Eligible {
		return nil, Ineligible(elig.Reasons)
	}
	if in.AmountMinor > elig.MaxAmountMinor {
		return nil, Validationf("amount_exceeds_eligible", "requested amount %d exceeds eligible maximum %d", in.AmountMinor, elig.MaxAmountMinor)
	}

	now := s.now()
	created, err := s.loanRepo.Create(ctx, &Entity{
		ID:                       s.newID(),
		BorrowerID:               borrowerID,
		AmountMinor:              in.AmountMinor,
		Purpose:                  in.Purpose,
		PurposeDescription:       desc,
		UrgencyLevel:             in.UrgencyLevel,
		Status:                   StatusPending,
		CreditScoreAtApplication: elig.CreditScore,
		RiskLevelAtApplication:   elig.RiskLevel,
		EligibleAmountMinor:      elig.MaxAmountMinor,
		Offers:                   []Offer{},
		Repayments:               []RepaymentRecord{},
		CreatedAt:                now,
		UpdatedAt:                now,
	})
	if err != nil {
		return nil, Internal(err)
	}
	return created, nil
}

func (s *Service) ListBorrowerLoans(ctx context.Context, borrowerID string, limit, offset int32) ([]Entity, error) {
	items, err := s.loanRepo.ListByBorrower(ctx, borrowerID, limit, offset)
	if err != nil {
		return nil, Internal(err)
	}
	return items, nil
}

// GetLoan returns the aggregate if the caller is the borrower, a lender with
// an offer on record, or any lender while the loan is still open.
func (s *Service) GetLoan(ctx context.Context, callerID string, loanID string) (*Entity, error) {
	e, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if e.BorrowerID == callerID || e.LenderID == callerID || e.Status == StatusPending {
		return e, nil
	}
	if e.LatestOfferByLender(callerID) != nil {
		return e, nil
	}
	return nil, NotFound("loan_not_found")
}

// Cancel withdraws a pending application. Any offers still open are closed as
// borrower_rejected in the same step.
func (s *Service) Cancel(ctx context.Context, borrowerID, loanID string) (*Entity, error) {
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.BorrowerID != borrowerID {
			return NotFound("loan_not_found")
		}
		if e.Status == StatusCancelled {
			return AlreadyInState(StatusCancelled)
		}
		if e.Status != StatusPending {
			return Preconditionf("loan_not_pending", "only pending applications can be cancelled, loan is %s", e.Status)
		}
		now := s.now()
		for i := range e.Offers {
			if e.Offers[i].Status == OfferOffered {
				e.Offers[i].Status = OfferBorrowerRejected
				e.Offers[i].RespondedAt = &now
			}
		}
		e.Status = StatusCancelled
		e.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventLoanCancelled, LoanID: e.ID, BorrowerID: e.BorrowerID})
	return e, nil
}

func (s *Service) getLoan(ctx context.Context, loanID string) (*Entity, error) {
	if strings.TrimSpace(loanID) == "" {
		return nil, Validationf("missing_loan_id", "loan id is required")
	}
	e, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, ErrLoanNotFound) {
			return nil, NotFound("loan_not_found")
		}
		return nil, Internal(err)
	}
	return e, nil
}

// mutate runs fn against the freshly loaded aggregate and persists it under
// the loan's version. A version conflict means another writer won the race;
// the preconditions are re-checked once against fresh state, and a second
// conflict is surfaced as such rather than retried forever.
func (s *Service) mutate(ctx context.Context, loanID string, fn func(*Entity) error) (*Entity, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		e, err := s.getLoan(ctx, loanID)
		if err != nil {
			return nil, err
		}
		if err := fn(e); err != nil {
			return nil, err
		}
		e.UpdatedAt = s.now()
		err = s.loanRepo.Update(ctx, e)
		if err == nil {
			e.Version++
			return e, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, Internal(err)
		}
		lastErr = err
	}
	return nil, Conflictf("loan %s was modified concurrently: %v", loanID, lastErr)
}

// ErrLoanNotFound is returned by repositories when no loan row matches.
var ErrLoanNotFound = errors.New("loan_not_found")
