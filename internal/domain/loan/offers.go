package loan

import (
	"context"
	"strings"
)

const (
	minRepaymentTermMonths = 1
	maxRepaymentTermMonths = 60
	maxInterestRateBPS     = 10000 // 100% p.a.
)

type MakeOfferInput struct {
	LenderID            string `json:"-"`
	LenderName          string `json:"-"`
	LenderOrganization  string `json:"-"`
	InterestRateBPS     int32  `json:"interest_rate_bps"`
	RepaymentTermMonths int32  `json:"repayment_term_months"`
	OfferedAmountMinor  int64  `json:"offered_amount_minor"`
	LenderNotes         string `json:"lender_notes"`
}

// MakeOffer attaches a competing offer to an open loan. EMI is not computed
// here: only the accepted terms matter financially, so it is derived at
// acceptance time.
func (s *Service) MakeOffer(ctx context.Context, loanID string, in MakeOfferInput) (*Entity, error) {
	if strings.TrimSpace(in.LenderID) == "" {
		return nil, Validationf("missing_lender_id", "lender id is required")
	}
	if in.InterestRateBPS < 0 || in.InterestRateBPS > maxInterestRateBPS {
		return nil, Validationf("invalid_interest_rate", "interest rate must be between 0 and %d bps", maxInterestRateBPS)
	}
	if in.RepaymentTermMonths < minRepaymentTermMonths || in.RepaymentTermMonths > maxRepaymentTermMonths {
		return nil, Validationf("invalid_repayment_term", "repayment term must be between %d and %d months", minRepaymentTermMonths, maxRepaymentTermMonths)
	}
	if in.OfferedAmountMinor < 0 {
		return nil, Validationf("invalid_offered_amount", "offered amount must be positive")
	}

	var offerID string
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.Status != StatusPending {
			return Preconditionf("loan_not_pending", "offers are only accepted on pending loans, loan is %s", e.Status)
		}
		if e.ActiveOfferByLender(in.LenderID) != nil {
			return Preconditionf("duplicate_offer", "lender already has an active offer on this loan")
		}
		amount := in.OfferedAmountMinor
		if amount == 0 {
			amount = e.AmountMinor
		}
		offerID = s.newID()
		e.Offers = append(e.Offers, Offer{
			ID:                  offerID,
			LoanID:              e.ID,
			LenderID:            in.LenderID,
			LenderName:          in.LenderName,
			LenderOrganization:  in.LenderOrganization,
			InterestRateBPS:     in.InterestRateBPS,
			RepaymentTermMonths: in.RepaymentTermMonths,
			OfferedAmountMinor:  amount,
			LenderNotes:         strings.TrimSpace(in.LenderNotes),
			Status:              OfferOffered,
			OfferedAt:           s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventOfferReceived, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: in.LenderID, OfferID: offerID})
	return e, nil
}

// Pass declines without creating an offer. The loan itself is untouched; the
// pass is recorded so the loan drops out of this lender's open feed.
func (s *Service) Pass(ctx context.Context, loanID, lenderID, reason string) error {
	e, err := s.getLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if e.Status != StatusPending {
		return Preconditionf("loan_not_pending", "only pending loans can be passed on, loan is %s", e.Status)
	}
	passed, err := s.loanRepo.HasPassed(ctx, loanID, lenderID)
	if err != nil {
		return Internal(err)
	}
	if passed {
		return Preconditionf("already_passed", "lender already passed on this loan")
	}
	if err := s.loanRepo.RecordPass(ctx, Pass{
		ID:        s.newID(),
		LoanID:    loanID,
		LenderID:  lenderID,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.now(),
	}); err != nil {
		return Internal(err)
	}
	return nil
}

func (s *Service) WithdrawOffer(ctx context.Context, loanID, lenderID string) (*Entity, error) {
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		offer := e.ActiveOfferByLender(lenderID)
		if offer == nil {
			return Preconditionf("no_active_offer", "lender has no active offer to withdraw")
		}
		now := s.now()
		offer.Status = OfferWithdrawn
		offer.RespondedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventOfferWithdrawn, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: lenderID})
	return e, nil
}

// AcceptOffer is the critical atomic step of the marketplace: the named
// offer becomes accepted, every other open offer on the loan becomes
// borrower_rejected, the accepted terms (EMI, total repayable, due date) are
// fixed on the loan, and the loan moves to approved. All of it commits under
// one version check, so no observer can see two accepted offers or an
// approved loan with a still-open offer.
func (s *Service) AcceptOffer(ctx context.Context, borrowerID, loanID, offerID string) (*Entity, error) {
	var acceptedLender string
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.BorrowerID != borrowerID {
			return NotFound("loan_not_found")
		}
		if e.Status != StatusPending {
			if e.Status == StatusApproved {
				return AlreadyInState(StatusApproved)
			}
			return Preconditionf("loan_not_pending", "this loan has already been finalized, loan is %s", e.Status)
		}
		offer := e.OfferByID(offerID)
		if offer == nil {
			return NotFound("offer_not_found")
		}
		if offer.Status != OfferOffered {
			return Preconditionf("offer_not_open", "cannot accept an offer with status %s", offer.Status)
		}

		now := s.now()
		offer.Status = OfferAccepted
		offer.RespondedAt = &now
		for i := range e.Offers {
			if e.Offers[i].ID != offerID && e.Offers[i].Status == OfferOffered {
				e.Offers[i].Status = OfferBorrowerRejected
				e.Offers[i].RespondedAt = &now
			}
		}

		emi := MonthlyEMIMinorUnits(offer.OfferedAmountMinor, offer.InterestRateBPS, offer.RepaymentTermMonths)
		due := now.AddDate(0, int(offer.RepaymentTermMonths), 0)

		e.Status = StatusApproved
		e.LenderID = offer.LenderID
		e.LenderOrganization = offer.LenderOrganization
		e.InterestRateBPS = offer.InterestRateBPS
		e.RepaymentTermMonths = offer.RepaymentTermMonths
		e.ApprovedAmountMinor = offer.OfferedAmountMinor
		e.MonthlyEMIMinor = emi
		e.TotalRepayableMinor = TotalRepayableMinorUnits(emi, offer.RepaymentTermMonths)
		e.DueDate = &due
		e.ApprovedAt = &now
		acceptedLender = offer.LenderID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventOfferAccepted, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: acceptedLender, OfferID: offerID})
	return e, nil
}

// RejectOffer declines a single offer. The loan stays pending and open to
// the remaining offers.
func (s *Service) RejectOffer(ctx context.Context, borrowerID, loanID, offerID string) (*Entity, error) {
	var rejectedLender string
	e, err := s.mutate(ctx, loanID, func(e *Entity) error {
		if e.BorrowerID != borrowerID {
			return NotFound("loan_not_found")
		}
		if e.Status != StatusPending {
			return Preconditionf("loan_not_pending", "this loan has already been finalized, loan is %s", e.Status)
		}
		offer := e.OfferByID(offerID)
		if offer == nil {
			return NotFound("offer_not_found")
		}
		if offer.Status != OfferOffered {
			return Preconditionf("offer_not_open", "cannot reject an offer with status %s", offer.Status)
		}
		now := s.now()
		offer.Status = OfferBorrowerRejected
		offer.RespondedAt = &now
		rejectedLender = offer.LenderID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventPayload{Event: EventOfferRejected, LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: rejectedLender, OfferID: offerID})
	return e, nil
}

// TaggedLoan is a lender-scoped read model: the loan plus the derived
// ownership view and this lender's own offer.
type TaggedLoan struct {
	Entity
	Ownership     Ownership   `json:"ownership"`
	MyOfferStatus OfferStatus `json:"my_offer_status,omitempty"`
	MyOffer       *Offer      `json:"my_offer,omitempty"`
}

func (s *Service) ListApplications(ctx context.Context, f LenderFilter) ([]TaggedLoan, error) {
	if strings.TrimSpace(f.LenderID) == "" {
		return nil, Validationf("missing_lender_id", "lender id is required")
	}
	items, err := s.loanRepo.ListForLender(ctx, f)
	if err != nil {
		return nil, Internal(err)
	}
	out := make([]TaggedLoan, 0, len(items))
	for i := range items {
		ownership, myOffer := OwnershipFor(f.LenderID, &items[i])
		tagged := TaggedLoan{Entity: items[i], Ownership: ownership}
		if myOffer != nil {
			cp := *myOffer
			tagged.MyOffer = &cp
			tagged.MyOfferStatus = cp.Status
		}
		out = append(out, tagged)
	}
	return out, nil
}

func (s *Service) LenderStats(ctx context.Context, lenderID string) (*LenderStats, error) {
	if strings.TrimSpace(lenderID) == "" {
		return nil, Validationf("missing_lender_id", "lender id is required")
	}
	stats, err := s.loanRepo.LenderStats(ctx, lenderID)
	if err != nil {
		return nil, Internal(err)
	}
	return stats, nil
}
