package unit

import (
	"testing"

	loandomain "github.com/gigcredit/backend/internal/domain/loan"
)

func TestOwnershipFor(t *testing.T) {
	e := &loandomain.Entity{
		ID:         "loan-1",
		BorrowerID: "borrower-1",
		Status:     loandomain.StatusPending,
		Offers: []loandomain.Offer{
			{ID: "o1", LenderID: "lender-1", Status: loandomain.OfferOffered},
			{ID: "o2", LenderID: "lender-2", Status: loandomain.OfferWithdrawn},
		},
	}

	ownership, offer := loandomain.OwnershipFor("lender-1", e)
	if ownership != loandomain.OwnershipOfferSent || offer == nil || offer.ID != "o1" {
		t.Fatalf("expected offer_sent with o1, got %s %+v", ownership, offer)
	}

	// A withdrawn offer still counts as having acted on the loan.
	ownership, offer = loandomain.OwnershipFor("lender-2", e)
	if ownership != loandomain.OwnershipOfferSent || offer == nil || offer.ID != "o2" {
		t.Fatalf("expected offer_sent with o2, got %s %+v", ownership, offer)
	}

	ownership, offer = loandomain.OwnershipFor("lender-3", e)
	if ownership != loandomain.OwnershipOpen || offer != nil {
		t.Fatalf("expected open, got %s %+v", ownership, offer)
	}
}

func TestOwnershipYoursAfterAcceptance(t *testing.T) {
	e := &loandomain.Entity{
		ID:         "loan-1",
		BorrowerID: "borrower-1",
		Status:     loandomain.StatusApproved,
		LenderID:   "lender-1",
		Offers: []loandomain.Offer{
			{ID: "o1", LenderID: "lender-1", Status: loandomain.OfferAccepted},
			{ID: "o2", LenderID: "lender-2", Status: loandomain.OfferBorrowerRejected},
		},
	}

	ownership, offer := loandomain.OwnershipFor("lender-1", e)
	if ownership != loandomain.OwnershipYours || offer == nil || offer.Status != loandomain.OfferAccepted {
		t.Fatalf("expected yours with accepted offer, got %s %+v", ownership, offer)
	}

	ownership, _ = loandomain.OwnershipFor("lender-2", e)
	if ownership != loandomain.OwnershipOfferSent {
		t.Fatalf("losing lender should read offer_sent, got %s", ownership)
	}
}
