package loan

// Ownership is a derived, per-lender relationship to a loan. It is never
// persisted: it is always recomputed from the authoritative offer and loan
// states so it cannot drift from them.
type Ownership string

const (
	OwnershipOpen      Ownership = "open"       // lender has not acted on this loan
	OwnershipOfferSent Ownership = "offer_sent" // lender has an offer on record
	OwnershipYours     Ownership = "yours"      // borrower accepted this lender's offer
)

// OwnershipFor tags a loan from one lender's point of view and returns that
// lender's most relevant offer, if any.
func OwnershipFor(lenderID string, e *Entity) (Ownership, *Offer) {
	my := e.LatestOfferByLender(lenderID)
	if e.LenderID == lenderID {
		return OwnershipYours, my
	}
	if my != nil {
		return OwnershipOfferSent, my
	}
	return OwnershipOpen, nil
}
