package loan

import "math"

// MonthlyEMIMinorUnits computes the equated monthly installment in minor
// units for an amortizing loan: EMI = P*r*(1+r)^n / ((1+r)^n - 1), with
// r the monthly rate derived from the annual rate in basis points. Rounded
// half away from zero to a whole minor unit, which keeps the result
// identical across repeated calls for the same terms.
//
// A zero rate degenerates the formula, so it falls back to straight
// division of principal over the term.
func MonthlyEMIMinorUnits(principalMinor int64, annualRateBPS int32, termMonths int32) int64 {
	if principalMinor <= 0 || termMonths <= 0 {
		return 0
	}
	if annualRateBPS == 0 {
		return int64(math.Round(float64(principalMinor) / float64(termMonths)))
	}
	r := float64(annualRateBPS) / 10000 / 12
	pow := math.Pow(1+r, float64(termMonths))
	emi := float64(principalMinor) * r * pow / (pow - 1)
	return int64(math.Round(emi))
}

// TotalRepayableMinorUnits is what the borrower owes under the accepted
// terms: the rounded EMI times the term, so the ledger settles on an exact
// multiple of the installment.
func TotalRepayableMinorUnits(emiMinor int64, termMonths int32) int64 {
	return emiMinor * int64(termMonths)
}
