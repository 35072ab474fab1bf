package credit

import "fmt"

const (
	minEligibleScore = 400

	// Amounts are minor units (paise).
	minLoanAmountMinor = 100_000    // ₹1,000
	tierExcellentCap   = 50_000_000 // ₹5,00,000
	tierGoodCap        = 30_000_000 // ₹3,00,000
	tierFairCap        = 15_000_000 // ₹1,50,000
	tierLowCap         = 5_000_000  // ₹50,000
)

type Eligibility struct {
	Eligible         bool      `json:"eligible"`
	MaxAmountMinor   int64     `json:"max_amount_minor"`
	SuggestedRateBPS int32     `json:"suggested_interest_rate_bps"`
	CreditScore      int32     `json:"credit_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Reasons          []string  `json:"reasons"`
}

// Evaluate maps a credit snapshot to a lending decision. Pure and
// deterministic: identical snapshots always produce identical output.
func Evaluate(s Snapshot) Eligibility {
	out := Eligibility{
		CreditScore: s.CreditScore,
		RiskLevel:   s.RiskLevel,
		Reasons:     []string{},
	}

	if s.CreditScore < minEligibleScore {
		out.Reasons = append(out.Reasons, fmt.Sprintf("credit score (%d) is below minimum threshold of %d", s.CreditScore, minEligibleScore))
	}
	if s.RiskLevel == RiskHigh {
		out.Reasons = append(out.Reasons, "risk tier too high")
	}
	if len(out.Reasons) > 0 {
		return out
	}

	out.Eligible = true
	income := s.Financials.MonthlyAvgIncomeMinor

	switch {
	case s.CreditScore >= 750:
		out.MaxAmountMinor = min64(income*5, tierExcellentCap)
		out.SuggestedRateBPS = 800
		out.Reasons = append(out.Reasons, "excellent credit score, highest loan tier eligible")
	case s.CreditScore >= 650:
		out.MaxAmountMinor = min64(income*3, tierGoodCap)
		out.SuggestedRateBPS = 1200
		out.Reasons = append(out.Reasons, "good credit score, standard loan tier eligible")
	case s.CreditScore >= 500:
		out.MaxAmountMinor = min64(income*2, tierFairCap)
		out.SuggestedRateBPS = 1600
		out.Reasons = append(out.Reasons, "fair credit score, basic loan tier eligible")
	default:
		out.MaxAmountMinor = min64(income, tierLowCap)
		out.SuggestedRateBPS = 2000
		out.Reasons = append(out.Reasons, "low credit score, emergency-only tier eligible")
	}

	if out.MaxAmountMinor < minLoanAmountMinor {
		out.MaxAmountMinor = minLoanAmountMinor
	}
	// Round to the nearest ₹100.
	out.MaxAmountMinor = (out.MaxAmountMinor + 5_000) / 10_000 * 10_000

	return out
}

// MinLoanAmountMinor is the platform-wide application floor.
func MinLoanAmountMinor() int64 { return minLoanAmountMinor }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
