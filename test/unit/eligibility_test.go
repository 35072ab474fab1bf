package unit

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigcredit/backend/internal/domain/credit"
)

func snapshot(score int32, risk credit.RiskLevel, incomeMinor int64) credit.Snapshot {
	return credit.Snapshot{
		BorrowerID:  "b-1",
		CreditScore: score,
		RiskLevel:   risk,
		Financials:  credit.FinancialSnapshot{MonthlyAvgIncomeMinor: incomeMinor},
	}
}

func TestEvaluateTiers(t *testing.T) {
	cases := []struct {
		name        string
		score       int32
		risk        credit.RiskLevel
		incomeMinor int64
		eligible    bool
		maxMinor    int64
		rateBPS     int32
	}{
		{"excellent_income_bound", 780, credit.RiskLow, 2_000_000, true, 10_000_000, 800},
		{"excellent_cap_bound", 800, credit.RiskLow, 50_000_000, true, 50_000_000, 800},
		{"good_tier", 700, credit.RiskMedium, 1_500_000, true, 4_500_000, 1200},
		{"fair_tier", 550, credit.RiskMedium, 1_000_000, true, 2_000_000, 1600},
		{"low_tier", 420, credit.RiskLow, 800_000, true, 800_000, 2000},
		{"below_min_score", 399, credit.RiskLow, 2_000_000, false, 0, 0},
		{"high_risk_blocked", 780, credit.RiskHigh, 2_000_000, false, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := credit.Evaluate(snapshot(tc.score, tc.risk, tc.incomeMinor))
			require.Equal(t, tc.eligible, out.Eligible)
			assert.Equal(t, tc.maxMinor, out.MaxAmountMinor)
			assert.Equal(t, tc.rateBPS, out.SuggestedRateBPS)
			assert.NotEmpty(t, out.Reasons)
		})
	}
}

func TestEvaluateAppliesFloorAndRounding(t *testing.T) {
	// Income so low the computed cap falls under the platform floor.
	out := credit.Evaluate(snapshot(420, credit.RiskLow, 40_000))
	require.True(t, out.Eligible)
	assert.Equal(t, int64(100_000), out.MaxAmountMinor)

	// 1,234,567 paise rounds to the nearest hundred rupees.
	out = credit.Evaluate(snapshot(420, credit.RiskLow, 1_234_567))
	require.True(t, out.Eligible)
	assert.Equal(t, int64(1_230_000), out.MaxAmountMinor)
}

func TestEvaluateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	riskFor := func(pick int) credit.RiskLevel {
		switch pick {
		case 0:
			return credit.RiskLow
		case 1:
			return credit.RiskMedium
		default:
			return credit.RiskHigh
		}
	}

	properties.Property("identical snapshots evaluate identically", prop.ForAll(
		func(score int32, riskPick int, incomeMinor int64) bool {
			s := snapshot(score, riskFor(riskPick), incomeMinor)
			a := credit.Evaluate(s)
			b := credit.Evaluate(s)
			return a.Eligible == b.Eligible && a.MaxAmountMinor == b.MaxAmountMinor && a.SuggestedRateBPS == b.SuggestedRateBPS
		},
		gen.Int32Range(0, 900),
		gen.IntRange(0, 2),
		gen.Int64Range(0, 100_000_000),
	))

	properties.Property("eligible amounts respect floor and hundred-rupee granularity", prop.ForAll(
		func(score int32, incomeMinor int64) bool {
			out := credit.Evaluate(snapshot(score, credit.RiskLow, incomeMinor))
			if !out.Eligible {
				return out.MaxAmountMinor == 0
			}
			return out.MaxAmountMinor >= 100_000 && out.MaxAmountMinor%10_000 == 0
		},
		gen.Int32Range(400, 900),
		gen.Int64Range(0, 100_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
