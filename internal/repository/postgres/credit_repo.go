package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigcredit/backend/internal/domain/credit"
)

type CreditRepository struct {
	pool *pgxpool.Pool
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

func (r *CreditRepository) Latest(ctx context.Context, borrowerID string) (*credit.Snapshot, error) {
	q := `
SELECT
  borrower_id,
  credit_score,
  risk_level,
  income_quality_score,
  spending_behavior_score,
  liquidity_score,
  gig_stability_score,
  monthly_avg_income_minor,
  monthly_avg_expenses_minor,
  savings_rate_percent,
  net_balance_minor,
  generated_at
FROM credit_profiles
WHERE borrower_id = $1
`
	var s credit.Snapshot
	err := r.pool.QueryRow(ctx, q, borrowerID).Scan(
		&s.BorrowerID,
		&s.CreditScore,
		&s.RiskLevel,
		&s.Breakdown.IncomeQualityScore,
		&s.Breakdown.SpendingBehaviorScore,
		&s.Breakdown.LiquidityScore,
		&s.Breakdown.GigStabilityScore,
		&s.Financials.MonthlyAvgIncomeMinor,
		&s.Financials.MonthlyAvgExpensesMinor,
		&s.Financials.SavingsRatePercent,
		&s.Financials.NetBalanceMinor,
		&s.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, credit.ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert replaces the borrower's profile with a fresh scoring run. Used by
// seeding and by the integration suite; the API itself never writes profiles.
func (r *CreditRepository) Upsert(ctx context.Context, s credit.Snapshot) error {
	q := `
INSERT INTO credit_profiles (
  borrower_id, credit_score, risk_level,
  income_quality_score, spending_behavior_score, liquidity_score, gig_stability_score,
  monthly_avg_income_minor, monthly_avg_expenses_minor, savings_rate_percent, net_balance_minor,
  generated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (borrower_id) DO UPDATE SET
  credit_score = EXCLUDED.credit_score,
  risk_level = EXCLUDED.risk_level,
  income_quality_score = EXCLUDED.income_quality_score,
  spending_behavior_score = EXCLUDED.spending_behavior_score,
  liquidity_score = EXCLUDED.liquidity_score,
  gig_stability_score = EXCLUDED.gig_stability_score,
  monthly_avg_income_minor = EXCLUDED.monthly_avg_income_minor,
  monthly_avg_expenses_minor = EXCLUDED.monthly_avg_expenses_minor,
  savings_rate_percent = EXCLUDED.savings_rate_percent,
  net_balance_minor = EXCLUDED.net_balance_minor,
  generated_at = EXCLUDED.generated_at
`
	_, err := r.pool.Exec(ctx, q,
		s.BorrowerID, s.CreditScore, s.RiskLevel,
		s.Breakdown.IncomeQualityScore, s.Breakdown.SpendingBehaviorScore,
		s.Breakdown.LiquidityScore, s.Breakdown.GigStabilityScore,
		s.Financials.MonthlyAvgIncomeMinor, s.Financials.MonthlyAvgExpensesMinor,
		s.Financials.SavingsRatePercent, s.Financials.NetBalanceMinor,
		s.GeneratedAt,
	)
	return err
}
