package credit

import (
	"context"
	"errors"
	"time"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ErrNoSnapshot is returned by a SnapshotProvider when the borrower has no
// credit profile yet.
var ErrNoSnapshot = errors.New("no_credit_snapshot")

type ScoreBreakdown struct {
	IncomeQualityScore    int32 `json:"income_quality_score"`
	SpendingBehaviorScore int32 `json:"spending_behavior_score"`
	LiquidityScore        int32 `json:"liquidity_score"`
	GigStabilityScore     int32 `json:"gig_stability_score"`
}

type FinancialSnapshot struct {
	MonthlyAvgIncomeMinor   int64   `json:"monthly_avg_income_minor"`
	MonthlyAvgExpensesMinor int64   `json:"monthly_avg_expenses_minor"`
	SavingsRatePercent      float64 `json:"savings_rate_percent"`
	NetBalanceMinor         int64   `json:"net_balance_minor"`
}

// Snapshot is the scoring subsystem's read model at one point in time. The
// loan subsystem treats it as an opaque input and never writes it back.
type Snapshot struct {
	BorrowerID  string            `json:"borrower_id"`
	CreditScore int32             `json:"credit_score"`
	RiskLevel   RiskLevel         `json:"risk_level"`
	Breakdown   ScoreBreakdown    `json:"score_breakdown"`
	Financials  FinancialSnapshot `json:"financial_snapshot"`
	GeneratedAt time.Time         `json:"generated_at"`
}

type SnapshotProvider interface {
	Latest(ctx context.Context, borrowerID string) (*Snapshot, error)
}
