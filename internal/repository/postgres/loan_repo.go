package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigcredit/backend/internal/domain/loan"
)

const loanColumns = `
id, borrower_id, amount_minor, purpose, purpose_description, urgency_level,
status, credit_score_at_application, risk_level_at_application, eligible_amount_minor,
lender_id, lender_organization, interest_rate_bps, repayment_term_months,
approved_amount_minor, monthly_emi_minor, total_repayable_minor, total_repaid_minor,
due_date, approved_at, disbursed_at, settled_at, defaulted_at, cancelled_at,
version, created_at, updated_at`

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

func (r *LoanRepository) Create(ctx context.Context, e *loan.Entity) (*loan.Entity, error) {
	q := `
INSERT INTO loans (
  id, borrower_id, amount_minor, purpose, purpose_description, urgency_level,
  status, credit_score_at_application, risk_level_at_application, eligible_amount_minor,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING ` + loanColumns
	row := r.pool.QueryRow(ctx, q,
		e.ID, e.BorrowerID, e.AmountMinor, e.Purpose, e.PurposeDescription, e.UrgencyLevel,
		e.Status, e.CreditScoreAtApplication, e.RiskLevelAtApplication, e.EligibleAmountMinor,
		e.CreatedAt, e.UpdatedAt,
	)
	out := &loan.Entity{}
	if err := scanLoan(row, out); err != nil {
		return nil, err
	}
	out.Offers = []loan.Offer{}
	out.Repayments = []loan.RepaymentRecord{}
	return out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	out := &loan.Entity{}
	if err := scanLoan(row, out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.ErrLoanNotFound
		}
		return nil, err
	}
	if err := r.attachChildren(ctx, []*loan.Entity{out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the aggregate under the loan's version. The loan row, its
// offers and its repayment records change in one transaction, so multi-record
// transitions (accept one offer, reject the rest) are never observable
// half-applied.
func (r *LoanRepository) Update(ctx context.Context, e *loan.Entity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `
UPDATE loans SET
  status = $2, lender_id = $3, lender_organization = $4,
  interest_rate_bps = $5, repayment_term_months = $6, approved_amount_minor = $7,
  monthly_emi_minor = $8, total_repayable_minor = $9, total_repaid_minor = $10,
  due_date = $11, approved_at = $12, disbursed_at = $13, settled_at = $14,
  defaulted_at = $15, cancelled_at = $16, updated_at = $17,
  version = version + 1
WHERE id = $1 AND version = $18
`
	tag, err := tx.Exec(ctx, q,
		e.ID, e.Status, e.LenderID, e.LenderOrganization,
		e.InterestRateBPS, e.RepaymentTermMonths, e.ApprovedAmountMinor,
		e.MonthlyEMIMinor, e.TotalRepayableMinor, e.TotalRepaidMinor,
		e.DueDate, e.ApprovedAt, e.DisbursedAt, e.SettledAt,
		e.DefaultedAt, e.CancelledAt, e.UpdatedAt, e.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return loan.ErrVersionConflict
	}

	offerQ := `
INSERT INTO loan_offers (
  id, loan_id, lender_id, lender_name, lender_organization,
  interest_rate_bps, repayment_term_months, offered_amount_minor, lender_notes,
  status, offered_at, responded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, responded_at = EXCLUDED.responded_at
`
	for i := range e.Offers {
		o := &e.Offers[i]
		if _, err := tx.Exec(ctx, offerQ,
			o.ID, e.ID, o.LenderID, o.LenderName, o.LenderOrganization,
			o.InterestRateBPS, o.RepaymentTermMonths, o.OfferedAmountMinor, o.LenderNotes,
			o.Status, o.OfferedAt, o.RespondedAt,
		); err != nil {
			return err
		}
	}

	repayQ := `
INSERT INTO loan_repayments (
  id, loan_id, amount_minor, method, reference, note, status, receipt_hash,
  submitted_at, confirmed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status, note = EXCLUDED.note,
  receipt_hash = EXCLUDED.receipt_hash, confirmed_at = EXCLUDED.confirmed_at
`
	for i := range e.Repayments {
		p := &e.Repayments[i]
		if _, err := tx.Exec(ctx, repayQ,
			p.ID, e.ID, p.AmountMinor, p.Method, p.Reference, p.Note, p.Status, p.ReceiptHash,
			p.SubmittedAt, p.ConfirmedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID string, limit, offset int32) ([]loan.Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.queryLoans(ctx, q, borrowerID, limit, offset)
}

func (r *LoanRepository) ListForLender(ctx context.Context, f loan.LenderFilter) ([]loan.Entity, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	const openClause = `
(loans.status = 'pending'
  AND NOT EXISTS (SELECT 1 FROM loan_offers o WHERE o.loan_id = loans.id AND o.lender_id = $1)
  AND NOT EXISTS (SELECT 1 FROM loan_passes p WHERE p.loan_id = loans.id AND p.lender_id = $1))`
	const offeredClause = `
(loans.status = 'pending'
  AND EXISTS (SELECT 1 FROM loan_offers o WHERE o.loan_id = loans.id AND o.lender_id = $1 AND o.status = 'offered'))`

	var where string
	args := []any{f.LenderID}
	switch f.Status {
	case "pending":
		where = openClause
	case "offered":
		where = offeredClause
	case "", "all":
		where = "(" + openClause + " OR " + offeredClause + " OR loans.lender_id = $1)"
	default:
		where = "(loans.lender_id = $1 AND loans.status = $2)"
		args = append(args, f.Status)
	}

	q := `SELECT ` + loanColumns + ` FROM loans WHERE ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)
	return r.queryLoans(ctx, q, args...)
}

func (r *LoanRepository) RecordPass(ctx context.Context, p loan.Pass) error {
	q := `INSERT INTO loan_passes (id, loan_id, lender_id, reason, created_at) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (loan_id, lender_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, p.ID, p.LoanID, p.LenderID, p.Reason, p.CreatedAt)
	return err
}

func (r *LoanRepository) HasPassed(ctx context.Context, loanID, lenderID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loan_passes WHERE loan_id = $1 AND lender_id = $2)`,
		loanID, lenderID,
	).Scan(&exists)
	return exists, err
}

func (r *LoanRepository) LenderStats(ctx context.Context, lenderID string) (*loan.LenderStats, error) {
	out := &loan.LenderStats{LenderID: lenderID}

	qOwned := `
SELECT
  COUNT(*) FILTER (WHERE status = 'approved')::bigint,
  COUNT(*) FILTER (WHERE status = 'disbursed')::bigint,
  COUNT(*) FILTER (WHERE status = 'repaid')::bigint,
  COUNT(*) FILTER (WHERE status = 'defaulted')::bigint,
  COALESCE(SUM(approved_amount_minor) FILTER (WHERE status IN ('approved','disbursed','repaid')), 0)::bigint,
  COALESCE(SUM(total_repaid_minor) FILTER (WHERE status IN ('disbursed','repaid')), 0)::bigint
FROM loans
WHERE lender_id = $1
`
	if err := r.pool.QueryRow(ctx, qOwned, lenderID).Scan(
		&out.ApprovedCount, &out.DisbursedCount, &out.RepaidCount, &out.DefaultedCount,
		&out.TotalApprovedAmountMinor, &out.TotalRepaidAmountMinor,
	); err != nil {
		return nil, err
	}

	qMarket := `
SELECT
  (SELECT COUNT(*) FROM loans
     WHERE status = 'pending'
       AND NOT EXISTS (SELECT 1 FROM loan_offers o WHERE o.loan_id = loans.id AND o.lender_id = $1)
       AND NOT EXISTS (SELECT 1 FROM loan_passes p WHERE p.loan_id = loans.id AND p.lender_id = $1))::bigint,
  (SELECT COUNT(*) FROM loans
     WHERE status = 'pending'
       AND EXISTS (SELECT 1 FROM loan_offers o WHERE o.loan_id = loans.id AND o.lender_id = $1 AND o.status = 'offered'))::bigint
`
	if err := r.pool.QueryRow(ctx, qMarket, lenderID).Scan(&out.OpenPendingCount, &out.ActiveOfferCount); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) ListOverdue(ctx context.Context, asOf time.Time, limit int32) ([]loan.OverdueLoan, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT id, borrower_id, lender_id, total_repayable_minor - total_repaid_minor, due_date
FROM loans
WHERE status = 'disbursed' AND due_date IS NOT NULL AND due_date < $1
  AND total_repaid_minor < total_repayable_minor
ORDER BY due_date
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.OverdueLoan, 0)
	for rows.Next() {
		var item loan.OverdueLoan
		if err := rows.Scan(&item.LoanID, &item.BorrowerID, &item.LenderID, &item.OutstandingMinor, &item.DueDate); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *LoanRepository) queryLoans(ctx context.Context, q string, args ...any) ([]loan.Entity, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Entity, 0)
	for rows.Next() {
		var item loan.Entity
		if err := scanLoan(rows, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*loan.Entity, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.attachChildren(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) attachChildren(ctx context.Context, loans []*loan.Entity) error {
	if len(loans) == 0 {
		return nil
	}
	ids := make([]string, 0, len(loans))
	byID := make(map[string]*loan.Entity, len(loans))
	for _, e := range loans {
		ids = append(ids, e.ID)
		byID[e.ID] = e
		e.Offers = []loan.Offer{}
		e.Repayments = []loan.RepaymentRecord{}
	}

	offerQ := `
SELECT id, loan_id, lender_id, lender_name, lender_organization,
       interest_rate_bps, repayment_term_months, offered_amount_minor, lender_notes,
       status, offered_at, responded_at
FROM loan_offers WHERE loan_id = ANY($1) ORDER BY offered_at, id
`
	rows, err := r.pool.Query(ctx, offerQ, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var o loan.Offer
		if err := rows.Scan(
			&o.ID, &o.LoanID, &o.LenderID, &o.LenderName, &o.LenderOrganization,
			&o.InterestRateBPS, &o.RepaymentTermMonths, &o.OfferedAmountMinor, &o.LenderNotes,
			&o.Status, &o.OfferedAt, &o.RespondedAt,
		); err != nil {
			rows.Close()
			return err
		}
		if e, ok := byID[o.LoanID]; ok {
			e.Offers = append(e.Offers, o)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	repayQ := `
SELECT id, loan_id, amount_minor, method, reference, note, status, receipt_hash,
       submitted_at, confirmed_at
FROM loan_repayments WHERE loan_id = ANY($1) ORDER BY submitted_at, id
`
	rows, err = r.pool.Query(ctx, repayQ, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p loan.RepaymentRecord
		if err := rows.Scan(
			&p.ID, &p.LoanID, &p.AmountMinor, &p.Method, &p.Reference, &p.Note, &p.Status, &p.ReceiptHash,
			&p.SubmittedAt, &p.ConfirmedAt,
		); err != nil {
			return err
		}
		if e, ok := byID[p.LoanID]; ok {
			e.Repayments = append(e.Repayments, p)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner, out *loan.Entity) error {
	return row.Scan(
		&out.ID, &out.BorrowerID, &out.AmountMinor, &out.Purpose, &out.PurposeDescription, &out.UrgencyLevel,
		&out.Status, &out.CreditScoreAtApplication, &out.RiskLevelAtApplication, &out.EligibleAmountMinor,
		&out.LenderID, &out.LenderOrganization, &out.InterestRateBPS, &out.RepaymentTermMonths,
		&out.ApprovedAmountMinor, &out.MonthlyEMIMinor, &out.TotalRepayableMinor, &out.TotalRepaidMinor,
		&out.DueDate, &out.ApprovedAt, &out.DisbursedAt, &out.SettledAt, &out.DefaultedAt, &out.CancelledAt,
		&out.Version, &out.CreatedAt, &out.UpdatedAt,
	)
}
