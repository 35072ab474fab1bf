package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gigcredit/backend/internal/domain/credit"
	loandomain "github.com/gigcredit/backend/internal/domain/loan"
	"github.com/gigcredit/backend/internal/jobs"
	"github.com/gigcredit/backend/internal/repository/postgres"
	"github.com/gigcredit/backend/test/integration/testutil"
)

func seedLoan(t *testing.T, repo *postgres.LoanRepository, borrowerID string) *loandomain.Entity {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	e := &loandomain.Entity{
		ID:                       uuid.NewString(),
		BorrowerID:               borrowerID,
		AmountMinor:              500_000,
		Purpose:                  loandomain.PurposeMedical,
		PurposeDescription:       "hospital bill",
		UrgencyLevel:             loandomain.UrgencyHigh,
		Status:                   loandomain.StatusPending,
		CreditScoreAtApplication: 700,
		RiskLevelAtApplication:   credit.RiskMedium,
		EligibleAmountMinor:      6_000_000,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	created, err := repo.Create(context.Background(), e)
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	return created
}

func TestLoanRepositoryRoundTrip(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t, pool)
	testutil.ResetTables(t, pool)

	repo := postgres.NewLoanRepository(pool)
	ctx := context.Background()

	created := seedLoan(t, repo, "borrower-1")
	if created.Version != 0 || created.Status != loandomain.StatusPending {
		t.Fatalf("unexpected created loan: version=%d status=%s", created.Version, created.Status)
	}

	// Attach an offer and a repayment through the aggregate update.
	now := time.Now().UTC().Truncate(time.Millisecond)
	created.Offers = append(created.Offers, loandomain.Offer{
		ID:                  uuid.NewString(),
		LoanID:              created.ID,
		LenderID:            "lender-1",
		LenderName:          "Asha Capital",
		InterestRateBPS:     1200,
		RepaymentTermMonths: 6,
		OfferedAmountMinor:  500_000,
		Status:              loandomain.OfferOffered,
		OfferedAt:           now,
	})
	created.UpdatedAt = now
	if err := repo.Update(ctx, created); err != nil {
		t.Fatalf("update loan: %v", err)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1 after update, got %d", got.Version)
	}
	if len(got.Offers) != 1 || got.Offers[0].LenderID != "lender-1" {
		t.Fatalf("offer not persisted: %+v", got.Offers)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, loandomain.ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
	}
}

func TestLoanRepositoryVersionConflict(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t, pool)
	testutil.ResetTables(t, pool)

	repo := postgres.NewLoanRepository(pool)
	ctx := context.Background()

	created := seedLoan(t, repo, "borrower-1")

	a, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	b, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("load b: %v", err)
	}

	a.Status = loandomain.StatusCancelled
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}

	b.Status = loandomain.StatusApproved
	if err := repo.Update(ctx, b); !errors.Is(err, loandomain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestLoanRepositoryLenderFeedAndPasses(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t, pool)
	testutil.ResetTables(t, pool)

	repo := postgres.NewLoanRepository(pool)
	ctx := context.Background()

	open := seedLoan(t, repo, "borrower-1")
	passed := seedLoan(t, repo, "borrower-2")

	if err := repo.RecordPass(ctx, loandomain.Pass{
		ID:        uuid.NewString(),
		LoanID:    passed.ID,
		LenderID:  "lender-1",
		Reason:    "outside lending criteria",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("record pass: %v", err)
	}
	// Recording the same pass twice is a no-op.
	if err := repo.RecordPass(ctx, loandomain.Pass{
		ID:        uuid.NewString(),
		LoanID:    passed.ID,
		LenderID:  "lender-1",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("repeat pass: %v", err)
	}

	hasPassed, err := repo.HasPassed(ctx, passed.ID, "lender-1")
	if err != nil || !hasPassed {
		t.Fatalf("expected pass on record, got %v %v", hasPassed, err)
	}

	items, err := repo.ListForLender(ctx, loandomain.LenderFilter{LenderID: "lender-1", Status: "pending"})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(items) != 1 || items[0].ID != open.ID {
		t.Fatalf("expected only the open loan, got %+v", items)
	}

	// A different lender still sees both.
	items, err = repo.ListForLender(ctx, loandomain.LenderFilter{LenderID: "lender-2", Status: "pending"})
	if err != nil {
		t.Fatalf("list pending for lender-2: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected both loans for lender-2, got %d", len(items))
	}
}

func TestOutboxRepositoryClaimLifecycle(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t, pool)
	testutil.ResetTables(t, pool)

	repo := postgres.NewOutboxRepository(pool)
	ctx := context.Background()

	if err := repo.Enqueue(ctx, "marketplace_notify", []byte(`{"event":"loan_applied","loan_id":"l-1"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed job, got %d", len(claimed))
	}
	job := claimed[0]
	if job.Topic != "marketplace_notify" || job.Attempts != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}

	// A processing job must not be claimed again.
	again, err := repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no claimable jobs, got %d", len(again))
	}

	// Retry comes back once its backoff window lapses.
	if err := repo.MarkRetry(ctx, job.ID, time.Now().Add(-time.Second), "feed insert failed"); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	retried, err := repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("claim retry: %v", err)
	}
	if len(retried) != 1 || retried[0].Attempts != 2 {
		t.Fatalf("expected reclaimed job with 2 attempts, got %+v", retried)
	}

	if err := repo.MarkDone(ctx, job.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	final, err := repo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("final claim: %v", err)
	}
	if len(final) != 0 {
		t.Fatalf("done job claimed again: %+v", final)
	}
}

func TestFeedRepositoryInsertAndList(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t, pool)
	testutil.ResetTables(t, pool)

	repo := postgres.NewFeedRepository(pool)
	ctx := context.Background()

	entries := []jobs.FeedEntry{
		{RecipientRole: "borrower", RecipientID: "b-1", Event: "offer_received", Payload: []byte(`{"loan_id":"l-1"}`)},
		{RecipientRole: "lender", RecipientID: "l-9", Event: "offer_accepted", Payload: []byte(`{"loan_id":"l-1"}`)},
	}
	if err := repo.Insert(ctx, entries); err != nil {
		t.Fatalf("insert: %v", err)
	}

	all, err := repo.ListSince(ctx, 0, 100)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 feed events, got %d", len(all))
	}
	head, err := repo.Head(ctx)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != all[1].ID {
		t.Fatalf("head %d does not match newest event %d", head, all[1].ID)
	}
	if all[0].ID >= all[1].ID {
		t.Fatalf("events out of order: %d, %d", all[0].ID, all[1].ID)
	}

	tail, err := repo.ListSince(ctx, all[0].ID, 100)
	if err != nil {
		t.Fatalf("list tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Event != "offer_accepted" {
		t.Fatalf("unexpected tail: %+v", tail)
	}

	mine, err := repo.ListByRecipient(ctx, "borrower", "b-1", 50)
	if err != nil {
		t.Fatalf("list by recipient: %v", err)
	}
	if len(mine) != 1 || mine[0].Event != "offer_received" {
		t.Fatalf("unexpected recipient feed: %+v", mine)
	}
}

func TestCreditRepositoryUpsertAndLatest(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t, pool)
	testutil.ResetTables(t, pool)

	repo := postgres.NewCreditRepository(pool)
	ctx := context.Background()

	if _, err := repo.Latest(ctx, "borrower-1"); !errors.Is(err, credit.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	snap := credit.Snapshot{
		BorrowerID:  "borrower-1",
		CreditScore: 700,
		RiskLevel:   credit.RiskMedium,
		Financials:  credit.FinancialSnapshot{MonthlyAvgIncomeMinor: 2_000_000},
		GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := repo.Upsert(ctx, snap); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	snap.CreditScore = 720
	if err := repo.Upsert(ctx, snap); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := repo.Latest(ctx, "borrower-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.CreditScore != 720 || got.RiskLevel != credit.RiskMedium || got.Financials.MonthlyAvgIncomeMinor != 2_000_000 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}
