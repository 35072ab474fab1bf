package integration

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gigcredit/backend/internal/domain/credit"
	loandomain "github.com/gigcredit/backend/internal/domain/loan"
)

type memSnapshots struct {
	snap *credit.Snapshot
}

func (m *memSnapshots) Latest(_ context.Context, _ string) (*credit.Snapshot, error) {
	if m.snap == nil {
		return nil, credit.ErrNoSnapshot
	}
	cp := *m.snap
	return &cp, nil
}

type memOutbox struct {
	mu     sync.Mutex
	topics []string
}

func (m *memOutbox) Enqueue(_ context.Context, topic string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return nil
}

// memLoanRepo is a version-checked in-memory stand-in for the postgres
// repository, good enough to drive full HTTP round trips without a DB.
type memLoanRepo struct {
	mu     sync.Mutex
	items  map[string]*loandomain.Entity
	passes map[string]bool
}

func newMemLoanRepo() *memLoanRepo {
	return &memLoanRepo{items: map[string]*loandomain.Entity{}, passes: map[string]bool{}}
}

func clone(e *loandomain.Entity) *loandomain.Entity {
	raw, _ := json.Marshal(e)
	var cp loandomain.Entity
	_ = json.Unmarshal(raw, &cp)
	return &cp
}

func (m *memLoanRepo) Create(_ context.Context, e *loandomain.Entity) (*loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[e.ID] = clone(e)
	return clone(e), nil
}

func (m *memLoanRepo) GetByID(_ context.Context, id string) (*loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, loandomain.ErrLoanNotFound
	}
	return clone(e), nil
}

func (m *memLoanRepo) Update(_ context.Context, e *loandomain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[e.ID]
	if !ok {
		return loandomain.ErrLoanNotFound
	}
	if cur.Version != e.Version {
		return loandomain.ErrVersionConflict
	}
	next := clone(e)
	next.Version++
	m.items[e.ID] = next
	return nil
}

func (m *memLoanRepo) ListByBorrower(_ context.Context, borrowerID string, _ int32, _ int32) ([]loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []loandomain.Entity{}
	for _, e := range m.items {
		if e.BorrowerID == borrowerID {
			out = append(out, *clone(e))
		}
	}
	return out, nil
}

func (m *memLoanRepo) ListForLender(_ context.Context, f loandomain.LenderFilter) ([]loandomain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []loandomain.Entity{}
	for _, e := range m.items {
		switch f.Status {
		case "pending":
			if e.Status != loandomain.StatusPending || m.passes[e.ID+":"+f.LenderID] || e.ActiveOfferByLender(f.LenderID) != nil {
				continue
			}
		case "offered":
			if e.ActiveOfferByLender(f.LenderID) == nil {
				continue
			}
		}
		out = append(out, *clone(e))
	}
	return out, nil
}

func (m *memLoanRepo) RecordPass(_ context.Context, p loandomain.Pass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes[p.LoanID+":"+p.LenderID] = true
	return nil
}

func (m *memLoanRepo) HasPassed(_ context.Context, loanID, lenderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passes[loanID+":"+lenderID], nil
}

func (m *memLoanRepo) LenderStats(_ context.Context, lenderID string) (*loandomain.LenderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &loandomain.LenderStats{LenderID: lenderID}
	for _, e := range m.items {
		if e.LenderID == lenderID {
			switch e.Status {
			case loandomain.StatusApproved:
				stats.ApprovedCount++
			case loandomain.StatusDisbursed:
				stats.DisbursedCount++
			case loandomain.StatusRepaid:
				stats.RepaidCount++
			case loandomain.StatusDefaulted:
				stats.DefaultedCount++
			}
		}
	}
	return stats, nil
}

func (m *memLoanRepo) ListOverdue(_ context.Context, asOf time.Time, _ int32) ([]loandomain.OverdueLoan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []loandomain.OverdueLoan{}
	for _, e := range m.items {
		if e.Status == loandomain.StatusDisbursed && e.DueDate != nil && e.DueDate.Before(asOf) && e.OutstandingMinor() > 0 {
			out = append(out, loandomain.OverdueLoan{LoanID: e.ID, BorrowerID: e.BorrowerID, LenderID: e.LenderID, OutstandingMinor: e.OutstandingMinor(), DueDate: *e.DueDate})
		}
	}
	return out, nil
}
