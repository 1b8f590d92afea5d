// Package storetest provides seeded stores and fault injection for tests of
// packages built on top of the record store.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"obras/internal/core"
	"obras/internal/store"
	"obras/internal/store/memory"
)

// January2025 is the reference scenario: project P1 with one segment of 500
// units at 37 completed on the 20th, and a 1200 diesel expense on the 10th.
// Revenue 18500, expenses 1200, profit 17300.
func January2025(t testing.TB) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	price := decimal.RequireFromString("37")
	p1 := "P1"

	require.NoError(t, s.CreateProject(ctx, core.Project{ID: "P1", Name: "Obra P1"}))
	require.NoError(t, s.CreateSegment(ctx, core.Segment{
		ID:               "s1",
		ProjectID:        "P1",
		Name:             "Rua A",
		ExecutedQuantity: decimal.RequireFromString("500"),
		UnitPrice:        &price,
		CompletionDate:   core.NewDate(2025, 1, 20),
		Status:           core.SegmentStatusCompleted,
	}))
	require.NoError(t, s.CreateExpense(ctx, core.Expense{
		ID:        "e1",
		ProjectID: &p1,
		Category:  "Diesel",
		Amount:    decimal.RequireFromString("1200"),
		Date:      core.NewDate(2025, 1, 10),
	}))
	return s
}

// WithSecondProject adds project P2 with a 300 expense on 2025-01-15 and
// returns s.
func WithSecondProject(t testing.TB, s *memory.Store) *memory.Store {
	t.Helper()
	ctx := context.Background()
	p2 := "P2"
	require.NoError(t, s.CreateProject(ctx, core.Project{ID: "P2", Name: "Obra P2"}))
	require.NoError(t, s.CreateExpense(ctx, core.Expense{
		ID:        "e2",
		ProjectID: &p2,
		Category:  "Cimento",
		Amount:    decimal.RequireFromString("300"),
		Date:      core.NewDate(2025, 1, 15),
	}))
	return s
}

// Failing wraps a store and fails reads scoped to chosen projects. Use
// FailAll to fail unscoped reads as well.
type Failing struct {
	store.RecordStore

	mu       sync.Mutex
	projects map[string]error
	all      error
	calls    int
}

func NewFailing(rs store.RecordStore) *Failing {
	return &Failing{RecordStore: rs, projects: map[string]error{}}
}

// FailProject makes every read scoped to id return err.
func (f *Failing) FailProject(id string, err error) *Failing {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[id] = err
	return f
}

// FailAll makes every read return err.
func (f *Failing) FailAll(err error) *Failing {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = err
	return f
}

// Calls counts reads issued so far.
func (f *Failing) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Failing) check(projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.all != nil {
		return f.all
	}
	if projectID != "" {
		return f.projects[projectID]
	}
	return nil
}

func (f *Failing) QueryCompletedSegments(ctx context.Context, q store.Query) ([]core.Segment, error) {
	if err := f.check(q.ProjectID); err != nil {
		return nil, err
	}
	return f.RecordStore.QueryCompletedSegments(ctx, q)
}

func (f *Failing) QueryFormalInvoices(ctx context.Context, q store.Query) ([]core.Invoice, error) {
	if err := f.check(q.ProjectID); err != nil {
		return nil, err
	}
	return f.RecordStore.QueryFormalInvoices(ctx, q)
}

func (f *Failing) QueryExpenses(ctx context.Context, q store.Query) ([]core.Expense, error) {
	if err := f.check(q.ProjectID); err != nil {
		return nil, err
	}
	return f.RecordStore.QueryExpenses(ctx, q)
}

func (f *Failing) QueryActiveProjects(ctx context.Context) ([]core.Project, error) {
	if err := f.check(""); err != nil {
		return nil, err
	}
	return f.RecordStore.QueryActiveProjects(ctx)
}
