// Package memory is an in-process record store used for development, demos
// and tests. It honours the same filters as the SQL repository.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"obras/internal/core"
	"obras/internal/store"
)

type row[T any] struct {
	val     T
	deleted bool
}

type Store struct {
	mu       sync.RWMutex
	projects []row[core.Project]
	segments []row[core.Segment]
	invoices []row[core.Invoice]
	expenses []row[core.Expense]
}

var _ store.ReadWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFile builds a store seeded from a JSON fixture.
func NewFromFile(path string) (*Store, error) {
	f, err := store.LoadFixture(path)
	if err != nil {
		return nil, err
	}
	s := New()
	if err := f.Apply(context.Background(), s); err != nil {
		return nil, err
	}
	return s, nil
}

// live returns the non-deleted values accepted by keep.
func live[T any](rows []row[T], keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r.deleted || !keep(r.val) {
			continue
		}
		out = append(out, r.val)
	}
	return out
}

func (s *Store) QueryCompletedSegments(ctx context.Context, q store.Query) ([]core.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return live(s.segments, func(seg core.Segment) bool {
		return seg.Status == core.SegmentStatusCompleted &&
			seg.ExecutedQuantity.IsPositive() &&
			q.Range.Contains(seg.CompletionDate) &&
			(q.ProjectID == "" || seg.ProjectID == q.ProjectID)
	}), nil
}

func (s *Store) QueryFormalInvoices(ctx context.Context, q store.Query) ([]core.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return live(s.invoices, func(inv core.Invoice) bool {
		return q.Range.Contains(inv.CompletionDate) &&
			(q.ProjectID == "" || inv.ProjectID == q.ProjectID)
	}), nil
}

func (s *Store) QueryExpenses(ctx context.Context, q store.Query) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return live(s.expenses, func(e core.Expense) bool {
		if !q.Range.Contains(e.Date) {
			return false
		}
		if q.ProjectID == "" {
			return true
		}
		return e.ProjectID != nil && *e.ProjectID == q.ProjectID
	}), nil
}

func (s *Store) QueryActiveProjects(ctx context.Context) ([]core.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return live(s.projects, func(core.Project) bool { return true }), nil
}

func (s *Store) CreateProject(_ context.Context, p core.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = core.ProjectStatusActive
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(&s.projects, p, p.ID, func(v core.Project) string { return v.ID })
}

func (s *Store) CreateSegment(_ context.Context, seg core.Segment) error {
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if err := seg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(&s.segments, seg, seg.ID, func(v core.Segment) string { return v.ID })
}

func (s *Store) CreateInvoice(_ context.Context, inv core.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(&s.invoices, inv, inv.ID, func(v core.Invoice) string { return v.ID })
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(&s.expenses, e, e.ID, func(v core.Expense) string { return v.ID })
}

// SoftDelete flags a record so every query skips it.
func (s *Store) SoftDelete(_ context.Context, c store.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	switch c {
	case store.Projects:
		ok = markDeleted(s.projects, id, func(v core.Project) string { return v.ID })
	case store.Segments:
		ok = markDeleted(s.segments, id, func(v core.Segment) string { return v.ID })
	case store.Invoices:
		ok = markDeleted(s.invoices, id, func(v core.Invoice) string { return v.ID })
	case store.Expenses:
		ok = markDeleted(s.expenses, id, func(v core.Expense) string { return v.ID })
	default:
		return fmt.Errorf("%w: unknown collection %q", core.ErrInvalidArgument, c)
	}
	if !ok {
		return fmt.Errorf("%s %q: %w", c, id, store.ErrNotFound)
	}
	return nil
}

func insert[T any](rows *[]row[T], v T, id string, key func(T) string) error {
	for _, r := range *rows {
		if key(r.val) == id {
			return fmt.Errorf("%q: %w", id, store.ErrDuplicate)
		}
	}
	*rows = append(*rows, row[T]{val: v})
	return nil
}

func markDeleted[T any](rows []row[T], id string, key func(T) string) bool {
	for i := range rows {
		if key(rows[i].val) == id && !rows[i].deleted {
			rows[i].deleted = true
			return true
		}
	}
	return false
}
