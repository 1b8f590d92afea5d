// Package store defines the record store the aggregation engine reads from,
// together with the write side used by seeding and tooling.
package store

import (
	"context"
	"errors"

	"obras/internal/core"
)

// Collection names one of the stored record kinds.
type Collection string

const (
	Projects Collection = "projects"
	Segments Collection = "segments"
	Invoices Collection = "invoices"
	Expenses Collection = "expenses"
)

func (c Collection) Valid() bool {
	switch c {
	case Projects, Segments, Invoices, Expenses:
		return true
	}
	return false
}

// Query scopes a range read. An empty ProjectID means every project.
type Query struct {
	ProjectID string
	Range     core.DateRange
}

// ForProject returns a copy of q restricted to one project.
func (q Query) ForProject(id string) Query {
	q.ProjectID = id
	return q
}

// Ports for the record store.
type (
	// RecordStore serves the read-only range queries. Every method excludes
	// soft-deleted records; results are unordered.
	RecordStore interface {
		// QueryCompletedSegments returns segments with status completed, an
		// executed quantity above zero and a completion date in range.
		QueryCompletedSegments(ctx context.Context, q Query) ([]core.Segment, error)
		// QueryFormalInvoices returns invoices completed within range.
		QueryFormalInvoices(ctx context.Context, q Query) ([]core.Invoice, error)
		// QueryExpenses returns expenses dated within range. With an empty
		// ProjectID project-less expenses are included.
		QueryExpenses(ctx context.Context, q Query) ([]core.Expense, error)
		// QueryActiveProjects lists every project that is not soft-deleted.
		QueryActiveProjects(ctx context.Context) ([]core.Project, error)
	}

	// RecordWriter creates records and soft-deletes them.
	RecordWriter interface {
		CreateProject(ctx context.Context, p core.Project) error
		CreateSegment(ctx context.Context, s core.Segment) error
		CreateInvoice(ctx context.Context, i core.Invoice) error
		CreateExpense(ctx context.Context, e core.Expense) error
		SoftDelete(ctx context.Context, c Collection, id string) error
	}

	ReadWriter interface {
		RecordStore
		RecordWriter
	}
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)
