package store

import (
	"context"
	"time"

	"obras/internal/core"
	"obras/internal/log"
	"obras/internal/metrics"
)

// Instrumented decorates a RecordStore with query metrics and debug logs.
type Instrumented struct {
	next   RecordStore
	logger *log.Logger
}

func NewInstrumented(next RecordStore, logger *log.Logger) *Instrumented {
	if logger == nil {
		logger = log.Discard()
	}
	return &Instrumented{next: next, logger: logger.WithComponent(log.ComponentStorage)}
}

func (s *Instrumented) QueryCompletedSegments(ctx context.Context, q Query) ([]core.Segment, error) {
	start := time.Now()
	out, err := s.next.QueryCompletedSegments(ctx, q)
	s.observe(ctx, Segments, q, len(out), err, start)
	return out, err
}

func (s *Instrumented) QueryFormalInvoices(ctx context.Context, q Query) ([]core.Invoice, error) {
	start := time.Now()
	out, err := s.next.QueryFormalInvoices(ctx, q)
	s.observe(ctx, Invoices, q, len(out), err, start)
	return out, err
}

func (s *Instrumented) QueryExpenses(ctx context.Context, q Query) ([]core.Expense, error) {
	start := time.Now()
	out, err := s.next.QueryExpenses(ctx, q)
	s.observe(ctx, Expenses, q, len(out), err, start)
	return out, err
}

func (s *Instrumented) QueryActiveProjects(ctx context.Context) ([]core.Project, error) {
	start := time.Now()
	out, err := s.next.QueryActiveProjects(ctx)
	s.observe(ctx, Projects, Query{}, len(out), err, start)
	return out, err
}

func (s *Instrumented) observe(ctx context.Context, c Collection, q Query, rows int, err error, start time.Time) {
	elapsed := time.Since(start)
	metrics.ObserveStoreQuery(string(c), metrics.Result(err), elapsed)
	if err != nil {
		s.logger.WarnContext(ctx, "Store query failed",
			log.FieldCollection, string(c),
			log.FieldProjectID, q.ProjectID,
			log.FieldError, err,
		)
		return
	}
	s.logger.DebugContext(ctx, "Store query",
		log.FieldCollection, string(c),
		log.FieldProjectID, q.ProjectID,
		"rows", rows,
		log.FieldDuration, elapsed.Milliseconds(),
	)
}
