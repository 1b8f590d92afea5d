package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"obras/internal/amqp"
	"obras/internal/cache"
	"obras/internal/core"
	"obras/internal/finance"
	"obras/internal/log"
	"obras/internal/metrics"
)

// ReadyPublisher announces finished reports. *amqp.Client satisfies it.
type ReadyPublisher interface {
	PublishReportReady(ctx context.Context, msg *amqp.ReportReadyMessage) error
}

// ReportService composes the finance engine into month reports and caches
// complete ones per (period, mode).
type ReportService struct {
	engine    *finance.Engine
	cache     cache.Cache[string, *core.MonthReport]
	publisher ReadyPublisher
	logger    *log.Logger
	reports   *log.StructuredLogger
}

type ReportOption func(*ReportService)

// WithReportCache enables caching. Without it every call rebuilds.
func WithReportCache(c cache.Cache[string, *core.MonthReport]) ReportOption {
	return func(s *ReportService) { s.cache = c }
}

// WithReadyPublisher publishes a ReportReady message for every freshly
// built report.
func WithReadyPublisher(p ReadyPublisher) ReportOption {
	return func(s *ReportService) { s.publisher = p }
}

func WithReportLogger(l *log.Logger) ReportOption {
	return func(s *ReportService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewReportService(engine *finance.Engine, opts ...ReportOption) *ReportService {
	s := &ReportService{
		engine: engine,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentReport)
	s.reports = log.NewStructuredLogger(s.logger)
	return s
}

// Engine exposes the underlying engine for single-view reads.
func (s *ReportService) Engine() *finance.Engine { return s.engine }

func cacheKey(p core.Period, mode finance.FailureMode) string {
	return p.String() + "/" + string(mode)
}

// MonthReport builds the consolidated report for p.
//
// The headline totals, the series and the categories come from the
// period-wide revenue and expense reads; Projects is the per-project rollup.
// A resilient rollup with skipped projects still yields a report, with the
// skipped projects listed in Failures; such reports are not cached.
func (s *ReportService) MonthReport(ctx context.Context, p core.Period, mode finance.FailureMode) (*core.MonthReport, error) {
	if mode == "" {
		mode = finance.Resilient
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey(p, mode)
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			metrics.IncCacheHit()
			return r, nil
		}
		metrics.IncCacheMiss()
	}

	report, err := s.build(ctx, p, mode)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(report.Failures) == 0 {
		s.cache.Set(key, report)
	}
	s.reports.LogReportBuilt(ctx, p.Year, p.Month, string(mode), len(report.Projects), failedIDs(report.Failures))
	s.publishReady(ctx, string(mode), report)
	return report, nil
}

func (s *ReportService) build(ctx context.Context, p core.Period, mode finance.FailureMode) (*core.MonthReport, error) {
	var (
		revenue   []core.RevenueEvent
		expenses  []core.ExpenseEvent
		summaries []core.ProjectFinancialSummary
		failures  []core.ProjectFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = s.engine.ResolveRevenue(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.engine.ResolveExpenses(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		summaries, err = s.engine.BuildProjectSummaries(gctx, p, mode)
		var partial *core.PartialAggregationFailure
		if errors.As(err, &partial) {
			summaries, failures = partial.Summaries, partial.Failures
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalRevenue := finance.TotalRevenue(revenue)
	totalExpenses := finance.TotalExpenses(expenses)
	profit := totalRevenue.Sub(totalExpenses)

	return &core.MonthReport{
		Period:        p,
		Range:         p.Range(),
		RevenueSource: finance.SourceOf(revenue),
		TotalRevenue:  totalRevenue,
		TotalExpenses: totalExpenses,
		Profit:        profit,
		Margin:        core.Margin(profit, totalRevenue),
		Projects:      summaries,
		Series:        finance.MergeSeries(finance.RevenueByDay(revenue), finance.ExpensesByDay(expenses)),
		Categories:    finance.ExpensesByCategory(expenses),
		Failures:      failures,
	}, nil
}

func (s *ReportService) publishReady(ctx context.Context, mode string, r *core.MonthReport) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewReportReadyMessage(requestIDFrom(ctx), mode, r)
	if err := s.publisher.PublishReportReady(ctx, msg); err != nil {
		// The report itself is fine; the notification is best effort.
		s.logger.ErrorContext(ctx, "Failed to publish report ready",
			log.FieldYear, r.Period.Year,
			log.FieldMonth, r.Period.Month,
			log.FieldError, err)
	}
}

// Invalidate drops every cached report of p, whatever the mode.
func (s *ReportService) Invalidate(p core.Period) int {
	if s.cache == nil {
		return 0
	}
	prefix := p.String() + "/"
	n := s.cache.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
	if n > 0 {
		s.logger.Debug("Invalidated cached reports", "period", p.String(), "count", n)
	}
	return n
}

func failedIDs(failures []core.ProjectFailure) []string {
	if len(failures) == 0 {
		return nil
	}
	ids := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.ProjectID
	}
	return ids
}

type requestIDKey struct{}

// WithRequestID tags ctx so a published ReportReady can be correlated.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Close releases the publisher when it owns a connection.
func (s *ReportService) Close() error {
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close report publisher: %w", err)
		}
	}
	return nil
}
