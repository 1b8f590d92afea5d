package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"obras/internal/core"
	"obras/internal/log"
	"obras/internal/metrics"
	"obras/internal/store"
)

// BuildProjectSummaries rolls every active project up for the period.
//
// Each project is computed from its own queries, with the segment-vs-invoice
// switch evaluated for that project alone. Projects without revenue or
// expenses in the period are omitted. The result is sorted by name, then id.
//
// In Resilient mode failing projects are skipped; when at least one failed,
// the remaining summaries are returned together with a
// *core.PartialAggregationFailure. In Strict mode the first failure cancels
// the outstanding work and is returned. A failure to list projects is
// returned in both modes.
func (e *Engine) BuildProjectSummaries(ctx context.Context, p core.Period, mode FailureMode) (summaries []core.ProjectFinancialSummary, err error) {
	if mode == "" {
		mode = Resilient
	}
	if mode != Resilient && mode != Strict {
		return nil, fmt.Errorf("%w: failure mode %q", core.ErrInvalidArgument, mode)
	}
	q, err := window(p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		result := metrics.Result(err)
		if _, partial := err.(*core.PartialAggregationFailure); partial {
			result = metrics.ResultPartial
		}
		metrics.ObserveRollup(string(mode), result, time.Since(start))
	}()

	projects, err := e.activeProjects(ctx)
	if err != nil {
		return nil, err
	}

	logger := e.logger.WithComponent(log.ComponentRollup)
	results := make([]*core.ProjectFinancialSummary, len(projects))
	failures := make([]error, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, project := range projects {
		if mode == Strict && gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Resilient projects must not cancel their siblings.
			runCtx := ctx
			if mode == Strict {
				runCtx = gctx
			}
			s, err := e.summarizeProject(runCtx, q, project)
			if err != nil {
				if mode == Strict {
					return fmt.Errorf("project %q: %w", project.ID, err)
				}
				failures[i] = err
				fields := log.NewFields().
					WithProject(project.ID, project.Name).
					WithPeriod(p.Year, p.Month).
					WithError(err)
				logger.WarnContext(ctx, "Skipping project in rollup", fields.ToSlice()...)
				return nil
			}
			results[i] = &s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.AddProjectFailures(string(mode), 1)
		logger.ErrorContext(ctx, "Rollup aborted",
			log.FieldYear, p.Year,
			log.FieldMonth, p.Month,
			log.FieldError, err,
		)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries = make([]core.ProjectFinancialSummary, 0, len(projects))
	for _, s := range results {
		if s != nil && s.HasActivity() {
			summaries = append(summaries, *s)
		}
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].ProjectID < summaries[j].ProjectID
	})

	var failed []core.ProjectFailure
	for i, ferr := range failures {
		if ferr != nil {
			failed = append(failed, core.ProjectFailure{
				ProjectID: projects[i].ID,
				Name:      projects[i].Name,
				Err:       ferr,
			})
		}
	}
	if len(failed) > 0 {
		metrics.AddProjectFailures(string(mode), len(failed))
		return summaries, &core.PartialAggregationFailure{Failures: failed, Summaries: summaries}
	}
	return summaries, nil
}

// summarizeProject fetches revenue and expenses for one project concurrently.
func (e *Engine) summarizeProject(ctx context.Context, q store.Query, project core.Project) (core.ProjectFinancialSummary, error) {
	var (
		revenue  []core.RevenueEvent
		expenses []core.ExpenseEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = e.projectRevenue(gctx, q, project)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = e.expenses(gctx, q.ForProject(project.ID))
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ProjectFinancialSummary{}, err
	}
	sortRevenue(revenue)
	return NewProjectSummary(project, revenue, expenses), nil
}

// NewProjectSummary totals a project's events. Profit is always exactly
// revenue minus expenses.
func NewProjectSummary(project core.Project, revenue []core.RevenueEvent, expenses []core.ExpenseEvent) core.ProjectFinancialSummary {
	if revenue == nil {
		revenue = []core.RevenueEvent{}
	}
	if expenses == nil {
		expenses = []core.ExpenseEvent{}
	}
	totalRevenue := TotalRevenue(revenue)
	totalExpenses := TotalExpenses(expenses)
	profit := totalRevenue.Sub(totalExpenses)
	return core.ProjectFinancialSummary{
		ProjectID:     project.ID,
		Name:          project.Name,
		Status:        project.Status,
		TotalRevenue:  totalRevenue,
		TotalExpenses: totalExpenses,
		Profit:        profit,
		Margin:        core.Margin(profit, totalRevenue),
		RevenueEvents: revenue,
		ExpenseEvents: expenses,
	}
}
