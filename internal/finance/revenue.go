package finance

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"obras/internal/core"
	"obras/internal/store"
)

// SegmentAmount is the revenue of an executed segment: the stored total when
// present, otherwise quantity times the first available unit price (segment,
// then project). With no price at all the amount is zero.
func SegmentAmount(s core.Segment, projectPrice *decimal.Decimal) decimal.Decimal {
	if s.StoredTotal != nil {
		return *s.StoredTotal
	}
	price := decimal.Zero
	switch {
	case s.UnitPrice != nil:
		price = *s.UnitPrice
	case projectPrice != nil:
		price = *projectPrice
	}
	return s.ExecutedQuantity.Mul(price)
}

func segmentEvent(s core.Segment, projectPrice *decimal.Decimal) core.RevenueEvent {
	return core.RevenueEvent{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		Name:      s.Name,
		Amount:    SegmentAmount(s, projectPrice),
		Date:      s.CompletionDate,
		Source:    core.SourceExecutedSegment,
	}
}

func invoiceEvent(i core.Invoice) core.RevenueEvent {
	return core.RevenueEvent{
		ID:        i.ID,
		ProjectID: i.ProjectID,
		Name:      i.LineName,
		Amount:    i.StoredTotal,
		Date:      i.CompletionDate,
		Source:    core.SourceFormalInvoice,
	}
}

// ResolveRevenue returns the period-wide revenue events.
//
// Executed segments win over formal invoices. With ScopeGlobal (the default)
// a single executed segment in any project suppresses every invoice of the
// period; with ScopeProject the switch is made per project.
func (e *Engine) ResolveRevenue(ctx context.Context, p core.Period, opts ...ReadOption) ([]core.RevenueEvent, error) {
	ro := collectReadOptions(opts)
	q, err := window(p)
	if err != nil {
		return nil, err
	}

	var events []core.RevenueEvent
	if e.scope == ScopeProject {
		events, err = e.revenuePerProject(ctx, q)
	} else {
		events, err = e.revenueGlobal(ctx, q)
	}
	if err != nil {
		return nil, e.readFailed(ctx, "resolve revenue", p, err, ro)
	}
	sortRevenue(events)
	return events, nil
}

func (e *Engine) revenueGlobal(ctx context.Context, q store.Query) ([]core.RevenueEvent, error) {
	segs, err := e.completedSegments(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(segs) > 0 {
		prices, err := e.projectPrices(ctx, segs)
		if err != nil {
			return nil, err
		}
		events := make([]core.RevenueEvent, len(segs))
		for i, s := range segs {
			events[i] = segmentEvent(s, prices[s.ProjectID])
		}
		return events, nil
	}

	invs, err := e.formalInvoices(ctx, q)
	if err != nil {
		return nil, err
	}
	events := make([]core.RevenueEvent, len(invs))
	for i, inv := range invs {
		events[i] = invoiceEvent(inv)
	}
	return events, nil
}

func (e *Engine) revenuePerProject(ctx context.Context, q store.Query) ([]core.RevenueEvent, error) {
	segs, err := e.completedSegments(ctx, q)
	if err != nil {
		return nil, err
	}
	prices, err := e.projectPrices(ctx, segs)
	if err != nil {
		return nil, err
	}
	invs, err := e.formalInvoices(ctx, q)
	if err != nil {
		return nil, err
	}

	withSegments := make(map[string]bool, len(segs))
	events := make([]core.RevenueEvent, 0, len(segs)+len(invs))
	for _, s := range segs {
		withSegments[s.ProjectID] = true
		events = append(events, segmentEvent(s, prices[s.ProjectID]))
	}
	for _, inv := range invs {
		if withSegments[inv.ProjectID] {
			continue
		}
		events = append(events, invoiceEvent(inv))
	}
	return events, nil
}

// projectRevenue applies the fallback rule to a single project.
func (e *Engine) projectRevenue(ctx context.Context, q store.Query, project core.Project) ([]core.RevenueEvent, error) {
	q = q.ForProject(project.ID)

	segs, err := e.completedSegments(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(segs) > 0 {
		events := make([]core.RevenueEvent, len(segs))
		for i, s := range segs {
			events[i] = segmentEvent(s, project.DefaultUnitPrice)
		}
		return events, nil
	}

	invs, err := e.formalInvoices(ctx, q)
	if err != nil {
		return nil, err
	}
	events := make([]core.RevenueEvent, len(invs))
	for i, inv := range invs {
		events[i] = invoiceEvent(inv)
	}
	return events, nil
}

// projectPrices looks up default unit prices, only when some segment
// actually needs one.
func (e *Engine) projectPrices(ctx context.Context, segs []core.Segment) (map[string]*decimal.Decimal, error) {
	needed := false
	for _, s := range segs {
		if s.StoredTotal == nil && s.UnitPrice == nil {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}

	projects, err := e.activeProjects(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]*decimal.Decimal, len(projects))
	for _, p := range projects {
		prices[p.ID] = p.DefaultUnitPrice
	}
	return prices, nil
}

func (e *Engine) completedSegments(ctx context.Context, q store.Query) ([]core.Segment, error) {
	segs, err := e.store.QueryCompletedSegments(ctx, q)
	if err != nil {
		return nil, core.NewDataSourceError("query completed segments", err)
	}
	return segs, nil
}

func (e *Engine) formalInvoices(ctx context.Context, q store.Query) ([]core.Invoice, error) {
	invs, err := e.store.QueryFormalInvoices(ctx, q)
	if err != nil {
		return nil, core.NewDataSourceError("query formal invoices", err)
	}
	return invs, nil
}

func (e *Engine) activeProjects(ctx context.Context) ([]core.Project, error) {
	projects, err := e.store.QueryActiveProjects(ctx)
	if err != nil {
		return nil, core.NewDataSourceError("query active projects", err)
	}
	return projects, nil
}

// SourceOf reports which collection produced the events.
func SourceOf(events []core.RevenueEvent) core.RevenueSource {
	var src core.RevenueSource
	for _, ev := range events {
		if src != core.SourceNone && ev.Source != src {
			return core.SourceMixed
		}
		src = ev.Source
	}
	return src
}

func sortRevenue(events []core.RevenueEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date.Time) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
}
