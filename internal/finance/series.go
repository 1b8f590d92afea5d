package finance

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"obras/internal/core"
)

// BuildDailySeries merges period-wide revenue and expenses into one point per
// day with activity, ascending by date. Days without activity are not
// synthesized; see Densify.
func (e *Engine) BuildDailySeries(ctx context.Context, p core.Period, opts ...ReadOption) ([]core.DailySeriesPoint, error) {
	if _, err := window(p); err != nil {
		return nil, err
	}

	var (
		revenue  []core.RevenueEvent
		expenses []core.ExpenseEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = e.ResolveRevenue(gctx, p, opts...)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = e.ResolveExpenses(gctx, p, opts...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return MergeSeries(RevenueByDay(revenue), ExpensesByDay(expenses)), nil
}

// MergeSeries joins two day-keyed maps. A day missing on one side is zero
// there; a day that sums to zero on both sides carries no activity and is
// left out.
func MergeSeries(revenueByDay, expenseByDay map[string]decimal.Decimal) []core.DailySeriesPoint {
	days := make(map[string]struct{}, len(revenueByDay)+len(expenseByDay))
	for d := range revenueByDay {
		days[d] = struct{}{}
	}
	for d := range expenseByDay {
		days[d] = struct{}{}
	}

	keys := make([]string, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	// ISO dates sort chronologically as strings.
	sort.Strings(keys)

	out := make([]core.DailySeriesPoint, 0, len(keys))
	for _, k := range keys {
		rev := revenueByDay[k]
		exp := expenseByDay[k]
		if rev.IsZero() && exp.IsZero() {
			continue
		}
		date, err := core.ParseDate(k)
		if err != nil {
			continue
		}
		out = append(out, core.DailySeriesPoint{Date: date, Revenue: rev, Expense: exp})
	}
	return out
}

// Densify returns one point per calendar day of the period, copying the
// sparse series and filling the gaps with zeros.
func Densify(p core.Period, series []core.DailySeriesPoint) []core.DailySeriesPoint {
	byDay := make(map[string]core.DailySeriesPoint, len(series))
	for _, pt := range series {
		byDay[pt.Date.String()] = pt
	}
	days := p.Range().Days()
	out := make([]core.DailySeriesPoint, len(days))
	for i, d := range days {
		if pt, ok := byDay[d.String()]; ok {
			out[i] = pt
			continue
		}
		out[i] = core.DailySeriesPoint{Date: d, Revenue: decimal.Zero, Expense: decimal.Zero}
	}
	return out
}
