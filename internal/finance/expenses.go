package finance

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"obras/internal/core"
	"obras/internal/store"
)

// ResolveExpenses returns every expense dated within the period, including
// expenses that are not linked to a project.
func (e *Engine) ResolveExpenses(ctx context.Context, p core.Period, opts ...ReadOption) ([]core.ExpenseEvent, error) {
	ro := collectReadOptions(opts)
	q, err := window(p)
	if err != nil {
		return nil, err
	}

	events, err := e.expenses(ctx, q)
	if err != nil {
		return nil, e.readFailed(ctx, "resolve expenses", p, err, ro)
	}
	return events, nil
}

func (e *Engine) expenses(ctx context.Context, q store.Query) ([]core.ExpenseEvent, error) {
	rows, err := e.store.QueryExpenses(ctx, q)
	if err != nil {
		return nil, core.NewDataSourceError("query expenses", err)
	}
	events := make([]core.ExpenseEvent, len(rows))
	for i, r := range rows {
		events[i] = core.ExpenseEvent{
			ID:          r.ID,
			ProjectID:   r.ProjectID,
			EquipmentID: r.EquipmentID,
			Category:    r.Category,
			Description: r.Description,
			Amount:      r.Amount,
			Date:        r.Date,
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date.Time) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// SumBy groups items under a string key and sums their amounts. Keys are
// free text; nothing constrains them to a known set.
func SumBy[T any](items []T, key func(T) string, amount func(T) decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range items {
		k := key(it)
		out[k] = out[k].Add(amount(it))
	}
	return out
}

// ExpensesByDay sums expense amounts per ISO date.
func ExpensesByDay(events []core.ExpenseEvent) map[string]decimal.Decimal {
	return SumBy(events,
		func(e core.ExpenseEvent) string { return e.Date.String() },
		func(e core.ExpenseEvent) decimal.Decimal { return e.Amount })
}

// RevenueByDay sums revenue amounts per ISO date.
func RevenueByDay(events []core.RevenueEvent) map[string]decimal.Decimal {
	return SumBy(events,
		func(e core.RevenueEvent) string { return e.Date.String() },
		func(e core.RevenueEvent) decimal.Decimal { return e.Amount })
}

// ExpensesByCategory returns one total per observed category, largest first.
func ExpensesByCategory(events []core.ExpenseEvent) []core.CategoryTotal {
	sums := SumBy(events,
		func(e core.ExpenseEvent) string { return e.Category },
		func(e core.ExpenseEvent) decimal.Decimal { return e.Amount })

	out := make([]core.CategoryTotal, 0, len(sums))
	for cat, amount := range sums {
		out = append(out, core.CategoryTotal{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TotalRevenue sums event amounts.
func TotalRevenue(events []core.RevenueEvent) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(events))
	for i, ev := range events {
		amounts[i] = ev.Amount
	}
	return core.Sum(amounts...)
}

// TotalExpenses sums event amounts.
func TotalExpenses(events []core.ExpenseEvent) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(events))
	for i, ev := range events {
		amounts[i] = ev.Amount
	}
	return core.Sum(amounts...)
}
