package sheets

import (
	"github.com/shopspring/decimal"

	"obras/internal/core"
)

// Section headers, also used as sheet names by the XLSX export.
const (
	SectionSummary    = "Summary"
	SectionProjects   = "Projects"
	SectionSeries     = "Series"
	SectionCategories = "Categories"
	SectionSkipped    = "Skipped"
)

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// SummaryRows lists the headline figures as label/value pairs.
func SummaryRows(r *core.MonthReport) [][]any {
	return [][]any{
		{"Period", r.Period.String()},
		{"From", r.Range.Start.String()},
		{"To", r.Range.End.String()},
		{"Revenue source", string(r.RevenueSource)},
		{"Total revenue", amount(r.TotalRevenue)},
		{"Total expenses", amount(r.TotalExpenses)},
		{"Profit", amount(r.Profit)},
		{"Margin %", amount(r.Margin)},
	}
}

// ProjectRows is the per-project breakdown, header first.
func ProjectRows(r *core.MonthReport) [][]any {
	rows := make([][]any, 0, len(r.Projects)+1)
	rows = append(rows, []any{"Project", "Name", "Status", "Revenue", "Expenses", "Profit", "Margin %"})
	for _, p := range r.Projects {
		rows = append(rows, []any{
			p.ProjectID, p.Name, p.Status,
			amount(p.TotalRevenue), amount(p.TotalExpenses), amount(p.Profit), amount(p.Margin),
		})
	}
	return rows
}

// SeriesRows is the daily series, header first.
func SeriesRows(r *core.MonthReport) [][]any {
	rows := make([][]any, 0, len(r.Series)+1)
	rows = append(rows, []any{"Date", "Revenue", "Expense"})
	for _, pt := range r.Series {
		rows = append(rows, []any{pt.Date.String(), amount(pt.Revenue), amount(pt.Expense)})
	}
	return rows
}

// CategoryRows is the expense breakdown by category, header first.
func CategoryRows(r *core.MonthReport) [][]any {
	rows := make([][]any, 0, len(r.Categories)+1)
	rows = append(rows, []any{"Category", "Amount"})
	for _, c := range r.Categories {
		rows = append(rows, []any{c.Category, amount(c.Amount)})
	}
	return rows
}

// SkippedRows lists projects left out of a resilient rollup. Nil when none.
func SkippedRows(r *core.MonthReport) [][]any {
	if len(r.Failures) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(r.Failures)+1)
	rows = append(rows, []any{"Skipped project", "Name", "Reason"})
	for _, f := range r.Failures {
		rows = append(rows, []any{f.ProjectID, f.Name, f.Reason()})
	}
	return rows
}

// ReportRows stacks every section on one tab, separated by empty rows.
func ReportRows(r *core.MonthReport) [][]any {
	sections := [][][]any{SummaryRows(r), ProjectRows(r), SeriesRows(r), CategoryRows(r)}
	if skipped := SkippedRows(r); skipped != nil {
		sections = append(sections, skipped)
	}

	var rows [][]any
	for i, s := range sections {
		if i > 0 {
			rows = append(rows, []any{})
		}
		rows = append(rows, s...)
	}
	return rows
}
