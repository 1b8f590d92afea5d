package core

import "github.com/shopspring/decimal"

// RevenueSource tells which store collection produced a revenue event.
type RevenueSource string

const (
	SourceExecutedSegment RevenueSource = "executed-segment"
	SourceFormalInvoice   RevenueSource = "formal-invoice"
	// SourceNone is reported when a period has no revenue at all.
	SourceNone RevenueSource = ""
	// SourceMixed only occurs when the switch is evaluated per project.
	SourceMixed RevenueSource = "mixed"
)

// RevenueEvent is one unit of realized revenue, built per request.
type RevenueEvent struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Date      Date            `json:"date"`
	Source    RevenueSource   `json:"source"`
}

// ExpenseEvent is a read-only projection of a stored expense.
type ExpenseEvent struct {
	ID          string          `json:"id"`
	ProjectID   *string         `json:"project_id"`
	EquipmentID *string         `json:"equipment_id,omitempty"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        Date            `json:"date"`
}

// ProjectFinancialSummary rolls one project's period activity up.
// Profit is TotalRevenue - TotalExpenses and may be negative.
type ProjectFinancialSummary struct {
	ProjectID     string          `json:"project_id"`
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Profit        decimal.Decimal `json:"profit"`
	Margin        decimal.Decimal `json:"margin"` // Profit / TotalRevenue * 100
	RevenueEvents []RevenueEvent  `json:"revenue_events"`
	ExpenseEvents []ExpenseEvent  `json:"expense_events"`
}

// HasActivity reports whether the project belongs in a period's result set.
func (s ProjectFinancialSummary) HasActivity() bool {
	return s.TotalRevenue.IsPositive() || s.TotalExpenses.IsPositive()
}

type DailySeriesPoint struct {
	Date    Date            `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
}

// CategoryTotal represents an amount aggregated by category name.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthReport is the consolidated view for one period. The top-level totals
// come from the period-wide resolvers; Projects is the per-project breakdown,
// so the two revenue figures can legitimately differ.
type MonthReport struct {
	Period        Period                    `json:"period"`
	Range         DateRange                 `json:"range"`
	RevenueSource RevenueSource             `json:"revenue_source"`
	TotalRevenue  decimal.Decimal           `json:"total_revenue"`
	TotalExpenses decimal.Decimal           `json:"total_expenses"`
	Profit        decimal.Decimal           `json:"profit"`
	Margin        decimal.Decimal           `json:"margin"`
	Projects      []ProjectFinancialSummary `json:"projects"`
	Series        []DailySeriesPoint        `json:"series"`
	Categories    []CategoryTotal           `json:"categories"`
	Failures      []ProjectFailure          `json:"failures,omitempty"`
}
