// Package sheets publishes month reports to spreadsheet tabs.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"obras/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the tab of the report's period with its rows and
	// returns a reference to the written range.
	ReportWriter interface {
		WriteReport(ctx context.Context, r *core.MonthReport) (ref string, err error)
	}
)

// TabTitle names the tab of a period: "2025-01 Obras".
func TabTitle(base string, p core.Period) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return p.String()
	}
	return fmt.Sprintf("%s %s", p.String(), base)
}
