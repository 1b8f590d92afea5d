// Package memory keeps written report tabs in memory, for development
// without a spreadsheet and for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"obras/internal/core"
	"obras/internal/sheets"
)

var _ sheets.ReportWriter = (*Writer)(nil)

type Writer struct {
	mu     sync.Mutex
	base   string
	tabs   map[string][][]any
	writes int
}

func New(base string) *Writer {
	return &Writer{base: base, tabs: map[string][][]any{}}
}

// WriteReport replaces the period tab and returns a synthetic reference.
func (w *Writer) WriteReport(ctx context.Context, r *core.MonthReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("%w: nil report", core.ErrInvalidArgument)
	}
	rows := sheets.ReportRows(r)
	title := sheets.TabTitle(w.base, r.Period)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tabs[title] = rows
	w.writes++
	return fmt.Sprintf("mem:%s!A1:%d", title, len(rows)), nil
}

// Tab returns a copy of the rows written under title.
func (w *Writer) Tab(title string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.tabs[title]
	if !ok {
		return nil, false
	}
	return append([][]any(nil), rows...), true
}

// Writes counts WriteReport calls.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
