// Package export renders month reports as downloadable files.
package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"obras/internal/core"
	"obras/internal/metrics"
	"obras/internal/sheets"
)

// ContentTypeXLSX is the media type of BuildWorkbook's output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename is the suggested download name: obras-2025-01.xlsx.
func Filename(p core.Period) string {
	return fmt.Sprintf("obras-%s.xlsx", p.String())
}

// BuildWorkbook renders r as an XLSX workbook with one sheet per section.
func BuildWorkbook(r *core.MonthReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWorkbook streams the workbook of r to w.
func WriteWorkbook(w io.Writer, r *core.MonthReport) (err error) {
	if r == nil {
		return fmt.Errorf("%w: nil report", core.ErrInvalidArgument)
	}
	start := time.Now()
	defer func() {
		metrics.ObserveExport("xlsx", metrics.Result(err), time.Since(start))
	}()

	f := excelize.NewFile()
	defer f.Close()

	sections := []struct {
		name string
		rows [][]any
	}{
		{sheets.SectionSummary, sheets.SummaryRows(r)},
		{sheets.SectionProjects, sheets.ProjectRows(r)},
		{sheets.SectionSeries, sheets.SeriesRows(r)},
		{sheets.SectionCategories, sheets.CategoryRows(r)},
	}
	if skipped := sheets.SkippedRows(r); skipped != nil {
		sections = append(sections, struct {
			name string
			rows [][]any
		}{sheets.SectionSkipped, skipped})
	}

	if err := f.SetSheetName("Sheet1", sections[0].name); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, s := range sections {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				return fmt.Errorf("add sheet %s: %w", s.name, err)
			}
		}
		if err := writeRows(f, s.name, s.rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
