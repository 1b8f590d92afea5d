package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"obras/internal/core"
	"obras/internal/export"
	"obras/internal/finance"
	"obras/internal/log"
)

type reportBody struct {
	*core.MonthReport
	Mode      finance.FailureMode `json:"mode"`
	Failures  []failureBody       `json:"failures,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

type summariesBody struct {
	Period    core.Period                    `json:"period"`
	Mode      finance.FailureMode            `json:"mode"`
	Projects  []core.ProjectFinancialSummary `json:"projects"`
	Failures  []failureBody                  `json:"failures,omitempty"`
	RequestID string                         `json:"request_id,omitempty"`
}

type seriesBody struct {
	Period core.Period             `json:"period"`
	Dense  bool                    `json:"dense"`
	Points []core.DailySeriesPoint `json:"points"`
}

type categoriesBody struct {
	Period     core.Period          `json:"period"`
	Total      decimal.Decimal      `json:"total"`
	Categories []core.CategoryTotal `json:"categories"`
}

// fail logs err at a level matching its status and writes the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, p core.Period, err error) {
	id := requestID(r.Context())
	status := StatusFor(err)
	// The trace middleware stores a logger already carrying the request id.
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	fields := []any{
		log.FieldOperation, op,
		log.FieldYear, p.Year,
		log.FieldMonth, p.Month,
		log.FieldStatusCode, status,
		log.FieldError, err,
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields...)
	}
	_ = errorResponse(err, id).Write(w)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any) {
	if err := NewResponse().JSON(v).Write(w); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to write response",
			log.FieldRequestID, requestID(r.Context()),
			log.FieldError, err)
	}
}

// handleReport serves the consolidated month report. A resilient report
// with skipped projects is still a 200, listing them under failures.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseReportParams(r.URL.Query(), s.now(), s.defaultMode)
	if err != nil {
		s.fail(w, r, log.OpRollup, params.Period, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	report, err := s.reports.MonthReport(ctx, params.Period, params.Mode)
	if err != nil {
		s.fail(w, r, log.OpRollup, params.Period, err)
		return
	}
	s.respond(w, r, reportBody{
		MonthReport: report,
		Mode:        params.Mode,
		Failures:    failureBodies(report.Failures),
		RequestID:   requestID(r.Context()),
	})
}

func (s *Server) handleProjectSummaries(w http.ResponseWriter, r *http.Request) {
	params, err := ParseReportParams(r.URL.Query(), s.now(), s.defaultMode)
	if err != nil {
		s.fail(w, r, log.OpRollup, params.Period, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	summaries, err := s.engine.BuildProjectSummaries(ctx, params.Period, params.Mode)
	var failures []core.ProjectFailure
	var partial *core.PartialAggregationFailure
	if errors.As(err, &partial) {
		summaries, failures, err = partial.Summaries, partial.Failures, nil
	}
	if err != nil {
		s.fail(w, r, log.OpRollup, params.Period, err)
		return
	}
	if summaries == nil {
		summaries = []core.ProjectFinancialSummary{}
	}
	s.respond(w, r, summariesBody{
		Period:    params.Period,
		Mode:      params.Mode,
		Projects:  summaries,
		Failures:  failureBodies(failures),
		RequestID: requestID(r.Context()),
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	params, err := ParseReportParams(r.URL.Query(), s.now(), s.defaultMode)
	if err != nil {
		s.fail(w, r, log.OpSeries, params.Period, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	points, err := s.engine.BuildDailySeries(ctx, params.Period)
	if err != nil {
		s.fail(w, r, log.OpSeries, params.Period, err)
		return
	}
	if params.Dense {
		points = finance.Densify(params.Period, points)
	}
	if points == nil {
		points = []core.DailySeriesPoint{}
	}
	s.respond(w, r, seriesBody{Period: params.Period, Dense: params.Dense, Points: points})
}

// handleExpenseCategories feeds a dashboard widget: a failed read shows an
// empty breakdown instead of an error.
func (s *Server) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, log.OpRead, p, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	expenses, err := s.engine.ResolveExpenses(ctx, p, finance.WithOnError(finance.EmptyFallback))
	if err != nil {
		s.fail(w, r, log.OpRead, p, err)
		return
	}
	s.respond(w, r, categoriesBody{
		Period:     p,
		Total:      finance.TotalExpenses(expenses),
		Categories: finance.ExpensesByCategory(expenses),
	})
}

// handleExport streams the month workbook. Exports default to strict so a
// downloaded file never silently misses a project.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseReportParams(r.URL.Query(), s.now(), finance.Strict)
	if err != nil {
		s.fail(w, r, log.OpExport, params.Period, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	report, err := s.reports.MonthReport(ctx, params.Period, params.Mode)
	if err != nil {
		s.fail(w, r, log.OpExport, params.Period, err)
		return
	}
	data, err := export.BuildWorkbook(report)
	if err != nil {
		s.fail(w, r, log.OpExport, params.Period, err)
		return
	}

	err = NewResponse().
		Body(export.ContentTypeXLSX, data).
		Attachment(export.Filename(params.Period)).
		Header("Cache-Control", "no-store").
		Write(w)
	if err != nil {
		fields := log.NewFields().
			WithRequestID(requestID(r.Context())).
			WithPeriod(params.Period.Year, params.Period.Month)
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Failed to stream workbook", err,
			log.ComponentExport, log.OpExport, fields)
	}
}
