package worker

import (
	"context"
	"errors"
	"fmt"

	"obras/internal/amqp"
	"obras/internal/core"
	"obras/internal/finance"
	"obras/internal/log"
	"obras/internal/metrics"
	"obras/internal/services"
	"obras/internal/sheets"
)

// ReportWorker builds month reports on request, writes them to the
// spreadsheet and announces them.
type ReportWorker struct {
	reports   *services.ReportService
	writer    sheets.ReportWriter
	publisher services.ReadyPublisher
	logger    *log.Logger
}

// NewReportWorker wires the worker. writer and publisher are optional. The
// report service should not carry its own ready publisher, otherwise every
// report is announced twice.
func NewReportWorker(reports *services.ReportService, writer sheets.ReportWriter, publisher services.ReadyPublisher, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportWorker{
		reports:   reports,
		writer:    writer,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// requestMode defaults to strict: an exported report must not silently miss
// projects.
func requestMode(s string) (finance.FailureMode, error) {
	if s == "" {
		return finance.Strict, nil
	}
	return finance.ParseFailureMode(s)
}

// HandleReportRequest processes one request. Invalid requests come back
// wrapped in amqp.ErrPermanent so they are not redelivered; store and
// spreadsheet failures are returned as is and retried.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	logger := w.logger.With("request_id", msg.RequestID)

	p, err := msg.Period()
	if err != nil {
		metrics.IncReportRequest(metrics.ResultRejected)
		return amqp.Permanent(err)
	}
	mode, err := requestMode(msg.Mode)
	if err != nil {
		metrics.IncReportRequest(metrics.ResultRejected)
		return amqp.Permanent(err)
	}

	logger.InfoContext(ctx, "Processing report request",
		log.FieldYear, p.Year,
		log.FieldMonth, p.Month,
		log.FieldMode, string(mode))

	report, err := w.reports.MonthReport(ctx, p, mode)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			metrics.IncReportRequest(metrics.ResultRejected)
			return amqp.Permanent(err)
		}
		metrics.IncReportRequest(metrics.ResultError)
		return fmt.Errorf("build report %s: %w", p, err)
	}

	var ref string
	if w.writer != nil {
		ref, err = w.writer.WriteReport(ctx, report)
		if err != nil {
			metrics.IncReportRequest(metrics.ResultError)
			return fmt.Errorf("write report %s to sheets: %w", p, err)
		}
	} else {
		logger.DebugContext(ctx, "No report writer configured, skipping spreadsheet")
	}

	if w.publisher != nil {
		ready := amqp.NewReportReadyMessage(msg.RequestID, string(mode), report)
		ready.SheetsRef = ref
		if err := w.publisher.PublishReportReady(ctx, ready); err != nil {
			// The report is written; only the notification is lost.
			logger.ErrorContext(ctx, "Failed to publish report ready", log.FieldError, err)
		}
	}

	metrics.IncReportRequest(metrics.ResultSuccess)
	logger.InfoContext(ctx, "Report request completed",
		log.FieldYear, p.Year,
		log.FieldMonth, p.Month,
		log.FieldProjects, len(report.Projects),
		log.FieldSheetsRef, ref)
	return nil
}
