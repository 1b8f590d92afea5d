package main

import (
	"context"
	"errors"
	"os"

	"obras/internal/amqp"
	"obras/internal/cli"
	"obras/internal/log"
	"obras/internal/metrics"
	"obras/internal/sheets"
	gsheet "obras/internal/sheets/google"
	"obras/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting report-worker")

	cfg := cli.MustLoadConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the report worker")
		os.Exit(1)
	}
	metrics.Init()

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	// The worker publishes ReportReady itself, so the report service gets
	// no publisher of its own.
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize report stack", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()

	var writer sheets.ReportWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewReportWorker(app.Reports, writer, client, logger)

	logger.Info("Consuming report requests", "queue", cfg.AMQPQueue)
	if err := client.ConsumeReportRequests(ctx, w.HandleReportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
