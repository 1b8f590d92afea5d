package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"obras/internal/amqp"
	"obras/internal/backend"
	"obras/internal/config"
	"obras/internal/core"
	"obras/internal/export"
	"obras/internal/finance"
	"obras/internal/log"
	"obras/internal/store"
)

// rootOptions are the persistent flags; a set flag overrides the matching
// environment variable.
type rootOptions struct {
	backend  string
	sqlite   string
	database string
	seedFile string
	logLevel string

	cfg    *config.Config
	logger *log.Logger
}

type periodFlags struct {
	year  int
	month int
	mode  string
}

func (f *periodFlags) register(cmd *cobra.Command, modeDefault string) {
	cmd.Flags().IntVar(&f.year, "year", 0, "report year (default current year)")
	cmd.Flags().IntVar(&f.month, "month", 0, "report month 1-12 (default current month)")
	if modeDefault != "-" {
		cmd.Flags().StringVar(&f.mode, "mode", modeDefault, "rollup failure mode: resilient or strict")
	}
}

func (f *periodFlags) period(now time.Time) (core.Period, error) {
	year, month := f.year, f.month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return core.NewPeriod(year, month)
}

// NewRootCommand builds the obras-cli command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "obras-cli",
		Short:         "Consolidated construction financials from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			LoadEnvFile()
			cfg := config.Load()
			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.DataBackend = opts.backend
			}
			if flags.Changed("sqlite-path") {
				cfg.SQLiteDBPath = opts.sqlite
			}
			if flags.Changed("database-url") {
				cfg.DatabaseURL = opts.database
			}
			if flags.Changed("seed-file") {
				cfg.SeedFile = opts.seedFile
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel).WithComponent(log.ComponentCLI)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.backend, "backend", "",
		"record store: "+strings.Join(backend.GetBackendTypeStrings(), ", ")+" (env DATA_BACKEND)")
	pf.StringVar(&opts.sqlite, "sqlite-path", "", "SQLite database file (env SQLITE_DB_PATH)")
	pf.StringVar(&opts.database, "database-url", "", "Postgres connection URL (env DATABASE_URL)")
	pf.StringVar(&opts.seedFile, "seed-file", "", "JSON fixture for the memory backend (env SEED_FILE)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	root.AddCommand(
		newSummaryCommand(opts),
		newSeriesCommand(opts),
		newExportCommand(opts),
		newRequestCommand(opts),
		newSeedCommand(opts),
	)
	return root
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var pf periodFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the month report: totals and per-project breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.period(time.Now())
			if err != nil {
				return err
			}
			mode, err := finance.ParseFailureMode(pf.mode)
			if err != nil {
				return err
			}

			app, err := NewApp(cmd.Context(), opts.cfg, opts.logger, WithoutCache())
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Reports.MonthReport(cmd.Context(), p, mode)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printSummary(cmd.OutOrStdout(), report)
		},
	}
	pf.register(cmd, string(finance.Resilient))
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printSummary(out io.Writer, r *core.MonthReport) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	source := string(r.RevenueSource)
	if source == "" {
		source = "none"
	}
	fmt.Fprintf(tw, "Period\t%s (%s)\n", r.Period, r.Range)
	fmt.Fprintf(tw, "Revenue source\t%s\n", source)
	fmt.Fprintf(tw, "Total revenue\t%s\n", r.TotalRevenue.StringFixed(2))
	fmt.Fprintf(tw, "Total expenses\t%s\n", r.TotalExpenses.StringFixed(2))
	fmt.Fprintf(tw, "Profit\t%s\n", r.Profit.StringFixed(2))
	fmt.Fprintf(tw, "Margin %%\t%s\n", r.Margin.StringFixed(2))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "PROJECT\tNAME\tREVENUE\tEXPENSES\tPROFIT\tMARGIN %")
	for _, s := range r.Projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ProjectID, s.Name,
			s.TotalRevenue.StringFixed(2), s.TotalExpenses.StringFixed(2),
			s.Profit.StringFixed(2), s.Margin.StringFixed(2))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(tw, "%s\t%s\tskipped: %s\n", f.ProjectID, f.Name, f.Reason())
	}
	return tw.Flush()
}

func newSeriesCommand(opts *rootOptions) *cobra.Command {
	var pf periodFlags
	var dense bool

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print daily revenue and expense totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.period(time.Now())
			if err != nil {
				return err
			}
			app, err := NewApp(cmd.Context(), opts.cfg, opts.logger, WithoutCache())
			if err != nil {
				return err
			}
			defer app.Close()

			points, err := app.Engine.BuildDailySeries(cmd.Context(), p)
			if err != nil {
				return err
			}
			if dense {
				points = finance.Densify(p, points)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tREVENUE\tEXPENSE")
			for _, pt := range points {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", pt.Date, pt.Revenue.StringFixed(2), pt.Expense.StringFixed(2))
			}
			return tw.Flush()
		},
	}
	pf.register(cmd, "-")
	cmd.Flags().BoolVar(&dense, "dense", false, "include days without activity")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var pf periodFlags
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the month report as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.period(time.Now())
			if err != nil {
				return err
			}
			mode, err := finance.ParseFailureMode(pf.mode)
			if err != nil {
				return err
			}
			if out == "" {
				out = export.Filename(p)
			}

			app, err := NewApp(cmd.Context(), opts.cfg, opts.logger, WithoutCache())
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Reports.MonthReport(cmd.Context(), p, mode)
			if err != nil {
				return err
			}
			data, err := export.BuildWorkbook(report)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			opts.logger.InfoContext(cmd.Context(), "Workbook written",
				log.FieldYear, p.Year,
				log.FieldMonth, p.Month,
				"path", out)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	pf.register(cmd, string(finance.Strict))
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default obras-YYYY-MM.xlsx)")
	return cmd
}

func newRequestCommand(opts *rootOptions) *cobra.Command {
	var pf periodFlags

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Queue a report request for the report worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.period(time.Now())
			if err != nil {
				return err
			}
			if pf.mode != "" {
				if _, err := finance.ParseFailureMode(pf.mode); err != nil {
					return err
				}
			}
			if !opts.cfg.AMQPEnabled() {
				return errors.New("AMQP_URL is not configured")
			}

			client, err := amqp.NewClient(opts.cfg.AMQPURL, opts.cfg.AMQPExchange, opts.cfg.AMQPQueue, opts.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			msg := amqp.NewReportRequestMessage(p.Year, p.Month, pf.mode)
			if err := client.PublishReportRequest(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.RequestID)
			return nil
		},
	}
	// Empty lets the worker pick its own default.
	pf.register(cmd, "")
	return cmd
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a JSON fixture into the SQL record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.DataBackend == "memory" {
				return errors.New("seed needs a sqlite or postgres backend")
			}
			fixture, err := store.LoadFixture(file)
			if err != nil {
				return err
			}

			app, err := NewApp(cmd.Context(), opts.cfg, opts.logger, WithoutCache())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := fixture.Apply(cmd.Context(), app.Backend.Store); err != nil {
				return err
			}
			opts.logger.InfoContext(cmd.Context(), "Fixture loaded",
				log.FieldOperation, log.OpSeed,
				"records", fixture.Count())
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records\n", fixture.Count())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
