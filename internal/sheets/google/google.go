package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"obras/internal/core"
	"obras/internal/log"
	"obras/internal/metrics"
	ports "obras/internal/sheets"
)

var _ ports.ReportWriter = (*Client)(nil)

// Client writes month reports to one spreadsheet, one tab per period.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	base          string
	logger        *log.Logger
}

// Options configures New. Credentials come from CredentialsJSON, then
// CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Logger          *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	credentials, err := serviceAccountJSON(opts)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, opts,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds the client over explicit API client options, such as
// a custom endpoint.
func NewWithOptions(ctx context.Context, opts Options, clientOpts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: id,
		base:          strings.TrimSpace(opts.SheetName),
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func serviceAccountJSON(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// WriteReport replaces the contents of the period tab, creating it on first
// use. Values are sent USER_ENTERED so amounts land as numbers.
func (c *Client) WriteReport(ctx context.Context, r *core.MonthReport) (ref string, err error) {
	if r == nil {
		return "", fmt.Errorf("%w: nil report", core.ErrInvalidArgument)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	start := time.Now()
	defer func() {
		metrics.ObserveExport("sheets", metrics.Result(err), time.Since(start))
	}()

	title := ports.TabTitle(c.base, r.Period)
	if err := c.ensureTab(ctx, title); err != nil {
		return "", err
	}

	whole := quote(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, whole, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear tab %s: %w", title, err)
	}

	rows := ports.ReportRows(r)
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, whole+"!A1", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update tab %s: %w", title, err)
	}

	ref = resp.UpdatedRange
	if ref == "" {
		ref = fmt.Sprintf("%s!A1", whole)
	}
	c.logger.InfoContext(ctx, "Wrote month report",
		log.FieldYear, r.Period.Year,
		log.FieldMonth, r.Period.Month,
		log.FieldSheetsRef, ref,
		"rows", len(rows))
	return ref, nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Created report tab", "tab", title)
	return nil
}

// quote wraps a tab title for A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
