package core

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date layout used for every date key.
const DateLayout = "2006-01-02"

const (
	SegmentStatusCompleted = "completed"
	SegmentStatusPlanned   = "planned"

	ProjectStatusActive   = "active"
	ProjectStatusPaused   = "paused"
	ProjectStatusFinished = "finished"
)

type (
	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	Project struct {
		ID               string           `json:"id"`
		Name             string           `json:"name"`
		Status           string           `json:"status"`
		DefaultUnitPrice *decimal.Decimal `json:"default_unit_price,omitempty"`
	}

	// Segment is one executed subdivision of a project (a street, a lot).
	Segment struct {
		ID               string           `json:"id"`
		ProjectID        string           `json:"project_id"`
		Name             string           `json:"name"`
		ExecutedQuantity decimal.Decimal  `json:"executed_quantity"`
		UnitPrice        *decimal.Decimal `json:"unit_price,omitempty"`
		StoredTotal      *decimal.Decimal `json:"stored_total,omitempty"`
		CompletionDate   Date             `json:"completion_date"`
		Status           string           `json:"status"`
	}

	Invoice struct {
		ID             string          `json:"id"`
		ProjectID      string          `json:"project_id"`
		LineName       string          `json:"line_name"`
		StoredTotal    decimal.Decimal `json:"stored_total"`
		CompletionDate Date            `json:"completion_date"`
		PaymentStatus  string          `json:"payment_status"`
	}

	Expense struct {
		ID          string          `json:"id"`
		ProjectID   *string         `json:"project_id,omitempty"` // nil for general costs (equipment maintenance, overhead)
		EquipmentID *string         `json:"equipment_id,omitempty"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
	}
)

var (
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrNegativeAmount   = errors.New("negative amount")
	ErrMissingDate      = errors.New("missing date")
	ErrMissingProjectID = errors.New("missing project id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: %v", ErrInvalidArgument, s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores dates as ISO text so range comparisons work on every dialect.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan accepts DATE columns (time.Time) as well as ISO text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) >= len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.DefaultUnitPrice != nil && p.DefaultUnitPrice.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (s Segment) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(s.ProjectID) == "" {
		return ErrMissingProjectID
	}
	if s.ExecutedQuantity.IsNegative() {
		return ErrNegativeAmount
	}
	if s.UnitPrice != nil && s.UnitPrice.IsNegative() {
		return ErrNegativeAmount
	}
	if s.StoredTotal != nil && s.StoredTotal.IsNegative() {
		return ErrNegativeAmount
	}
	if s.Status == SegmentStatusCompleted && s.CompletionDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (i Invoice) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(i.ProjectID) == "" {
		return ErrMissingProjectID
	}
	if i.StoredTotal.IsNegative() {
		return ErrNegativeAmount
	}
	if i.CompletionDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}
