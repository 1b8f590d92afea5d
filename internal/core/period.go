package core

import (
	"fmt"
	"time"
)

// Period is one calendar month, the default aggregation window.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewPeriod validates year and month.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ResolvePeriod returns the inclusive first and last day of the month.
func ResolvePeriod(year, month int) (DateRange, error) {
	p, err := NewPeriod(year, month)
	if err != nil {
		return DateRange{}, err
	}
	return p.Range(), nil
}

// MaxYear is the last year a period may fall in.
const MaxYear = 9999

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMonth, p.Month)
	}
	// Dates are keyed and compared as four-digit ISO text.
	if p.Year < 1 || p.Year > MaxYear {
		return fmt.Errorf("%w (got %d)", ErrInvalidYear, p.Year)
	}
	return nil
}

func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

// End is the last calendar day: day 0 of the next month.
func (p Period) End() Date {
	return Date{Time: time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC)}
}

// Days is the number of calendar days in the month.
func (p Period) Days() int {
	return p.End().Day()
}

func (p Period) Range() DateRange {
	return DateRange{Start: p.Start(), End: p.End()}
}

// String renders YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: range bounds must be set", ErrInvalidArgument)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w (%s > %s)", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Contains reports whether d falls within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days lists every day of the range in order.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; !d.After(r.End); d = (Date{Time: d.AddDate(0, 0, 1)}) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
