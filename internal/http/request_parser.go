// Package http provides HTTP server and handler implementations.
//
// This file implements the query string parsing shared by the report
// endpoints: the period, the rollup failure mode and boolean flags.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"obras/internal/core"
	"obras/internal/finance"
)

// ReportParams holds the parsed query of a report endpoint.
type ReportParams struct {
	Period core.Period
	Mode   finance.FailureMode
	Dense  bool
}

// ParsePeriod reads year and month from the query. A missing value defaults
// to now's; a present value must be an integer and the pair a valid period.
func ParsePeriod(query url.Values, now time.Time) (core.Period, error) {
	year, err := intParam(query, "year", now.Year())
	if err != nil {
		return core.Period{}, err
	}
	month, err := intParam(query, "month", int(now.Month()))
	if err != nil {
		return core.Period{}, err
	}
	return core.NewPeriod(year, month)
}

// ParseMode reads the failure mode, falling back to def when absent.
func ParseMode(query url.Values, def finance.FailureMode) (finance.FailureMode, error) {
	v := strings.TrimSpace(query.Get("mode"))
	if v == "" {
		return def, nil
	}
	return finance.ParseFailureMode(v)
}

// ParseFlag reads a boolean query flag. A bare "?dense" counts as true.
func ParseFlag(query url.Values, name string) (bool, error) {
	if !query.Has(name) {
		return false, nil
	}
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", core.ErrInvalidArgument, name, v)
	}
	return b, nil
}

// ParseReportParams parses period, mode and the dense flag in one go.
func ParseReportParams(query url.Values, now time.Time, defMode finance.FailureMode) (ReportParams, error) {
	p, err := ParsePeriod(query, now)
	if err != nil {
		return ReportParams{}, err
	}
	mode, err := ParseMode(query, defMode)
	if err != nil {
		return ReportParams{}, err
	}
	dense, err := ParseFlag(query, "dense")
	if err != nil {
		return ReportParams{}, err
	}
	return ReportParams{Period: p, Mode: mode, Dense: dense}, nil
}

func intParam(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", core.ErrInvalidArgument, name, v)
	}
	return n, nil
}
