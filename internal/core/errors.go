package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument marks input rejected before any store query is issued.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	ErrInvalidMonth = fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidArgument)
	ErrInvalidYear  = fmt.Errorf("%w: year must be between 1 and 9999", ErrInvalidArgument)
	ErrInvalidRange = fmt.Errorf("%w: range start after end", ErrInvalidArgument)
)

// DataSourceError reports a failed store query.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source: %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// NewDataSourceError wraps err unless it is nil or already a DataSourceError.
func NewDataSourceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dse *DataSourceError
	if errors.As(err, &dse) {
		return err
	}
	return &DataSourceError{Op: op, Err: err}
}

// ProjectFailure is one project the rollup could not compute.
type ProjectFailure struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Err       error  `json:"-"`
}

func (f ProjectFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// PartialAggregationFailure is returned by the resilient rollup when at least
// one project failed. Summaries holds everything that was computed.
type PartialAggregationFailure struct {
	Failures  []ProjectFailure
	Summaries []ProjectFinancialSummary
}

func (e *PartialAggregationFailure) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ProjectID
	}
	return fmt.Sprintf("partial aggregation: %d project(s) failed: %s", len(e.Failures), strings.Join(ids, ", "))
}

// Unwrap exposes the per-project causes to errors.Is / errors.As.
func (e *PartialAggregationFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// FailedProjectIDs lists the ids of the skipped projects.
func (e *PartialAggregationFailure) FailedProjectIDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ProjectID
	}
	return ids
}
