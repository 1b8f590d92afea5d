// Package finance turns stored projects, segments, invoices and expenses into
// period revenue, expense views, per-project summaries and daily series.
//
// The Engine owns no state beyond its configuration; every call builds its
// result from fresh store reads.
package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"obras/internal/core"
	"obras/internal/log"
	"obras/internal/store"
)

// FallbackScope decides where the segment-vs-invoice switch is evaluated on
// the period-wide revenue path.
type FallbackScope string

const (
	// ScopeGlobal: one executed segment anywhere suppresses every invoice
	// in the period.
	ScopeGlobal FallbackScope = "global"
	// ScopeProject: each project falls back to its own invoices when it
	// has no executed segments.
	ScopeProject FallbackScope = "project"
)

func ParseFallbackScope(s string) (FallbackScope, error) {
	switch FallbackScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeGlobal, "":
		return ScopeGlobal, nil
	case ScopeProject:
		return ScopeProject, nil
	default:
		return "", fmt.Errorf("%w: fallback scope %q", core.ErrInvalidArgument, s)
	}
}

// FailureMode is the rollup policy for a project whose queries fail.
type FailureMode string

const (
	// Resilient skips failing projects and reports them in a
	// *core.PartialAggregationFailure next to the computed summaries.
	Resilient FailureMode = "resilient"
	// Strict aborts the whole batch on the first failure.
	Strict FailureMode = "strict"
)

func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(strings.ToLower(strings.TrimSpace(s))) {
	case Resilient, "":
		return Resilient, nil
	case Strict:
		return Strict, nil
	default:
		return "", fmt.Errorf("%w: failure mode %q", core.ErrInvalidArgument, s)
	}
}

// ErrorPolicy tells a single-query read what to do when the store fails.
type ErrorPolicy int

const (
	// Propagate returns the *core.DataSourceError to the caller.
	Propagate ErrorPolicy = iota
	// EmptyFallback logs the failure and returns an empty result. Meant for
	// best-effort widgets only.
	EmptyFallback
)

func (p ErrorPolicy) String() string {
	if p == EmptyFallback {
		return "empty-fallback"
	}
	return "propagate"
}

type readOptions struct {
	onError ErrorPolicy
}

// ReadOption configures a single read.
type ReadOption func(*readOptions)

func WithOnError(p ErrorPolicy) ReadOption {
	return func(o *readOptions) { o.onError = p }
}

func collectReadOptions(opts []ReadOption) readOptions {
	ro := readOptions{onError: Propagate}
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

const defaultConcurrency = 8

type Engine struct {
	store       store.RecordStore
	logger      *log.Logger
	concurrency int
	scope       FallbackScope
}

type Option func(*Engine)

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConcurrency bounds how many projects the rollup computes at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithFallbackScope(s FallbackScope) Option {
	return func(e *Engine) {
		if s != "" {
			e.scope = s
		}
	}
}

func NewEngine(rs store.RecordStore, opts ...Option) *Engine {
	e := &Engine{
		store:       rs,
		logger:      log.Discard(),
		concurrency: defaultConcurrency,
		scope:       ScopeGlobal,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent(log.ComponentFinance)
	return e
}

func (e *Engine) FallbackScope() FallbackScope { return e.scope }

// window validates the period and returns its store query.
func window(p core.Period) (store.Query, error) {
	if err := p.Validate(); err != nil {
		return store.Query{}, err
	}
	r := p.Range()
	if err := r.Validate(); err != nil {
		return store.Query{}, err
	}
	return store.Query{Range: r}, nil
}

// readFailed applies the caller's error policy. It returns nil when the
// failure was downgraded to an empty result.
func (e *Engine) readFailed(ctx context.Context, what string, p core.Period, err error, ro readOptions) error {
	var dse *core.DataSourceError
	if ro.onError != EmptyFallback || ctx.Err() != nil || !errors.As(err, &dse) {
		return err
	}
	e.logger.WarnContext(ctx, "Read failed, returning empty result",
		log.FieldOperation, what,
		log.FieldYear, p.Year,
		log.FieldMonth, p.Month,
		log.FieldError, err,
	)
	return nil
}
