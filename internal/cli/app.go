package cli

import (
	"context"
	"errors"
	"fmt"

	"obras/internal/backend"
	"obras/internal/cache"
	"obras/internal/config"
	"obras/internal/core"
	"obras/internal/finance"
	"obras/internal/log"
	"obras/internal/services"
)

// App is the wired report stack shared by every entry point.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Backend *backend.BackendResult
	Engine  *finance.Engine
	Reports *services.ReportService
	Caches  *cache.Manager
}

type appOptions struct {
	publisher services.ReadyPublisher
	noCache   bool
}

type AppOption func(*appOptions)

// WithPublisher announces every freshly built report.
func WithPublisher(p services.ReadyPublisher) AppOption {
	return func(o *appOptions) { o.publisher = p }
}

// WithoutCache disables the report cache, for one-shot commands.
func WithoutCache() AppOption {
	return func(o *appOptions) { o.noCache = true }
}

// NewApp opens the configured record store and builds the engine and the
// report service on top of it.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...AppOption) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	scope, err := finance.ParseFallbackScope(cfg.RevenueFallbackScope)
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	engine := finance.NewEngine(res.Reads,
		finance.WithLogger(logger),
		finance.WithConcurrency(cfg.RollupConcurrency),
		finance.WithFallbackScope(scope))

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Backend: res,
		Engine:  engine,
		Caches:  cache.NewManager(logger),
	}

	reportOpts := []services.ReportOption{services.WithReportLogger(logger)}
	if !o.noCache && cfg.ReportCacheSize > 0 {
		reports := cache.NewLRUCache[string, *core.MonthReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		app.Caches.Register(reports)
		app.Caches.StartCleanup(cfg.ReportCacheTTL)
		reportOpts = append(reportOpts, services.WithReportCache(reports))
	}
	if o.publisher != nil {
		reportOpts = append(reportOpts, services.WithReadyPublisher(o.publisher))
	}
	app.Reports = services.NewReportService(engine, reportOpts...)
	return app, nil
}

// DefaultMode is the configured rollup failure mode.
func (a *App) DefaultMode() finance.FailureMode {
	mode, err := finance.ParseFailureMode(a.Config.RollupFailureMode)
	if err != nil {
		return finance.Resilient
	}
	return mode
}

// Close stops cache cleanup, closes the ready publisher and releases the
// record store.
func (a *App) Close() error {
	a.Caches.Stop()
	return errors.Join(a.Reports.Close(), a.Backend.Close())
}
