package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"obras/internal/finance"
	"obras/internal/log"
	"obras/internal/metrics"
	"obras/internal/middleware/ratelimit"
	"obras/internal/middleware/security"
	"obras/internal/middleware/trace"
	"obras/internal/services"
)

const (
	defaultQueryTimeout = 15 * time.Second
	readyTimeout        = 2 * time.Second

	exportRoute = "GET /api/reports/export.xlsx"
)

// Dependencies are the collaborators the API serves from.
type Dependencies struct {
	Reports *services.ReportService
	// Ready reports whether the record store can serve queries; nil means
	// always ready.
	Ready func(ctx context.Context) error
	// DefaultMode applies when a request carries no mode. Exports always
	// default to strict.
	DefaultMode finance.FailureMode
	Logger      *log.Logger
}

// Server is the JSON API over the report service.
type Server struct {
	http.Server

	reports      *services.ReportService
	engine       *finance.Engine
	ready        func(ctx context.Context) error
	defaultMode  finance.FailureMode
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	ips          *security.IPExtractor
	proxies      []string
	queryTimeout time.Duration
	now          func() time.Time

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithQueryTimeout bounds every store-backed request.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithExportLimiter throttles the workbook download per client.
func WithExportLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithTrustedProxies adds proxy networks whose forwarding headers are
// believed when resolving the client address.
func WithTrustedProxies(cidrs ...string) Option {
	return func(s *Server) { s.proxies = append(s.proxies, cidrs...) }
}

// WithClock sets the clock used for the default period.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts ...Option) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	mode := deps.DefaultMode
	if mode == "" {
		mode = finance.Resilient
	}

	s := &Server{
		reports:      deps.Reports,
		engine:       deps.Reports.Engine(),
		ready:        deps.Ready,
		defaultMode:  mode,
		logger:       logger.WithComponent(log.ComponentHTTP),
		ips:          security.NewIPExtractor(),
		queryTimeout: defaultQueryTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	for _, cidr := range s.proxies {
		if err := s.ips.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/reports", s.handleReport)
	mux.HandleFunc("GET /api/projects/summaries", s.handleProjectSummaries)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("GET /api/expenses/categories", s.handleExpenseCategories)

	limited := s.limiter.Middleware(s.ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		_ = TooManyRequestsError(requestID(r.Context())).Write(w)
	})
	exportHandler := limited(http.HandlerFunc(s.handleExport))
	mux.HandleFunc(exportRoute, func(w http.ResponseWriter, r *http.Request) {
		exportHandler.ServeHTTP(w, r)
		metrics.SetRateLimiterState(exportRoute, s.limiter.ActiveClients(), s.limiter.Rejected())
	})

	tracer := trace.NewMiddleware(logger, s.ips.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(tracer.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Shutdown stops the limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requestContext bounds a handler's store work and tags it with the request
// id so downstream logs and messages carry it.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := services.WithRequestID(r.Context(), requestID(r.Context()))
	return context.WithTimeout(ctx, s.queryTimeout)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			_ = ServiceUnavailableError("record store not ready", requestID(r.Context())).Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
