// Package metrics exposes the Prometheus collectors used across the service.
// Every helper is safe to call before Init; observations are dropped until the
// collectors exist.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "obras_"

	resultSuccess = "success"
	resultError   = "error"
	resultPartial = "partial"
)

var (
	registerOnce sync.Once

	rollupTotal    *prometheus.CounterVec
	rollupLatency  *prometheus.HistogramVec
	projectFailure *prometheus.CounterVec

	storeQueryTotal   *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	reportRequests *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	rateLimitClients  *prometheus.GaugeVec
	rateLimitRejected *prometheus.GaugeVec
)

// Init registers collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		rollupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_runs_total",
				Help: "Total project rollup runs by failure mode and result",
			},
			[]string{"mode", "result"},
		)
		rollupLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "rollup_latency_seconds",
				Help:    "Project rollup latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)
		projectFailure = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rollup_project_failures_total",
				Help: "Projects skipped or aborted during rollup",
			},
			[]string{"mode"},
		)

		storeQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_queries_total",
				Help: "Total record store queries by collection and result",
			},
			[]string{"collection", "result"},
		)
		storeQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_query_latency_seconds",
				Help:    "Record store query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_cache_lookups_total",
				Help: "Report cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		reportRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_requests_total",
				Help: "Report requests handled by the worker by result",
			},
			[]string{"result"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by route pattern, method and status code",
			},
			[]string{"route", "method", "code"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		)

		rateLimitClients = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ratelimit_active_clients",
				Help: "Clients currently tracked by a route's rate limiter",
			},
			[]string{"route"},
		)
		rateLimitRejected = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ratelimit_rejected_requests",
				Help: "Requests refused by a route's rate limiter since start",
			},
			[]string{"route"},
		)

		prometheus.MustRegister(
			rollupTotal,
			rollupLatency,
			projectFailure,
			storeQueryTotal,
			storeQueryLatency,
			exportTotal,
			exportLatency,
			cacheLookups,
			reportRequests,
			httpRequests,
			httpLatency,
			rateLimitClients,
			rateLimitRejected,
		)
	})
}

// ObserveRollup records one BuildProjectSummaries run.
func ObserveRollup(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if rollupTotal != nil {
		rollupTotal.WithLabelValues(mode, result).Inc()
	}
	if rollupLatency != nil {
		rollupLatency.WithLabelValues(mode, result).Observe(duration.Seconds())
	}
}

// AddProjectFailures counts projects that could not be summarized.
func AddProjectFailures(mode string, count int) {
	if count <= 0 {
		return
	}
	if projectFailure != nil {
		projectFailure.WithLabelValues(mode).Add(float64(count))
	}
}

// ObserveStoreQuery records one record store read.
func ObserveStoreQuery(collection, result string, duration time.Duration) {
	if collection == "" {
		collection = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if storeQueryTotal != nil {
		storeQueryTotal.WithLabelValues(collection, result).Inc()
	}
	if storeQueryLatency != nil {
		storeQueryLatency.WithLabelValues(collection, result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

func IncCacheHit() {
	if cacheLookups != nil {
		cacheLookups.WithLabelValues("hit").Inc()
	}
}

func IncCacheMiss() {
	if cacheLookups != nil {
		cacheLookups.WithLabelValues("miss").Inc()
	}
}

// IncReportRequest counts worker outcomes (success, error, rejected).
func IncReportRequest(result string) {
	if result == "" {
		result = "unknown"
	}
	if reportRequests != nil {
		reportRequests.WithLabelValues(result).Inc()
	}
}

// ObserveHTTPRequest records one served request. route is the matched mux
// pattern, never the raw path.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
	}
}

// SetRateLimiterState publishes a limiter's tracked clients and its running
// rejection count.
func SetRateLimiterState(route string, activeClients int, rejected int64) {
	if rateLimitClients != nil {
		rateLimitClients.WithLabelValues(route).Set(float64(activeClients))
	}
	if rateLimitRejected != nil {
		rateLimitRejected.WithLabelValues(route).Set(float64(rejected))
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultPartial  = resultPartial
	ResultRejected = "rejected"
)

// Result maps an error to the success/error label.
func Result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
