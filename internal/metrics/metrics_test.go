package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHelpersBeforeInit(t *testing.T) {
	// must not panic while collectors are nil
	if rollupTotal != nil {
		t.Skip("collectors already registered")
	}
	ObserveRollup("", "", time.Millisecond)
	ObserveStoreQuery("", "", time.Millisecond)
	IncCacheHit()
	AddProjectFailures("strict", 3)
	SetRateLimiterState("export", 1, 1)
}

func TestObserve(t *testing.T) {
	Init()
	Init() // idempotent

	ObserveRollup("resilient", ResultPartial, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(rollupTotal.WithLabelValues("resilient", ResultPartial)))

	AddProjectFailures("resilient", 2)
	AddProjectFailures("resilient", 0)
	assert.Equal(t, float64(2), testutil.ToFloat64(projectFailure.WithLabelValues("resilient")))

	ObserveStoreQuery("segments", Result(errors.New("boom")), time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(storeQueryTotal.WithLabelValues("segments", ResultError)))

	IncCacheMiss()
	IncCacheMiss()
	assert.Equal(t, float64(2), testutil.ToFloat64(cacheLookups.WithLabelValues("miss")))

	ObserveExport("", "", time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(exportTotal.WithLabelValues("unknown", ResultSuccess)))

	ObserveHTTPRequest("GET /api/reports", "GET", 502, time.Millisecond)
	ObserveHTTPRequest("", "GET", 404, time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/reports", "GET", "502")))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "GET", "404")))

	SetRateLimiterState("GET /api/reports/export.xlsx", 3, 2)
	SetRateLimiterState("GET /api/reports/export.xlsx", 1, 5)
	assert.Equal(t, float64(1), testutil.ToFloat64(rateLimitClients.WithLabelValues("GET /api/reports/export.xlsx")))
	assert.Equal(t, float64(5), testutil.ToFloat64(rateLimitRejected.WithLabelValues("GET /api/reports/export.xlsx")))
}
