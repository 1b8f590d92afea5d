package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"obras/internal/finance"
	"obras/internal/log"
	"obras/internal/middleware/ratelimit"
	"obras/internal/middleware/trace"
	"obras/internal/services"
	"obras/internal/store"
	"obras/internal/store/storetest"
)

var febFirst = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, rs store.RecordStore, opts ...Option) *Server {
	t.Helper()
	reports := services.NewReportService(finance.NewEngine(rs))
	opts = append([]Option{
		WithClock(func() time.Time { return febFirst }),
		WithExportLimiter(ratelimit.NewLimiter(ratelimit.Config{RequestsPerWindow: 100, Window: time.Minute})),
	}, opts...)
	srv := NewServer(":0", Dependencies{Reports: reports}, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func partialStore(t *testing.T) store.RecordStore {
	st := storetest.WithSecondProject(t, storetest.January2025(t))
	return storetest.NewFailing(st).FailProject("P2", errors.New("timeout"))
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReportsStoreFailure(t *testing.T) {
	reports := services.NewReportService(finance.NewEngine(storetest.January2025(t)))
	srv := NewServer(":0", Dependencies{
		Reports: reports,
		Ready:   func(context.Context) error { return errors.New("database is locked") },
	}, WithExportLimiter(ratelimit.NewLimiter(ratelimit.Config{})))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "record store not ready", decode(t, rec)["error"])
}

func TestReportEndpoint(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	rec := get(t, srv, "/api/reports?year=2025&month=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := decode(t, rec)
	assert.Equal(t, "18500", body["total_revenue"])
	assert.Equal(t, "1200", body["total_expenses"])
	assert.Equal(t, "17300", body["profit"])
	assert.Equal(t, "93.51", body["margin"])
	assert.Equal(t, "executed-segment", body["revenue_source"])
	assert.Equal(t, "resilient", body["mode"])
	assert.NotContains(t, body, "failures")
	assert.Equal(t, rec.Header().Get(trace.HeaderRequestID), body["request_id"])

	projects := body["projects"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, "P1", projects[0].(map[string]any)["project_id"])
}

func TestReportEndpointDefaultsToCurrentMonth(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	body := decode(t, get(t, srv, "/api/reports"))
	period := body["period"].(map[string]any)
	assert.Equal(t, float64(2025), period["year"])
	assert.Equal(t, float64(2), period["month"])
	assert.Equal(t, "0", body["total_revenue"])
}

func TestReportEndpointRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	for _, target := range []string{
		"/api/reports?year=2025&month=13",
		"/api/reports?year=abc&month=1",
		"/api/reports?year=2025&month=1&mode=lenient",
		"/api/series?year=2025&month=1&dense=maybe",
		"/api/expenses/categories?year=2025&month=0",
		"/api/reports/export.xlsx?month=x",
	} {
		rec := get(t, srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, decode(t, rec)["error"], "invalid argument", target)
	}
}

func TestReportEndpointPartialFailure(t *testing.T) {
	srv := newTestServer(t, partialStore(t))

	rec := get(t, srv, "/api/reports?year=2025&month=1&mode=resilient")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "1500", body["total_expenses"])
	failures := body["failures"].([]any)
	require.Len(t, failures, 1)
	f := failures[0].(map[string]any)
	assert.Equal(t, "P2", f["project_id"])
	assert.Equal(t, "Obra P2", f["name"])
	assert.Contains(t, f["reason"], "timeout")
}

func TestReportEndpointStrictFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, partialStore(t))

	rec := get(t, srv, "/api/reports?year=2025&month=1&mode=strict")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "data source unavailable", decode(t, rec)["error"])
}

func TestProjectSummariesEndpoint(t *testing.T) {
	srv := newTestServer(t, partialStore(t))

	rec := get(t, srv, "/api/projects/summaries?year=2025&month=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["projects"], 1)
	assert.Len(t, body["failures"], 1)

	rec = get(t, srv, "/api/projects/summaries?year=2025&month=1&mode=strict")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestProjectSummariesEmptyPeriod(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	body := decode(t, get(t, srv, "/api/projects/summaries?year=2024&month=6"))
	assert.Equal(t, []any{}, body["projects"])
}

func TestSeriesEndpoint(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	body := decode(t, get(t, srv, "/api/series?year=2025&month=1"))
	points := body["points"].([]any)
	require.Len(t, points, 2)
	first := points[0].(map[string]any)
	assert.Equal(t, "2025-01-10", first["date"])
	assert.Equal(t, "0", first["revenue"])
	assert.Equal(t, "1200", first["expense"])

	body = decode(t, get(t, srv, "/api/series?year=2025&month=1&dense"))
	assert.Equal(t, true, body["dense"])
	assert.Len(t, body["points"], 31)
}

func TestExpenseCategoriesFallsBackToEmpty(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))
	body := decode(t, get(t, srv, "/api/expenses/categories?year=2025&month=1"))
	assert.Equal(t, "1200", body["total"])
	cats := body["categories"].([]any)
	require.Len(t, cats, 1)
	assert.Equal(t, "Diesel", cats[0].(map[string]any)["category"])

	failing := storetest.NewFailing(storetest.January2025(t)).FailAll(errors.New("connection reset"))
	srv = newTestServer(t, failing)
	rec := get(t, srv, "/api/expenses/categories?year=2025&month=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "0", body["total"])
	assert.Empty(t, body["categories"])
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	rec := get(t, srv, "/api/reports/export.xlsx?year=2025&month=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="obras-2025-01.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Projects")
}

func TestExportEndpointIsStrictByDefault(t *testing.T) {
	srv := newTestServer(t, partialStore(t))

	rec := get(t, srv, "/api/reports/export.xlsx?year=2025&month=1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = get(t, srv, "/api/reports/export.xlsx?year=2025&month=1&mode=resilient")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportEndpointRateLimited(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t),
		WithExportLimiter(ratelimit.NewLimiter(ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute})))

	assert.Equal(t, http.StatusOK, get(t, srv, "/api/reports/export.xlsx?year=2025&month=1").Code)

	rec := get(t, srv, "/api/reports/export.xlsx?year=2025&month=1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, decode(t, rec)["error"], "rate limit")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t, storetest.January2025(t))
	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestExportLimiterKeysOnForwardedClientBehindTrustedProxy(t *testing.T) {
	onePerMinute := func() Option {
		return WithExportLimiter(ratelimit.NewLimiter(ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute}))
	}
	export := func(srv *Server, client string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/reports/export.xlsx?year=2025&month=1", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Without the proxy network every forwarded client shares the proxy's budget.
	srv := newTestServer(t, storetest.January2025(t), onePerMinute())
	assert.Equal(t, http.StatusOK, export(srv, "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, export(srv, "198.51.100.2"))

	srv = newTestServer(t, storetest.January2025(t), onePerMinute(),
		WithTrustedProxies("203.0.113.0/24", "not-a-cidr"))
	assert.Equal(t, http.StatusOK, export(srv, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, export(srv, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, export(srv, "198.51.100.1"))
}

func TestRejectedRequestIsLoggedWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(&buf, nil),
	})
	reports := services.NewReportService(finance.NewEngine(storetest.January2025(t)))
	srv := NewServer(":0", Dependencies{Reports: reports, Logger: logger},
		WithExportLimiter(ratelimit.NewLimiter(ratelimit.Config{})))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/api/reports?year=2025&month=13", nil)
	req.Header.Set(trace.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, `msg="Request rejected"`) {
			line = l
		}
	}
	require.NotEmpty(t, line, buf.String())
	assert.Contains(t, line, "request_id=req-42")
	assert.Contains(t, line, "component=http")
	assert.Contains(t, line, "operation=")
}
