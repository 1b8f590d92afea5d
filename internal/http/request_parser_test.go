package http

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obras/internal/core"
	"obras/internal/finance"
)

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   url.Values
		want    core.Period
		wantErr bool
	}{
		{"explicit", url.Values{"year": {"2025"}, "month": {"1"}}, core.Period{Year: 2025, Month: 1}, false},
		{"defaults to now", url.Values{}, core.Period{Year: 2024, Month: 6}, false},
		{"only month", url.Values{"month": {" 3 "}}, core.Period{Year: 2024, Month: 3}, false},
		{"non numeric month", url.Values{"month": {"abc"}}, core.Period{}, true},
		{"month out of range", url.Values{"month": {"13"}}, core.Period{}, true},
		{"year zero", url.Values{"year": {"0"}}, core.Period{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.query, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(url.Values{}, finance.Strict)
	require.NoError(t, err)
	assert.Equal(t, finance.Strict, m)

	m, err = ParseMode(url.Values{"mode": {"Resilient"}}, finance.Strict)
	require.NoError(t, err)
	assert.Equal(t, finance.Resilient, m)

	_, err = ParseMode(url.Values{"mode": {"lenient"}}, finance.Strict)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestParseFlag(t *testing.T) {
	q, _ := url.ParseQuery("dense")
	b, err := ParseFlag(q, "dense")
	require.NoError(t, err)
	assert.True(t, b)

	b, err = ParseFlag(url.Values{"dense": {"false"}}, "dense")
	require.NoError(t, err)
	assert.False(t, b)

	b, err = ParseFlag(url.Values{}, "dense")
	require.NoError(t, err)
	assert.False(t, b)

	_, err = ParseFlag(url.Values{"dense": {"maybe"}}, "dense")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestParseReportParams(t *testing.T) {
	q := url.Values{"year": {"2025"}, "month": {"2"}, "mode": {"strict"}, "dense": {"1"}}
	got, err := ParseReportParams(q, time.Now(), finance.Resilient)
	require.NoError(t, err)
	assert.Equal(t, ReportParams{Period: core.Period{Year: 2025, Month: 2}, Mode: finance.Strict, Dense: true}, got)
}
