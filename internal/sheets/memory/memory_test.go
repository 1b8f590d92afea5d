package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obras/internal/core"
)

func TestWriterReplacesPeriodTab(t *testing.T) {
	w := New("Obras")
	ctx := context.Background()
	r := &core.MonthReport{
		Period:       core.Period{Year: 2025, Month: 1},
		TotalRevenue: decimal.NewFromInt(10),
	}

	ref, err := w.WriteReport(ctx, r)
	require.NoError(t, err)
	assert.Contains(t, ref, "2025-01 Obras")

	r.TotalRevenue = decimal.NewFromInt(20)
	_, err = w.WriteReport(ctx, r)
	require.NoError(t, err)

	rows, ok := w.Tab("2025-01 Obras")
	require.True(t, ok)
	assert.Equal(t, []any{"Total revenue", 20.0}, rows[4])
	assert.Equal(t, 2, w.Writes())

	_, ok = w.Tab("2025-02 Obras")
	assert.False(t, ok)
}

func TestWriterRejectsNilReportAndCancelledContext(t *testing.T) {
	w := New("Obras")
	_, err := w.WriteReport(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.WriteReport(ctx, &core.MonthReport{})
	assert.ErrorIs(t, err, context.Canceled)
}
