package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-20")
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 1, d.Month())
	assert.Equal(t, 20, d.Day())
	assert.Equal(t, "2025-01-20", d.String())

	for _, bad := range []string{"", "2025-13-01", "20-01-2025", "2025/01/20"} {
		_, err := ParseDate(bad)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "%q", bad)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 29))
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2023-12-31"`), &d))
	assert.Equal(t, NewDate(2023, 12, 31), d)

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
	assert.Equal(t, "", d.String())
}

func TestDateScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want Date
	}{
		{"time", time.Date(2025, 1, 10, 15, 4, 5, 0, time.FixedZone("X", 3600)), NewDate(2025, 1, 10)},
		{"text", "2025-01-10", NewDate(2025, 1, 10)},
		{"text with time", "2025-01-10T00:00:00Z", NewDate(2025, 1, 10)},
		{"bytes", []byte("2025-01-10"), NewDate(2025, 1, 10)},
		{"nil", nil, Date{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tc.src))
			assert.Equal(t, tc.want, d)
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))
}

func TestDateValue(t *testing.T) {
	v, err := NewDate(2025, 1, 10).Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSegmentValidate(t *testing.T) {
	good := Segment{
		ID:               "s1",
		ProjectID:        "p1",
		Name:             "Rua A",
		ExecutedQuantity: dec("100"),
		UnitPrice:        ptr(dec("50")),
		CompletionDate:   NewDate(2025, 1, 20),
		Status:           SegmentStatusCompleted,
	}
	require.NoError(t, good.Validate())

	bads := []Segment{
		{ProjectID: "p1", Status: SegmentStatusPlanned},
		{ID: "s1", Status: SegmentStatusPlanned},
		{ID: "s1", ProjectID: "p1", ExecutedQuantity: dec("-1")},
		{ID: "s1", ProjectID: "p1", UnitPrice: ptr(dec("-1"))},
		{ID: "s1", ProjectID: "p1", StoredTotal: ptr(dec("-1"))},
		{ID: "s1", ProjectID: "p1", Status: SegmentStatusCompleted},
	}
	for i, s := range bads {
		assert.Error(t, s.Validate(), "case %d", i)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		ID:          "e1",
		Category:    "fuel",
		Description: "diesel",
		Amount:      dec("1200"),
		Date:        NewDate(2025, 1, 10),
	}
	require.NoError(t, good.Validate(), "project-less expense is valid")

	bads := []Expense{
		{Category: "fuel", Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{ID: "e1", Amount: dec("1"), Date: NewDate(2025, 1, 1)},
		{ID: "e1", Category: "fuel", Amount: dec("-1"), Date: NewDate(2025, 1, 1)},
		{ID: "e1", Category: "fuel", Amount: dec("1")},
		{ID: "e1", Category: "fuel", Amount: dec("1"), Date: NewDate(2025, 1, 1), Description: strings.Repeat("x", 201)},
	}
	for i, e := range bads {
		assert.Error(t, e.Validate(), "case %d", i)
	}
}

func TestInvoiceAndProjectValidate(t *testing.T) {
	inv := Invoice{ID: "i1", ProjectID: "p1", StoredTotal: dec("9999"), CompletionDate: NewDate(2025, 1, 5)}
	require.NoError(t, inv.Validate())
	inv.CompletionDate = Date{}
	assert.ErrorIs(t, inv.Validate(), ErrMissingDate)

	p := Project{ID: "p1", Name: "Obra Centro", Status: ProjectStatusActive}
	require.NoError(t, p.Validate())
	p.DefaultUnitPrice = ptr(dec("-3"))
	assert.ErrorIs(t, p.Validate(), ErrNegativeAmount)
}

func TestSummaryHasActivity(t *testing.T) {
	assert.False(t, ProjectFinancialSummary{}.HasActivity())
	assert.True(t, ProjectFinancialSummary{TotalExpenses: dec("1")}.HasActivity())
	assert.True(t, ProjectFinancialSummary{TotalRevenue: dec("0.01")}.HasActivity())
}
