package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obras/internal/core"
	"obras/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "obras.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func january() store.Query {
	return store.Query{Range: core.Period{Year: 2025, Month: 1}.Range()}
}

func seed(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateProject(ctx, core.Project{ID: "p1", Name: "Obra Centro", DefaultUnitPrice: decPtr("40")}))
	require.NoError(t, repo.CreateProject(ctx, core.Project{ID: "p2", Name: "Obra Norte"}))

	segs := []core.Segment{
		{ID: "s1", ProjectID: "p1", Name: "Rua A", ExecutedQuantity: dec("500"), UnitPrice: decPtr("37"), CompletionDate: core.NewDate(2025, 1, 20), Status: core.SegmentStatusCompleted},
		{ID: "s2", ProjectID: "p1", Name: "Rua B", ExecutedQuantity: dec("0"), CompletionDate: core.NewDate(2025, 1, 21), Status: core.SegmentStatusCompleted},
		{ID: "s3", ProjectID: "p1", Name: "Rua C", ExecutedQuantity: dec("12.5"), Status: core.SegmentStatusPlanned},
		{ID: "s4", ProjectID: "p2", Name: "Rua D", ExecutedQuantity: dec("10"), StoredTotal: decPtr("1234.56"), CompletionDate: core.NewDate(2025, 1, 31), Status: core.SegmentStatusCompleted},
		{ID: "s5", ProjectID: "p2", Name: "Rua E", ExecutedQuantity: dec("10"), CompletionDate: core.NewDate(2025, 2, 1), Status: core.SegmentStatusCompleted},
	}
	for _, s := range segs {
		require.NoError(t, repo.CreateSegment(ctx, s))
	}

	require.NoError(t, repo.CreateInvoice(ctx, core.Invoice{ID: "i1", ProjectID: "p2", LineName: "Medição 1", StoredTotal: dec("9999.99"), CompletionDate: core.NewDate(2025, 1, 1), PaymentStatus: "paid"}))
	require.NoError(t, repo.CreateInvoice(ctx, core.Invoice{ID: "i2", ProjectID: "p2", StoredTotal: dec("10"), CompletionDate: core.NewDate(2024, 12, 31)}))

	require.NoError(t, repo.CreateExpense(ctx, core.Expense{ID: "e1", ProjectID: strPtr("p1"), Category: "Diesel", Amount: dec("1200"), Date: core.NewDate(2025, 1, 10)}))
	require.NoError(t, repo.CreateExpense(ctx, core.Expense{ID: "e2", EquipmentID: strPtr("eq-7"), Category: "Maintenance", Description: "roller", Amount: dec("0.10"), Date: core.NewDate(2025, 1, 10)}))
}

func TestRepositorySegments(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	segs, err := repo.QueryCompletedSegments(ctx, january())
	require.NoError(t, err)
	require.Len(t, segs, 2)

	byID := map[string]core.Segment{}
	for _, s := range segs {
		byID[s.ID] = s
	}
	require.Contains(t, byID, "s1")
	require.Contains(t, byID, "s4")

	s1 := byID["s1"]
	assert.True(t, s1.ExecutedQuantity.Equal(dec("500")))
	require.NotNil(t, s1.UnitPrice)
	assert.True(t, s1.UnitPrice.Equal(dec("37")))
	assert.Nil(t, s1.StoredTotal)
	assert.Equal(t, "2025-01-20", s1.CompletionDate.String())

	s4 := byID["s4"]
	require.NotNil(t, s4.StoredTotal)
	assert.Equal(t, "1234.56", s4.StoredTotal.String())

	scoped, err := repo.QueryCompletedSegments(ctx, january().ForProject("p1"))
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "s1", scoped[0].ID)
}

func TestRepositoryInvoicesAndSoftDelete(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	invs, err := repo.QueryFormalInvoices(ctx, january())
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "i1", invs[0].ID)
	assert.True(t, invs[0].StoredTotal.Equal(dec("9999.99")))
	assert.Equal(t, "paid", invs[0].PaymentStatus)

	require.NoError(t, repo.SoftDelete(ctx, store.Invoices, "i1"))
	invs, err = repo.QueryFormalInvoices(ctx, january())
	require.NoError(t, err)
	assert.Empty(t, invs)

	err = repo.SoftDelete(ctx, store.Invoices, "i1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = repo.SoftDelete(ctx, store.Collection("clients; DROP TABLE projects"), "x")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRepositoryExpenses(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	all, err := repo.QueryExpenses(ctx, january())
	require.NoError(t, err)
	require.Len(t, all, 2)

	var general core.Expense
	for _, e := range all {
		if e.ID == "e2" {
			general = e
		}
	}
	assert.Nil(t, general.ProjectID)
	require.NotNil(t, general.EquipmentID)
	assert.Equal(t, "eq-7", *general.EquipmentID)
	assert.True(t, general.Amount.Equal(dec("0.1")))

	p1, err := repo.QueryExpenses(ctx, january().ForProject("p1"))
	require.NoError(t, err)
	require.Len(t, p1, 1)
	require.NotNil(t, p1[0].ProjectID)
	assert.Equal(t, "p1", *p1[0].ProjectID)
}

func TestRepositoryProjects(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.SoftDelete(ctx, store.Projects, "p2"))
	projects, err := repo.QueryActiveProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p1", projects[0].ID)
	assert.Equal(t, core.ProjectStatusActive, projects[0].Status)
	require.NotNil(t, projects[0].DefaultUnitPrice)
	assert.True(t, projects[0].DefaultUnitPrice.Equal(dec("40")))
}

func TestRepositoryRejectsInvalidRecords(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.CreateExpense(context.Background(), core.Expense{ID: "x", Category: "Fuel", Amount: dec("-1"), Date: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrNegativeAmount)
}

func TestRepositoryFixtureSeed(t *testing.T) {
	repo := newTestRepo(t)
	f := &store.Fixture{
		Projects: []store.FixtureProject{{Project: core.Project{ID: "p1", Name: "A"}}},
		Expenses: []store.FixtureExpense{
			{Expense: core.Expense{ID: "e1", ProjectID: strPtr("p1"), Category: "Labor", Amount: dec("10"), Date: core.NewDate(2025, 1, 2)}},
			{Expense: core.Expense{ID: "e2", ProjectID: strPtr("p1"), Category: "Labor", Amount: dec("10"), Date: core.NewDate(2025, 1, 2)}, Deleted: true},
		},
	}
	require.NoError(t, f.Apply(context.Background(), repo))

	out, err := repo.QueryExpenses(context.Background(), january())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "e1", out[0].ID)
}

func TestRepositoryPostgresQueriesWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db, DialectPostgres, nil)

	rows := sqlmock.NewRows([]string{"id", "project_id", "name", "executed_quantity", "unit_price", "stored_total", "completion_date", "status"}).
		AddRow("s1", "p1", "Rua A", "500.0000", "37.0000", nil, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), "completed")

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, project_id, name, executed_quantity, unit_price, stored_total, completion_date, status FROM segments " +
			"WHERE deleted_at IS NULL AND status = $1 AND executed_quantity > 0 AND completion_date BETWEEN $2 AND $3 AND project_id = $4")).
		WithArgs("completed", "2025-01-01", "2025-01-31", "p1").
		WillReturnRows(rows)

	segs, err := repo.QueryCompletedSegments(context.Background(), january().ForProject("p1"))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].ExecutedQuantity.Equal(dec("500")))
	assert.True(t, segs[0].UnitPrice.Equal(dec("37")))
	assert.Nil(t, segs[0].StoredTotal)
	assert.Equal(t, core.NewDate(2025, 1, 20), segs[0].CompletionDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryPropagatesQueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db, DialectSQLite, nil)
	boom := errors.New("connection reset by peer")

	mock.ExpectQuery("FROM expenses").WillReturnError(boom)
	_, err = repo.QueryExpenses(context.Background(), january())
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("FROM projects").WillReturnError(boom)
	_, err = repo.QueryActiveProjects(context.Background())
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("FROM invoices").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "line_name", "stored_total", "completion_date", "payment_status"}).
			AddRow("i1", "p1", "x", "10", "2025-01-05", "").
			RowError(0, boom))
	_, err = repo.QueryFormalInvoices(context.Background(), january())
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteNoRowsWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db, DialectPostgres, nil)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE segments SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), "s9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SoftDelete(context.Background(), store.Segments, "s9")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
