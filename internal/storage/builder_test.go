package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obras/internal/core"
	"obras/internal/store"
)

func TestRebind(t *testing.T) {
	q := "a = ? AND b BETWEEN ? AND ?"
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, "a = $1 AND b BETWEEN $2 AND $3", DialectPostgres.rebind(q))
}

func TestSelectAlwaysAppliesLiveScope(t *testing.T) {
	query, args := selectFrom(DialectSQLite, "projects", "id", "name").Build()
	assert.Equal(t, "SELECT id, name FROM projects WHERE deleted_at IS NULL", query)
	assert.Empty(t, args)

	sq := store.Query{Range: core.Period{Year: 2025, Month: 2}.Range()}
	query, args = selectFrom(DialectSQLite, "expenses", "id").InRange("date", sq).ForProject(sq).Build()
	assert.Equal(t, "SELECT id FROM expenses WHERE deleted_at IS NULL AND date BETWEEN ? AND ?", query)
	require.Len(t, args, 2)
	assert.Equal(t, core.NewDate(2025, 2, 28), args[1])
}

func TestPositive(t *testing.T) {
	assert.Equal(t, "CAST(qty AS REAL) > 0", DialectSQLite.positive("qty"))
	assert.Equal(t, "qty > 0", DialectPostgres.positive("qty"))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite": DialectSQLite, "Postgres": DialectPostgres, "pgx": DialectPostgres} {
		d, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, d)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}
