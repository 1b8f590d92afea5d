package storage

import (
	"strings"

	"obras/internal/store"
)

// liveScope is the soft-delete predicate. Every read goes through selectFrom,
// which applies it, so no query spells it out on its own.
const liveScope = "deleted_at IS NULL"

type selectQuery struct {
	dialect Dialect
	columns []string
	table   string
	where   []string
	args    []any
}

func selectFrom(d Dialect, table string, columns ...string) *selectQuery {
	return &selectQuery{
		dialect: d,
		columns: columns,
		table:   table,
		where:   []string{liveScope},
	}
}

func (q *selectQuery) Where(cond string, args ...any) *selectQuery {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
	return q
}

// InRange restricts col to the inclusive query range.
func (q *selectQuery) InRange(col string, sq store.Query) *selectQuery {
	return q.Where(col+" BETWEEN ? AND ?", sq.Range.Start, sq.Range.End)
}

// ForProject applies the optional project filter.
func (q *selectQuery) ForProject(sq store.Query) *selectQuery {
	if sq.ProjectID == "" {
		return q
	}
	return q.Where("project_id = ?", sq.ProjectID)
}

func (q *selectQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(q.where, " AND "))
	return q.dialect.rebind(b.String()), q.args
}
