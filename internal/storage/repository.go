package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"obras/internal/core"
	"obras/internal/log"
	"obras/internal/store"
)

// Repository is the SQL record store shared by the sqlite and postgres
// backends. Query text is written once with ? placeholders and rebound per
// dialect.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

var _ store.ReadWriter = (*Repository)(nil)

// New wraps an already opened database. Migrations are not run.
func New(db *sql.DB, d Dialect, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository{db: db, dialect: d, logger: logger.WithComponent(log.ComponentStorage)}
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, dbPath, logger)
}

func NewPostgresRepository(databaseURL string, logger *log.Logger) (*Repository, error) {
	return open(DialectPostgres, databaseURL, logger)
}

func open(d Dialect, dsn string, logger *log.Logger) (*Repository, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return New(db, d, logger), nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) QueryActiveProjects(ctx context.Context) ([]core.Project, error) {
	query, args := selectFrom(r.dialect, "projects", "id", "name", "status", "default_unit_price").Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var (
			p     core.Project
			price decimal.NullDecimal
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &price); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.DefaultUnitPrice = nullable(price)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func (r *Repository) QueryCompletedSegments(ctx context.Context, q store.Query) ([]core.Segment, error) {
	query, args := selectFrom(r.dialect, "segments",
		"id", "project_id", "name", "executed_quantity", "unit_price", "stored_total", "completion_date", "status").
		Where("status = ?", core.SegmentStatusCompleted).
		Where(r.dialect.positive("executed_quantity")).
		InRange("completion_date", q).
		ForProject(q).
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []core.Segment
	for rows.Next() {
		var (
			s                 core.Segment
			unitPrice, stored decimal.NullDecimal
		)
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.ExecutedQuantity, &unitPrice, &stored, &s.CompletionDate, &s.Status); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		s.UnitPrice = nullable(unitPrice)
		s.StoredTotal = nullable(stored)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return out, nil
}

func (r *Repository) QueryFormalInvoices(ctx context.Context, q store.Query) ([]core.Invoice, error) {
	query, args := selectFrom(r.dialect, "invoices",
		"id", "project_id", "line_name", "stored_total", "completion_date", "payment_status").
		InRange("completion_date", q).
		ForProject(q).
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var i core.Invoice
		if err := rows.Scan(&i.ID, &i.ProjectID, &i.LineName, &i.StoredTotal, &i.CompletionDate, &i.PaymentStatus); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

func (r *Repository) QueryExpenses(ctx context.Context, q store.Query) ([]core.Expense, error) {
	query, args := selectFrom(r.dialect, "expenses",
		"id", "project_id", "equipment_id", "category", "description", "amount", "date").
		InRange("date", q).
		ForProject(q).
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e                      core.Expense
			projectID, equipmentID sql.NullString
		)
		if err := rows.Scan(&e.ID, &projectID, &equipmentID, &e.Category, &e.Description, &e.Amount, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.ProjectID = nullString(projectID)
		e.EquipmentID = nullString(equipmentID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateProject(ctx context.Context, p core.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = core.ProjectStatusActive
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return r.exec(ctx, "create project",
		"INSERT INTO projects (id, name, status, default_unit_price) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Status, nullDecimal(p.DefaultUnitPrice))
}

func (r *Repository) CreateSegment(ctx context.Context, s core.Segment) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return r.exec(ctx, "create segment",
		`INSERT INTO segments (id, project_id, name, executed_quantity, unit_price, stored_total, completion_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.Name, s.ExecutedQuantity, nullDecimal(s.UnitPrice), nullDecimal(s.StoredTotal), s.CompletionDate, s.Status)
}

func (r *Repository) CreateInvoice(ctx context.Context, i core.Invoice) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if err := i.Validate(); err != nil {
		return err
	}
	return r.exec(ctx, "create invoice",
		`INSERT INTO invoices (id, project_id, line_name, stored_total, completion_date, payment_status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.ProjectID, i.LineName, i.StoredTotal, i.CompletionDate, i.PaymentStatus)
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return r.exec(ctx, "create expense",
		`INSERT INTO expenses (id, project_id, equipment_id, category, description, amount, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.EquipmentID, e.Category, e.Description, e.Amount, e.Date)
}

// SoftDelete stamps deleted_at; the row stays for audit.
func (r *Repository) SoftDelete(ctx context.Context, c store.Collection, id string) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown collection %q", core.ErrInvalidArgument, c)
	}
	query := r.dialect.rebind("UPDATE " + string(c) + " SET deleted_at = ? WHERE id = ? AND " + liveScope)

	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", c, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", c, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", c, id, store.ErrNotFound)
	}

	r.logger.InfoContext(ctx, "Record soft-deleted", log.FieldCollection, string(c), "id", id)
	return nil
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
