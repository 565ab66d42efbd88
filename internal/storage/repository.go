package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fluxo/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements ObligationStore and LedgerStore over a local
// SQLite database. The (obligation_id, due_date) uniqueness invariant is
// enforced by the schema, not by application code.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ObligationStore = (*SQLiteRepository)(nil)
	_ LedgerStore     = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping checks database connectivity, used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const obligationColumns = `id, owner_id, counterparty, service_label, category, kind,
	amount_cents, start_date, end_date, periodicity, due_day, active`

func (r *SQLiteRepository) ListObligations(ctx context.Context, ownerID int64) ([]core.Obligation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE owner_id = ? ORDER BY counterparty, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	var obls []core.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		obls = append(obls, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	return obls, nil
}

func (r *SQLiteRepository) GetObligation(ctx context.Context, id int64) (core.Obligation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, id)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Obligation{}, fmt.Errorf("obligation %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Obligation{}, fmt.Errorf("get obligation %d: %w", id, err)
	}
	return o, nil
}

func (r *SQLiteRepository) CreateObligation(ctx context.Context, o core.Obligation) (core.Obligation, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO obligations (owner_id, counterparty, service_label, category, kind,
			amount_cents, start_date, end_date, periodicity, due_day, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OwnerID, o.Counterparty, o.ServiceLabel, string(o.Category), string(o.Kind),
		o.Amount.Cents, o.StartDate.String(), nullableDate(o.EndDate),
		string(o.Periodicity), o.DueDay, o.Active)
	if err != nil {
		return core.Obligation{}, fmt.Errorf("create obligation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Obligation{}, fmt.Errorf("create obligation: %w", err)
	}
	o.ID = id

	slog.InfoContext(ctx, "Obligation saved",
		"id", o.ID,
		"owner_id", o.OwnerID,
		"counterparty", o.Counterparty,
		"category", o.Category,
		"amount_cents", o.Amount.Cents)

	return o, nil
}

func (r *SQLiteRepository) UpdateObligation(ctx context.Context, o core.Obligation) (core.Obligation, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE obligations SET counterparty = ?, service_label = ?, category = ?, kind = ?,
			amount_cents = ?, start_date = ?, end_date = ?, periodicity = ?, due_day = ?, active = ?
		 WHERE id = ?`,
		o.Counterparty, o.ServiceLabel, string(o.Category), string(o.Kind),
		o.Amount.Cents, o.StartDate.String(), nullableDate(o.EndDate),
		string(o.Periodicity), o.DueDay, o.Active, o.ID)
	if err != nil {
		return core.Obligation{}, fmt.Errorf("update obligation %d: %w", o.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Obligation{}, fmt.Errorf("obligation %d: %w", o.ID, core.ErrNotFound)
	}
	return o, nil
}

func (r *SQLiteRepository) SetObligationActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE obligations SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set obligation %d active: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("obligation %d: %w", id, core.ErrNotFound)
	}
	return nil
}

const ledgerColumns = `id, obligation_id, due_date, amount_cents, status, paid_date`

func (r *SQLiteRepository) ListLedgerEntries(ctx context.Context, obligationID int64) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE obligation_id = ? ORDER BY due_date`,
		obligationID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) FindLedgerEntry(ctx context.Context, obligationID int64, dueDate core.Date) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE obligation_id = ? AND due_date = ?`,
		obligationID, dueDate.String())
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("ledger entry %d/%s: %w", obligationID, dueDate, core.ErrNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("find ledger entry: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetLedgerEntry(ctx context.Context, id int64) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("ledger entry %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get ledger entry %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (obligation_id, due_date, amount_cents, status, paid_date)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ObligationID, e.DueDate.String(), e.Amount.Cents, string(e.Status), nullableDate(e.PaidDate))
	if err != nil {
		if isUniqueViolation(err) {
			return core.LedgerEntry{}, fmt.Errorf("ledger entry %d/%s: %w", e.ObligationID, e.DueDate, core.ErrDuplicateEntry)
		}
		return core.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Ledger entry materialized",
		"id", e.ID,
		"obligation_id", e.ObligationID,
		"due_date", e.DueDate.String(),
		"status", e.Status,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (r *SQLiteRepository) UpdateLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET amount_cents = ?, status = ?, paid_date = ? WHERE id = ?`,
		e.Amount.Cents, string(e.Status), nullableDate(e.PaidDate), e.ID)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update ledger entry %d: %w", e.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.LedgerEntry{}, fmt.Errorf("ledger entry %d: %w", e.ID, core.ErrNotFound)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (core.Obligation, error) {
	var (
		o           core.Obligation
		category    string
		kind        string
		periodicity string
		start       string
		end         sql.NullString
	)
	err := row.Scan(&o.ID, &o.OwnerID, &o.Counterparty, &o.ServiceLabel, &category, &kind,
		&o.Amount.Cents, &start, &end, &periodicity, &o.DueDay, &o.Active)
	if err != nil {
		return core.Obligation{}, err
	}
	o.Category = core.Category(category)
	o.Kind = core.Kind(kind)
	o.Periodicity = core.Periodicity(periodicity)
	if o.StartDate, err = core.ParseDate(start); err != nil {
		return core.Obligation{}, err
	}
	if end.Valid && end.String != "" {
		if o.EndDate, err = core.ParseDate(end.String); err != nil {
			return core.Obligation{}, err
		}
	}
	return o, nil
}

func scanLedgerEntry(row rowScanner) (core.LedgerEntry, error) {
	var (
		e      core.LedgerEntry
		status string
		due    string
		paid   sql.NullString
	)
	err := row.Scan(&e.ID, &e.ObligationID, &due, &e.Amount.Cents, &status, &paid)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	e.Status = core.EntryStatus(status)
	if e.DueDate, err = core.ParseDate(due); err != nil {
		return core.LedgerEntry{}, err
	}
	if paid.Valid && paid.String != "" {
		if e.PaidDate, err = core.ParseDate(paid.String); err != nil {
			return core.LedgerEntry{}, err
		}
	}
	return e, nil
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
