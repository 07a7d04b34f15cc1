package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ruktech/income-tracker/internal/core"
)

// IncomeFilter narrows income listings. Zero values mean "no filter".
type IncomeFilter struct {
	Year       int
	Month      int
	CategoryID int64
}

// DueCandidate pairs an income with its owner's contact details for the
// reminder selector.
type DueCandidate struct {
	Income         core.Income
	OwnerName      string
	WhatsAppNumber string
}

const incomeColumns = `i.id, i.owner_id, i.category_id, c.name, i.description, i.amount,
	i.currency, i.due_date, i.frequency, i.expiration_date, i.active, i.created_at, i.updated_at`

// CreateIncome stores an income for the actor. Amount and description are
// encrypted; the export state starts as pending so the worker picks it up
// even if the AMQP event is lost.
func (r *SQLiteRepository) CreateIncome(ctx context.Context, actor Actor, inc core.Income) (int64, error) {
	if _, err := r.GetCategory(ctx, actor, inc.CategoryID); err != nil {
		return 0, err
	}

	amountEnc, err := r.cipher.EncryptString(inc.Amount.Decimal())
	if err != nil {
		return 0, fmt.Errorf("encrypt amount: %w", err)
	}
	descEnc, err := r.cipher.EncryptString(inc.Description)
	if err != nil {
		return 0, fmt.Errorf("encrypt description: %w", err)
	}

	var expiration any
	if !inc.ExpirationDate.IsZero() {
		expiration = inc.ExpirationDate.String()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (owner_id, category_id, description, amount, currency, due_date, frequency, expiration_date, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.OwnerID, inc.CategoryID, descEnc, amountEnc, string(inc.Currency),
		inc.DueDate.String(), string(inc.Frequency), expiration, boolToInt(inc.Active))
	if err != nil {
		return 0, fmt.Errorf("create income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetIncome returns one income scoped to the actor. Foreign records come back
// as ErrNotFound.
func (r *SQLiteRepository) GetIncome(ctx context.Context, actor Actor, id int64) (core.Income, error) {
	query := `SELECT ` + incomeColumns + `
		FROM incomes i JOIN categories c ON c.id = i.category_id
		WHERE i.id = ? AND i.is_deleted = 0`
	args := []any{id}
	clause, scopeArgs := actor.scope("i.owner_id")
	query += clause
	args = append(args, scopeArgs...)

	row := r.db.QueryRowContext(ctx, query, args...)
	inc, err := r.scanIncome(row.Scan)
	if err != nil {
		return core.Income{}, err
	}
	return inc, nil
}

// UpdateIncome rewrites an income's mutable fields, scoped to the actor.
func (r *SQLiteRepository) UpdateIncome(ctx context.Context, actor Actor, inc core.Income) error {
	if _, err := r.GetIncome(ctx, actor, inc.ID); err != nil {
		return err
	}
	if _, err := r.GetCategory(ctx, actor, inc.CategoryID); err != nil {
		return err
	}

	amountEnc, err := r.cipher.EncryptString(inc.Amount.Decimal())
	if err != nil {
		return fmt.Errorf("encrypt amount: %w", err)
	}
	descEnc, err := r.cipher.EncryptString(inc.Description)
	if err != nil {
		return fmt.Errorf("encrypt description: %w", err)
	}
	var expiration any
	if !inc.ExpirationDate.IsZero() {
		expiration = inc.ExpirationDate.String()
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE incomes SET category_id = ?, description = ?, amount = ?, currency = ?, due_date = ?,
			frequency = ?, expiration_date = ?, active = ?, export_state = 'pending', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		inc.CategoryID, descEnc, amountEnc, string(inc.Currency), inc.DueDate.String(),
		string(inc.Frequency), expiration, boolToInt(inc.Active), inc.ID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return nil
}

// SoftDeleteIncome marks an income deleted. Rows are never removed.
func (r *SQLiteRepository) SoftDeleteIncome(ctx context.Context, actor Actor, id int64) error {
	if _, err := r.GetIncome(ctx, actor, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET is_deleted = 1, deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete income: %w", err)
	}
	return nil
}

// ListIncomes returns the actor's live incomes (all incomes for a superuser),
// optionally filtered by due-date year/month and category. Soft-deleted rows
// are always excluded; expiration is a per-use-case concern and left to the
// caller.
func (r *SQLiteRepository) ListIncomes(ctx context.Context, actor Actor, f IncomeFilter) ([]core.Income, error) {
	query := `SELECT ` + incomeColumns + `
		FROM incomes i JOIN categories c ON c.id = i.category_id
		WHERE i.is_deleted = 0`
	var args []any
	clause, scopeArgs := actor.scope("i.owner_id")
	query += clause
	args = append(args, scopeArgs...)

	if f.Year != 0 {
		query += ` AND CAST(substr(i.due_date, 1, 4) AS INTEGER) = ?`
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		query += ` AND CAST(substr(i.due_date, 6, 2) AS INTEGER) = ?`
		args = append(args, f.Month)
	}
	if f.CategoryID != 0 {
		query += ` AND i.category_id = ?`
		args = append(args, f.CategoryID)
	}
	query += ` ORDER BY i.due_date DESC, i.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		inc, err := r.scanIncome(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ListDueCandidates returns every live, active, non-expired income joined
// with its owner's contact details, ordered by id for a stable batch order.
// The reminder selector applies the recurrence check on top.
func (r *SQLiteRepository) ListDueCandidates(ctx context.Context, asOf core.Date) ([]DueCandidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+incomeColumns+`, u.display_name, u.username, u.whatsapp_number
		 FROM incomes i
		 JOIN categories c ON c.id = i.category_id
		 JOIN users u ON u.id = i.owner_id
		 WHERE i.is_deleted = 0 AND i.active = 1
		   AND (i.expiration_date IS NULL OR i.expiration_date >= ?)
		 ORDER BY i.id`,
		asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due candidates: %w", err)
	}
	defer rows.Close()

	var out []DueCandidate
	for rows.Next() {
		var (
			cand        DueCandidate
			displayName string
			username    string
			numberEnc   string
		)
		scan := func(dest ...any) error {
			return rows.Scan(append(dest, &displayName, &username, &numberEnc)...)
		}
		inc, err := r.scanIncome(scan)
		if err != nil {
			return nil, err
		}
		cand.Income = inc
		cand.OwnerName = displayName
		if cand.OwnerName == "" {
			cand.OwnerName = username
		}
		if numberEnc != "" {
			cand.WhatsAppNumber, err = r.cipher.DecryptString(numberEnc)
			if err != nil {
				return nil, fmt.Errorf("decrypt whatsapp number: %w", err)
			}
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

// AlreadyReminded reports whether a reminder was already sent for the
// occurrence.
func (r *SQLiteRepository) AlreadyReminded(ctx context.Context, incomeID int64, occurrence core.Date) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_log WHERE income_id = ? AND occurrence = ?`,
		incomeID, occurrence.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	return n > 0, nil
}

// RecordReminder logs a sent reminder. The primary key makes the operation
// idempotent per occurrence.
func (r *SQLiteRepository) RecordReminder(ctx context.Context, incomeID int64, occurrence core.Date, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminder_log (income_id, occurrence, sent_at) VALUES (?, ?, ?)`,
		incomeID, occurrence.String(), sentAt.UTC())
	if err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}

// GetIncomeAny returns an income without owner scoping. Only the export
// worker uses it; user-facing paths go through GetIncome.
func (r *SQLiteRepository) GetIncomeAny(ctx context.Context, id int64) (core.Income, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+incomeColumns+`
		 FROM incomes i JOIN categories c ON c.id = i.category_id
		 WHERE i.id = ? AND i.is_deleted = 0`, id)
	return r.scanIncome(row.Scan)
}

// ListPendingExport returns ids of incomes whose change has not reached the
// backup sheet yet.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM incomes WHERE export_state = 'pending' AND is_deleted = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending export id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkExported flags an income as present in the backup sheet.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET export_state = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError flags an income whose export failed; the sweep retries it.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET export_state = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanIncome(scan func(dest ...any) error) (core.Income, error) {
	var (
		inc        core.Income
		catEnc     string
		descEnc    string
		amountEnc  string
		currency   string
		dueDate    string
		frequency  string
		expiration sql.NullString
		active     int64
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := scan(&inc.ID, &inc.OwnerID, &inc.CategoryID, &catEnc, &descEnc, &amountEnc,
		&currency, &dueDate, &frequency, &expiration, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, ErrNotFound
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("scan income: %w", err)
	}

	inc.CategoryName, err = r.cipher.DecryptString(catEnc)
	if err != nil {
		return core.Income{}, fmt.Errorf("decrypt category name: %w", err)
	}
	inc.Description, err = r.cipher.DecryptString(descEnc)
	if err != nil {
		return core.Income{}, fmt.Errorf("decrypt description: %w", err)
	}
	amountStr, err := r.cipher.DecryptString(amountEnc)
	if err != nil {
		return core.Income{}, fmt.Errorf("decrypt amount: %w", err)
	}
	inc.Amount, err = core.ParseAmount(amountStr)
	if err != nil {
		return core.Income{}, fmt.Errorf("parse stored amount: %w", err)
	}

	inc.Currency = core.Currency(currency)
	inc.Frequency = core.Frequency(frequency)
	inc.DueDate, err = core.ParseDate(dueDate)
	if err != nil {
		return core.Income{}, fmt.Errorf("parse due date: %w", err)
	}
	if expiration.Valid && expiration.String != "" {
		inc.ExpirationDate, err = core.ParseDate(expiration.String)
		if err != nil {
			return core.Income{}, fmt.Errorf("parse expiration date: %w", err)
		}
	}
	inc.Active = active == 1
	inc.CreatedAt = createdAt
	inc.UpdatedAt = updatedAt
	return inc, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
