package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ruktech/income-tracker/internal/core"
)

// CreateCategory stores a category for the actor. Name uniqueness per owner is
// checked against decrypted names because the ciphertext is non-deterministic.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, actor Actor, c core.Category) (int64, error) {
	existing, err := r.ListCategories(ctx, Actor{UserID: c.OwnerID, Role: core.RoleUser})
	if err != nil {
		return 0, err
	}
	for _, other := range existing {
		if strings.EqualFold(other.Name, c.Name) {
			return 0, fmt.Errorf("category %q: %w", c.Name, ErrCategoryExists)
		}
	}

	enc, err := r.cipher.EncryptString(c.Name)
	if err != nil {
		return 0, fmt.Errorf("encrypt category name: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (owner_id, name) VALUES (?, ?)`,
		c.OwnerID, enc)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetCategory returns one category, scoped to the actor.
func (r *SQLiteRepository) GetCategory(ctx context.Context, actor Actor, id int64) (core.Category, error) {
	query := `SELECT id, owner_id, name FROM categories WHERE id = ? AND is_deleted = 0`
	args := []any{id}
	clause, scopeArgs := actor.scope("owner_id")
	query += clause
	args = append(args, scopeArgs...)

	var (
		c   core.Category
		enc string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.OwnerID, &enc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Name, err = r.cipher.DecryptString(enc)
	if err != nil {
		return core.Category{}, fmt.Errorf("decrypt category name: %w", err)
	}
	return c, nil
}

// ListCategories returns the actor's categories (all categories for a
// superuser), names decrypted, sorted is left to the caller since ciphertext
// order is meaningless.
func (r *SQLiteRepository) ListCategories(ctx context.Context, actor Actor) ([]core.Category, error) {
	query := `SELECT id, owner_id, name FROM categories WHERE is_deleted = 0`
	var args []any
	clause, scopeArgs := actor.scope("owner_id")
	query += clause + ` ORDER BY id`
	args = append(args, scopeArgs...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c   core.Category
			enc string
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &enc); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Name, err = r.cipher.DecryptString(enc)
		if err != nil {
			return nil, fmt.Errorf("decrypt category name: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SoftDeleteCategory marks a category deleted. Categories still referenced by
// live incomes are protected.
func (r *SQLiteRepository) SoftDeleteCategory(ctx context.Context, actor Actor, id int64) error {
	if _, err := r.GetCategory(ctx, actor, id); err != nil {
		return err
	}

	var inUse int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incomes WHERE category_id = ? AND is_deleted = 0`, id).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("count category incomes: %w", err)
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE categories SET is_deleted = 1, deleted_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete category: %w", err)
	}
	return nil
}
