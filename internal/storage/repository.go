// Package storage is the persistence layer: SQLite via modernc.org/sqlite,
// schema managed by golang-migrate, sensitive columns encrypted through the
// injected crypto.Cipher.
//
// Ownership is enforced here, not in handlers: every scoped method takes an
// Actor and a non-owner looking up a foreign record gets ErrNotFound, never a
// hint that the record exists. A superuser actor sees all records.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/crypto"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrCategoryInUse  = errors.New("category has active incomes")
	ErrCategoryExists = errors.New("category already exists")
)

// Actor identifies who is performing an operation.
type Actor struct {
	UserID int64
	Role   core.Role
}

func (a Actor) superuser() bool { return a.Role == core.RoleSuperuser }

// scope returns the ownership clause appended to WHERE conditions. Superusers
// are unscoped.
func (a Actor) scope(column string) (string, []any) {
	if a.superuser() {
		return "", nil
	}
	return fmt.Sprintf(" AND %s = ?", column), []any{a.UserID}
}

type SQLiteRepository struct {
	db     *sql.DB
	cipher *crypto.Cipher
}

// NewSQLiteRepository opens the database, runs migrations and wires the field
// cipher into the read/write paths.
func NewSQLiteRepository(dbPath string, cipher *crypto.Cipher) (*SQLiteRepository, error) {
	if cipher == nil {
		return nil, errors.New("field cipher is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, cipher: cipher}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser stores a new account. The WhatsApp number is encrypted at rest.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, passwordHash string) (int64, error) {
	number := ""
	if u.WhatsAppNumber != "" {
		enc, err := r.cipher.EncryptString(u.WhatsAppNumber)
		if err != nil {
			return 0, fmt.Errorf("encrypt whatsapp number: %w", err)
		}
		number = enc
	}
	role := u.Role
	if role == "" {
		role = core.RoleUser
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, password_hash, role, whatsapp_number) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, passwordHash, string(role), number)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetUserByUsername returns the user and its password hash for login checks.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, role, whatsapp_number, created_at FROM users WHERE username = ?`,
		username)
	return r.scanUser(row)
}

// GetUser returns a user by id.
func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, role, whatsapp_number, created_at FROM users WHERE id = ?`,
		id)
	u, _, err := r.scanUser(row)
	return u, err
}

// SetWhatsAppNumber updates a user's notification target.
func (r *SQLiteRepository) SetWhatsAppNumber(ctx context.Context, userID int64, number string) error {
	enc := ""
	if number != "" {
		var err error
		enc, err = r.cipher.EncryptString(number)
		if err != nil {
			return fmt.Errorf("encrypt whatsapp number: %w", err)
		}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET whatsapp_number = ? WHERE id = ?`, enc, userID)
	if err != nil {
		return fmt.Errorf("update whatsapp number: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, string, error) {
	var (
		u         core.User
		hash      string
		role      string
		number    string
		createdAt time.Time
	)
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &hash, &role, &number, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", ErrNotFound
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	u.CreatedAt = createdAt
	if number != "" {
		plain, err := r.cipher.DecryptString(number)
		if err != nil {
			return core.User{}, "", fmt.Errorf("decrypt whatsapp number: %w", err)
		}
		u.WhatsAppNumber = plain
	}
	return u, hash, nil
}
