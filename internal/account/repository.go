package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines account persistence.
type Repository interface {
	Create(ctx context.Context, acct *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	SetActive(ctx context.Context, email string, active bool) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed account repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an account. The email is normalized first.
func (r *SQLiteRepository) Create(ctx context.Context, acct *Account) error {
	email, err := NormalizeEmail(acct.Email)
	if err != nil {
		return err
	}
	acct.Email = email
	acct.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO accounts (email, name, phone_number, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		acct.Email, acct.Name, acct.PhoneNumber, boolToInt(acct.IsActive),
		acct.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

// GetByEmail retrieves an account, active or not.
func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT email, name, phone_number, is_active, created_at FROM accounts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))

	var (
		a         Account
		isActive  int
		createdAt string
	)
	if err := row.Scan(&a.Email, &a.Name, &a.PhoneNumber, &isActive, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	a.IsActive = isActive != 0
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &a, nil
}

// SetActive flips the active flag. Withdrawing keeps the row so device
// records stay attributable.
func (r *SQLiteRepository) SetActive(ctx context.Context, email string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = ? WHERE email = ?`,
		boolToInt(active), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RequireActive returns the account when it exists and is active.
func RequireActive(ctx context.Context, repo Repository, email string) (*Account, error) {
	a, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, ErrAccountInactive
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
