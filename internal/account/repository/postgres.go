package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"collection-vault/internal/account/domain"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DB
}

// NewPostgresRepository returns an account repository backed by the given pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, password_hash, role, two_factor_enabled, failed_login_count,
		lockout_until, reset_token_hash, reset_token_expires_at, version, is_deleted, created_at, updated_at`

// GetByEmail returns the non-deleted account with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE email = $1 AND NOT is_deleted`, email)
	return scanAccount(row)
}

// GetByID returns the non-deleted account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE id = $1 AND NOT is_deleted`, id)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts
		(id, email, password_hash, role, two_factor_enabled, failed_login_count,
		 lockout_until, reset_token_hash, reset_token_expires_at, version, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.Email, a.PasswordHash, string(a.Role), a.TwoFactorEnabled, a.FailedLoginCount,
		a.LockoutUntil, nullIfEmpty(a.ResetTokenHash), a.ResetTokenExpiresAt, a.Version, a.IsDeleted, a.CreatedAt, a.UpdatedAt)
	return err
}

// RecordLoginFailure increments failed_login_count and sets lockout_until when
// the incremented counter reaches threshold. One conditional update so racing
// failures never lose increments. Returns whether the account is now locked.
func (r *PostgresRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts
		SET failed_login_count = failed_login_count + 1,
		    lockout_until = CASE WHEN failed_login_count + 1 >= $2 THEN $3::timestamptz ELSE lockout_until END,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1 AND NOT is_deleted
		RETURNING failed_login_count >= $2`,
		id, threshold, now.Add(lockFor), now)
	var locked bool
	if err := row.Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return locked, nil
}

// SaveResetToken persists the account's reset-token hash and expiry, guarded
// by the account version. Returns ErrConflict when the row changed underneath.
func (r *PostgresRepository) SaveResetToken(ctx context.Context, a *domain.Account) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts
		SET reset_token_hash = $3, reset_token_expires_at = $4, version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $2 AND NOT is_deleted`,
		a.ID, a.Version, nullIfEmpty(a.ResetTokenHash), a.ResetTokenExpiresAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	a.Version++
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var role string
	var resetHash *string
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.TwoFactorEnabled, &a.FailedLoginCount,
		&a.LockoutUntil, &resetHash, &a.ResetTokenExpiresAt, &a.Version, &a.IsDeleted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Role = domain.Role(role)
	if resetHash != nil {
		a.ResetTokenHash = *resetHash
	}
	return &a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
