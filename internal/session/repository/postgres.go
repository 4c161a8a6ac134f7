package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"collection-vault/internal/session/domain"
)

// uniqueViolation is the Postgres error code for a unique-index conflict.
const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DB
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, account_id, access_jti, token_hash, device_id, expires_at,
		revoked, revoked_at, revoked_reason, replaced_by_id, version, is_deleted, created_at`

// GetByTokenHash returns the non-deleted session with the given token hash,
// revoked rows included, or nil if not found.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+`
		FROM sessions WHERE token_hash = $1 AND NOT is_deleted`, hash)
	return scanSession(row)
}

// CreateOnLogin commits the full login write set: reset the account's
// failed-login counter, bulk-revoke any non-revoked session for the same
// (account, device) pair when a device id is present, and insert s. One
// transaction; the login either fully commits or leaves nothing behind.
func (r *PostgresRepository) CreateOnLogin(ctx context.Context, s *domain.Session, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `UPDATE accounts
		SET failed_login_count = 0, lockout_until = NULL, version = version + 1, updated_at = $2
		WHERE id = $1 AND NOT is_deleted`, s.AccountID, now)
	if err != nil {
		return err
	}
	if s.DeviceID != "" {
		_, err = tx.Exec(ctx, `UPDATE sessions
			SET revoked = TRUE, revoked_at = $3, revoked_reason = $4, version = version + 1
			WHERE account_id = $1 AND device_id = $2 AND NOT revoked AND NOT is_deleted`,
			s.AccountID, s.DeviceID, now, string(domain.ReasonReplacedByLogin))
		if err != nil {
			return err
		}
	}
	if err := insertSession(ctx, tx, s); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Rotate revokes old with reason rotated and its successor pointer set, and
// inserts successor in one transaction. The update is guarded by old's version
// and non-revoked state; zero rows affected means a concurrent refresh won,
// reported as ErrConflict.
func (r *PostgresRepository) Rotate(ctx context.Context, old *domain.Session, successor *domain.Session, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE sessions
		SET revoked = TRUE, revoked_at = $3, revoked_reason = $4, replaced_by_id = $5, version = version + 1
		WHERE id = $1 AND version = $2 AND NOT revoked AND NOT is_deleted`,
		old.ID, old.Version, now, string(domain.ReasonRotated), successor.ID)
	if err != nil {
		return translateConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	if err := insertSession(ctx, tx, successor); err != nil {
		return translateConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	old.Revoke(domain.ReasonRotated, now)
	old.ReplacedByID = successor.ID
	old.Version++
	return nil
}

// Revoke marks the session revoked, conditional on version and non-revoked
// state. Returns ErrConflict on a lost race.
func (r *PostgresRepository) Revoke(ctx context.Context, s *domain.Session, reason domain.RevokeReason, now time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE sessions
		SET revoked = TRUE, revoked_at = $3, revoked_reason = $4, version = version + 1
		WHERE id = $1 AND version = $2 AND NOT revoked AND NOT is_deleted`,
		s.ID, s.Version, now, string(reason))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	s.Revoke(reason, now)
	s.Version++
	return nil
}

// RevokeAllByAccount bulk-revokes every non-revoked session of the account.
// A single conditional update; no rows are read into memory.
func (r *PostgresRepository) RevokeAllByAccount(ctx context.Context, accountID string, reason domain.RevokeReason, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE sessions
		SET revoked = TRUE, revoked_at = $2, revoked_reason = $3, version = version + 1
		WHERE account_id = $1 AND NOT revoked AND NOT is_deleted`,
		accountID, now, string(reason))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SweepExpired revokes active-but-expired rows (reason expired-cleanup), then
// soft-deletes rows revoked or expired before cutoff.
func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time, cutoff time.Time) (int64, int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE sessions
		SET revoked = TRUE, revoked_at = $1, revoked_reason = $2, version = version + 1
		WHERE NOT revoked AND NOT is_deleted AND expires_at <= $1`,
		now, string(domain.ReasonExpiredCleanup))
	if err != nil {
		return 0, 0, err
	}
	revoked := tag.RowsAffected()

	tag, err = r.db.Exec(ctx, `UPDATE sessions
		SET is_deleted = TRUE, version = version + 1
		WHERE NOT is_deleted AND revoked AND (revoked_at <= $1 OR (revoked_at IS NULL AND expires_at <= $1))`,
		cutoff)
	if err != nil {
		return revoked, 0, err
	}
	return revoked, tag.RowsAffected(), nil
}

func insertSession(ctx context.Context, tx pgx.Tx, s *domain.Session) error {
	_, err := tx.Exec(ctx, `INSERT INTO sessions
		(id, account_id, access_jti, token_hash, device_id, expires_at,
		 revoked, revoked_at, revoked_reason, replaced_by_id, version, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.AccountID, s.AccessJTI, s.TokenHash, nullIfEmpty(s.DeviceID), s.ExpiresAt,
		s.Revoked, s.RevokedAt, nullIfEmpty(string(s.RevokedReason)), nullIfEmpty(s.ReplacedByID),
		s.Version, s.IsDeleted, s.CreatedAt)
	return err
}

// translateConflict maps a unique-index violation on token_hash to
// ErrConflict; two concurrent refreshes of one token race the successor
// insert and the loser must be told to re-authenticate, not shown a pg error.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var deviceID, reason, replacedBy *string
	err := row.Scan(&s.ID, &s.AccountID, &s.AccessJTI, &s.TokenHash, &deviceID, &s.ExpiresAt,
		&s.Revoked, &s.RevokedAt, &reason, &replacedBy, &s.Version, &s.IsDeleted, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if deviceID != nil {
		s.DeviceID = *deviceID
	}
	if reason != nil {
		s.RevokedReason = domain.RevokeReason(*reason)
	}
	if replacedBy != nil {
		s.ReplacedByID = *replacedBy
	}
	return &s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
