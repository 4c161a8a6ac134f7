// Package repository defines persistence for sessions. The session table is
// the only shared mutable resource; every write goes through this package.
package repository

import (
	"context"
	"errors"
	"time"

	"collection-vault/internal/session/domain"
)

// ErrConflict is returned when a conditional write lost a race: the row's
// version moved between read and write, or an insert hit the unique
// token-hash index. Callers treat it as "re-authenticate".
var ErrConflict = errors.New("session row conflict")

// Repository defines persistence for sessions. Lookups return (nil, nil) for
// missing rows; errors mean database failure.
type Repository interface {
	// GetByTokenHash returns the non-deleted session with the given token
	// hash, including revoked rows: replay of a revoked token must be
	// observable, not reported as "not found".
	GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// CreateOnLogin commits the login write set in one transaction: reset
	// the account's failed-login counter, bulk-revoke every non-revoked
	// session for (account, device) with reason replaced-by-new-login when
	// s.DeviceID is set, and insert s.
	CreateOnLogin(ctx context.Context, s *domain.Session, now time.Time) error
	// Rotate revokes old (reason rotated, successor pointer set) and inserts
	// successor in one transaction. The revoke is conditional on old's
	// version and non-revoked state; Rotate returns ErrConflict when a
	// concurrent refresh won the race.
	Rotate(ctx context.Context, old *domain.Session, successor *domain.Session, now time.Time) error
	// Revoke marks the session revoked with the given reason, conditional on
	// version and non-revoked state. Returns ErrConflict on a lost race.
	Revoke(ctx context.Context, s *domain.Session, reason domain.RevokeReason, now time.Time) error
	// RevokeAllByAccount bulk-revokes every non-revoked session of the
	// account in a single conditional update. Returns the number revoked.
	RevokeAllByAccount(ctx context.Context, accountID string, reason domain.RevokeReason, now time.Time) (int64, error)
	// SweepExpired bulk-revokes active sessions whose expiry has passed
	// (reason expired-cleanup), then soft-deletes sessions revoked or expired
	// before cutoff. Returns (revoked, deleted) counts.
	SweepExpired(ctx context.Context, now time.Time, cutoff time.Time) (revoked int64, deleted int64, err error)
}
