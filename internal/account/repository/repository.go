// Package repository defines persistence for accounts.
package repository

import (
	"context"
	"errors"
	"time"

	"collection-vault/internal/account/domain"
)

// ErrConflict is returned when a conditional update matched no row because the
// row changed between read and write (optimistic concurrency).
var ErrConflict = errors.New("account row conflict")

// Repository defines persistence for accounts. Lookups return (nil, nil) for
// missing rows; errors mean database failure.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	// RecordLoginFailure atomically increments the failed-login counter and,
	// when the counter reaches threshold, sets lockout_until to now+lockFor.
	// A single conditional update; no read-modify-write.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (locked bool, err error)
	// SaveResetToken persists the account's reset-token hash and expiry,
	// conditional on the account version. Returns ErrConflict if the row moved.
	SaveResetToken(ctx context.Context, a *domain.Account) error
}
