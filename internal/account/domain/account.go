// Package domain holds the account aggregate. Lockout and reset-token state
// change only through the behaviors below; callers never poke the fields.
package domain

import (
	"errors"
	"time"
)

// Account is an authenticatable identity. Accounts are soft-deleted, never
// removed.
type Account struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	TwoFactorEnabled    bool
	FailedLoginCount    int
	LockoutUntil        *time.Time // nil when not locked
	ResetTokenHash      string     // SHA-256 hex of the outstanding reset token; empty if none
	ResetTokenExpiresAt *time.Time
	Version             int // optimistic concurrency
	IsDeleted           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if a.Role == "" {
		a.Role = RoleMember
	}
	return nil
}

// Locked reports whether the account is locked out at the given time.
func (a *Account) Locked(now time.Time) bool {
	return a.LockoutUntil != nil && now.Before(*a.LockoutUntil)
}

// RecordFailedLogin increments the failed-attempt counter and locks the
// account for lockFor once the counter reaches threshold. Returns true when
// this call locked the account.
func (a *Account) RecordFailedLogin(now time.Time, threshold int, lockFor time.Duration) bool {
	a.FailedLoginCount++
	a.UpdatedAt = now
	if a.FailedLoginCount >= threshold {
		until := now.Add(lockFor)
		a.LockoutUntil = &until
		return true
	}
	return false
}

// RecordSuccessfulLogin resets the failed-attempt counter and clears any
// expired lockout marker.
func (a *Account) RecordSuccessfulLogin(now time.Time) {
	a.FailedLoginCount = 0
	a.LockoutUntil = nil
	a.UpdatedAt = now
}

// SetResetToken stores the hash and expiry of a newly issued password-reset
// token, replacing any outstanding one. The raw token is never stored.
func (a *Account) SetResetToken(hash string, expiresAt time.Time, now time.Time) {
	a.ResetTokenHash = hash
	a.ResetTokenExpiresAt = &expiresAt
	a.UpdatedAt = now
}
