// Package domain holds the session row: one link in a refresh-token rotation
// chain.
package domain

import "time"

// RevokeReason records why a session left the active state. Revocation is
// terminal; no transition leaves it.
type RevokeReason string

const (
	ReasonRotated         RevokeReason = "rotated"
	ReasonReplacedByLogin RevokeReason = "replaced-by-new-login"
	ReasonLogout          RevokeReason = "logout"
	ReasonReplayDetected  RevokeReason = "replay-detected"
	ReasonExpiredCleanup  RevokeReason = "expired-cleanup"
)

// Session is a persisted refresh-token lineage link. TokenHash is the SHA-256
// of the opaque refresh token; the raw value is never stored. ReplacedByID
// points at the successor created by rotation, forming a singly-linked chain.
type Session struct {
	ID            string
	AccountID     string
	AccessJTI     string // jti of the access token issued alongside
	TokenHash     string
	DeviceID      string // empty when the client supplied none
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason RevokeReason
	ReplacedByID  string
	Version       int // optimistic concurrency
	IsDeleted     bool
	CreatedAt     time.Time
}

// Expired reports whether the session's lifetime has passed. Expiry is a
// read-time predicate, equivalent to revocation for authorization decisions.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Usable reports whether the session can still redeem a refresh: not revoked,
// not expired, not deleted.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && !s.IsDeleted && !s.Expired(now)
}

// Revoke marks the session revoked with the given reason. No-op if already
// revoked (the first reason wins).
func (s *Session) Revoke(reason RevokeReason, now time.Time) {
	if s.Revoked {
		return
	}
	s.Revoked = true
	s.RevokedAt = &now
	s.RevokedReason = reason
}
