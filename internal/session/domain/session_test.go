package domain

import (
	"testing"
	"time"
)

func TestSession_Expired(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ExpiresAt: now.Add(time.Hour)}

	if s.Expired(now) {
		t.Error("session should not be expired before ExpiresAt")
	}
	if !s.Expired(now.Add(time.Hour)) {
		t.Error("session should be expired at ExpiresAt")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session should be expired after ExpiresAt")
	}
}

func TestSession_Usable(t *testing.T) {
	now := time.Now().UTC()

	s := &Session{ExpiresAt: now.Add(time.Hour)}
	if !s.Usable(now) {
		t.Error("fresh session should be usable")
	}

	revoked := &Session{ExpiresAt: now.Add(time.Hour), Revoked: true}
	if revoked.Usable(now) {
		t.Error("revoked session should not be usable")
	}

	expired := &Session{ExpiresAt: now.Add(-time.Minute)}
	if expired.Usable(now) {
		t.Error("expired session should not be usable")
	}

	deleted := &Session{ExpiresAt: now.Add(time.Hour), IsDeleted: true}
	if deleted.Usable(now) {
		t.Error("deleted session should not be usable")
	}
}

func TestSession_RevokeIsTerminal(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ExpiresAt: now.Add(time.Hour)}

	s.Revoke(ReasonLogout, now)
	if !s.Revoked || s.RevokedReason != ReasonLogout {
		t.Fatalf("Revoked = %v, reason = %q", s.Revoked, s.RevokedReason)
	}
	if s.RevokedAt == nil || !s.RevokedAt.Equal(now) {
		t.Errorf("RevokedAt = %v, want %v", s.RevokedAt, now)
	}

	// A second revocation must not overwrite the first reason.
	s.Revoke(ReasonReplayDetected, now.Add(time.Minute))
	if s.RevokedReason != ReasonLogout {
		t.Errorf("RevokedReason = %q after second revoke, want %q", s.RevokedReason, ReasonLogout)
	}
	if !s.RevokedAt.Equal(now) {
		t.Errorf("RevokedAt changed on second revoke")
	}
}
