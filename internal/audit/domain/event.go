package domain

import "time"

// Event is one persisted security audit record. Detail carries the precise
// cause that must not leak to callers (unknown email vs wrong password, replay
// detection, lockout).
type Event struct {
	ID        string
	AccountID string // empty when the event has no resolved account
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Actions recorded by the auth flows.
const (
	ActionLoginSuccess   = "login_success"
	ActionLoginFailure   = "login_failure"
	ActionAccountLocked  = "account_locked"
	ActionRefresh        = "refresh"
	ActionReplayDetected = "replay_detected"
	ActionLogout         = "logout"
	ActionResetRequested = "reset_requested"
	ActionResetVerified  = "reset_verified"
	ActionSessionSweep   = "session_sweep"
)
