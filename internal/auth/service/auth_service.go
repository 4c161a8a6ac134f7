// Package service implements the auth flows: login, refresh-token rotation
// with replay detection, logout, account lockout, and password reset.
package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	accountdomain "collection-vault/internal/account/domain"
	"collection-vault/internal/audit"
	auditdomain "collection-vault/internal/audit/domain"
	"collection-vault/internal/notify"
	"collection-vault/internal/permission"
	"collection-vault/internal/security"
	sessiondomain "collection-vault/internal/session/domain"
	sessionrepo "collection-vault/internal/session/repository"
)

// AuthResult holds the outcome of Login or Refresh: a fresh token pair, its
// expiries, and the account's resolved permission set.
type AuthResult struct {
	AccountID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Permissions      []string
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (locked bool, err error)
	SaveResetToken(ctx context.Context, a *accountdomain.Account) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	CreateOnLogin(ctx context.Context, s *sessiondomain.Session, now time.Time) error
	Rotate(ctx context.Context, old, successor *sessiondomain.Session, now time.Time) error
	Revoke(ctx context.Context, s *sessiondomain.Session, reason sessiondomain.RevokeReason, now time.Time) error
	RevokeAllByAccount(ctx context.Context, accountID string, reason sessiondomain.RevokeReason, now time.Time) (int64, error)
	SweepExpired(ctx context.Context, now, cutoff time.Time) (revoked, deleted int64, err error)
}

// AuthService coordinates the auth flows atop the account and session stores.
// All session writes are funneled through it.
type AuthService struct {
	accounts AccountRepo
	sessions SessionRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	perms    *permission.Registry
	auditor  audit.Recorder
	notifier notify.Notifier
	tracer   trace.Tracer

	refreshTTL       time.Duration
	resetTTL         time.Duration
	lockoutThreshold int
	lockoutFor       time.Duration
}

// NewAuthService returns an AuthService with the given dependencies. tracer
// may be nil; spans are then dropped.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	perms *permission.Registry,
	auditor audit.Recorder,
	notifier notify.Notifier,
	tracer trace.Tracer,
	refreshTTL, resetTTL time.Duration,
	lockoutThreshold int,
	lockoutFor time.Duration,
) *AuthService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("auth")
	}
	return &AuthService{
		accounts:         accounts,
		sessions:         sessions,
		hasher:           hasher,
		tokens:           tokens,
		perms:            perms,
		auditor:          auditor,
		notifier:         notifier,
		tracer:           tracer,
		refreshTTL:       refreshTTL,
		resetTTL:         resetTTL,
		lockoutThreshold: lockoutThreshold,
		lockoutFor:       lockoutFor,
	}
}

// Login authenticates with email/password, enforces lockout, revokes prior
// sessions on the same device, and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password, deviceID string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	now := time.Now().UTC()
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, guardWrite("get account", err)
	}
	if acct == nil {
		s.auditor.Record(ctx, "", auditdomain.ActionLoginFailure, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if acct.Locked(now) {
		s.auditor.Record(ctx, acct.ID, auditdomain.ActionLoginFailure, "account locked")
		return nil, ErrAccountLocked
	}
	if acct.TwoFactorEnabled {
		return nil, ErrTwoFactorRequired
	}
	if err := s.hasher.Compare(acct.PasswordHash, []byte(password)); err != nil {
		locked, ferr := s.accounts.RecordLoginFailure(ctx, acct.ID, s.lockoutThreshold, s.lockoutFor, now)
		if ferr != nil {
			return nil, guardWrite("record login failure", ferr)
		}
		s.auditor.Record(ctx, acct.ID, auditdomain.ActionLoginFailure, "wrong password")
		if locked {
			s.auditor.Record(ctx, acct.ID, auditdomain.ActionAccountLocked, "failed-login threshold reached")
		}
		return nil, ErrInvalidCredentials
	}
	sess, result, err := s.mint(acct, strings.TrimSpace(deviceID), now)
	if err != nil {
		return nil, err
	}
	// CreateOnLogin also resets the failed-login counter; a failed session
	// insert must not leave the counter already cleared.
	if err := s.sessions.CreateOnLogin(ctx, sess, now); err != nil {
		return nil, guardWrite("create session", err)
	}
	s.auditor.Record(ctx, acct.ID, auditdomain.ActionLoginSuccess, "")
	return result, nil
}

// Refresh redeems an opaque refresh token for a new token pair, rotating the
// session. Reuse of an already-rotated token revokes every non-revoked session
// of the account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.refresh")
	defer span.End()

	token, err := security.NormalizeOpaqueToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	now := time.Now().UTC()
	old, err := s.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(token))
	if err != nil {
		return nil, guardWrite("get session", err)
	}
	if old == nil {
		return nil, ErrInvalidToken
	}
	if old.Revoked {
		// Reuse of a spent token: treat as theft and revoke the whole account.
		n, rerr := s.sessions.RevokeAllByAccount(ctx, old.AccountID, sessiondomain.ReasonReplayDetected, now)
		if rerr != nil {
			return nil, guardWrite("revoke account sessions", rerr)
		}
		s.auditor.Record(ctx, old.AccountID, auditdomain.ActionReplayDetected, old.ID)
		log.Printf("auth: replay detected account=%s session=%s revoked=%d", old.AccountID, old.ID, n)
		return nil, ErrTokenUnusable
	}
	if old.Expired(now) {
		return nil, ErrTokenExpired
	}
	acct, err := s.accounts.GetByID(ctx, old.AccountID)
	if err != nil {
		return nil, guardWrite("get account", err)
	}
	if acct == nil {
		return nil, ErrInvalidToken
	}
	if acct.Locked(now) {
		return nil, ErrAccountLocked
	}

	successor, result, err := s.mint(acct, old.DeviceID, now)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Rotate(ctx, old, successor, now); err != nil {
		return nil, guardWrite("rotate session", err)
	}
	s.auditor.Record(ctx, acct.ID, auditdomain.ActionRefresh, old.ID)
	return result, nil
}

// Logout revokes the session behind the refresh token. Idempotent: a
// malformed, unknown, or already-revoked token is a silent no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.tracer.Start(ctx, "auth.logout")
	defer span.End()

	token, err := security.NormalizeOpaqueToken(refreshToken)
	if err != nil {
		return nil
	}
	now := time.Now().UTC()
	sess, err := s.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(token))
	if err != nil {
		return guardWrite("get session", err)
	}
	if sess == nil || sess.Revoked {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sess, sessiondomain.ReasonLogout, now); err != nil {
		// A lost race means another writer already revoked it; same outcome.
		if errors.Is(err, sessionrepo.ErrConflict) {
			return nil
		}
		return guardWrite("revoke session", err)
	}
	s.auditor.Record(ctx, sess.AccountID, auditdomain.ActionLogout, sess.ID)
	return nil
}

// RequestPasswordReset issues a reset token for the account behind email.
// Unknown email is a silent no-op. Only the token's hash is persisted; the raw
// value goes out through the notifier.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "auth.reset_request")
	defer span.End()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return guardWrite("get account", err)
	}
	if acct == nil {
		return nil
	}
	raw, err := security.NewOpaqueToken()
	if err != nil {
		return guardWrite("generate reset token", err)
	}
	now := time.Now().UTC()
	acct.SetResetToken(security.HashOpaqueToken(raw), now.Add(s.resetTTL), now)
	if err := s.accounts.SaveResetToken(ctx, acct); err != nil {
		return guardWrite("save reset token", err)
	}
	s.auditor.Record(ctx, acct.ID, auditdomain.ActionResetRequested, "")
	if err := s.notifier.SendPasswordReset(ctx, email, raw); err != nil {
		// Token is persisted; delivery is best-effort.
		log.Printf("auth: reset token dispatch failed for account=%s: %v", acct.ID, err)
	}
	return nil
}

// VerifyPasswordReset reports whether token is the account's live reset token.
// Routine failures (unknown account, no token set, expired, wrong or malformed
// token, storage trouble) are logged and surface uniformly as false; only a
// malformed account id is an error.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, token, accountID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "auth.reset_verify")
	defer span.End()

	if _, err := uuid.Parse(accountID); err != nil {
		return false, ErrMalformedAccountID
	}
	raw, err := security.NormalizeOpaqueToken(token)
	if err != nil {
		return false, nil
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		log.Printf("auth: reset verify lookup failed for account=%s: %v", accountID, err)
		return false, nil
	}
	if acct == nil || acct.ResetTokenHash == "" || acct.ResetTokenExpiresAt == nil {
		return false, nil
	}
	now := time.Now().UTC()
	if !now.Before(*acct.ResetTokenExpiresAt) {
		return false, nil
	}
	if !security.OpaqueTokenHashEqual(raw, acct.ResetTokenHash) {
		return false, nil
	}
	s.auditor.Record(ctx, acct.ID, auditdomain.ActionResetVerified, "")
	return true, nil
}

// CleanupExpired revokes still-active sessions whose expiry has passed and
// soft-deletes sessions revoked or expired before the retention window.
// Returns (revoked, deleted) counts.
func (s *AuthService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, int64, error) {
	ctx, span := s.tracer.Start(ctx, "auth.cleanup")
	defer span.End()

	now := time.Now().UTC()
	revoked, deleted, err := s.sessions.SweepExpired(ctx, now, now.Add(-retention))
	if err != nil {
		return 0, 0, guardWrite("sweep sessions", err)
	}
	if revoked > 0 || deleted > 0 {
		s.auditor.Record(ctx, "", auditdomain.ActionSessionSweep, "")
	}
	return revoked, deleted, nil
}

// mint issues an access+refresh pair for the account and builds the session
// row that records the refresh token's hash. The row is not yet persisted.
func (s *AuthService) mint(acct *accountdomain.Account, deviceID string, now time.Time) (*sessiondomain.Session, *AuthResult, error) {
	perms := s.perms.Resolve(string(acct.Role))
	access, jti, accessExp, err := s.tokens.IssueAccess(acct.ID, string(acct.Role), perms, deviceID)
	if err != nil {
		return nil, nil, guardWrite("issue access token", err)
	}
	refresh, err := security.NewOpaqueToken()
	if err != nil {
		return nil, nil, guardWrite("issue refresh token", err)
	}
	refreshExp := now.Add(s.refreshTTL)
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		AccountID: acct.ID,
		AccessJTI: jti,
		TokenHash: security.HashOpaqueToken(refresh),
		DeviceID:  deviceID,
		ExpiresAt: refreshExp,
		Version:   1,
		CreatedAt: now,
	}
	return sess, &AuthResult{
		AccountID:        acct.ID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Permissions:      perms,
	}, nil
}
