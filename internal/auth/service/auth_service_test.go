package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	accountdomain "collection-vault/internal/account/domain"
	accountrepo "collection-vault/internal/account/repository"
	auditdomain "collection-vault/internal/audit/domain"
	"collection-vault/internal/permission"
	"collection-vault/internal/security"
	sessiondomain "collection-vault/internal/session/domain"
	sessionrepo "collection-vault/internal/session/repository"
)

type memAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*accountdomain.Account
	byEmail map[string]*accountdomain.Account

	saveConflict bool
}

func (r *memAccountRepo) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.byEmail[email]
	if a == nil || a.IsDeleted {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.byID[id]
	if a == nil || a.IsDeleted {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAccountRepo) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.byID[id]
	if a == nil {
		return false, nil
	}
	locked := a.RecordFailedLogin(now, threshold, lockFor)
	a.Version++
	return locked, nil
}

func (r *memAccountRepo) resetLoginFailures(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.byID[id]; a != nil {
		a.RecordSuccessfulLogin(now)
		a.Version++
	}
}

func (r *memAccountRepo) SaveResetToken(ctx context.Context, a *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveConflict {
		return accountrepo.ErrConflict
	}
	stored := r.byID[a.ID]
	if stored == nil || stored.Version != a.Version {
		return accountrepo.ErrConflict
	}
	stored.ResetTokenHash = a.ResetTokenHash
	stored.ResetTokenExpiresAt = a.ResetTokenExpiresAt
	stored.Version++
	a.Version++
	return nil
}

func (r *memAccountRepo) add(a *accountdomain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
	r.byEmail[a.Email] = a
}

type memSessionRepo struct {
	mu       sync.Mutex
	m        map[string]*sessiondomain.Session
	accounts *memAccountRepo

	rotateConflict bool
	createErr      error
}

func (r *memSessionRepo) GetByTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.TokenHash == hash && !s.IsDeleted {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) CreateOnLogin(ctx context.Context, s *sessiondomain.Session, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.accounts.resetLoginFailures(s.AccountID, now)
	if s.DeviceID != "" {
		for _, old := range r.m {
			if old.AccountID == s.AccountID && old.DeviceID == s.DeviceID && !old.Revoked {
				old.Revoke(sessiondomain.ReasonReplacedByLogin, now)
				old.Version++
			}
		}
	}
	cp := *s
	r.m[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) Rotate(ctx context.Context, old, successor *sessiondomain.Session, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rotateConflict {
		return sessionrepo.ErrConflict
	}
	stored := r.m[old.ID]
	if stored == nil || stored.Revoked || stored.Version != old.Version {
		return sessionrepo.ErrConflict
	}
	for _, s := range r.m {
		if s.TokenHash == successor.TokenHash {
			return sessionrepo.ErrConflict
		}
	}
	stored.Revoke(sessiondomain.ReasonRotated, now)
	stored.ReplacedByID = successor.ID
	stored.Version++
	cp := *successor
	r.m[successor.ID] = &cp
	old.Revoke(sessiondomain.ReasonRotated, now)
	old.ReplacedByID = successor.ID
	old.Version++
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, s *sessiondomain.Session, reason sessiondomain.RevokeReason, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.m[s.ID]
	if stored == nil || stored.Revoked || stored.Version != s.Version {
		return sessionrepo.ErrConflict
	}
	stored.Revoke(reason, now)
	stored.Version++
	return nil
}

func (r *memSessionRepo) RevokeAllByAccount(ctx context.Context, accountID string, reason sessiondomain.RevokeReason, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.m {
		if s.AccountID == accountID && !s.Revoked {
			s.Revoke(reason, now)
			s.Version++
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) SweepExpired(ctx context.Context, now, cutoff time.Time) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var revoked, deleted int64
	for _, s := range r.m {
		if !s.Revoked && !s.IsDeleted && s.Expired(now) {
			s.Revoke(sessiondomain.ReasonExpiredCleanup, now)
			s.Version++
			revoked++
		}
	}
	for _, s := range r.m {
		if s.Revoked && !s.IsDeleted && s.RevokedAt != nil && !s.RevokedAt.After(cutoff) {
			s.IsDeleted = true
			deleted++
		}
	}
	return revoked, deleted, nil
}

func (r *memSessionRepo) activeForDevice(accountID, deviceID string) []*sessiondomain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.m {
		if s.AccountID == accountID && s.DeviceID == deviceID && !s.Revoked {
			out = append(out, s)
		}
	}
	return out
}

func (r *memSessionRepo) activeCount(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.m {
		if s.AccountID == accountID && !s.Revoked {
			n++
		}
	}
	return n
}

func (r *memSessionRepo) get(id string) *sessiondomain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.m[id]; s != nil {
		cp := *s
		return &cp
	}
	return nil
}

type auditEntry struct {
	accountID string
	action    string
	detail    string
}

type memAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *memAuditor) Record(ctx context.Context, accountID, action, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{accountID, action, detail})
}

func (a *memAuditor) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.action == action {
			return true
		}
	}
	return false
}

type memNotifier struct {
	mu   sync.Mutex
	sent []struct{ email, token string }
}

func (n *memNotifier) SendPasswordReset(ctx context.Context, email, rawToken string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, struct{ email, token string }{email, rawToken})
	return nil
}

type testEnv struct {
	svc      *AuthService
	accounts *memAccountRepo
	sessions *memSessionRepo
	auditor  *memAuditor
	notifier *memNotifier
	hasher   *security.Hasher
	tokens   *security.TokenProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	accounts := &memAccountRepo{byID: make(map[string]*accountdomain.Account), byEmail: make(map[string]*accountdomain.Account)}
	sessions := &memSessionRepo{m: make(map[string]*sessiondomain.Session), accounts: accounts}
	auditor := &memAuditor{}
	notifier := &memNotifier{}
	hasher := security.NewHasher(4)
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := NewAuthService(
		accounts,
		sessions,
		hasher,
		tokens,
		permission.Default(),
		auditor,
		notifier,
		nil,
		24*time.Hour,  // refreshTTL
		time.Hour,     // resetTTL
		5,             // lockoutThreshold
		15*time.Minute,
	)
	return &testEnv{svc: svc, accounts: accounts, sessions: sessions, auditor: auditor, notifier: notifier, hasher: hasher, tokens: tokens}
}

func (e *testEnv) seedAccount(t *testing.T, email, password string) *accountdomain.Account {
	t.Helper()
	hash, err := e.hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	now := time.Now().UTC()
	a := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         accountdomain.RoleMember,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.accounts.add(a)
	return a
}

func TestLoginIssuesTokensAndResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")
	acct.FailedLoginCount = 3

	res, err := env.svc.Login(ctx, "User@Example.com ", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("Login should return both tokens")
	}
	if res.AccountID != acct.ID {
		t.Errorf("AccountID = %q, want %q", res.AccountID, acct.ID)
	}
	if len(res.Permissions) == 0 {
		t.Error("Login should return the resolved permission set")
	}
	if !res.RefreshExpiresAt.After(res.AccessExpiresAt) {
		t.Error("refresh expiry should outlive access expiry")
	}
	claims, err := env.tokens.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != acct.ID {
		t.Errorf("claims.Subject = %q, want %q", claims.Subject, acct.ID)
	}
	if acct.FailedLoginCount != 0 {
		t.Errorf("FailedLoginCount = %d, want 0 after successful login", acct.FailedLoginCount)
	}
	// The session row holds the refresh token's hash, never the raw value.
	sess, err := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(res.RefreshToken))
	if err != nil || sess == nil {
		t.Fatalf("session not found by token hash: %v", err)
	}
	if sess.TokenHash == res.RefreshToken {
		t.Error("raw refresh token must never be stored")
	}
	if sess.AccessJTI != claims.ID {
		t.Errorf("session jti = %q, want %q", sess.AccessJTI, claims.ID)
	}
}

func TestLoginFailedSessionWriteKeepsFailureCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")
	acct.FailedLoginCount = 3
	env.sessions.createErr = errors.New("insert failed")

	if _, err := env.svc.Login(ctx, "user@example.com", "correct horse", "d1"); err == nil {
		t.Fatal("Login should surface the session write failure")
	}
	// The counter reset commits with the session insert; an aborted login
	// must leave it untouched.
	if acct.FailedLoginCount != 3 {
		t.Errorf("FailedLoginCount = %d, want 3 after aborted login", acct.FailedLoginCount)
	}
	if got := env.sessions.activeCount(acct.ID); got != 0 {
		t.Errorf("active sessions = %d, want 0 after aborted login", got)
	}
}

func TestLoginUnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "user@example.com", "correct horse")

	_, unknownErr := env.svc.Login(ctx, "ghost@example.com", "whatever", "")
	_, wrongErr := env.svc.Login(ctx, "user@example.com", "wrong", "")
	if unknownErr != ErrInvalidCredentials {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", unknownErr)
	}
	if wrongErr != ErrInvalidCredentials {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", wrongErr)
	}
}

func TestLoginReplacesDeviceSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")

	first, err := env.svc.Login(ctx, "user@example.com", "correct horse", "d1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := env.svc.Login(ctx, "user@example.com", "correct horse", "d1"); err != nil {
		t.Fatalf("second login: %v", err)
	}

	active := env.sessions.activeForDevice(acct.ID, "d1")
	if len(active) != 1 {
		t.Fatalf("active sessions for (account, d1) = %d, want 1", len(active))
	}
	old, err := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(first.RefreshToken))
	if err != nil || old == nil {
		t.Fatalf("first session missing: %v", err)
	}
	if !old.Revoked || old.RevokedReason != sessiondomain.ReasonReplacedByLogin {
		t.Errorf("first session revoked=%v reason=%q, want revoked with %q",
			old.Revoked, old.RevokedReason, sessiondomain.ReasonReplacedByLogin)
	}

	// A login on another device leaves d1's session alone.
	if _, err := env.svc.Login(ctx, "user@example.com", "correct horse", "d2"); err != nil {
		t.Fatalf("d2 login: %v", err)
	}
	if got := len(env.sessions.activeForDevice(acct.ID, "d1")); got != 1 {
		t.Errorf("d1 active sessions after d2 login = %d, want 1", got)
	}
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")
	before := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if _, err := env.svc.Login(ctx, "user@example.com", "wrong", ""); err != ErrInvalidCredentials {
			t.Fatalf("failure %d: want ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if acct.LockoutUntil == nil {
		t.Fatal("account should be locked after 5 failures")
	}
	until := *acct.LockoutUntil
	if until.Before(before.Add(14*time.Minute)) || until.After(before.Add(16*time.Minute)) {
		t.Errorf("lockout until %v, want ~15m from %v", until, before)
	}

	// Correct password while locked still fails AccountLocked.
	if _, err := env.svc.Login(ctx, "user@example.com", "correct horse", ""); err != ErrAccountLocked {
		t.Errorf("login while locked: want ErrAccountLocked, got %v", err)
	}
}

func TestLoginAfterLockoutExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")
	past := time.Now().UTC().Add(-time.Minute)
	acct.LockoutUntil = &past
	acct.FailedLoginCount = 5

	res, err := env.svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("login after lockout expiry: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("expected tokens after lockout expiry")
	}
	if acct.FailedLoginCount != 0 || acct.LockoutUntil != nil {
		t.Errorf("counter=%d lockout=%v, want reset", acct.FailedLoginCount, acct.LockoutUntil)
	}
}

func TestLoginTwoFactorRequired(t *testing.T) {
	env := newTestEnv(t)
	acct := env.seedAccount(t, "user@example.com", "correct horse")
	acct.TwoFactorEnabled = true

	if _, err := env.svc.Login(context.Background(), "user@example.com", "correct horse", ""); err != ErrTwoFactorRequired {
		t.Errorf("want ErrTwoFactorRequired, got %v", err)
	}
}

func TestRefreshRotatesAndDetectsReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")

	login, err := env.svc.Login(ctx, "user@example.com", "correct horse", "d1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	t1 := login.RefreshToken

	second, err := env.svc.Refresh(ctx, t1)
	if err != nil {
		t.Fatalf("refresh(T1): %v", err)
	}
	t2 := second.RefreshToken
	if t2 == t1 {
		t.Fatal("rotation must issue a new refresh token")
	}

	oldSess, err := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(t1))
	if err != nil || oldSess == nil {
		t.Fatalf("rotated session must stay visible by hash: %v", err)
	}
	if !oldSess.Revoked || oldSess.RevokedReason != sessiondomain.ReasonRotated {
		t.Errorf("old session reason = %q, want %q", oldSess.RevokedReason, sessiondomain.ReasonRotated)
	}
	newSess, err := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(t2))
	if err != nil || newSess == nil {
		t.Fatalf("successor session missing: %v", err)
	}
	if oldSess.ReplacedByID != newSess.ID {
		t.Errorf("ReplacedByID = %q, want %q", oldSess.ReplacedByID, newSess.ID)
	}
	if newSess.DeviceID != "d1" {
		t.Errorf("successor device = %q, want d1", newSess.DeviceID)
	}

	// Replaying T1 fails and revokes every session on the account.
	if _, err := env.svc.Refresh(ctx, t1); err != ErrTokenUnusable {
		t.Fatalf("replay of T1: want ErrTokenUnusable, got %v", err)
	}
	if got := env.sessions.activeCount(acct.ID); got != 0 {
		t.Errorf("active sessions after replay = %d, want 0", got)
	}
	t2Sess := env.sessions.get(newSess.ID)
	if !t2Sess.Revoked || t2Sess.RevokedReason != sessiondomain.ReasonReplayDetected {
		t.Errorf("T2 session reason = %q, want %q", t2Sess.RevokedReason, sessiondomain.ReasonReplayDetected)
	}
	if !env.auditor.has(auditdomain.ActionReplayDetected) {
		t.Error("replay must be audited")
	}

	// T2 is now spent too.
	if _, err := env.svc.Refresh(ctx, t2); err != ErrTokenUnusable {
		t.Errorf("refresh(T2) after replay: want ErrTokenUnusable, got %v", err)
	}
}

func TestRefreshUnknownOrMalformedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unknown, err := security.NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, unknown); err != ErrInvalidToken {
		t.Errorf("unknown token: want ErrInvalidToken, got %v", err)
	}
	if _, err := env.svc.Refresh(ctx, "not-base64!!"); err != ErrInvalidToken {
		t.Errorf("malformed token: want ErrInvalidToken, got %v", err)
	}
	if _, err := env.svc.Refresh(ctx, ""); err != ErrInvalidToken {
		t.Errorf("empty token: want ErrInvalidToken, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "user@example.com", "correct horse")

	login, err := env.svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	sess, _ := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(login.RefreshToken))
	stored := env.sessions.m[sess.ID]
	stored.ExpiresAt = time.Now().UTC().Add(-time.Second)

	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != ErrTokenExpired {
		t.Errorf("expired token: want ErrTokenExpired, got %v", err)
	}
}

func TestRefreshLockedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")

	login, err := env.svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	until := time.Now().UTC().Add(10 * time.Minute)
	acct.LockoutUntil = &until

	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != ErrAccountLocked {
		t.Errorf("refresh while locked: want ErrAccountLocked, got %v", err)
	}
}

func TestRefreshConcurrencyConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "user@example.com", "correct horse")

	login, err := env.svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	env.sessions.rotateConflict = true

	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != ErrConcurrencyConflict {
		t.Errorf("lost rotation race: want ErrConcurrencyConflict, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "user@example.com", "correct horse")

	login, err := env.svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	sess, _ := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(login.RefreshToken))
	if !sess.Revoked || sess.RevokedReason != sessiondomain.ReasonLogout {
		t.Errorf("session reason = %q, want %q", sess.RevokedReason, sessiondomain.ReasonLogout)
	}

	// Already revoked, unknown, and malformed tokens are silent no-ops.
	if err := env.svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Errorf("second logout: %v", err)
	}
	unknown, _ := security.NewOpaqueToken()
	if err := env.svc.Logout(ctx, unknown); err != nil {
		t.Errorf("logout unknown token: %v", err)
	}
	if err := env.svc.Logout(ctx, "garbage"); err != nil {
		t.Errorf("logout malformed token: %v", err)
	}

	// The session is spent: refreshing it is replay.
	if _, err := env.svc.Refresh(ctx, login.RefreshToken); err != ErrTokenUnusable {
		t.Errorf("refresh after logout: want ErrTokenUnusable, got %v", err)
	}
}

func TestPasswordResetRequestAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acct := env.seedAccount(t, "user@example.com", "correct horse")

	// Unknown email: silent no-op, nothing dispatched.
	if err := env.svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("reset request unknown email: %v", err)
	}
	if len(env.notifier.sent) != 0 {
		t.Fatalf("dispatched %d tokens for unknown email, want 0", len(env.notifier.sent))
	}

	if err := env.svc.RequestPasswordReset(ctx, "user@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	if len(env.notifier.sent) != 1 {
		t.Fatalf("dispatched %d tokens, want 1", len(env.notifier.sent))
	}
	raw := env.notifier.sent[0].token
	if acct.ResetTokenHash == raw {
		t.Error("raw reset token must never be stored")
	}
	if acct.ResetTokenHash != security.HashOpaqueToken(raw) {
		t.Error("stored hash does not match dispatched token")
	}

	ok, err := env.svc.VerifyPasswordReset(ctx, raw, acct.ID)
	if err != nil || !ok {
		t.Fatalf("verify valid token: ok=%v err=%v, want true", ok, err)
	}

	wrong, _ := security.NewOpaqueToken()
	if ok, err := env.svc.VerifyPasswordReset(ctx, wrong, acct.ID); err != nil || ok {
		t.Errorf("verify wrong token: ok=%v err=%v, want false, nil", ok, err)
	}
	if ok, err := env.svc.VerifyPasswordReset(ctx, "???", acct.ID); err != nil || ok {
		t.Errorf("verify malformed token: ok=%v err=%v, want false, nil", ok, err)
	}
	if ok, err := env.svc.VerifyPasswordReset(ctx, raw, uuid.New().String()); err != nil || ok {
		t.Errorf("verify unknown account: ok=%v err=%v, want false, nil", ok, err)
	}
	if _, err := env.svc.VerifyPasswordReset(ctx, raw, "not-a-uuid"); err != ErrMalformedAccountID {
		t.Errorf("verify malformed account id: want ErrMalformedAccountID, got %v", err)
	}

	// Expired token verifies false.
	past := time.Now().UTC().Add(-time.Second)
	acct.ResetTokenExpiresAt = &past
	if ok, err := env.svc.VerifyPasswordReset(ctx, raw, acct.ID); err != nil || ok {
		t.Errorf("verify expired token: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestPasswordResetRequestConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "user@example.com", "correct horse")
	env.accounts.saveConflict = true

	if err := env.svc.RequestPasswordReset(context.Background(), "user@example.com"); err != ErrConcurrencyConflict {
		t.Errorf("want ErrConcurrencyConflict, got %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "user@example.com", "correct horse")

	login, err := env.svc.Login(ctx, "user@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	sess, _ := env.sessions.GetByTokenHash(ctx, security.HashOpaqueToken(login.RefreshToken))
	now := time.Now().UTC()

	// One active-but-expired session and one long-revoked session.
	env.sessions.m[sess.ID].ExpiresAt = now.Add(-time.Hour)
	oldRevokedAt := now.Add(-48 * time.Hour)
	env.sessions.m["stale"] = &sessiondomain.Session{
		ID:            "stale",
		AccountID:     sess.AccountID,
		TokenHash:     "unrelated-hash",
		ExpiresAt:     now.Add(-72 * time.Hour),
		Revoked:       true,
		RevokedAt:     &oldRevokedAt,
		RevokedReason: sessiondomain.ReasonLogout,
		Version:       1,
		CreatedAt:     now.Add(-96 * time.Hour),
	}

	revoked, deleted, err := env.svc.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if revoked != 1 {
		t.Errorf("revoked = %d, want 1", revoked)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	swept := env.sessions.get(sess.ID)
	if !swept.Revoked || swept.RevokedReason != sessiondomain.ReasonExpiredCleanup {
		t.Errorf("swept session reason = %q, want %q", swept.RevokedReason, sessiondomain.ReasonExpiredCleanup)
	}
	if !env.sessions.get("stale").IsDeleted {
		t.Error("stale session should be soft-deleted")
	}
	// A freshly revoked session inside the retention window survives.
	if env.sessions.get(sess.ID).IsDeleted {
		t.Error("recently swept session must not be deleted yet")
	}
}
