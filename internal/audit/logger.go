// Package audit records security-relevant events to Postgres. Writes are
// best-effort: a failed audit write is logged, never surfaced to the caller.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"collection-vault/internal/audit/domain"
	auditrepo "collection-vault/internal/audit/repository"
)

// Recorder writes a single audit event. Used by the auth flows.
type Recorder interface {
	Record(ctx context.Context, accountID, action, detail string)
}

// Logger implements Recorder using the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns a Recorder that persists to repo. repo may be nil; then
// Record is a no-op.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// Record writes one audit event. Best-effort: errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, accountID, action, detail string) {
	if l.repo == nil {
		return
	}
	e := &domain.Event{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("audit: failed to record %s: %v", action, err)
	}
}
