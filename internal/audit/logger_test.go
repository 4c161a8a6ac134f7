package audit

import (
	"context"
	"errors"
	"testing"

	"collection-vault/internal/audit/domain"
)

type fakeRepo struct {
	created []*domain.Event
	err     error
}

func (f *fakeRepo) Create(_ context.Context, e *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, e)
	return nil
}

func (f *fakeRepo) ListByAccount(context.Context, string, int32, int32) ([]*domain.Event, error) {
	return nil, nil
}

func TestRecordPersistsEvent(t *testing.T) {
	repo := &fakeRepo{}
	l := NewLogger(repo)

	l.Record(context.Background(), "acct-1", domain.ActionLoginFailure, "wrong password")

	if len(repo.created) != 1 {
		t.Fatalf("created %d events, want 1", len(repo.created))
	}
	e := repo.created[0]
	if e.ID == "" {
		t.Error("event ID not set")
	}
	if e.AccountID != "acct-1" || e.Action != domain.ActionLoginFailure || e.Detail != "wrong password" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestRecordSwallowsRepositoryErrors(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	l := NewLogger(repo)

	// Must not panic or propagate.
	l.Record(context.Background(), "acct-1", domain.ActionReplayDetected, "")
}

func TestNilRepoIsNoop(t *testing.T) {
	l := NewLogger(nil)
	l.Record(context.Background(), "", domain.ActionLogout, "")
}
