package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"collection-vault/internal/audit/domain"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresRepository struct {
	db DB
}

// NewPostgresRepository returns an audit event repository backed by the given pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	var accountID *string
	if e.AccountID != "" {
		accountID = &e.AccountID
	}
	var detail *string
	if e.Detail != "" {
		detail = &e.Detail
	}
	_, err := r.db.Exec(ctx, `INSERT INTO audit_events (id, account_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, accountID, e.Action, detail, e.CreatedAt)
	return err
}

// ListByAccount returns the account's events, newest first, paginated by
// limit and offset.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT id, account_id, action, detail, created_at
		FROM audit_events WHERE account_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var acct, detail *string
		if err := rows.Scan(&e.ID, &acct, &e.Action, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if acct != nil {
			e.AccountID = *acct
		}
		if detail != nil {
			e.Detail = *detail
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
