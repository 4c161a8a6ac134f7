// Package repository defines persistence for audit events.
package repository

import (
	"context"

	"collection-vault/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Event, error)
}
