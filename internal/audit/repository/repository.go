// Package repository stores the portal activity log.
package repository

import (
	"context"

	"soc-portal/internal/audit/domain"
)

// Repository appends activity rows and pages through them newest first.
type Repository interface {
	Create(ctx context.Context, a *domain.ActivityLog) error
	// List returns at most limit rows starting at offset, ordered by created_at descending.
	List(ctx context.Context, limit, offset int) ([]*domain.ActivityLog, error)
	// Count is the total used for pagination.
	Count(ctx context.Context) (int, error)
}
