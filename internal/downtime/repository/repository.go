package repository

import (
	"context"
	"time"

	"soc-portal/internal/downtime/domain"
)

// Repository defines persistence for downtime reports.
type Repository interface {
	Create(ctx context.Context, r *domain.Report) error
	// List returns reports that started in [from, to), newest first.
	List(ctx context.Context, from, to time.Time, limit int) ([]*domain.Report, error)
	// Summary groups reports that started in [from, to) by groupBy, ordered by total minutes descending.
	Summary(ctx context.Context, from, to time.Time, groupBy string) ([]domain.Group, error)
}
