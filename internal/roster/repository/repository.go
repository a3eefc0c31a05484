package repository

import (
	"context"

	"soc-portal/internal/roster/domain"
)

// Repository defines persistence for roster cells and shift exchanges.
type Repository interface {
	// ListRange returns entries with from <= date <= to, ordered by date then portal id.
	ListRange(ctx context.Context, from, to string) ([]*domain.Entry, error)
	// Get returns the entry for date and socPortalID, or nil if not found.
	Get(ctx context.Context, date, socPortalID string) (*domain.Entry, error)
	Upsert(ctx context.Context, e *domain.Entry) error
	CreateExchange(ctx context.Context, x *domain.Exchange) error
	ListExchanges(ctx context.Context, socPortalID string, limit int) ([]*domain.Exchange, error)
}
