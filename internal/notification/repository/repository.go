package repository

import (
	"context"

	"soc-portal/internal/notification/domain"
)

// Repository defines persistence for notifications.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	// ListFor returns notifications addressed to recipientID, plus ALL_ADMINS ones when admin is true.
	ListFor(ctx context.Context, recipientID string, admin bool, limit int) ([]*domain.Notification, error)
	// MarkRead marks one notification read when it is visible to the recipient. Returns false when it is not.
	MarkRead(ctx context.Context, id, recipientID string, admin bool) (bool, error)
	UnreadCount(ctx context.Context, recipientID string, admin bool) (int, error)
}
