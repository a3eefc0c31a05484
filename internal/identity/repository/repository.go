package repository

import (
	"context"

	"soc-portal/internal/identity/domain"
)

// Repository defines persistence for admin and user identities.
// Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetAdminByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetUserByPortalID(ctx context.Context, socPortalID string) (*domain.Identity, error)
	ExistsUser(ctx context.Context, email, socPortalID string) (bool, error)
	CreateUser(ctx context.Context, i *domain.Identity) error
	UpdateUserStatus(ctx context.Context, socPortalID string, status domain.Status) (bool, error)
	UpdateProfilePhoto(ctx context.Context, socPortalID, url string) error
	ListAdmins(ctx context.Context) ([]*domain.Identity, error)
}

// Lookup is the read side used by the auth gate and login.
type Lookup interface {
	GetAdminByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

// Resolve looks email up in the admin store first and then in the user store.
// Returns (nil, nil) when neither store has the email.
func Resolve(ctx context.Context, store Lookup, email string) (*domain.Identity, error) {
	admin, err := store.GetAdminByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if admin != nil {
		return admin, nil
	}
	return store.GetUserByEmail(ctx, email)
}
