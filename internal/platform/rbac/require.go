package rbac

import (
	"context"

	"soc-portal/internal/apperr"
	"soc-portal/internal/identity/domain"
)

// RequireCaller returns the authenticated caller, or an Authentication error when the context has none.
func RequireCaller(ctx context.Context) (*Caller, error) {
	c, ok := CallerFrom(ctx)
	if !ok || c.SocPortalID == "" {
		return nil, apperr.Unauthenticated("Authentication required")
	}
	return c, nil
}

// RequireAdmin ensures the caller is an admin holding one of the admin roles.
func RequireAdmin(ctx context.Context) (*Caller, error) {
	c, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !c.IsAdmin() || !hasRole(domain.AdminRoles, c.Role) {
		return nil, apperr.Forbidden("Admin access required")
	}
	return c, nil
}

// RequireUser ensures the caller is a (non-admin) user account.
func RequireUser(ctx context.Context) (*Caller, error) {
	c, err := RequireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if c.UserType != string(domain.KindUser) {
		return nil, apperr.Forbidden("User account required")
	}
	return c, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
