// Package rbac carries the authenticated caller through the request context and checks its kind.
package rbac

import (
	"context"

	"soc-portal/internal/identity/domain"
)

// Caller is the identity the session gate resolved for the current request.
type Caller struct {
	Identity    *domain.Identity
	Role        string // effective role
	UserType    string
	SocPortalID string
	Email       string
	EID         string
	SessionID   string
}

// IsAdmin reports whether the caller was resolved from the admin store.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.UserType == string(domain.KindAdmin)
}

type callerKey struct{}

// WithCaller returns ctx carrying c.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx and true if set; otherwise nil, false.
func CallerFrom(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(*Caller)
	return c, ok && c != nil
}
