// Package repository persists stored access policies. Policies are addressed by name.
package repository

import (
	"context"

	"soc-portal/internal/policy/domain"
)

// Repository is the policy store behind the OPA evaluator and the policy command.
type Repository interface {
	// ListEnabled returns the policies the evaluator should load, ordered by name.
	ListEnabled(ctx context.Context) ([]*domain.Policy, error)
	// List returns every policy, enabled or not, ordered by name.
	List(ctx context.Context) ([]*domain.Policy, error)
	// GetByName returns nil when no policy has that name.
	GetByName(ctx context.Context, name string) (*domain.Policy, error)
	// Save inserts p, or replaces the rules and enabled flag of the policy with the same name.
	Save(ctx context.Context, p *domain.Policy) error
	// SetEnabled toggles a policy and reports whether it existed.
	SetEnabled(ctx context.Context, name string, enabled bool) (bool, error)
}
