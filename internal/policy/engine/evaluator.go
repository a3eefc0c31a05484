package engine

import "context"

// Resources guarded by the access policy.
const (
	ResourceAdminUsers     = "admin.users"
	ResourceAdminActivity  = "admin.activity"
	ResourceRosterRead     = "roster.read"
	ResourceRosterUpload   = "roster.upload"
	ResourceShiftExchange  = "shift.exchange"
	ResourceDowntimeReport = "downtime.report"
	ResourceDowntimeRead   = "downtime.read"
	ResourceNotifications  = "notifications"
	ResourceProfile        = "profile"
)

// Input is the caller and resource an access decision is made for.
// Role is the effective role ("User" for users); StoredRole is the role held in the account row.
type Input struct {
	Role       string
	StoredRole string
	UserType   string
	Resource   string
}

// Evaluator decides whether a caller may access a resource.
type Evaluator interface {
	// Allow returns false with a non-nil error when the policy could not be evaluated.
	Allow(ctx context.Context, in Input) (bool, error)
}
