package domain

import "time"

// ActivityLog is one append-only activity row.
type ActivityLog struct {
	ID          string
	SocPortalID string
	Email       string
	EID         string
	SessionID   string // fingerprint of the sessionId cookie, never the raw value
	Action      string
	Description string
	Severity    string
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}
