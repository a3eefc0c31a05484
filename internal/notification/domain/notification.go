package domain

import (
	"errors"
	"time"
)

// RecipientAllAdmins addresses a notification to every admin.
const RecipientAllAdmins = "ALL_ADMINS"

// Notification is a per-identity message shown in the portal.
type Notification struct {
	ID          string
	RecipientID string // soc portal id or RecipientAllAdmins
	Title       string
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// Validate validates the notification for persistence. Returns an error describing the first validation failure.
func (n *Notification) Validate() error {
	if n.RecipientID == "" {
		return errors.New("recipient is required")
	}
	if n.Title == "" {
		return errors.New("title is required")
	}
	return nil
}
