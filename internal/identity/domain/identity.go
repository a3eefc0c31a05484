package domain

import (
	"errors"
	"strings"
	"time"
)

// Kind names the store an identity was resolved from.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindUser  Kind = "user"
)

// Status is the stored account status. Values other than Active are kept as stored.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Admin roles.
const (
	RoleSuperAdmin = "Super Admin"
	RoleAdmin      = "Admin"
)

// User roles.
const (
	RoleSOC    = "SOC"
	RoleOPS    = "OPS"
	RoleIntern = "INTERN"
	RoleCTO    = "CTO"
)

// RoleUser is the effective role of every non-admin identity.
const RoleUser = "User"

// UserRoles lists the roles a user account may hold.
var UserRoles = []string{RoleSOC, RoleOPS, RoleIntern, RoleCTO}

// AdminRoles lists the roles an admin account may hold.
var AdminRoles = []string{RoleSuperAdmin, RoleAdmin}

// Identity is either an admin or a user account. Kind is the tag; Role holds the stored role for both.
type Identity struct {
	Kind            Kind
	SocPortalID     string
	Email           string
	Role            string
	Status          Status
	FirstName       string
	LastName        string
	Phone           string // users only
	PasswordHash    string
	ProfilePhotoURL string // users only
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAdmin reports whether the identity came from the admin store.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Kind == KindAdmin
}

// IsActive reports whether the account status is exactly Active.
func (i *Identity) IsActive() bool {
	return i != nil && i.Status == StatusActive
}

// UserType is the wire value of Kind ("admin" or "user").
func (i *Identity) UserType() string {
	if i == nil {
		return ""
	}
	return string(i.Kind)
}

// DisplayName joins first and last name, falling back to the email.
func (i *Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	default:
		return i.Email
	}
}

// NormalizeEmail is the canonical form emails are stored, cached and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EffectiveRole returns the stored role for admins and the literal "User" for everyone else.
func EffectiveRole(i *Identity) string {
	if i == nil {
		return ""
	}
	if i.Kind == KindAdmin {
		return i.Role
	}
	return RoleUser
}

// EffectiveRoleFor is EffectiveRole for callers that only hold the wire values.
func EffectiveRoleFor(userType, role string) string {
	if userType == string(KindUser) {
		return RoleUser
	}
	return role
}

// IsUserRole reports whether role is one of UserRoles.
func IsUserRole(role string) bool {
	for _, r := range UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Validate validates a user identity for persistence. Returns an error describing the first validation failure.
func (i *Identity) Validate() error {
	if i.SocPortalID == "" {
		return errors.New("soc portal id is required")
	}
	if i.Email == "" {
		return errors.New("email is required")
	}
	if i.Role == "" {
		return errors.New("role is required")
	}
	if i.Status == "" {
		i.Status = StatusActive
	}
	return nil
}
