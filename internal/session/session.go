// Package session defines the cookie-carried session and typed access to its cookies.
// There is no server-side session row; the cookies are the session.
package session

import "time"

// Cookie names shared by the server and the client.
const (
	CookieSessionID    = "sessionId"
	CookieEmail        = "email"
	CookieSocPortalID  = "socPortalId"
	CookieEID          = "eid"
	CookieLastActivity = "lastActivity"
	CookieRoleType     = "roleType"
	CookieLoginTime    = "loginTime"
	CookieUserType     = "userType"
)

// Names lists every session cookie. Clearing a session removes all of them.
var Names = []string{
	CookieSessionID,
	CookieEmail,
	CookieSocPortalID,
	CookieEID,
	CookieLastActivity,
	CookieRoleType,
	CookieLoginTime,
	CookieUserType,
}

// Session is the state issued at login and carried by the client.
type Session struct {
	ID           string
	SocPortalID  string
	Email        string
	EID          string
	Role         string
	UserType     string
	CreatedAt    time.Time
	LastActivity time.Time
}

// FormatTimestamp renders t as Unix milliseconds, the wire format of loginTime and lastActivity.
func FormatTimestamp(t time.Time) string {
	return formatMillis(t.UnixMilli())
}
