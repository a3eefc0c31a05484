package session

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTimestamp is returned when a timestamp cookie is neither Unix milliseconds nor RFC3339.
var ErrMalformedTimestamp = errors.New("session: malformed timestamp cookie")

// Cookies is a parsed view of the session cookies of one request.
type Cookies struct {
	values map[string]string
}

// Read parses the session cookies of r once. Unknown cookies are ignored.
func Read(r *http.Request) Cookies {
	values := make(map[string]string, len(Names))
	for _, c := range r.Cookies() {
		if !isSessionCookie(c.Name) {
			continue
		}
		values[c.Name] = strings.TrimSpace(c.Value)
	}
	return Cookies{values: values}
}

// FromMap builds Cookies from raw name/value pairs (client side and tests).
func FromMap(m map[string]string) Cookies {
	values := make(map[string]string, len(m))
	for k, v := range m {
		if isSessionCookie(k) {
			values[k] = strings.TrimSpace(v)
		}
	}
	return Cookies{values: values}
}

func isSessionCookie(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns the raw value of name, or "" when absent.
func (c Cookies) Get(name string) string {
	return c.values[name]
}

// Has reports whether name is present with a non-empty value.
func (c Cookies) Has(name string) bool {
	return c.values[name] != ""
}

func (c Cookies) SessionID() string   { return c.values[CookieSessionID] }
func (c Cookies) Email() string       { return c.values[CookieEmail] }
func (c Cookies) SocPortalID() string { return c.values[CookieSocPortalID] }
func (c Cookies) EID() string         { return c.values[CookieEID] }
func (c Cookies) RoleType() string    { return c.values[CookieRoleType] }
func (c Cookies) UserType() string    { return c.values[CookieUserType] }

// LastActivity returns the parsed lastActivity cookie. ok is false when the cookie is absent;
// err is ErrMalformedTimestamp when it is present but unparseable.
func (c Cookies) LastActivity() (t time.Time, ok bool, err error) {
	return c.timestamp(CookieLastActivity)
}

// LoginTime returns the parsed loginTime cookie with the same semantics as LastActivity.
func (c Cookies) LoginTime() (t time.Time, ok bool, err error) {
	return c.timestamp(CookieLoginTime)
}

func (c Cookies) timestamp(name string) (time.Time, bool, error) {
	raw := c.values[name]
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

// ParseTimestamp accepts Unix milliseconds or RFC3339 (with or without fractional seconds).
func ParseTimestamp(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms <= 0 {
			return time.Time{}, ErrMalformedTimestamp
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrMalformedTimestamp
}

func formatMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// Writer sets and clears session cookies with consistent attributes.
type Writer struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	// MaxAge bounds the cookie lifetime in the browser; 0 makes them session cookies.
	MaxAge time.Duration
}

// NewWriter returns a Writer. sameSite is "lax", "strict" or "none"; anything else means lax.
func NewWriter(domain string, secure bool, sameSite string, maxAge time.Duration) *Writer {
	return &Writer{Domain: domain, Secure: secure, SameSite: ParseSameSite(sameSite), MaxAge: maxAge}
}

// ParseSameSite maps a config value to http.SameSite.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Issue writes all eight session cookies. Only sessionId is HttpOnly; the client tracker
// must be able to read and rewrite lastActivity.
func (w *Writer) Issue(rw http.ResponseWriter, s Session) {
	values := map[string]string{
		CookieSessionID:    s.ID,
		CookieEmail:        s.Email,
		CookieSocPortalID:  s.SocPortalID,
		CookieEID:          s.EID,
		CookieLastActivity: FormatTimestamp(s.LastActivity),
		CookieRoleType:     s.Role,
		CookieLoginTime:    FormatTimestamp(s.CreatedAt),
		CookieUserType:     s.UserType,
	}
	for _, name := range Names {
		http.SetCookie(rw, w.cookie(name, values[name], name == CookieSessionID))
	}
}

// Touch rewrites lastActivity to t.
func (w *Writer) Touch(rw http.ResponseWriter, t time.Time) {
	http.SetCookie(rw, w.cookie(CookieLastActivity, FormatTimestamp(t), false))
}

// Clear expires every session cookie.
func (w *Writer) Clear(rw http.ResponseWriter) {
	for _, name := range Names {
		c := w.cookie(name, "", name == CookieSessionID)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(rw, c)
	}
}

func (w *Writer) cookie(name, value string, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   w.Domain,
		Secure:   w.Secure,
		HttpOnly: httpOnly,
		SameSite: w.SameSite,
	}
	if w.MaxAge > 0 {
		c.MaxAge = int(w.MaxAge / time.Second)
	}
	return c
}
