package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRead_TypedAccessors(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieSessionID, Value: "s1"})
	r.AddCookie(&http.Cookie{Name: CookieEmail, Value: "a@x.com"})
	r.AddCookie(&http.Cookie{Name: CookieSocPortalID, Value: "U01SOCP"})
	r.AddCookie(&http.Cookie{Name: CookieEID, Value: "e-1"})
	r.AddCookie(&http.Cookie{Name: CookieUserType, Value: "user"})
	r.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})

	c := Read(r)
	if c.SessionID() != "s1" || c.Email() != "a@x.com" || c.SocPortalID() != "U01SOCP" || c.EID() != "e-1" || c.UserType() != "user" {
		t.Errorf("unexpected cookies %+v", c)
	}
	if c.Has("theme") {
		t.Error("non-session cookies must be ignored")
	}
	if _, ok, err := c.LastActivity(); ok || err != nil {
		t.Errorf("absent lastActivity: ok=%v err=%v", ok, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{FormatTimestamp(want), want, false},
		{"2026-03-01T10:00:00Z", want, false},
		{"2026-03-01T16:00:00+06:00", want, false},
		{"2026-03-01T10:00:00.000Z", want, false},
		{"yesterday", time.Time{}, true},
		{"0", time.Time{}, true},
		{"-5", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedTimestamp) {
				t.Errorf("ParseTimestamp(%q) err = %v, want ErrMalformedTimestamp", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", tt.raw, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestLastActivity_Malformed(t *testing.T) {
	c := FromMap(map[string]string{CookieLastActivity: "not-a-time"})
	_, ok, err := c.LastActivity()
	if !ok || !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("ok=%v err=%v, want present and malformed", ok, err)
	}
}

func TestWriter_IssueThenRead(t *testing.T) {
	w := NewWriter("", true, "strict", 0)
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := httptest.NewRecorder()
	w.Issue(rec, Session{
		ID: "s1", Email: "a@x.com", SocPortalID: "U01SOCP", EID: "e-1",
		Role: "SOC", UserType: "user", CreatedAt: now, LastActivity: now,
	})

	cookies := rec.Result().Cookies()
	if len(cookies) != len(Names) {
		t.Fatalf("issued %d cookies, want %d", len(cookies), len(Names))
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		if c.SameSite != http.SameSiteStrictMode || !c.Secure {
			t.Errorf("cookie %s attributes: samesite=%v secure=%v", c.Name, c.SameSite, c.Secure)
		}
		if c.HttpOnly != (c.Name == CookieSessionID) {
			t.Errorf("cookie %s HttpOnly = %v", c.Name, c.HttpOnly)
		}
		req.AddCookie(c)
	}
	got := Read(req)
	last, ok, err := got.LastActivity()
	if !ok || err != nil || !last.Equal(now) {
		t.Errorf("LastActivity round trip = %v ok=%v err=%v, want %v", last, ok, err, now)
	}
	if got.RoleType() != "SOC" {
		t.Errorf("RoleType = %q", got.RoleType())
	}
}

func TestWriter_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWriter("portal.local", false, "lax", 0).Clear(rec)
	cookies := rec.Result().Cookies()
	if len(cookies) != len(Names) {
		t.Fatalf("cleared %d cookies, want %d", len(cookies), len(Names))
	}
	for _, c := range cookies {
		if c.MaxAge != -1 || c.Value != "" {
			t.Errorf("cookie %s not expired: MaxAge=%d Value=%q", c.Name, c.MaxAge, c.Value)
		}
	}
}

func TestParseSameSite(t *testing.T) {
	if ParseSameSite("none") != http.SameSiteNoneMode || ParseSameSite("STRICT") != http.SameSiteStrictMode || ParseSameSite("bogus") != http.SameSiteLaxMode {
		t.Error("ParseSameSite mapping mismatch")
	}
}
