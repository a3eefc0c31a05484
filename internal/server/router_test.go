package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"soc-portal/internal/audit"
	audithandler "soc-portal/internal/audit/handler"
	auditrepo "soc-portal/internal/audit/repository"
	authhandler "soc-portal/internal/auth/handler"
	"soc-portal/internal/auth/service"
	"soc-portal/internal/authgate"
	"soc-portal/internal/config"
	"soc-portal/internal/db"
	healthhandler "soc-portal/internal/health/handler"
	"soc-portal/internal/identity/domain"
	identityrepo "soc-portal/internal/identity/repository"
	"soc-portal/internal/policy/engine"
	rosterhandler "soc-portal/internal/roster/handler"
	"soc-portal/internal/security"
	"soc-portal/internal/session"
)

const password = "correct-horse"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.ApplySchema(ctx, conn); err != nil {
		t.Fatalf("ApplySchema: %v", err)
	}
	seedIdentities(t, conn)

	store := identityrepo.NewPostgresRepository(conn)
	activities := auditrepo.NewPostgresRepository(conn)
	recorder := audit.NewLogger(activities, nil, nil)
	policy := config.SessionPolicy{Timeout: 15 * time.Minute, WarningAfter: 12 * time.Minute}
	gate := authgate.New(store, policy, authgate.WithAudit(recorder))
	cookies := session.NewWriter("", false, "lax", 0)
	eval, err := engine.NewOPAEvaluator(ctx, nil, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return NewRouter(Deps{
		Gate:     gate,
		Cookies:  cookies,
		Policy:   eval,
		Health:   healthhandler.NewServer(conn, eval, nil),
		Auth:     authhandler.New(service.NewAuthService(store, security.NewHasher(4), nil), gate, cookies, recorder, nil, nil),
		Activity: audithandler.New(activities, nil),
		Roster:   rosterhandler.New(conn, nil, nil, nil),
	})
}

func seedIdentities(t *testing.T, conn *sql.DB) {
	t.Helper()
	hash, err := security.NewHasher(4).Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	repo := identityrepo.NewPostgresRepository(conn)
	ctx := context.Background()
	if err := repo.CreateAdmin(ctx, &domain.Identity{Kind: domain.KindAdmin, SocPortalID: "A01SOCP", Email: "admin@x.com",
		FirstName: "Ada", Role: domain.RoleAdmin, Status: domain.StatusActive, PasswordHash: hash, CreatedAt: now}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	for _, u := range []struct{ id, email, role string }{
		{"U01SOCP", "soc@x.com", domain.RoleSOC},
		{"U02SOCP", "ops@x.com", domain.RoleOPS},
	} {
		if err := repo.CreateUser(ctx, &domain.Identity{Kind: domain.KindUser, SocPortalID: u.id, Email: u.email,
			FirstName: u.id, Role: u.role, Status: domain.StatusActive, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
}

func loginCookies(t *testing.T, srv http.Handler, email string) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d body = %s", email, rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func get(srv http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	srv := newTestRouter(t)
	if rec := get(srv, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := get(srv, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ProtectedRequiresSession(t *testing.T) {
	srv := newTestRouter(t)
	rec := get(srv, "/api/roster?from=2026-05-01&to=2026-05-02", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body authgate.FailureBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Authenticated {
		t.Errorf("body = %+v", body)
	}
}

func TestRouter_UserAccess(t *testing.T) {
	srv := newTestRouter(t)
	cookies := loginCookies(t, srv, "ops@x.com")

	if rec := get(srv, "/api/roster?from=2026-05-01&to=2026-05-02", cookies); rec.Code != http.StatusOK {
		t.Errorf("roster = %d body = %s", rec.Code, rec.Body.String())
	}
	rec := get(srv, "/api/admin/activity-logs", cookies)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "Access denied") {
		t.Errorf("activity logs as user = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_RosterUploadPolicy(t *testing.T) {
	srv := newTestRouter(t)
	post := func(cookies []*http.Cookie) int {
		req := httptest.NewRequest(http.MethodPost, "/api/roster/upload", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := post(loginCookies(t, srv, "ops@x.com")); code != http.StatusForbidden {
		t.Errorf("OPS upload = %d, want 403", code)
	}
	// SOC passes the policy and reaches the handler, which rejects the missing file.
	if code := post(loginCookies(t, srv, "soc@x.com")); code != http.StatusBadRequest {
		t.Errorf("SOC upload = %d, want 400", code)
	}
	if code := post(loginCookies(t, srv, "admin@x.com")); code != http.StatusBadRequest {
		t.Errorf("admin upload = %d, want 400", code)
	}
}

func TestRouter_AdminAccess(t *testing.T) {
	srv := newTestRouter(t)
	cookies := loginCookies(t, srv, "admin@x.com")
	rec := get(srv, "/api/admin/activity-logs", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"action":"login"`) {
		t.Errorf("the admin's own login should be in the activity log: %s", rec.Body.String())
	}
}

func TestRouter_ExpiredSessionClearsCookies(t *testing.T) {
	srv := newTestRouter(t)
	var cookies []*http.Cookie
	for _, c := range loginCookies(t, srv, "soc@x.com") {
		if c.Name == session.CookieLastActivity {
			c.Value = session.FormatTimestamp(time.Now().Add(-20 * time.Minute))
		}
		cookies = append(cookies, c)
	}
	rec := get(srv, "/api/roster?from=2026-05-01&to=2026-05-02", cookies)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Session expired") {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	cleared := 0
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != len(session.Names) {
		t.Errorf("cleared %d cookies, want %d", cleared, len(session.Names))
	}
}

func TestRouter_NotFound(t *testing.T) {
	srv := newTestRouter(t)
	rec := get(srv, "/api/nothing-here", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}
