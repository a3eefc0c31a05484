// Package authgate decides, per request, whether the session cookies belong to an active account.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"soc-portal/internal/alert"
	"soc-portal/internal/audit"
	"soc-portal/internal/config"
	"soc-portal/internal/identity/domain"
	identityrepo "soc-portal/internal/identity/repository"
	"soc-portal/internal/logging"
	"soc-portal/internal/security"
	"soc-portal/internal/server/respond"
	"soc-portal/internal/session"
)

// Failure messages returned to clients.
const (
	MsgMissingCredentials = "Unauthenticated: missing credentials"
	MsgInvalidSession     = "Invalid session"
	MsgSessionExpired     = "Session expired"
	MsgAccountNotFound    = "Account not found"
	MsgAccountInactive    = "Account inactive"
	MsgInvalidCredentials = "Invalid credentials"
	MsgInternal           = "Internal server error"
)

// auditAction is the activity action recorded for every gate decision.
const auditAction = "auth_check"

// Failure is a terminal gate outcome. Status is the HTTP status the caller must return.
// ClearSession tells the caller to expire every session cookie.
type Failure struct {
	Status       int
	Message      string
	ClearSession bool
	Err          error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authgate: %s: %v", f.Message, f.Err)
	}
	return "authgate: " + f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Result is a successful check.
type Result struct {
	Authenticated bool
	Role          string // stored role for admins, "User" for users
	UserType      string // "admin" or "user"
	SocPortalID   string
	Identity      *domain.Identity
}

// Verifier validates the signed sessionId token.
type Verifier interface {
	Verify(token string) (*security.SessionClaims, error)
}

// Meta is the request context recorded with each decision.
type Meta struct {
	IP        string
	UserAgent string
	Path      string
}

type metaKey struct{}

// WithMeta attaches request metadata for audit rows and alerts.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func metaFrom(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// Gate is the server-side auth gate. It is safe for concurrent use.
type Gate struct {
	store    identityrepo.Lookup
	policy   config.SessionPolicy
	cache    CheckCache
	verifier Verifier
	audit    audit.ActivityLogger
	alerts   alert.Notifier
	logger   *zap.Logger
	now      func() time.Time
	checks   metric.Int64Counter
}

// Option configures a Gate.
type Option func(*Gate)

// WithCache sets the recent-check cache. Nil disables caching.
func WithCache(c CheckCache) Option { return func(g *Gate) { g.cache = c } }

// WithVerifier requires sessionId to be a valid signed token.
func WithVerifier(v Verifier) Option { return func(g *Gate) { g.verifier = v } }

// WithAudit sets the activity logger.
func WithAudit(a audit.ActivityLogger) Option { return func(g *Gate) { g.audit = a } }

// WithAlerts sets the security alert notifier.
func WithAlerts(n alert.Notifier) Option { return func(g *Gate) { g.alerts = n } }

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option { return func(g *Gate) { g.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

// WithMeter records a portal.auth.checks counter by outcome on meter.
func WithMeter(m metric.Meter) Option {
	return func(g *Gate) {
		if c, err := m.Int64Counter("portal.auth.checks", metric.WithDescription("Auth gate decisions by outcome")); err == nil {
			g.checks = c
		}
	}
}

// New returns a Gate that resolves identities from store and expires sessions idle longer than policy.Timeout.
func New(store identityrepo.Lookup, policy config.SessionPolicy, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		policy: policy,
		audit:  audit.Nop{},
		alerts: alert.Nop{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	WithMeter(otel.Meter("soc-portal/authgate"))(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the idle-timeout policy the gate enforces.
func (g *Gate) Policy() config.SessionPolicy { return g.policy }

// Cache returns the recent-check cache, or nil.
func (g *Gate) Cache() CheckCache { return g.cache }

// CheckRequest runs Check on r's session cookies with r's metadata.
func (g *Gate) CheckRequest(r *http.Request) (*Result, error) {
	ctx := WithMeta(r.Context(), Meta{IP: audit.ClientIP(r), UserAgent: r.UserAgent(), Path: r.URL.Path})
	return g.Check(ctx, session.Read(r))
}

// Check validates c in order: credentials present, token signature (when a Verifier is set),
// idle timeout, identity lookup (admin store first), Active status, portal-id match.
// Every branch is audited. Errors are always *Failure.
func (g *Gate) Check(ctx context.Context, c session.Cookies) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, g.systemFailure(ctx, c, fmt.Errorf("panic: %v", p))
		}
	}()

	// Stores hold lowercased emails; the cookie may not.
	email, sessionID := domain.NormalizeEmail(c.Email()), c.SessionID()
	if email == "" || sessionID == "" {
		g.record(ctx, c, "missing_credentials", logging.SeverityError, "Auth check without credentials")
		g.securityAlert(ctx, c, "Missing credentials")
		return nil, &Failure{Status: http.StatusUnauthorized, Message: MsgMissingCredentials}
	}

	if g.verifier != nil {
		claims, verr := g.verifier.Verify(sessionID)
		if verr != nil || domain.NormalizeEmail(claims.Email) != email {
			g.record(ctx, c, "invalid_session", logging.SeverityWarn, "Session token rejected")
			g.securityAlert(ctx, c, "Invalid session token")
			return nil, &Failure{Status: http.StatusUnauthorized, Message: MsgInvalidSession, ClearSession: true}
		}
	}

	if g.expired(c) {
		g.record(ctx, c, "expired", logging.SeverityWarn, "Session expired after inactivity")
		return nil, &Failure{Status: http.StatusUnauthorized, Message: MsgSessionExpired, ClearSession: true}
	}

	ident, cached, lerr := g.lookup(ctx, email)
	if lerr != nil {
		return nil, g.systemFailure(ctx, c, lerr)
	}
	if ident == nil {
		g.record(ctx, c, "not_found", logging.SeverityWarn, "Auth check for unknown account")
		return nil, &Failure{Status: http.StatusNotFound, Message: MsgAccountNotFound}
	}

	if !ident.IsActive() {
		g.invalidate(ctx, email, cached)
		g.record(ctx, c, "inactive", logging.SeverityWarn, fmt.Sprintf("Auth check for %s account", ident.Status))
		return nil, &Failure{Status: http.StatusForbidden, Message: MsgAccountInactive}
	}

	if portalID := c.SocPortalID(); portalID != "" && portalID != ident.SocPortalID {
		g.record(ctx, c, "invalid_id", logging.SeverityWarn, "Portal id does not match account")
		return nil, &Failure{Status: http.StatusForbidden, Message: MsgInvalidCredentials}
	}

	if !cached && g.cache != nil {
		g.cache.Put(ctx, email, ident)
	}
	g.record(ctx, c, "success", logging.SeverityInfo, "Auth check passed")
	return &Result{
		Authenticated: true,
		Role:          domain.EffectiveRole(ident),
		UserType:      ident.UserType(),
		SocPortalID:   ident.SocPortalID,
		Identity:      ident,
	}, nil
}

// Expired reports whether lastActivity is older than the timeout. A missing cookie is not expired;
// an unparseable one is. A lastActivity in the future (clock skew) is not expired.
func (g *Gate) Expired(c session.Cookies) bool { return g.expired(c) }

func (g *Gate) expired(c session.Cookies) bool {
	last, ok, err := c.LastActivity()
	if !ok {
		return false
	}
	if err != nil {
		return true
	}
	return g.now().Sub(last) > g.policy.Timeout
}

func (g *Gate) lookup(ctx context.Context, email string) (*domain.Identity, bool, error) {
	if g.cache != nil {
		if ident, ok := g.cache.Get(ctx, email); ok {
			return ident, true, nil
		}
	}
	ident, err := identityrepo.Resolve(ctx, g.store, email)
	if err != nil {
		return nil, false, fmt.Errorf("resolve identity: %w", err)
	}
	return ident, false, nil
}

func (g *Gate) invalidate(ctx context.Context, email string, cached bool) {
	if cached && g.cache != nil {
		g.cache.Invalidate(ctx, email)
	}
}

func (g *Gate) systemFailure(ctx context.Context, c session.Cookies, cause error) *Failure {
	m := metaFrom(ctx)
	g.logger.Error("auth gate failure",
		zap.String("severity", string(logging.SeverityCritical)),
		zap.String("eid", c.EID()),
		zap.String("session_id", security.ShortFingerprint(c.SessionID())),
		zap.String("path", m.Path),
		zap.Error(cause))
	g.record(ctx, c, "system_error", logging.SeverityCritical, "Auth check failed unexpectedly")
	g.alerts.Notify(alert.Message{Title: "CRITICAL: auth gate failure", Fields: []alert.Field{
		alert.F("EID", c.EID()),
		alert.F("Path", m.Path),
		alert.F("Error", cause.Error()),
	}})
	return &Failure{Status: http.StatusInternalServerError, Message: MsgInternal, Err: cause}
}

func (g *Gate) record(ctx context.Context, c session.Cookies, outcome string, sev logging.Severity, description string) {
	m := metaFrom(ctx)
	g.audit.Log(ctx, audit.Entry{
		SocPortalID: c.SocPortalID(),
		Email:       c.Email(),
		EID:         c.EID(),
		SessionID:   c.SessionID(),
		Action:      auditAction,
		Description: description + " (" + outcome + ")",
		Severity:    sev,
		IP:          m.IP,
		UserAgent:   m.UserAgent,
	})
	if g.checks != nil {
		g.checks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (g *Gate) securityAlert(ctx context.Context, c session.Cookies, event string) {
	m := metaFrom(ctx)
	g.alerts.Notify(alert.Message{Title: "Security alert: " + event, Fields: []alert.Field{
		alert.F("Email", c.Email()),
		alert.F("EID", c.EID()),
		alert.F("IP", m.IP),
		alert.F("Path", m.Path),
		alert.F("Time", g.now().UTC().Format(time.RFC3339)),
	}})
}

// FailureBody is the JSON written when the gate rejects a request.
type FailureBody struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
}

// WriteFailure writes the rejection carried by err, expiring every session cookie when the failure asks for it.
// Errors that are not a *Failure are written as a generic 500.
func WriteFailure(w http.ResponseWriter, cookies *session.Writer, err error) {
	f, ok := AsFailure(err)
	if !ok {
		f = &Failure{Status: http.StatusInternalServerError, Message: MsgInternal}
	}
	if f.ClearSession && cookies != nil {
		cookies.Clear(w)
	}
	respond.JSON(w, f.Status, FailureBody{Message: f.Message})
}
