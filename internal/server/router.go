// Package server assembles the HTTP router: request id, recovery, logging, tracing, the session
// gate and per-route access policy.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	audithandler "soc-portal/internal/audit/handler"
	authhandler "soc-portal/internal/auth/handler"
	"soc-portal/internal/authgate"
	downtimehandler "soc-portal/internal/downtime/handler"
	healthhandler "soc-portal/internal/health/handler"
	notifhandler "soc-portal/internal/notification/handler"
	"soc-portal/internal/policy/engine"
	profilehandler "soc-portal/internal/profile/handler"
	rosterhandler "soc-portal/internal/roster/handler"
	"soc-portal/internal/server/respond"
	"soc-portal/internal/session"
	userhandler "soc-portal/internal/user/handler"
)

// Deps holds the router's collaborators. Gate, Cookies and Policy are required; a nil feature
// handler leaves its routes unregistered.
type Deps struct {
	Logger  *zap.Logger
	Tracer  trace.Tracer
	Gate    *authgate.Gate
	Cookies *session.Writer
	Policy  engine.Evaluator

	Health        *healthhandler.Server
	Auth          *authhandler.Handler
	Users         *userhandler.Handler
	Activity      *audithandler.Handler
	Notifications *notifhandler.Handler
	Roster        *rosterhandler.Handler
	Downtime      *downtimehandler.Handler
	Profile       *profilehandler.Handler
}

// NewRouter returns the portal's HTTP handler.
//
// Route → access resource:
//   - /api/admin/users**          → admin.users
//   - /api/admin/activity-logs    → admin.activity
//   - GET /api/roster             → roster.read
//   - POST /api/roster/upload     → roster.upload
//   - /api/shift-exchange         → shift.exchange
//   - POST /api/downtime          → downtime.report
//   - GET /api/downtime**         → downtime.read
//   - /api/notifications**        → notifications
//   - /api/user/profile-photo**   → profile
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("soc-portal")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Tracing(tracer))
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusNotFound, respond.Envelope{Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusMethodNotAllowed, respond.Envelope{Message: "Method not allowed"})
	})

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Live)
		r.Get("/readyz", deps.Health.Ready)
	}
	if deps.Auth != nil {
		r.Post("/api/auth/login", deps.Auth.Login)
		r.Post("/api/auth/logout", deps.Auth.Logout)
		r.Get("/api/auth/check", deps.Auth.Check)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(deps.Gate, deps.Cookies))
		allow := func(resource string) func(http.Handler) http.Handler {
			return RequirePolicy(deps.Policy, resource, logger)
		}

		if h := deps.Users; h != nil {
			r.With(allow(engine.ResourceAdminUsers)).Post("/api/admin/users", h.Create)
			r.With(allow(engine.ResourceAdminUsers)).Patch("/api/admin/users/{socPortalId}/status", h.UpdateStatus)
		}
		if h := deps.Activity; h != nil {
			r.With(allow(engine.ResourceAdminActivity)).Get("/api/admin/activity-logs", h.List)
		}
		if h := deps.Notifications; h != nil {
			r.With(allow(engine.ResourceNotifications)).Get("/api/notifications", h.List)
			r.With(allow(engine.ResourceNotifications)).Post("/api/notifications/{id}/read", h.MarkRead)
		}
		if h := deps.Roster; h != nil {
			r.With(allow(engine.ResourceRosterRead)).Get("/api/roster", h.Range)
			r.With(allow(engine.ResourceRosterUpload)).Post("/api/roster/upload", h.Upload)
			r.With(allow(engine.ResourceShiftExchange)).Post("/api/shift-exchange", h.Exchange)
			r.With(allow(engine.ResourceShiftExchange)).Get("/api/shift-exchange", h.Exchanges)
		}
		if h := deps.Downtime; h != nil {
			r.With(allow(engine.ResourceDowntimeReport)).Post("/api/downtime", h.Report)
			r.With(allow(engine.ResourceDowntimeRead)).Get("/api/downtime", h.List)
			r.With(allow(engine.ResourceDowntimeRead)).Get("/api/downtime/summary", h.Summary)
		}
		if h := deps.Profile; h != nil {
			r.With(allow(engine.ResourceProfile)).Post("/api/user/profile-photo", h.Upload)
			r.With(allow(engine.ResourceProfile)).Get("/api/user/profile-photo/{socPortalId}", h.Photo)
		}
	})
	return r
}
