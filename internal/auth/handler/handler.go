// Package handler serves login, logout and the session check.
package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"soc-portal/internal/alert"
	"soc-portal/internal/apperr"
	"soc-portal/internal/audit"
	"soc-portal/internal/auth/service"
	"soc-portal/internal/authgate"
	"soc-portal/internal/config"
	"soc-portal/internal/logging"
	"soc-portal/internal/server/respond"
	"soc-portal/internal/session"
)

// SessionPolicyView is the idle-timeout policy published to clients.
type SessionPolicyView struct {
	TimeoutSeconds int64 `json:"timeoutSeconds"`
	WarningSeconds int64 `json:"warningSeconds"`
}

// PolicyView converts p to its wire form.
func PolicyView(p config.SessionPolicy) SessionPolicyView {
	return SessionPolicyView{
		TimeoutSeconds: int64(p.Timeout / time.Second),
		WarningSeconds: int64(p.WarningAfter / time.Second),
	}
}

// CheckResponse is the body of a successful GET /api/auth/check.
type CheckResponse struct {
	Success       bool              `json:"success"`
	Authenticated bool              `json:"authenticated"`
	Role          string            `json:"role"`
	UserType      string            `json:"userType"`
	SocPortalID   string            `json:"socPortalId"`
	Session       SessionPolicyView `json:"session"`
}

// LoginData is the data of a successful login.
type LoginData struct {
	SocPortalID string            `json:"socPortalId"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Role        string            `json:"role"`
	UserType    string            `json:"userType"`
	EID         string            `json:"eid"`
	Session     SessionPolicyView `json:"session"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handler serves /api/auth.
type Handler struct {
	svc     *service.AuthService
	gate    *authgate.Gate
	cookies *session.Writer
	audit   audit.ActivityLogger
	alerts  alert.Notifier
	logger  *zap.Logger
}

// New returns an auth Handler. audit and alerts may be nil.
func New(svc *service.AuthService, gate *authgate.Gate, cookies *session.Writer, a audit.ActivityLogger, alerts alert.Notifier, logger *zap.Logger) *Handler {
	if a == nil {
		a = audit.Nop{}
	}
	if alerts == nil {
		alerts = alert.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, gate: gate, cookies: cookies, audit: a, alerts: alerts, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		e := audit.FromRequest(r)
		e.Email = service.NormalizeEmail(req.Email)
		e.Action = "login_failed"
		e.Description = "Login rejected: " + apperr.PublicMessage(err)
		e.Severity = logging.SeverityWarn
		if apperr.KindOf(err) == apperr.KindSystem {
			e.Severity = logging.SeverityCritical
		}
		h.audit.Log(r.Context(), e)
		respond.Error(w, r, h.logger, err)
		return
	}

	h.cookies.Issue(w, res.Session)
	ident := res.Identity
	h.audit.Log(r.Context(), audit.Entry{
		SocPortalID: ident.SocPortalID,
		Email:       ident.Email,
		EID:         res.Session.EID,
		SessionID:   res.Session.ID,
		Action:      "login",
		Description: "Logged in as " + res.Session.Role,
		Severity:    logging.SeverityInfo,
		IP:          audit.ClientIP(r),
		UserAgent:   r.UserAgent(),
	})
	h.alerts.Notify(alert.Message{Title: "Login", Fields: []alert.Field{
		alert.F("Name", ident.DisplayName()),
		alert.F("Portal ID", ident.SocPortalID),
		alert.F("Role", ident.Role),
		alert.F("IP", audit.ClientIP(r)),
	}})
	respond.OK(w, "Login successful", LoginData{
		SocPortalID: ident.SocPortalID,
		Email:       ident.Email,
		Name:        ident.DisplayName(),
		Role:        res.Session.Role,
		UserType:    res.Session.UserType,
		EID:         res.Session.EID,
		Session:     PolicyView(h.gate.Policy()),
	})
}

// Logout handles POST /api/auth/logout. It always succeeds and clears every session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	e := audit.FromRequest(r)
	if e.Email != "" || e.SessionID != "" {
		e.Action = "logout"
		e.Description = "Logged out"
		e.Severity = logging.SeverityInfo
		h.audit.Log(r.Context(), e)
	}
	h.cookies.Clear(w)
	respond.OK(w, "Logged out", nil)
}

// Check handles GET /api/auth/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	res, err := h.gate.CheckRequest(r)
	if err != nil {
		authgate.WriteFailure(w, h.cookies, err)
		return
	}
	respond.JSON(w, http.StatusOK, CheckResponse{
		Success:       true,
		Authenticated: true,
		Role:          res.Role,
		UserType:      res.UserType,
		SocPortalID:   res.SocPortalID,
		Session:       PolicyView(h.gate.Policy()),
	})
}
