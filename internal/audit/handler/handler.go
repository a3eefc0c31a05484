// Package handler serves the activity log to admins.
package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"soc-portal/internal/apperr"
	"soc-portal/internal/audit/domain"
	auditrepo "soc-portal/internal/audit/repository"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/server/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// ActivityView is the wire form of an activity row.
type ActivityView struct {
	ID          string    `json:"id"`
	SocPortalID string    `json:"socPortalId"`
	Email       string    `json:"email"`
	EID         string    `json:"eid"`
	SessionID   string    `json:"sessionId"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	IP          string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListResponse is the data of GET /api/admin/activity-logs.
type ListResponse struct {
	Logs   []ActivityView `json:"logs"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// Handler serves activity logs.
type Handler struct {
	repo   auditrepo.Repository
	logger *zap.Logger
}

// New returns an activity log Handler.
func New(repo auditrepo.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/admin/activity-logs?limit&offset, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireAdmin(r.Context()); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	limit, offset, err := respond.Page(r, defaultLimit, maxLimit)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	rows, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	total, err := h.repo.Count(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	out := ListResponse{Logs: make([]ActivityView, 0, len(rows)), Total: total, Limit: limit, Offset: offset}
	for _, a := range rows {
		out.Logs = append(out.Logs, toView(a))
	}
	respond.OK(w, "", out)
}

func toView(a *domain.ActivityLog) ActivityView {
	return ActivityView{
		ID:          a.ID,
		SocPortalID: a.SocPortalID,
		Email:       a.Email,
		EID:         a.EID,
		SessionID:   a.SessionID,
		Action:      a.Action,
		Description: a.Description,
		Severity:    a.Severity,
		IP:          a.IP,
		UserAgent:   a.UserAgent,
		CreatedAt:   a.CreatedAt,
	}
}
