// Package handler serves the caller's notifications.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"soc-portal/internal/apperr"
	"soc-portal/internal/notification/domain"
	notifrepo "soc-portal/internal/notification/repository"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/server/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// NotificationView is the wire form of a notification.
type NotificationView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"isRead"`
	Broadcast bool      `json:"broadcast"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListResponse is the data of GET /api/notifications.
type ListResponse struct {
	Notifications []NotificationView `json:"notifications"`
	Unread        int                `json:"unread"`
}

// Handler serves /api/notifications.
type Handler struct {
	repo   notifrepo.Repository
	logger *zap.Logger
}

// New returns a notification Handler.
func New(repo notifrepo.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/notifications?limit. Admins also see ALL_ADMINS notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	limit, _, err := respond.Page(r, defaultLimit, maxLimit)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := h.repo.ListFor(r.Context(), caller.SocPortalID, caller.IsAdmin(), limit)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	unread, err := h.repo.UnreadCount(r.Context(), caller.SocPortalID, caller.IsAdmin())
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	out := ListResponse{Notifications: make([]NotificationView, 0, len(list)), Unread: unread}
	for _, n := range list {
		out.Notifications = append(out.Notifications, NotificationView{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Read:      n.Read,
			Broadcast: n.RecipientID == domain.RecipientAllAdmins,
			CreatedAt: n.CreatedAt,
		})
	}
	respond.OK(w, "", out)
}

// MarkRead handles POST /api/notifications/{id}/read. Missing or foreign notifications are 404.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		respond.Error(w, r, h.logger, apperr.Validation("notification id is required"))
		return
	}
	ok, err := h.repo.MarkRead(r.Context(), id, caller.SocPortalID, caller.IsAdmin())
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	if !ok {
		respond.Error(w, r, h.logger, apperr.NotFound("Notification not found"))
		return
	}
	unread, err := h.repo.UnreadCount(r.Context(), caller.SocPortalID, caller.IsAdmin())
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	respond.OK(w, "Notification marked as read", map[string]int{"unread": unread})
}
