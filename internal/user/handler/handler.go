// Package handler serves admin user management: adding users and changing account status.
package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"soc-portal/internal/alert"
	"soc-portal/internal/apperr"
	"soc-portal/internal/audit"
	"soc-portal/internal/db"
	"soc-portal/internal/identity/domain"
	identityrepo "soc-portal/internal/identity/repository"
	"soc-portal/internal/logging"
	notifdomain "soc-portal/internal/notification/domain"
	notifrepo "soc-portal/internal/notification/repository"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/security"
	"soc-portal/internal/server/respond"
)

var (
	portalIDPattern = regexp.MustCompile(`^[A-Z][0-9]{2,}SOCP$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern    = regexp.MustCompile(`^01[3-9][0-9]{8}$`)
)

const minPasswordLen = 8

// PasswordHasher hashes new account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// CacheInvalidator drops a cached identity so the next gate check reads the store.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, email string)
}

// CreateRequest is the body of POST /api/admin/users.
type CreateRequest struct {
	SocPortalID string `json:"socPortalId"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

// UserView is the wire form of a user account.
type UserView struct {
	SocPortalID string    `json:"socPortalId"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Phone       string    `json:"phone"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Handler serves /api/admin/users.
type Handler struct {
	conn   *sql.DB
	hasher PasswordHasher
	cache  CacheInvalidator
	audit  audit.ActivityLogger
	alerts alert.Notifier
	logger *zap.Logger
	now    func() time.Time
}

// New returns a user management Handler. cache, a and alerts may be nil.
func New(conn *sql.DB, hasher PasswordHasher, cache CacheInvalidator, a audit.ActivityLogger, alerts alert.Notifier, logger *zap.Logger) *Handler {
	if a == nil {
		a = audit.Nop{}
	}
	if alerts == nil {
		alerts = alert.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{conn: conn, hasher: hasher, cache: cache, audit: a, alerts: alerts, logger: logger, now: time.Now}
}

// Validate normalizes req and returns the first validation failure.
func (req *CreateRequest) Validate() error {
	req.SocPortalID = strings.ToUpper(strings.TrimSpace(req.SocPortalID))
	req.Email = domain.NormalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Role = strings.TrimSpace(req.Role)
	switch {
	case req.SocPortalID == "" || req.Email == "" || req.FirstName == "" || req.Role == "" || req.Password == "":
		return apperr.Validation("socPortalId, email, firstName, role and password are required")
	case !portalIDPattern.MatchString(req.SocPortalID):
		return apperr.Validation("Invalid SOC portal ID format")
	case !emailPattern.MatchString(req.Email):
		return apperr.Validation("Invalid email format")
	case req.Phone != "" && !phonePattern.MatchString(req.Phone):
		return apperr.Validation("Invalid phone number format")
	case !domain.IsUserRole(req.Role):
		return apperr.Validation("Invalid role")
	case len(req.Password) < minPasswordLen:
		return apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	case len(req.Password) > security.MaxPasswordBytes:
		return apperr.Validation(fmt.Sprintf("Password must be at most %d bytes", security.MaxPasswordBytes))
	}
	return nil
}

// Create handles POST /api/admin/users. The user row and its welcome notification commit together.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireAdmin(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req CreateRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("hash password: %w", err)))
		return
	}
	now := h.now().UTC().Truncate(time.Second)
	user := &domain.Identity{
		Kind:         domain.KindUser,
		SocPortalID:  req.SocPortalID,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         req.Role,
		Status:       domain.StatusActive,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = db.WithTx(r.Context(), h.conn, func(tx *sql.Tx) error {
		users := identityrepo.NewPostgresRepository(tx)
		exists, err := users.ExistsUser(r.Context(), user.Email, user.SocPortalID)
		if err != nil {
			return apperr.System(fmt.Errorf("check existing user: %w", err))
		}
		if exists {
			return apperr.Conflict("A user with this email or SOC portal ID already exists")
		}
		if err := users.CreateUser(r.Context(), user); err != nil {
			return apperr.System(fmt.Errorf("create user: %w", err))
		}
		welcome := &notifdomain.Notification{
			RecipientID: user.SocPortalID,
			Title:       "Welcome to SOC Portal",
			Message:     fmt.Sprintf("Hello %s, your %s account has been created.", user.FirstName, user.Role),
			CreatedAt:   now,
		}
		if err := notifrepo.NewPostgresRepository(tx).Create(r.Context(), welcome); err != nil {
			return apperr.System(fmt.Errorf("create welcome notification: %w", err))
		}
		return nil
	})
	if err != nil {
		h.record(r, "user_create_failed", logging.SeverityWarn, "Add user "+user.SocPortalID+" rejected: "+apperr.PublicMessage(err))
		respond.Error(w, r, h.logger, err)
		return
	}

	h.record(r, "user_create", logging.SeverityInfo, fmt.Sprintf("Added user %s (%s)", user.SocPortalID, user.Role))
	h.alerts.Notify(alert.Message{Title: "New user added", Fields: []alert.Field{
		alert.F("Name", user.DisplayName()),
		alert.F("Portal ID", user.SocPortalID),
		alert.F("Role", user.Role),
		alert.F("Added by", caller.SocPortalID),
	}})
	respond.Created(w, "User added successfully", toView(user))
}

// UpdateStatus handles PATCH /api/admin/users/{socPortalId}/status. The gate cache entry is dropped
// so a deactivated user is rejected on the next request.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireAdmin(r.Context()); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	portalID := strings.ToUpper(chi.URLParam(r, "socPortalId"))
	var req statusRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	status := domain.Status(strings.TrimSpace(req.Status))
	if status != domain.StatusActive && status != domain.StatusInactive {
		respond.Error(w, r, h.logger, apperr.Validation("status must be Active or Inactive"))
		return
	}

	users := identityrepo.NewPostgresRepository(h.conn)
	ok, err := users.UpdateUserStatus(r.Context(), portalID, status)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("update status: %w", err)))
		return
	}
	if !ok {
		respond.Error(w, r, h.logger, apperr.NotFound("User not found"))
		return
	}
	user, err := users.GetUserByPortalID(r.Context(), portalID)
	if err != nil || user == nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("reload user %s: %v", portalID, err)))
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), user.Email)
	}

	sev := logging.SeverityInfo
	if status == domain.StatusInactive {
		sev = logging.SeverityWarn
	}
	h.record(r, "user_status", sev, fmt.Sprintf("Set %s status to %s", portalID, status))
	respond.OK(w, "User status updated", toView(user))
}

func (h *Handler) record(r *http.Request, action string, sev logging.Severity, description string) {
	e := audit.FromRequest(r)
	e.Action = action
	e.Severity = sev
	e.Description = description
	h.audit.Log(r.Context(), e)
}

func toView(u *domain.Identity) UserView {
	return UserView{
		SocPortalID: u.SocPortalID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role,
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt,
	}
}
