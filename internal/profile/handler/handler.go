// Package handler serves profile photo upload and download.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"soc-portal/internal/apperr"
	"soc-portal/internal/audit"
	"soc-portal/internal/logging"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/profile"
	"soc-portal/internal/server/respond"
)

// MaxPhotoBytes is the largest accepted photo.
const MaxPhotoBytes = 5 << 20

// PhotoURLPrefix prefixes the URL saved on the user row.
const PhotoURLPrefix = "/api/user/profile-photo/"

// PhotoUpdater saves the photo URL on the user row.
type PhotoUpdater interface {
	UpdateProfilePhoto(ctx context.Context, socPortalID, url string) error
}

// PhotoResponse is the data of POST /api/user/profile-photo.
type PhotoResponse struct {
	URL string `json:"profilePhotoUrl"`
}

// Handler serves /api/user/profile-photo.
type Handler struct {
	store  *profile.PhotoStore
	users  PhotoUpdater
	audit  audit.ActivityLogger
	logger *zap.Logger
}

// New returns a profile photo Handler. a may be nil.
func New(store *profile.PhotoStore, users PhotoUpdater, a audit.ActivityLogger, logger *zap.Logger) *Handler {
	if a == nil {
		a = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, users: users, audit: a, logger: logger}
}

// Upload handles POST /api/user/profile-photo with a multipart "photo" field.
// The type is sniffed from the content, not taken from the client.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireUser(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	// Room for the multipart envelope around a maximum-size photo.
	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoBytes+64<<10)
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, r, h.logger, apperr.Validation("Photo must be at most 5MB"))
			return
		}
		respond.Error(w, r, h.logger, apperr.Validation("A photo file is required"))
		return
	}
	defer file.Close()

	data, ok, err := profile.ReadLimited(file, MaxPhotoBytes)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Validation("Could not read photo"))
		return
	}
	if !ok {
		respond.Error(w, r, h.logger, apperr.Validation("Photo must be at most 5MB"))
		return
	}
	mimeType := http.DetectContentType(data)
	if _, ok := profile.Extensions[mimeType]; !ok {
		respond.Error(w, r, h.logger, apperr.Validation("Photo must be a JPEG, PNG or WebP image"))
		return
	}

	if _, err := h.store.Save(caller.SocPortalID, mimeType, data); err != nil {
		h.record(r, "profile_photo_failed", logging.SeverityError, "Profile photo upload failed")
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	url := fmt.Sprintf("%s%s?v=%d", PhotoURLPrefix, caller.SocPortalID, time.Now().Unix())
	if err := h.users.UpdateProfilePhoto(r.Context(), caller.SocPortalID, url); err != nil {
		h.record(r, "profile_photo_failed", logging.SeverityError, "Profile photo URL update failed")
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("update photo url: %w", err)))
		return
	}
	h.record(r, "profile_photo", logging.SeverityInfo, fmt.Sprintf("Updated profile photo (%s, %d bytes)", mimeType, len(data)))
	respond.OK(w, "Profile photo updated", PhotoResponse{URL: url})
}

// Photo handles GET /api/user/profile-photo/{socPortalId}.
func (h *Handler) Photo(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context()); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	id := strings.ToUpper(chi.URLParam(r, "socPortalId"))
	f, mimeType, err := h.store.Open(id)
	if errors.Is(err, profile.ErrNoPhoto) {
		respond.Error(w, r, h.logger, apperr.NotFound("Profile photo not found"))
		return
	}
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(err))
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) record(r *http.Request, action string, sev logging.Severity, description string) {
	e := audit.FromRequest(r)
	e.Action = action
	e.Severity = sev
	e.Description = description
	h.audit.Log(r.Context(), e)
}
