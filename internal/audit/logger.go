// Package audit records activity rows for every gate decision and feature action.
package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"soc-portal/internal/audit/domain"
	auditrepo "soc-portal/internal/audit/repository"
	"soc-portal/internal/logging"
	"soc-portal/internal/security"
	"soc-portal/internal/session"
	"soc-portal/internal/telemetry"
)

// Entry is one activity to record. SessionID is the raw sessionId cookie; only its fingerprint is stored.
type Entry struct {
	SocPortalID string
	Email       string
	EID         string
	SessionID   string
	Action      string
	Description string
	Severity    logging.Severity
	IP          string
	UserAgent   string
}

// ActivityLogger writes one activity entry. Log is best-effort: failures are logged and do not affect the caller.
type ActivityLogger interface {
	Log(ctx context.Context, e Entry)
}

// Logger implements ActivityLogger using the activity repository and an optional event emitter.
type Logger struct {
	repo    auditrepo.Repository
	emitter telemetry.EventEmitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewLogger returns an ActivityLogger that persists to repo and fans out to emitter (may be nil).
func NewLogger(repo auditrepo.Repository, emitter telemetry.EventEmitter, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, emitter: emitter, logger: logger, now: time.Now}
}

// Log writes one activity row, mirrors it to the structured log, and hands it to the emitter.
func (l *Logger) Log(ctx context.Context, e Entry) {
	if e.Severity == "" {
		e.Severity = logging.SeverityInfo
	}
	row := &domain.ActivityLog{
		ID:          uuid.New().String(),
		SocPortalID: e.SocPortalID,
		Email:       e.Email,
		EID:         e.EID,
		SessionID:   security.ShortFingerprint(e.SessionID),
		Action:      e.Action,
		Description: e.Description,
		Severity:    string(e.Severity),
		IP:          e.IP,
		UserAgent:   truncate(e.UserAgent, 512),
		CreatedAt:   l.now().UTC().Truncate(time.Second),
	}

	logging.Log(l.logger, e.Severity, e.Description,
		zap.String("action", row.Action),
		zap.String("soc_portal_id", row.SocPortalID),
		zap.String("eid", row.EID),
		zap.String("session_id", row.SessionID),
		zap.String("ip", row.IP),
	)

	if l.repo != nil {
		if err := l.repo.Create(ctx, row); err != nil {
			l.logger.Error("audit: failed to persist activity", zap.String("action", row.Action), zap.Error(err))
		}
	}
	if l.emitter != nil {
		if err := l.emitter.Emit(ctx, toEvent(row)); err != nil {
			l.logger.Debug("audit: activity event not emitted", zap.String("action", row.Action), zap.Error(err))
		}
	}
}

func toEvent(a *domain.ActivityLog) *telemetry.ActivityEvent {
	return &telemetry.ActivityEvent{
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

// FromRequest fills the correlation fields of an Entry from the request's session cookies and client address.
func FromRequest(r *http.Request) Entry {
	c := session.Read(r)
	return Entry{
		SocPortalID: c.SocPortalID(),
		Email:       c.Email(),
		EID:         c.EID(),
		SessionID:   c.SessionID(),
		IP:          ClientIP(r),
		UserAgent:   r.UserAgent(),
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Nop is an ActivityLogger that drops every entry.
type Nop struct{}

func (Nop) Log(context.Context, Entry) {}
