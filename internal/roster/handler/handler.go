// Package handler serves the roster: range reads, spreadsheet uploads and shift exchanges.
package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"soc-portal/internal/alert"
	"soc-portal/internal/apperr"
	"soc-portal/internal/audit"
	"soc-portal/internal/db"
	identityrepo "soc-portal/internal/identity/repository"
	"soc-portal/internal/logging"
	notifdomain "soc-portal/internal/notification/domain"
	notifrepo "soc-portal/internal/notification/repository"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/roster/domain"
	"soc-portal/internal/roster/importer"
	rosterrepo "soc-portal/internal/roster/repository"
	"soc-portal/internal/server/respond"
)

// maxUploadBytes caps a roster upload request.
const maxUploadBytes = 10 << 20

// EntryView is the wire form of a roster cell.
type EntryView struct {
	Date        string `json:"date"`
	SocPortalID string `json:"socPortalId"`
	Shift       string `json:"shift"`
}

// RangeResponse is the data of GET /api/roster.
type RangeResponse struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	Entries []EntryView `json:"entries"`
}

// UploadResponse is the data of POST /api/roster/upload.
type UploadResponse struct {
	Count int `json:"count"`
}

// ExchangeRequest is the body of POST /api/shift-exchange.
type ExchangeRequest struct {
	Date            string `json:"date"`
	PeerSocPortalID string `json:"peerSocPortalId"`
	Reason          string `json:"reason"`
}

// ExchangeView is the wire form of a completed shift exchange.
type ExchangeView struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"`
	RequesterID    string    `json:"requesterSocPortalId"`
	PeerID         string    `json:"peerSocPortalId"`
	RequesterShift string    `json:"requesterShift"`
	PeerShift      string    `json:"peerShift"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Handler serves /api/roster and /api/shift-exchange.
type Handler struct {
	conn   *sql.DB
	audit  audit.ActivityLogger
	alerts alert.Notifier
	logger *zap.Logger
	now    func() time.Time
}

// New returns a roster Handler. a and alerts may be nil.
func New(conn *sql.DB, a audit.ActivityLogger, alerts alert.Notifier, logger *zap.Logger) *Handler {
	if a == nil {
		a = audit.Nop{}
	}
	if alerts == nil {
		alerts = alert.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{conn: conn, audit: a, alerts: alerts, logger: logger, now: time.Now}
}

// Range handles GET /api/roster?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context()); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if err := validateRange(from, to); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	entries, err := rosterrepo.NewPostgresRepository(h.conn).ListRange(r.Context(), from, to)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("list roster: %w", err)))
		return
	}
	out := RangeResponse{From: from, To: to, Entries: make([]EntryView, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, EntryView{Date: e.Date, SocPortalID: e.SocPortalID, Shift: e.Shift})
	}
	respond.OK(w, "", out)
}

func validateRange(from, to string) error {
	if from == "" || to == "" {
		return apperr.Validation("from and to are required")
	}
	f, err := domain.ParseDate(from)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	t, err := domain.ParseDate(to)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	if t.Before(f) {
		return apperr.Validation("from must not be after to")
	}
	if t.Sub(f) > time.Duration(domain.MaxRangeDays)*24*time.Hour {
		return apperr.Validation(fmt.Sprintf("Date range must not exceed %d days", domain.MaxRangeDays))
	}
	return nil
}

// Upload handles POST /api/roster/upload with a multipart "file" field (.csv or .xlsx).
// The whole file is validated first; every cell is then upserted in one transaction.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, r, h.logger, apperr.Validation("Roster file too large"))
			return
		}
		respond.Error(w, r, h.logger, apperr.Validation("A roster file is required"))
		return
	}
	defer file.Close()

	entries, err := importer.Parse(header.Filename, file)
	if err != nil {
		h.record(r, "roster_upload_failed", logging.SeverityWarn, "Roster upload "+header.Filename+" rejected: "+err.Error())
		respond.Error(w, r, h.logger, apperr.Validation(err.Error()))
		return
	}

	now := h.now().UTC().Truncate(time.Second)
	err = db.WithTx(r.Context(), h.conn, func(tx *sql.Tx) error {
		if err := requireKnownUsers(r, tx, entries); err != nil {
			return err
		}
		roster := rosterrepo.NewPostgresRepository(tx)
		for _, e := range entries {
			e.UpdatedAt = now
			if err := roster.Upsert(r.Context(), e); err != nil {
				return apperr.System(fmt.Errorf("upsert %s/%s: %w", e.Date, e.SocPortalID, err))
			}
		}
		return nil
	})
	if err != nil {
		h.record(r, "roster_upload_failed", logging.SeverityWarn, "Roster upload "+header.Filename+" rejected: "+apperr.PublicMessage(err))
		respond.Error(w, r, h.logger, err)
		return
	}

	h.record(r, "roster_upload", logging.SeverityInfo, fmt.Sprintf("Uploaded %d roster entries from %s", len(entries), header.Filename))
	h.alerts.Notify(alert.Message{Title: "Roster uploaded", Fields: []alert.Field{
		alert.F("File", header.Filename),
		alert.F("Entries", fmt.Sprint(len(entries))),
		alert.F("Uploaded by", caller.SocPortalID),
	}})
	respond.Created(w, "Roster uploaded successfully", UploadResponse{Count: len(entries)})
}

func requireKnownUsers(r *http.Request, tx *sql.Tx, entries []*domain.Entry) error {
	users := identityrepo.NewPostgresRepository(tx)
	checked := make(map[string]bool)
	var unknown []string
	for _, e := range entries {
		if _, done := checked[e.SocPortalID]; done {
			continue
		}
		u, err := users.GetUserByPortalID(r.Context(), e.SocPortalID)
		if err != nil {
			return apperr.System(fmt.Errorf("lookup %s: %w", e.SocPortalID, err))
		}
		checked[e.SocPortalID] = u != nil
		if u == nil {
			unknown = append(unknown, e.SocPortalID)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apperr.Validation("Unknown SOC portal IDs: " + strings.Join(unknown, ", "))
	}
	return nil
}

// Exchange handles POST /api/shift-exchange. The two cells are swapped, the exchange is recorded
// and the requester, the peer and all admins are notified in one transaction.
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req ExchangeRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	req.PeerSocPortalID = strings.ToUpper(strings.TrimSpace(req.PeerSocPortalID))
	req.Reason = strings.TrimSpace(req.Reason)

	now := h.now().UTC().Truncate(time.Second)
	if err := validateExchange(req, caller.SocPortalID, now); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var x *domain.Exchange
	err = db.WithTx(r.Context(), h.conn, func(tx *sql.Tx) error {
		roster := rosterrepo.NewPostgresRepository(tx)
		mine, err := roster.Get(r.Context(), req.Date, caller.SocPortalID)
		if err != nil {
			return apperr.System(fmt.Errorf("load requester cell: %w", err))
		}
		theirs, err := roster.Get(r.Context(), req.Date, req.PeerSocPortalID)
		if err != nil {
			return apperr.System(fmt.Errorf("load peer cell: %w", err))
		}
		if mine == nil || theirs == nil {
			return apperr.NotFound("Roster entry not found for " + req.Date)
		}
		if mine.Shift == theirs.Shift {
			return apperr.Validation("Both people already work the same shift")
		}

		x = &domain.Exchange{
			Date:           req.Date,
			RequesterID:    caller.SocPortalID,
			PeerID:         req.PeerSocPortalID,
			RequesterShift: mine.Shift,
			PeerShift:      theirs.Shift,
			Reason:         req.Reason,
			CreatedAt:      now,
		}
		swapped := []*domain.Entry{
			{Date: req.Date, SocPortalID: caller.SocPortalID, Shift: theirs.Shift, UpdatedAt: now},
			{Date: req.Date, SocPortalID: req.PeerSocPortalID, Shift: mine.Shift, UpdatedAt: now},
		}
		for _, e := range swapped {
			if err := roster.Upsert(r.Context(), e); err != nil {
				return apperr.System(fmt.Errorf("swap %s: %w", e.SocPortalID, err))
			}
		}
		if err := roster.CreateExchange(r.Context(), x); err != nil {
			return apperr.System(fmt.Errorf("record exchange: %w", err))
		}
		notifs := notifrepo.NewPostgresRepository(tx)
		for _, n := range exchangeNotifications(x) {
			if err := notifs.Create(r.Context(), n); err != nil {
				return apperr.System(fmt.Errorf("notify %s: %w", n.RecipientID, err))
			}
		}
		return nil
	})
	if err != nil {
		h.record(r, "shift_exchange_failed", logging.SeverityWarn,
			fmt.Sprintf("Shift exchange with %s on %s rejected: %s", req.PeerSocPortalID, req.Date, apperr.PublicMessage(err)))
		respond.Error(w, r, h.logger, err)
		return
	}

	h.record(r, "shift_exchange", logging.SeverityInfo,
		fmt.Sprintf("Exchanged %s shift %s with %s (%s) on %s", x.RequesterID, x.RequesterShift, x.PeerID, x.PeerShift, x.Date))
	h.alerts.Notify(alert.Message{Title: "Shift exchanged", Fields: []alert.Field{
		alert.F("Date", x.Date),
		alert.F("Requester", x.RequesterID+" ("+x.RequesterShift+" → "+x.PeerShift+")"),
		alert.F("Peer", x.PeerID+" ("+x.PeerShift+" → "+x.RequesterShift+")"),
		alert.F("Reason", x.Reason),
	}})
	respond.Created(w, "Shift exchanged successfully", toExchangeView(x))
}

func validateExchange(req ExchangeRequest, requester string, now time.Time) error {
	if req.Date == "" || req.PeerSocPortalID == "" {
		return apperr.Validation("date and peerSocPortalId are required")
	}
	if _, err := domain.ParseDate(req.Date); err != nil {
		return apperr.Validation(err.Error())
	}
	if req.Date < now.Format(domain.DateLayout) {
		return apperr.Validation("Cannot exchange a shift in the past")
	}
	if req.PeerSocPortalID == requester {
		return apperr.Validation("Cannot exchange a shift with yourself")
	}
	return nil
}

func exchangeNotifications(x *domain.Exchange) []*notifdomain.Notification {
	return []*notifdomain.Notification{
		{
			RecipientID: x.RequesterID,
			Title:       "Shift exchange confirmed",
			Message:     fmt.Sprintf("On %s you now work %s (was %s) after exchanging with %s.", x.Date, x.PeerShift, x.RequesterShift, x.PeerID),
			CreatedAt:   x.CreatedAt,
		},
		{
			RecipientID: x.PeerID,
			Title:       "Shift exchanged with you",
			Message:     fmt.Sprintf("%s exchanged shifts with you on %s. You now work %s (was %s).", x.RequesterID, x.Date, x.RequesterShift, x.PeerShift),
			CreatedAt:   x.CreatedAt,
		},
		{
			RecipientID: notifdomain.RecipientAllAdmins,
			Title:       "Shift exchange",
			Message:     fmt.Sprintf("%s (%s) and %s (%s) exchanged shifts on %s.", x.RequesterID, x.RequesterShift, x.PeerID, x.PeerShift, x.Date),
			CreatedAt:   x.CreatedAt,
		},
	}
}

// Exchanges handles GET /api/shift-exchange: the caller's recent exchanges, newest first.
func (h *Handler) Exchanges(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	limit, _, err := respond.Page(r, 20, 100)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := rosterrepo.NewPostgresRepository(h.conn).ListExchanges(r.Context(), caller.SocPortalID, limit)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("list exchanges: %w", err)))
		return
	}
	out := make([]ExchangeView, 0, len(list))
	for _, x := range list {
		out = append(out, toExchangeView(x))
	}
	respond.OK(w, "", out)
}

func (h *Handler) record(r *http.Request, action string, sev logging.Severity, description string) {
	e := audit.FromRequest(r)
	e.Action = action
	e.Severity = sev
	e.Description = description
	h.audit.Log(r.Context(), e)
}

func toExchangeView(x *domain.Exchange) ExchangeView {
	return ExchangeView{
		ID:             x.ID,
		Date:           x.Date,
		RequesterID:    x.RequesterID,
		PeerID:         x.PeerID,
		RequesterShift: x.RequesterShift,
		PeerShift:      x.PeerShift,
		Reason:         x.Reason,
		CreatedAt:      x.CreatedAt,
	}
}
