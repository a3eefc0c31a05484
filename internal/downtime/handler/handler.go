// Package handler serves downtime reporting and the downtime summary charts.
package handler

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"soc-portal/internal/alert"
	"soc-portal/internal/apperr"
	"soc-portal/internal/audit"
	"soc-portal/internal/db"
	"soc-portal/internal/downtime/domain"
	downtimerepo "soc-portal/internal/downtime/repository"
	"soc-portal/internal/logging"
	notifdomain "soc-portal/internal/notification/domain"
	notifrepo "soc-portal/internal/notification/repository"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/server/respond"
)

const (
	dateLayout   = "2006-01-02"
	maxRangeDays = 366
)

// ReportRequest is the body of POST /api/downtime. Times are RFC 3339.
type ReportRequest struct {
	Category        string `json:"category"`
	AffectedService string `json:"affectedService"`
	ImpactType      string `json:"impactType"`
	Description     string `json:"description"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
}

// ReportView is the wire form of a downtime report.
type ReportView struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	AffectedService string    `json:"affectedService"`
	ImpactType      string    `json:"impactType"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
	ReportedBy      string    `json:"reportedBy"`
}

// GroupView is one bar of the downtime summary.
type GroupView struct {
	Key          string `json:"key"`
	Count        int    `json:"count"`
	TotalMinutes int    `json:"totalMinutes"`
}

// SummaryResponse is the data of GET /api/downtime/summary.
type SummaryResponse struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	GroupBy string      `json:"groupBy"`
	Groups  []GroupView `json:"groups"`
}

// Handler serves /api/downtime.
type Handler struct {
	conn   *sql.DB
	audit  audit.ActivityLogger
	alerts alert.Notifier
	logger *zap.Logger
	now    func() time.Time
}

// New returns a downtime Handler. a and alerts may be nil.
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

// Report handles POST /api/downtime. The report and the admin notification commit together.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	caller, err := rbac.RequireCaller(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req ReportRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	now := h.now().UTC().Truncate(time.Second)
	rep, err := req.toReport(caller.SocPortalID, now)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	err = db.WithTx(r.Context(), h.conn, func(tx *sql.Tx) error {
		if err := downtimerepo.NewPostgresRepository(tx).Create(r.Context(), rep); err != nil {
			return apperr.System(fmt.Errorf("create downtime report: %w", err))
		}
		n := &notifdomain.Notification{
			RecipientID: notifdomain.RecipientAllAdmins,
			Title:       "Downtime reported",
			Message: fmt.Sprintf("%s reported %d minutes of %s downtime on %s.",
				rep.ReportedBy, rep.DurationMinutes, rep.Category, rep.AffectedService),
			CreatedAt: now,
		}
		if err := notifrepo.NewPostgresRepository(tx).Create(r.Context(), n); err != nil {
			return apperr.System(fmt.Errorf("notify admins: %w", err))
		}
		return nil
	})
	if err != nil {
		h.record(r, "downtime_report_failed", logging.SeverityError, "Downtime report failed: "+apperr.PublicMessage(err))
		respond.Error(w, r, h.logger, err)
		return
	}

	h.record(r, "downtime_report", logging.SeverityInfo,
		fmt.Sprintf("Reported %d minutes of %s downtime on %s", rep.DurationMinutes, rep.Category, rep.AffectedService))
	h.alerts.Notify(alert.Message{Title: "Downtime reported", Fields: []alert.Field{
		alert.F("Category", rep.Category),
		alert.F("Service", rep.AffectedService),
		alert.F("Impact", rep.ImpactType),
		alert.F("Start", rep.Start.Format(time.RFC3339)),
		alert.F("End", rep.End.Format(time.RFC3339)),
		alert.F("Duration", fmt.Sprintf("%d min", rep.DurationMinutes)),
		alert.F("Reported by", rep.ReportedBy),
	}})
	respond.Created(w, "Downtime reported successfully", toView(rep))
}

func (req ReportRequest) toReport(reporter string, now time.Time) (*domain.Report, error) {
	start, err := parseTime("startTime", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("endTime", req.EndTime)
	if err != nil {
		return nil, err
	}
	rep := &domain.Report{
		Category:        strings.TrimSpace(req.Category),
		AffectedService: strings.TrimSpace(req.AffectedService),
		ImpactType:      strings.TrimSpace(req.ImpactType),
		Description:     strings.TrimSpace(req.Description),
		Start:           start,
		End:             end,
		ReportedBy:      reporter,
		CreatedAt:       now,
	}
	if err := rep.Validate(now); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return rep, nil
}

func parseTime(field, v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, apperr.Validation(field + " is required")
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, apperr.Validation(field + " must be an RFC 3339 timestamp")
	}
	return t.UTC().Truncate(time.Second), nil
}

// Summary handles GET /api/downtime/summary?from&to&groupBy=category|service. to is inclusive.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context()); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	from, to, err := dateWindow(q.Get("from"), q.Get("to"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	groupBy := q.Get("groupBy")
	if groupBy == "" {
		groupBy = domain.GroupByCategory
	}
	if !domain.IsGroupBy(groupBy) {
		respond.Error(w, r, h.logger, apperr.Validation("groupBy must be category or service"))
		return
	}
	groups, err := downtimerepo.NewPostgresRepository(h.conn).Summary(r.Context(), from, to, groupBy)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("downtime summary: %w", err)))
		return
	}
	out := SummaryResponse{From: q.Get("from"), To: q.Get("to"), GroupBy: groupBy, Groups: make([]GroupView, 0, len(groups))}
	for _, g := range groups {
		out.Groups = append(out.Groups, GroupView(g))
	}
	respond.OK(w, "", out)
}

// List handles GET /api/downtime?from&to&limit, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireCaller(r.Context()); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	from, to, err := dateWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	limit, _, err := respond.Page(r, 50, 200)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	list, err := downtimerepo.NewPostgresRepository(h.conn).List(r.Context(), from, to, limit)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.System(fmt.Errorf("list downtime: %w", err)))
		return
	}
	out := make([]ReportView, 0, len(list))
	for _, rep := range list {
		out = append(out, toView(rep))
	}
	respond.OK(w, "", out)
}

// dateWindow turns inclusive YYYY-MM-DD bounds into the half-open [from, to+1d) window.
func dateWindow(fromS, toS string) (time.Time, time.Time, error) {
	if fromS == "" || toS == "" {
		return time.Time{}, time.Time{}, apperr.Validation("from and to are required")
	}
	from, err := time.Parse(dateLayout, fromS)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("from must be YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, toS)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperr.Validation("from must not be after to")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, apperr.Validation(fmt.Sprintf("Date range must not exceed %d days", maxRangeDays))
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (h *Handler) record(r *http.Request, action string, sev logging.Severity, description string) {
	e := audit.FromRequest(r)
	e.Action = action
	e.Severity = sev
	e.Description = description
	h.audit.Log(r.Context(), e)
}

func toView(rep *domain.Report) ReportView {
	return ReportView{
		ID:              rep.ID,
		Category:        rep.Category,
		AffectedService: rep.AffectedService,
		ImpactType:      rep.ImpactType,
		Description:     rep.Description,
		StartTime:       rep.Start,
		EndTime:         rep.End,
		DurationMinutes: rep.DurationMinutes,
		ReportedBy:      rep.ReportedBy,
	}
}
