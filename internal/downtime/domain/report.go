package domain

import (
	"errors"
	"time"
)

// Summary grouping keys.
const (
	GroupByCategory = "category"
	GroupByService  = "service"
)

// maxFieldLen bounds category, service and impact text.
const maxFieldLen = 100

// Report is one recorded service outage.
type Report struct {
	ID              string
	Category        string
	AffectedService string
	ImpactType      string
	Description     string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	ReportedBy      string
	CreatedAt       time.Time
}

// Group is one row of a downtime summary.
type Group struct {
	Key          string
	Count        int
	TotalMinutes int
}

// Validate checks required fields and that the outage ended after it started and not after now.
// DurationMinutes is computed from Start and End.
func (r *Report) Validate(now time.Time) error {
	switch {
	case r.Category == "":
		return errors.New("category is required")
	case r.AffectedService == "":
		return errors.New("affected service is required")
	case len(r.Category) > maxFieldLen || len(r.AffectedService) > maxFieldLen || len(r.ImpactType) > maxFieldLen:
		return errors.New("category, affected service and impact type must be at most 100 characters")
	case r.Start.IsZero() || r.End.IsZero():
		return errors.New("start and end times are required")
	case !r.Start.Before(r.End):
		return errors.New("start time must be before end time")
	case r.End.After(now):
		return errors.New("end time cannot be in the future")
	case r.ReportedBy == "":
		return errors.New("reporter is required")
	}
	r.DurationMinutes = Minutes(r.Start, r.End)
	return nil
}

// Minutes returns the whole minutes between start and end, rounded up so a short outage counts as one.
func Minutes(start, end time.Time) int {
	d := end.Sub(start)
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// IsGroupBy reports whether g is a supported summary grouping.
func IsGroupBy(g string) bool {
	return g == GroupByCategory || g == GroupByService
}
