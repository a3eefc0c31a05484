package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of roster dates.
const DateLayout = "2006-01-02"

// MaxRangeDays bounds a roster query.
const MaxRangeDays = 62

// Shift codes.
const (
	ShiftMorning = "M"
	ShiftEvening = "E"
	ShiftNight   = "N"
	ShiftGeneral = "G"
	ShiftOff     = "OFF"
)

// Shifts lists every valid shift code.
var Shifts = []string{ShiftMorning, ShiftEvening, ShiftNight, ShiftGeneral, ShiftOff}

// ErrInvalidShift is returned for a shift code outside Shifts.
var ErrInvalidShift = errors.New("invalid shift")

// Entry is one roster cell: the shift a person works on a date.
type Entry struct {
	Date        string
	SocPortalID string
	Shift       string
	UpdatedAt   time.Time
}

// Exchange records a completed shift swap between two people on one date.
type Exchange struct {
	ID             string
	Date           string
	RequesterID    string
	PeerID         string
	RequesterShift string // requester's shift before the swap
	PeerShift      string // peer's shift before the swap
	Reason         string
	CreatedAt      time.Time
}

// IsShift reports whether s is a valid shift code.
func IsShift(s string) bool {
	for _, v := range Shifts {
		if v == s {
			return true
		}
	}
	return false
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// Validate checks an entry's date, portal id and shift.
func (e *Entry) Validate() error {
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	if e.SocPortalID == "" {
		return errors.New("soc portal id is required")
	}
	if !IsShift(e.Shift) {
		return fmt.Errorf("%w %q", ErrInvalidShift, e.Shift)
	}
	return nil
}
