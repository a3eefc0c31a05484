// Package telemetry carries activity events out of the portal: OpenTelemetry logs, Kafka, and Loki (via cmd/worker).
package telemetry

import (
	"context"
	"errors"
	"time"
)

// ActivityEvent is the wire form of one activity log row. It is the Kafka message value and the Loki log line.
type ActivityEvent struct {
	ID          string    `json:"id"`
	SocPortalID string    `json:"socPortalId,omitempty"`
	Email       string    `json:"email,omitempty"`
	EID         string    `json:"eid,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EventEmitter emits activity events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *ActivityEvent) error
}

// MultiEmitter fans one event out to every emitter. Nil entries are skipped.
type MultiEmitter []EventEmitter

// Emit calls every emitter and joins their errors.
func (m MultiEmitter) Emit(ctx context.Context, event *ActivityEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
