package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"soc-portal/internal/telemetry"
)

const instrumentationName = "soc-portal/activity"

var severities = map[string]otellog.Severity{
	"INFO":     otellog.SeverityInfo,
	"WARN":     otellog.SeverityWarn,
	"ERROR":    otellog.SeverityError,
	"CRITICAL": otellog.SeverityFatal,
}

// NewEventEmitter sends activity rows as OTel log records through provider. A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &logEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger is NewEventEmitter for an existing logger.
func NewEventEmitterWithLogger(logger otellog.Logger) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &logEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.ActivityEvent) error { return nil }

type logEmitter struct {
	logger otellog.Logger
}

// Emit records the event JSON as the body and the identifying fields as attributes. The record
// inherits the span in ctx, so activity rows line up with the request trace.
func (e *logEmitter) Emit(ctx context.Context, event *telemetry.ActivityEvent) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetSeverity(severityNumber(event.Severity))
	rec.SetSeverityText(event.Severity)
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	rec.SetBody(otellog.BytesValue(body))
	rec.AddAttributes(attributes(event)...)
	e.logger.Emit(ctx, rec)
	return nil
}

func attributes(event *telemetry.ActivityEvent) []otellog.KeyValue {
	attrs := []otellog.KeyValue{otellog.String("action", event.Action)}
	for _, f := range []struct{ key, value string }{
		{"event.id", event.ID},
		{"soc_portal_id", event.SocPortalID},
		{"eid", event.EID},
		{"session_id", event.SessionID},
		{"client.address", event.IP},
		{"user_agent.original", event.UserAgent},
	} {
		if f.value != "" {
			attrs = append(attrs, otellog.String(f.key, f.value))
		}
	}
	return attrs
}

func severityNumber(s string) otellog.Severity {
	if sev, ok := severities[s]; ok {
		return sev
	}
	return otellog.SeverityInfo
}
