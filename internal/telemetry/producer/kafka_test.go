package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"soc-portal/internal/telemetry"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closed   bool
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p, err := NewKafkaProducer(nil, "topic"); err != nil || p != nil {
		t.Errorf("no brokers: got %v, %v", p, err)
	}
	if p, err := NewKafkaProducer([]string{"localhost:9092"}, ""); err != nil || p != nil {
		t.Errorf("no topic: got %v, %v", p, err)
	}
	var disabled *KafkaProducer
	if err := disabled.Emit(context.Background(), &telemetry.ActivityEvent{}); err != nil {
		t.Errorf("disabled Emit: %v", err)
	}
	if err := disabled.Close(); err != nil {
		t.Errorf("disabled Close: %v", err)
	}
}

func TestMessage_Keys(t *testing.T) {
	cases := []struct {
		name  string
		event telemetry.ActivityEvent
		key   string
	}{
		{"portal id", telemetry.ActivityEvent{ID: "a1", SocPortalID: "U01SOCP", Email: "u@x.com"}, "U01SOCP"},
		{"email only", telemetry.ActivityEvent{ID: "a2", Email: "u@x.com"}, "u@x.com"},
		{"anonymous", telemetry.ActivityEvent{ID: "a3"}, "a3"},
	}
	for _, tc := range cases {
		msg, err := Message(&tc.event)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if string(msg.Key) != tc.key {
			t.Errorf("%s: key = %q, want %q", tc.name, msg.Key, tc.key)
		}
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	event := &telemetry.ActivityEvent{ID: "a1", SocPortalID: "U01SOCP", Action: "login", Severity: "INFO", CreatedAt: at}
	if err := p.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	if !w.deadline {
		t.Error("write should carry a deadline")
	}
	msg := w.msgs[0]
	var got telemetry.ActivityEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("value: %v", err)
	}
	if got.ID != "a1" || got.Action != "login" || !msg.Time.Equal(at) {
		t.Errorf("decoded %+v at %v", got, msg.Time)
	}
	if header(msg, HeaderAction) != "login" || header(msg, HeaderSeverity) != "INFO" || header(msg, HeaderContentType) != "application/json" {
		t.Errorf("headers = %+v", msg.Headers)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &KafkaProducer{writer: w}
	if err := p.Emit(context.Background(), &telemetry.ActivityEvent{Action: "x"}); err == nil {
		t.Fatal("Emit should surface writer error")
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: %v closed=%v", err, w.closed)
	}
}
