// Package producer publishes activity events to Kafka for cmd/worker to forward to Loki.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"soc-portal/internal/telemetry"
)

const (
	HeaderAction      = "action"
	HeaderSeverity    = "severity"
	HeaderContentType = "content-type"

	writeTimeout = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is a telemetry.EventEmitter that writes one message per activity row.
// Emit blocks on the brokers; the server puts it behind a telemetry.Queue.
type KafkaProducer struct {
	writer messageWriter
}

// NewKafkaProducer returns (nil, nil) when brokers or topic are empty so callers can treat the stream as disabled.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}}, nil
}

// Message encodes event as a Kafka message. The key is the actor (portal id, else email) so one
// actor's events stay ordered within a partition; anonymous events are keyed by event id.
func Message(event *telemetry.ActivityEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := event.SocPortalID
	if key == "" {
		key = event.Email
	}
	if key == "" {
		key = event.ID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderAction, Value: []byte(event.Action)},
			{Key: HeaderSeverity, Value: []byte(event.Severity)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}, nil
}

func (p *KafkaProducer) Emit(ctx context.Context, event *telemetry.ActivityEvent) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	msg, err := Message(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending writes.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
