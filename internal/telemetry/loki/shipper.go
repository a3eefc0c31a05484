package loki

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Source is the part of *kafka.Reader the shipper consumes. Offsets are committed only after
// their batch has been pushed or dropped, so a crash redelivers instead of losing lines.
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Shipper moves activity events from a Kafka consumer group to Loki in batches.
type Shipper struct {
	source Source
	client *Client
	logger *zap.Logger

	BatchSize     int
	FlushInterval time.Duration
	PushTimeout   time.Duration
	MaxAttempts   int
	Backoff       time.Duration
}

func NewShipper(source Source, client *Client, logger *zap.Logger) *Shipper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shipper{
		source:        source,
		client:        client,
		logger:        logger,
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		PushTimeout:   10 * time.Second,
		MaxAttempts:   5,
		Backoff:       500 * time.Millisecond,
	}
}

// Run ships until ctx is canceled or the source is closed, then flushes what it holds.
func (s *Shipper) Run(ctx context.Context) error {
	var (
		batch    []kafka.Message
		deadline time.Time
	)
	for {
		fetchCtx, cancel := ctx, context.CancelFunc(func() {})
		if len(batch) > 0 {
			fetchCtx, cancel = context.WithDeadline(ctx, deadline)
		}
		msg, err := s.source.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			if len(batch) == 0 {
				deadline = time.Now().Add(s.FlushInterval)
			}
			batch = append(batch, msg)
			if len(batch) < s.BatchSize {
				continue
			}
		case ctx.Err() != nil || errors.Is(err, io.EOF):
			if len(batch) > 0 {
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.PushTimeout)
				s.flush(final, batch)
				cancel()
			}
			return nil
		case errors.Is(err, context.DeadlineExceeded):
		default:
			s.logger.Warn("loki shipper: fetch failed", zap.Error(err))
			_ = sleep(ctx, s.Backoff)
			continue
		}
		s.flush(ctx, batch)
		batch = nil
	}
}

func (s *Shipper) flush(ctx context.Context, batch []kafka.Message) {
	entries := make([]Entry, len(batch))
	for i, m := range batch {
		entries[i] = EntryFromEvent(m.Value)
	}
	first, last := batch[0].Offset, batch[len(batch)-1].Offset
	if err := s.push(ctx, entries); err != nil {
		if ctx.Err() != nil {
			// Uncommitted; the group redelivers on restart.
			return
		}
		s.logger.Error("loki shipper: dropping batch",
			zap.Int("lines", len(entries)), zap.Int64("firstOffset", first), zap.Int64("lastOffset", last), zap.Error(err))
	}
	if err := s.source.CommitMessages(ctx, batch...); err != nil {
		s.logger.Warn("loki shipper: commit failed", zap.Int64("lastOffset", last), zap.Error(err))
	}
}

func (s *Shipper) push(ctx context.Context, entries []Entry) error {
	for attempt := 1; ; attempt++ {
		pushCtx, cancel := context.WithTimeout(ctx, s.PushTimeout)
		err := s.client.Push(pushCtx, entries...)
		cancel()
		if err == nil {
			return nil
		}
		var status *StatusError
		if errors.As(err, &status) && !status.Retryable() {
			return err
		}
		if attempt >= s.MaxAttempts {
			return err
		}
		s.logger.Warn("loki shipper: push failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleep(ctx, s.Backoff<<(attempt-1)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
