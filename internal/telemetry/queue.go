package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// emitTimeout bounds delivery of one queued event.
const emitTimeout = 5 * time.Second

// DefaultQueueSize is the buffer used when NewQueue is given a non-positive size.
const DefaultQueueSize = 1024

var (
	// ErrQueueFull is returned when an event is dropped because the buffer is full.
	ErrQueueFull = errors.New("telemetry: queue full")
	// ErrQueueClosed is returned for events emitted after Close.
	ErrQueueClosed = errors.New("telemetry: queue closed")
)

// Queue is an EventEmitter that buffers events and delivers them to next from one background
// worker. Emit never blocks; when the buffer is full the event is dropped and counted.
type Queue struct {
	next   EventEmitter
	logger *zap.Logger
	events chan *ActivityEvent
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewQueue starts a queue in front of next. Close must be called to stop the worker.
func NewQueue(next EventEmitter, size int, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		next:   next,
		logger: logger,
		events: make(chan *ActivityEvent, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Emit enqueues event. ctx is not used for delivery, so a finished request does not cancel it.
func (q *Queue) Emit(_ context.Context, event *ActivityEvent) error {
	if event == nil {
		return nil
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- event:
		return nil
	default:
		if n := q.dropped.Add(1); n == 1 || n%100 == 0 {
			q.logger.Warn("telemetry: queue full, dropping activity events", zap.Int64("dropped", n))
		}
		return ErrQueueFull
	}
}

// Dropped returns how many events were dropped because the buffer was full.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close stops accepting events and waits until the buffered ones are delivered or ctx ends.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for event := range q.events {
		if q.next == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		if err := q.next.Emit(ctx, event); err != nil {
			q.logger.Warn("telemetry: emit failed", zap.String("action", event.Action), zap.Error(err))
		}
		cancel()
	}
}
