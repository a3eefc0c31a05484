package loki

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeSource struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeSource(values ...string) *fakeSource {
	s := &fakeSource{msgs: make(chan kafka.Message, len(values)+1)}
	for i, v := range values {
		s.msgs <- kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return s
}

func (s *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m, ok := <-s.msgs:
		if !ok {
			return kafka.Message{}, io.EOF
		}
		return m, nil
	}
}

func (s *fakeSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type lokiStub struct {
	srv      *httptest.Server
	requests atomic.Int32
	lines    atomic.Int32
}

func newLokiStub(t *testing.T, status func(n int32) int) *lokiStub {
	t.Helper()
	stub := &lokiStub{}
	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := stub.requests.Add(1)
		var req pushRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		code := status(n)
		if code/100 == 2 {
			for _, s := range req.Streams {
				stub.lines.Add(int32(len(s.Values)))
			}
		}
		w.WriteHeader(code)
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

func ok(int32) int { return http.StatusNoContent }

func newTestShipper(src Source, stub *lokiStub) *Shipper {
	s := NewShipper(src, NewClient(stub.srv.URL), nil)
	s.BatchSize = 2
	s.FlushInterval = 20 * time.Millisecond
	s.Backoff = time.Millisecond
	s.MaxAttempts = 3
	return s
}

func runShipper(t *testing.T, s *Shipper) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestShipper_BatchesAndCommits(t *testing.T) {
	src := newFakeSource(`{"action":"login"}`, `{"action":"logout"}`, `{"action":"login"}`)
	stub := newLokiStub(t, ok)
	cancel, done := runShipper(t, newTestShipper(src, stub))
	defer cancel()

	// Two full batches: one by size, one by the flush interval.
	waitFor(t, func() bool { return len(src.commits()) == 3 })
	if stub.requests.Load() != 2 || stub.lines.Load() != 3 {
		t.Errorf("requests = %d lines = %d", stub.requests.Load(), stub.lines.Load())
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestShipper_RetriesServerErrors(t *testing.T) {
	src := newFakeSource(`{"action":"login"}`, `{"action":"logout"}`)
	stub := newLokiStub(t, func(n int32) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusNoContent
	})
	cancel, _ := runShipper(t, newTestShipper(src, stub))
	defer cancel()

	waitFor(t, func() bool { return len(src.commits()) == 2 })
	if stub.requests.Load() != 3 || stub.lines.Load() != 2 {
		t.Errorf("requests = %d lines = %d", stub.requests.Load(), stub.lines.Load())
	}
}

func TestShipper_DropsRejectedBatch(t *testing.T) {
	src := newFakeSource(`{"action":"login"}`, `{"action":"logout"}`)
	stub := newLokiStub(t, func(int32) int { return http.StatusBadRequest })
	cancel, _ := runShipper(t, newTestShipper(src, stub))
	defer cancel()

	waitFor(t, func() bool { return len(src.commits()) == 2 })
	if stub.requests.Load() != 1 {
		t.Errorf("4xx should not be retried; requests = %d", stub.requests.Load())
	}
}

func TestShipper_FlushesOnClose(t *testing.T) {
	src := newFakeSource(`{"action":"login"}`)
	close(src.msgs)
	stub := newLokiStub(t, ok)
	s := newTestShipper(src, stub)
	s.FlushInterval = time.Hour

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := src.commits(); len(got) != 1 || stub.lines.Load() != 1 {
		t.Errorf("commits = %v lines = %d", got, stub.lines.Load())
	}
}
