package client

import (
	"context"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type toastRecord struct {
	Level   Level
	Message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []toastRecord
}

func (n *recordingNotifier) Toast(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, toastRecord{level, message})
}

func (n *recordingNotifier) all() []toastRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]toastRecord(nil), n.toasts...)
}

type recordingNavigator struct {
	mu        sync.Mutex
	locations []string
}

func (n *recordingNavigator) Navigate(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locations = append(n.locations, location)
}

func (n *recordingNavigator) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.locations...)
}

type stubChecker struct {
	mu    sync.Mutex
	res   *CheckResult
	err   error
	calls int
}

func (c *stubChecker) Check(context.Context) (*CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.res, c.err
}

// countingStore counts lastActivity writes.
type countingStore struct {
	*MemoryStore
	mu     sync.Mutex
	writes int
}

func (s *countingStore) Set(name, value string) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.MemoryStore.Set(name, value)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
