package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"soc-portal/internal/session"
)

// Tracker defaults.
const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultPollInterval   = 10 * time.Second
	DefaultExpiryLockHold = 3 * time.Second
	logoutTimeout         = 5 * time.Second
)

// Event is a qualifying user interaction.
type Event string

const (
	EventMouseMove  Event = "mousemove"
	EventClick      Event = "click"
	EventMouseDown  Event = "mousedown"
	EventScroll     Event = "scroll"
	EventKeyDown    Event = "keydown"
	EventKeyPress   Event = "keypress"
	EventTouchStart Event = "touchstart"
	EventTouchMove  Event = "touchmove"
	EventInput      Event = "input"
	EventChange     Event = "change"
	EventFocus      Event = "focus"
	EventBlur       Event = "blur"
)

// ExpiryLock lets one of several trackers handle an expiry. Once acquired it stays held for hold.
type ExpiryLock struct {
	mu    sync.Mutex
	until time.Time
	hold  time.Duration
	now   func() time.Time
}

// NewExpiryLock returns a lock held for hold after each acquisition.
func NewExpiryLock(hold time.Duration) *ExpiryLock {
	return &ExpiryLock{hold: hold, now: time.Now}
}

// TryAcquire takes the lock unless another holder acquired it less than hold ago.
func (l *ExpiryLock) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Before(l.until) {
		return false
	}
	l.until = now.Add(l.hold)
	return true
}

// LogoutFunc ends the session on the server.
type LogoutFunc func(ctx context.Context) error

// Tracker keeps the lastActivity cookie fresh while the person interacts and expires the session
// client-side when it has been idle longer than the policy allows.
type Tracker struct {
	store    CookieStore
	policy   Policy
	logout   LogoutFunc
	nav      Navigator
	lock     *ExpiryLock
	logger   *zap.Logger
	debounce time.Duration
	poll     time.Duration
	now      func() time.Time

	warning *Toast
	expired *Toast

	mu   sync.Mutex
	done chan struct{}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithDebounce sets how long after an interaction the heartbeat is written.
func WithDebounce(d time.Duration) TrackerOption { return func(t *Tracker) { t.debounce = d } }

// WithPollInterval sets how often idle time is checked.
func WithPollInterval(d time.Duration) TrackerOption { return func(t *Tracker) { t.poll = d } }

// WithExpiryLock shares lock with other trackers of the same session.
func WithExpiryLock(lock *ExpiryLock) TrackerOption { return func(t *Tracker) { t.lock = lock } }

// WithTrackerLogger sets the logger for best-effort failures.
func WithTrackerLogger(l *zap.Logger) TrackerOption { return func(t *Tracker) { t.logger = l } }

// WithTrackerClock sets the clock used for heartbeats and idle time.
func WithTrackerClock(now func() time.Time) TrackerOption { return func(t *Tracker) { t.now = now } }

// NewTracker returns a tracker for the session in store, using the server-published policy.
// logout may be nil.
func NewTracker(store CookieStore, policy Policy, logout LogoutFunc, nav Navigator, notifier Notifier, opts ...TrackerOption) *Tracker {
	if policy.Timeout <= 0 {
		policy.Timeout = 15 * time.Minute
	}
	if policy.WarningAfter <= 0 || policy.WarningAfter >= policy.Timeout {
		policy.WarningAfter = policy.Timeout * 4 / 5
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	t := &Tracker{
		store:    store,
		policy:   policy,
		logout:   logout,
		nav:      nav,
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
		poll:     DefaultPollInterval,
		now:      time.Now,
		warning:  NewToast(notifier),
		expired:  NewToast(notifier),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.lock == nil {
		t.lock = NewExpiryLock(DefaultExpiryLockHold)
	}
	return t
}

// Policy returns the effective policy.
func (t *Tracker) Policy() Policy { return t.policy }

// Done is closed when the tracker has ended the session.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Start begins tracking interactions read from events. The returned teardown stops the polling
// loop and the debounce timer and waits for them to exit; it is safe to call more than once.
func (t *Tracker) Start(ctx context.Context, events <-chan Event) (teardown func()) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	select {
	case <-t.done:
		t.done = make(chan struct{})
	default:
	}
	done := t.done
	t.mu.Unlock()
	t.warning.Reset()
	t.expired.Reset()

	var g errgroup.Group
	g.Go(func() error {
		t.run(ctx, events, done)
		return nil
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = g.Wait()
		})
	}
}

func (t *Tracker) run(ctx context.Context, events <-chan Event, done chan struct{}) {
	if _, ok := t.store.Get(session.CookieLastActivity); !ok {
		t.heartbeat()
	}
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	debounce := time.NewTimer(t.debounce)
	debounce.Stop()
	defer debounce.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if pending == nil {
				debounce.Reset(t.debounce)
				pending = debounce.C
			}
		case <-pending:
			pending = nil
			// An interaction after the timeout does not revive the session.
			if t.idle() > t.policy.Timeout {
				t.expire(ctx, done)
				return
			}
			t.heartbeat()
		case <-ticker.C:
			if t.check(ctx, done) {
				return
			}
		}
	}
}

// idle returns the time since lastActivity. A missing or unparseable timestamp counts as expired.
func (t *Tracker) idle() time.Duration {
	raw, ok := t.store.Get(session.CookieLastActivity)
	if !ok {
		return t.policy.Timeout + time.Nanosecond
	}
	last, err := session.ParseTimestamp(raw)
	if err != nil {
		return t.policy.Timeout + time.Nanosecond
	}
	return t.now().Sub(last)
}

// heartbeat writes lastActivity = now unless the stored value is later, then re-arms the warning.
func (t *Tracker) heartbeat() {
	now := t.now()
	if raw, ok := t.store.Get(session.CookieLastActivity); ok {
		if last, err := session.ParseTimestamp(raw); err == nil && last.After(now) {
			now = last
		}
	}
	if err := t.store.Set(session.CookieLastActivity, session.FormatTimestamp(now)); err != nil {
		t.logger.Warn("tracker: write lastActivity failed", zap.Error(err))
	}
	t.warning.Reset()
}

// check runs one poll. It reports whether the session was ended.
func (t *Tracker) check(ctx context.Context, done chan struct{}) bool {
	idle := t.idle()
	switch {
	case idle > t.policy.Timeout:
		t.expire(ctx, done)
		return true
	case idle > t.policy.WarningAfter:
		left := (t.policy.Timeout - idle).Round(time.Second)
		t.warning.Fire(LevelWarning, fmt.Sprintf("Your session will expire in %s due to inactivity", left))
	}
	return false
}

// expire ends the session once across every tracker sharing the lock.
func (t *Tracker) expire(ctx context.Context, done chan struct{}) {
	defer close(done)
	if !t.lock.TryAcquire() {
		return
	}
	if t.logout != nil {
		logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
		if err := t.logout(logoutCtx); err != nil {
			t.logger.Warn("tracker: logout after expiry failed", zap.Error(err))
		}
		cancel()
	}
	if err := t.store.Remove(session.Names...); err != nil {
		t.logger.Warn("tracker: clear session cookies failed", zap.Error(err))
	}
	t.expired.Fire(LevelWarning, "Your session has expired due to inactivity. Please log in again.")
	t.nav.Navigate(LocationExpired)
}
