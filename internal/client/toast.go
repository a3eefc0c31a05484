package client

import "sync"

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier displays a toast to the person using the client.
type Notifier interface {
	Toast(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Toast(level Level, message string) { f(level, message) }

// ToastState is the state of a one-shot toast channel.
type ToastState int

const (
	ToastIdle ToastState = iota
	ToastNotified
)

func (s ToastState) String() string {
	if s == ToastNotified {
		return "Notified"
	}
	return "Idle"
}

// Toast is a one-shot notification channel. Fire shows a toast only from Idle and moves to Notified;
// only Reset returns it to Idle.
type Toast struct {
	mu       sync.Mutex
	state    ToastState
	notifier Notifier
}

// NewToast returns an Idle channel that shows toasts on n. A nil n discards them.
func NewToast(n Notifier) *Toast {
	if n == nil {
		n = NotifierFunc(func(Level, string) {})
	}
	return &Toast{notifier: n}
}

// Fire shows message when the channel is Idle. It reports whether the toast was shown.
func (t *Toast) Fire(level Level, message string) bool {
	t.mu.Lock()
	if t.state == ToastNotified {
		t.mu.Unlock()
		return false
	}
	t.state = ToastNotified
	t.mu.Unlock()
	t.notifier.Toast(level, message)
	return true
}

// Reset returns the channel to Idle. Call on unmount or when a new session starts.
func (t *Toast) Reset() {
	t.mu.Lock()
	t.state = ToastIdle
	t.mu.Unlock()
}

// State returns the current state.
func (t *Toast) State() ToastState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
