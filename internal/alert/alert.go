// Package alert delivers outbound, fire-and-forget alerts (security events, business events).
package alert

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
)

// sendTimeout bounds one async delivery.
const sendTimeout = 5 * time.Second

// Sender delivers one formatted alert message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Message is an alert before formatting.
type Message struct {
	Title  string
	Fields []Field
}

// Field is one labelled line of an alert.
type Field struct {
	Label string
	Value string
}

// F builds a Field.
func F(label, value string) Field { return Field{Label: label, Value: value} }

// Format renders m as Telegram HTML: a bold title followed by one "Label: value" line per non-empty field.
func (m Message) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(m.Title))
	for _, f := range m.Fields {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "\n<b>%s:</b> %s", html.EscapeString(f.Label), html.EscapeString(f.Value))
	}
	return b.String()
}

// Notifier sends alerts without blocking or returning errors to the caller.
type Notifier interface {
	Notify(m Message)
}

// Async wraps a Sender: each Notify runs in its own goroutine with a 5s timeout; failures are logged.
type Async struct {
	sender Sender
	logger *zap.Logger
}

// NewAsync returns an Async notifier. A nil sender makes Notify a no-op.
func NewAsync(sender Sender, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Async{sender: sender, logger: logger}
}

// Notify formats m and delivers it in the background.
func (a *Async) Notify(m Message) {
	if a == nil || a.sender == nil {
		return
	}
	text := m.Format()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := a.sender.Send(ctx, text); err != nil {
			a.logger.Warn("alert: delivery failed", zap.String("title", m.Title), zap.Error(err))
		}
	}()
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Notify(Message) {}
