package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type chanSender struct {
	texts chan string
	err   error
}

func (s *chanSender) Send(_ context.Context, text string) error {
	s.texts <- text
	return s.err
}

func TestMessage_Format(t *testing.T) {
	m := Message{Title: "Security alert", Fields: []Field{
		F("Event", "missing credentials"),
		F("IP", ""),
		F("Path", "/api/<x>"),
	}}
	want := "<b>Security alert</b>\n<b>Event:</b> missing credentials\n<b>Path:</b> /api/&lt;x&gt;"
	if got := m.Format(); got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestAsync_Notify(t *testing.T) {
	s := &chanSender{texts: make(chan string, 1)}
	NewAsync(s, nil).Notify(Message{Title: "Roster uploaded"})
	select {
	case text := <-s.texts:
		if text != "<b>Roster uploaded</b>" {
			t.Errorf("text = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}
}

func TestAsync_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := &chanSender{texts: make(chan string, 1), err: errors.New("429")}
	NewAsync(s, zap.New(core)).Notify(Message{Title: "x"})
	<-s.texts
	deadline := time.Now().Add(2 * time.Second)
	for logs.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if logs.FilterMessage("alert: delivery failed").Len() != 1 {
		t.Error("delivery failure should be logged")
	}
}

func TestAsync_NilSender(t *testing.T) {
	NewAsync(nil, nil).Notify(Message{Title: "x"})
	var a *Async
	a.Notify(Message{Title: "x"})
	Nop{}.Notify(Message{})
}
