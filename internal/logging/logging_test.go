package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		l, err := New(env, "debug")
		if err != nil {
			t.Fatalf("New(%s): %v", env, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("New(%s): debug should be enabled", env)
		}
	}
}

func TestLog_SeverityMapping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	Log(l, SeverityInfo, "ok")
	Log(l, SeverityWarn, "expired")
	Log(l, SeverityCritical, "db down")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
	if got := entries[2].ContextMap()["severity"]; got != "CRITICAL" {
		t.Errorf("severity = %v, want CRITICAL", got)
	}
}

func TestLog_NilLogger(t *testing.T) {
	Log(nil, SeverityError, "ignored")
}
