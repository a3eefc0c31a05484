// Package logging builds the zap loggers used by the server, worker and CLI.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity is the audit severity attached to gate and handler log lines.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// New returns a JSON production logger, or a console logger when env is "development".
// level is a zap level name; unknown values fall back to info.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(env, "development") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	return cfg.Build()
}

// ParseLevel maps a level name to a zapcore.Level. Empty or unknown names are info.
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Log writes msg at the zap level matching sev. CRITICAL is written at error level with a severity field.
func Log(l *zap.Logger, sev Severity, msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	fields = append(fields, zap.String("severity", string(sev)))
	switch sev {
	case SeverityWarn:
		l.Warn(msg, fields...)
	case SeverityError, SeverityCritical:
		l.Error(msg, fields...)
	default:
		l.Info(msg, fields...)
	}
}
