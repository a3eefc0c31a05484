// Package apperr defines the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindSystem Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuthentication
	KindAuthorization
)

// Error is an error with a Kind and a client-safe Message. Err is the optional cause and is never sent to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error (400).
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// Conflict returns a KindConflict error (409).
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// NotFound returns a KindNotFound error (404).
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Unauthenticated returns a KindAuthentication error (401).
func Unauthenticated(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }

// Forbidden returns a KindAuthorization error (403).
func Forbidden(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }

// System wraps an unexpected cause (500). The message shown to clients is always generic.
func System(err error) *Error {
	return &Error{Kind: KindSystem, Message: "Internal server error", Err: err}
}

// KindOf returns the Kind of err; errors that are not *Error are KindSystem.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to send to clients. System errors never expose their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindSystem {
		return e.Message
	}
	return "Internal server error"
}
