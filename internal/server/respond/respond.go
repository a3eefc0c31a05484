// Package respond writes the portal's JSON envelope: {success, message?, data?}.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"soc-portal/internal/apperr"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Envelope is the JSON body of every feature response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes v as the response body with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Error maps err to a status and writes a failure envelope. System errors are logged with their cause
// and answered with a generic message.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperr.StatusOf(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	JSON(w, status, Envelope{Success: false, Message: apperr.PublicMessage(err)})
}

// Decode reads a JSON body into v. Malformed or oversized bodies are Validation errors.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Validation("Request body too large")
		case errors.Is(err, io.EOF):
			return apperr.Validation("Request body is required")
		default:
			return apperr.Validation("Invalid JSON body")
		}
	}
	return nil
}
