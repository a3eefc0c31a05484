package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"unauthenticated", Unauthenticated("who"), http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"system", System(sql.ErrConnDone), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("x")), http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusOf(tc.err); got != tc.want {
				t.Errorf("StatusOf = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPublicMessage_HidesSystemCause(t *testing.T) {
	err := System(errors.New("pq: password authentication failed"))
	if got := PublicMessage(err); got != "Internal server error" {
		t.Errorf("PublicMessage = %q", got)
	}
	if got := PublicMessage(errors.New("raw")); got != "Internal server error" {
		t.Errorf("PublicMessage(raw) = %q", got)
	}
	if got := PublicMessage(Validation("Email is required")); got != "Email is required" {
		t.Errorf("PublicMessage(validation) = %q", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := sql.ErrNoRows
	err := System(cause)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Error("System error should unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}
