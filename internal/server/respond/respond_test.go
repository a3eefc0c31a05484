package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"soc-portal/internal/apperr"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestOKAndCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, "done", map[string]int{"n": 1})
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("status = %d, content-type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if env := decodeEnvelope(t, rec); !env.Success || env.Message != "done" {
		t.Errorf("envelope = %+v", env)
	}

	rec = httptest.NewRecorder()
	Created(rec, "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "message") || strings.Contains(rec.Body.String(), "data") {
		t.Errorf("empty fields should be omitted: %s", rec.Body.String())
	}
}

func TestError_MapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Validation("bad date"), http.StatusBadRequest, "bad date"},
		{apperr.Conflict("exists"), http.StatusConflict, "exists"},
		{apperr.NotFound("nope"), http.StatusNotFound, "nope"},
		{apperr.Unauthenticated("login"), http.StatusUnauthorized, "login"},
		{apperr.Forbidden("no"), http.StatusForbidden, "no"},
		{errors.New("pq: relation missing"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), nil, tt.err)
		if rec.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		if env := decodeEnvelope(t, rec); env.Success || env.Message != tt.msg {
			t.Errorf("%v: envelope = %+v", tt.err, env)
		}
	}
}

func TestError_LogsSystemCause(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodPost, "/api/roster/upload", nil), zap.New(core), apperr.System(errors.New("disk full")))
	if logs.Len() != 1 {
		t.Fatalf("logged %d entries, want 1", logs.Len())
	}
	if strings.Contains(rec.Body.String(), "disk full") {
		t.Error("cause leaked to client")
	}
}

func TestDecode(t *testing.T) {
	var v struct{ Email string }
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com"}`))
	if err := Decode(httptest.NewRecorder(), r, &v); err != nil || v.Email != "a@x.com" {
		t.Fatalf("Decode = %v, %+v", err, v)
	}

	for _, body := range []string{"", "{", `{"email":`} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if err := Decode(httptest.NewRecorder(), r, &v); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("body %q: err = %v, want validation", body, err)
		}
	}

	big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	if err := Decode(httptest.NewRecorder(), r, &v); err == nil || apperr.PublicMessage(err) != "Request body too large" {
		t.Errorf("oversized body: err = %v", err)
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
		err    bool
	}{
		{"", 50, 0, false},
		{"?limit=10&offset=20", 10, 20, false},
		{"?limit=5000", 200, 0, false},
		{"?limit=0", 0, 0, true},
		{"?limit=abc", 0, 0, true},
		{"?offset=-1", 0, 0, true},
	}
	for _, tt := range tests {
		limit, offset, err := Page(httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil), 50, 200)
		if tt.err {
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("%q: err = %v, want validation", tt.query, err)
			}
			continue
		}
		if err != nil || limit != tt.limit || offset != tt.offset {
			t.Errorf("%q: Page = %d, %d, %v; want %d, %d", tt.query, limit, offset, err, tt.limit, tt.offset)
		}
	}
}
