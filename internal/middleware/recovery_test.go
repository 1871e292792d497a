package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoverer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestID(Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("store handle is nil")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/register", nil)
	req.Header.Set(RequestIDHeader, "panic-req")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":false,"message":"Internal server error."}` {
		t.Errorf("body = %s", got)
	}
	if rec.Header().Get(RequestIDHeader) != "panic-req" {
		t.Error("request ID header should survive a panic")
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "store handle is nil") || !strings.Contains(logOutput, `"request_id":"panic-req"`) {
		t.Errorf("panic not logged with request id: %s", logOutput)
	}
}

func TestRecoverer_PassThrough(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}
