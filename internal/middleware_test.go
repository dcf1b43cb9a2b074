package internal

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	return &buf
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		Name       string
		status     int
		body       string
		wantStatus string
		wantLevel  string
	}{
		{Name: "ok", status: http.StatusOK, body: "hello", wantStatus: "status=200", wantLevel: "level=INFO"},
		{Name: "implicit_ok", status: 0, body: "hello", wantStatus: "status=200", wantLevel: "level=INFO"},
		{Name: "server_error", status: http.StatusInternalServerError, wantStatus: "status=500", wantLevel: "level=ERROR"},
		{Name: "too_many_requests", status: http.StatusTooManyRequests, wantStatus: "status=429", wantLevel: "level=INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			buf := captureLogs(t)

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			})

			req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
			rec := httptest.NewRecorder()

			Middleware(next).ServeHTTP(rec, req)

			out := buf.String()
			assert.Contains(t, out, "msg=request")
			assert.Contains(t, out, "method=GET")
			assert.Contains(t, out, "path=/api/messages")
			assert.Contains(t, out, tt.wantStatus)
			assert.Contains(t, out, tt.wantLevel)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}
