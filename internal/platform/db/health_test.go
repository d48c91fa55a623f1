package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"unreachable", errors.New("dial tcp 10.0.0.1:5432: connect: refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/db", nil), rec)

			if err := HealthHandler(fakePinger{err: tt.err})(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.status {
				t.Errorf("expected status %q, got %v", tt.status, body["status"])
			}
			if _, ok := body["error"]; ok {
				t.Error("driver error must not be rendered")
			}
			if _, ok := body["pool"]; ok {
				t.Error("expected no pool stats for a non-pool pinger")
			}
		})
	}
}
