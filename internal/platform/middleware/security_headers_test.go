package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		hsts     bool
		wantHSTS string
	}{
		{"production", true, "max-age=31536000; includeSubDomains"},
		{"development", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/modmed/patients", nil), rec)

			h := SecurityHeaders(tt.hsts)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})
			if err := h(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := rec.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("HSTS: got %q, want %q", got, tt.wantHSTS)
			}
			if got := rec.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control: got %q", got)
			}
			if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("X-Content-Type-Options: got %q", got)
			}
			if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
				t.Errorf("X-Frame-Options: got %q", got)
			}
		})
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/athena/patients", nil), rec)

	want := errors.New("boom")
	err := SecurityHeaders(true)(func(c echo.Context) error { return want })(c)
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected headers to be set before the handler runs")
	}
}
