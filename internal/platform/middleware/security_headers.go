package middleware

import (
	"github.com/labstack/echo/v4"
)

var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"X-XSS-Protection":        "0",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":         "no-referrer",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
	// Responses carry PHI.
	"Cache-Control": "no-store",
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets the response headers for a JSON API. HSTS is only
// sent when hsts is true, since development runs on plain http.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range baseSecurityHeaders {
				h.Set(k, v)
			}
			if hsts {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			return next(c)
		}
	}
}
