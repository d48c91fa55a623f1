package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/auth"
)

// VendorClient resolves the session user's client from p. Failures are
// already mapped to HTTP errors.
func VendorClient(c echo.Context, p ehr.Provider) (ehr.Client, error) {
	client, err := p.ClientFor(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return nil, VendorError(err, "authenticate with EHR vendor", "")
	}
	return client, nil
}
