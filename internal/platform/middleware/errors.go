package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// Messages shared by every vendor-backed handler.
const (
	MsgAuthFailed       = "Failed to authenticate with EHR vendor"
	MsgOriginRestricted = "the EHR vendor rejected the request; calls must originate from an allow-listed network"
)

// ErrorBody is the only error shape the API renders.
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorHandler renders every error as {"error": message}. Internal causes are
// logged, never returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				msg = m
			case error:
				msg = m.Error()
			default:
				msg = http.StatusText(code)
			}
			if he.Internal != nil && code >= http.StatusInternalServerError {
				rid, _ := c.Get("request_id").(string)
				logger.Error().Err(he.Internal).Str("request_id", rid).Int("status", code).Msg("request failed")
			}
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorBody{Error: msg})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

// VendorError maps a failed vendor call onto an HTTP error. action completes
// "Failed to ...", for example "create patient". subject names the resource
// in a vendor 404 ("Patient not found"); an empty subject keeps 404s as 500.
func VendorError(err error, action, subject string) *echo.HTTPError {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, ehr.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusBadGateway, MsgAuthFailed).SetInternal(err)
	case subject != "" && (errors.Is(err, ehr.ErrNotFound) || ehr.StatusCode(err) == http.StatusNotFound):
		return echo.NewHTTPError(http.StatusNotFound, subject+" not found").SetInternal(err)
	}

	msg := "Failed to " + action
	if ehr.IsOriginRestricted(err) {
		msg = fmt.Sprintf("%s: %s", msg, MsgOriginRestricted)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}
