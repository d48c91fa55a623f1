package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const panicStackSize = 8 << 10

// Recovery turns a handler panic into a generic 500; the panic value is only
// logged. http.ErrAbortHandler is re-raised so net/http can drop the
// connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				rid, _ := c.Get("request_id").(string)
				uid, _ := c.Get("user_id").(string)

				logger.Error().
					Str("request_id", rid).
					Str("user_id", uid).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
