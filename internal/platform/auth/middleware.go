package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// SessionCookie is read when no Authorization header is present.
const SessionCookie = "session"

// MsgUnauthorized is the only message returned for a missing or bad session.
const MsgUnauthorized = "Unauthorized"

// Claims is the dashboard session token. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type SessionConfig struct {
	// Secret signs HS256 session tokens.
	Secret []byte
	Issuer string
}

// SessionMiddleware requires a valid HS256 session token, from a Bearer
// header or the session cookie, and exposes its subject as the user id.
func SessionMiddleware(cfg SessionConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	keyFunc := func(*jwt.Token) (interface{}, error) { return cfg.Secret, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, ok := sessionToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgUnauthorized).SetInternal(err)
			}

			setUser(c, claims.Subject)
			return next(c)
		}
	}
}

func sessionToken(c echo.Context) (string, bool) {
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func setUser(c echo.Context, userID string) {
	c.Set("user_id", userID)
	ctx := context.WithValue(c.Request().Context(), UserIDKey, userID)
	c.SetRequest(c.Request().WithContext(ctx))
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without a session run as "dev-user"; an X-User-ID header overrides it.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := c.Request().Header.Get("X-User-ID")
			if userID == "" {
				userID = "dev-user"
			}
			setUser(c, userID)
			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// UserID returns the authenticated user of an echo request.
func UserID(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok {
		return uid
	}
	return UserIDFromContext(c.Request().Context())
}
