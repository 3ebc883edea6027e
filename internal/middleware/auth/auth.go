// Package auth converts a request's credential into an identity.
//
// RequireAuth rejects requests without a valid token. OptionalAuth lets
// anonymous requests through untouched, but a present-and-bad token is
// still a hard 401: "nobody claimed to be logged in" and "someone claimed
// and failed" must stay distinguishable downstream.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/feedby/feedline/internal/tokens"
)

const identityKey = "identity"

type Identity struct {
	ID       uint
	Email    string
	Username string
}

// FromContext returns the identity attached by RequireAuth or OptionalAuth.
// ok is false for anonymous requests.
func FromContext(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// Attach stores an identity on the request context.
func Attach(c echo.Context, id Identity) {
	c.Set(identityKey, id)
}

func RequireAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := extractToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
			}
			if err := attachIdentity(c, raw, secret); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func OptionalAuth(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := extractToken(c)
			if !ok {
				return next(c)
			}
			if err := attachIdentity(c, raw, secret); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func attachIdentity(c echo.Context, raw string, secret []byte) error {
	claims, err := tokens.Parse(raw, secret)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	Attach(c, Identity{
		ID:       claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
	})
	return nil
}

// extractToken prefers the Authorization header; the accessToken cookie is
// the fallback used by server-rendered navigation.
func extractToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	cookie, err := c.Cookie("accessToken")
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
