package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/models"
)

// IdentityKey is the echo.Context key holding *models.Identity.
const IdentityKey = "identity"

var errNoToken = errors.New("no bearer token")

// Authenticator turns a bearer token into the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// OptionalAuth attaches the identity when a valid token is present and lets
// guests through otherwise. A malformed or rejected token is still an error.
func OptionalAuth(a Authenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearer(c.Request())
			if errors.Is(err, errNoToken) {
				return next(c)
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			id, err := a.Authenticate(c.Request().Context(), token)
			if err != nil {
				log.Debug().Err(err).Str("path", c.Path()).Msg("token rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(IdentityKey, id)
			return next(c)
		}
	}
}

// RequireIdentity rejects guests. It runs after OptionalAuth.
func RequireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IdentityFrom(c).Authenticated() {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
		}
		return next(c)
	}
}

func bearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", errors.New("Authorization header must be in Bearer format")
	}
	return parts[1], nil
}

// IdentityFrom returns the authenticated caller, or nil for a guest.
func IdentityFrom(c echo.Context) *models.Identity {
	id, _ := c.Get(IdentityKey).(*models.Identity)
	return id
}
