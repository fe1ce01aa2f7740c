package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/session"
)

// SessionHandler exposes the caller's session role.
type SessionHandler struct {
	sessions *session.Registry
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *session.Registry) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterSessionRoutes registers session routes; g must require auth.
func (h *SessionHandler) RegisterSessionRoutes(g *echo.Group) {
	g.GET("/session/role", h.GetRole)
	g.DELETE("/session", h.SignOut)
}

type roleResponse struct {
	models.SessionRole
	Privileged bool `json:"privileged"`
}

// GetRole waits for the role to resolve unless ?wait=false is given.
func (h *SessionHandler) GetRole(c echo.Context) error {
	cache := h.sessions.Session(middleware.IdentityFrom(c))

	role := cache.Current()
	if c.QueryParam("wait") != "false" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), session.DefaultFetchTimeout)
		role, _ = cache.Wait(ctx)
		cancel()
	}

	return c.JSON(http.StatusOK, roleResponse{SessionRole: role, Privileged: role.Privileged()})
}

// SignOut drops the caller's session role.
func (h *SessionHandler) SignOut(c echo.Context) error {
	h.sessions.Drop(middleware.IdentityFrom(c).UID)
	return c.NoContent(http.StatusNoContent)
}

// roleOf returns the caller's session, or nil for a guest.
func roleOf(sessions *session.Registry, id *models.Identity) session.RoleReader {
	if !id.Authenticated() {
		return nil
	}
	return sessions.Session(id)
}
