package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/repositories"
	"github.com/anonto42/career-hub/backend/internal/session"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository repositories.UserRepository
	sessions       *session.Registry
	log            zerolog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, sessions *session.Registry, log zerolog.Logger) *UserHandler {
	return &UserHandler{userRepository: userRepo, sessions: sessions, log: log}
}

// RegisterProfileRoutes registers user profile routes; g must require auth.
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
}

type profileResponse struct {
	*models.User
	Session models.SessionRole `json:"session"`
}

// GetProfile returns the caller's stored account next to the role the
// session currently holds. The two may differ until the session refreshes.
func (h *UserHandler) GetProfile(c echo.Context) error {
	id := middleware.IdentityFrom(c)

	user, err := h.userRepository.GetUserByFirebaseUID(c.Request().Context(), id.UID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		h.log.Error().Err(err).Str("uid", id.UID).Msg("profile lookup failed")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage is unavailable, please try again")
	}

	return c.JSON(http.StatusOK, profileResponse{User: user, Session: h.sessions.Session(id).Current()})
}
