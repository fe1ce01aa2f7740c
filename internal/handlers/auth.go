package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/repositories"
	"github.com/anonto42/career-hub/backend/internal/session"
)

const tokenTTL = 72 * time.Hour

// AuthHandler exchanges Firebase ID tokens for local JWTs.
type AuthHandler struct {
	verifier       middleware.IDTokenVerifier
	issuer         *middleware.JWTAuthenticator
	userRepository repositories.UserRepository
	sessions       *session.Registry
	log            zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. userRepo may be nil when roles
// do not live in PostgreSQL.
func NewAuthHandler(v middleware.IDTokenVerifier, issuer *middleware.JWTAuthenticator, userRepo repositories.UserRepository, sessions *session.Registry, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		verifier:       v,
		issuer:         issuer,
		userRepository: userRepo,
		sessions:       sessions,
		log:            log,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// FirebaseLogin verifies a Firebase ID token, records the user and issues a
// local JWT. Every login refetches the caller's role, so a demotion made
// while the server kept an old session takes effect on the next sign-in.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req FirebaseLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	token, err := h.verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}
	id := middleware.IdentityFromToken(token)

	if h.userRepository != nil {
		email, _ := token.Claims["email"].(string)
		user := &models.User{Name: id.DisplayName, Email: email, FirebaseUID: id.UID}
		if err := h.userRepository.UpsertUser(ctx, user); err != nil {
			h.log.Error().Err(err).Str("uid", id.UID).Msg("failed to record user")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Failed to record user")
		}
	}

	h.sessions.SignIn(id)

	localJWT, err := h.issuer.Issue(id, tokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": localJWT, "user": id})
}
