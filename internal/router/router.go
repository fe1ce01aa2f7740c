package router

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/career-hub/backend/internal/catalog"
	"github.com/anonto42/career-hub/backend/internal/content"
	"github.com/anonto42/career-hub/backend/internal/engagement"
	"github.com/anonto42/career-hub/backend/internal/handlers"
	"github.com/anonto42/career-hub/backend/internal/live"
	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/repositories"
	"github.com/anonto42/career-hub/backend/internal/session"
)

// Dependencies are the collaborators the routes need.
type Dependencies struct {
	Authenticator middleware.Authenticator

	// FirebaseAuth and TokenIssuer enable the Firebase to JWT exchange.
	FirebaseAuth middleware.IDTokenVerifier
	TokenIssuer  *middleware.JWTAuthenticator
	Users        repositories.UserRepository

	Sessions   *session.Registry
	Subscriber *live.Subscriber
	Aggregator *engagement.Aggregator
	Gateway    *content.Gateway
	Catalog    *catalog.Catalog
	Blogs      *live.View[models.Blog]
	Courses    *live.View[models.Course]

	BlogPageSize    int
	CoursePageSize  int
	CommentPageSize int

	Log zerolog.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Dependencies) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	if d.FirebaseAuth != nil && d.TokenIssuer != nil {
		authGroup := e.Group("/api/v1/auth")
		authHandler := handlers.NewAuthHandler(d.FirebaseAuth, d.TokenIssuer, d.Users, d.Sessions, d.Log)
		authHandler.RegisterAuthRoutes(authGroup)
		d.Log.Info().Msg("Auth routes configured.")
	}

	// --- Public reads; a valid token is attached when present ---
	public := e.Group("/api/v1", middleware.OptionalAuth(d.Authenticator, d.Log))

	// --- Protected routes ---
	api := public.Group("", middleware.RequireIdentity)

	serviceHandler := handlers.NewServiceHandler(d.Catalog)
	serviceHandler.RegisterServiceRoutes(public)

	commentHandler := handlers.NewCommentHandler(d.Aggregator, d.Subscriber, d.Catalog, d.CommentPageSize, d.Log)
	commentHandler.RegisterCommentRoutes(public)
	commentHandler.RegisterEngagementRoutes(api)
	d.Log.Info().Bool("atomic_counters", d.Aggregator.AtomicCounters()).Msg("Comment routes configured.")

	blogHandler := handlers.NewBlogHandler(d.Gateway, d.Blogs, d.Sessions, d.BlogPageSize)
	blogHandler.RegisterBlogRoutes(public)
	blogHandler.RegisterBlogAdminRoutes(api)

	courseHandler := handlers.NewCourseHandler(d.Gateway, d.Courses, d.Sessions, d.CoursePageSize, d.Log)
	courseHandler.RegisterCourseRoutes(public)
	courseHandler.RegisterCourseMemberRoutes(api)

	sessionHandler := handlers.NewSessionHandler(d.Sessions)
	sessionHandler.RegisterSessionRoutes(api)

	if d.Users != nil {
		userHandler := handlers.NewUserHandler(d.Users, d.Sessions, d.Log)
		userHandler.RegisterProfileRoutes(api)
	}

	d.Log.Info().Msg("All routes configured.")
}
