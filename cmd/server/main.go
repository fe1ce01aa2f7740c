package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/anonto42/career-hub/backend/internal/catalog"
	"github.com/anonto42/career-hub/backend/internal/content"
	"github.com/anonto42/career-hub/backend/internal/engagement"
	"github.com/anonto42/career-hub/backend/internal/live"
	"github.com/anonto42/career-hub/backend/internal/middleware"
	"github.com/anonto42/career-hub/backend/internal/models"
	"github.com/anonto42/career-hub/backend/internal/repositories"
	"github.com/anonto42/career-hub/backend/internal/router"
	"github.com/anonto42/career-hub/backend/internal/session"
	"github.com/anonto42/career-hub/backend/internal/store"
	fsstore "github.com/anonto42/career-hub/backend/internal/store/firestore"
	"github.com/anonto42/career-hub/backend/internal/store/memory"
	mongostore "github.com/anonto42/career-hub/backend/internal/store/mongo"
	"github.com/anonto42/career-hub/backend/internal/validators"
	"github.com/anonto42/career-hub/backend/pkg/config"
	"github.com/anonto42/career-hub/backend/pkg/firebase"
	"github.com/anonto42/career-hub/backend/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	// Initialize Firebase
	var firebaseApp *firebase.App
	if cfg.NeedsFirebase() {
		firebaseApp, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
		if err != nil {
			return err
		}
		log.Info().Msg("Firebase app and auth client initialized successfully!")
	}

	docs, closeStore, err := openStore(ctx, cfg, db, firebaseApp)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info().Str("backend", cfg.StoreBackend).Msg("Document store ready.")

	var users repositories.UserRepository
	var roles session.RoleSource = session.NewStoreRoleSource(docs)
	if cfg.RoleSource == config.RoleSourcePostgres {
		if err := repositories.Migrate(db.Postgres); err != nil {
			return err
		}
		repo := repositories.NewPostgresUserRepository(db.Postgres)
		users, roles = repo, repo
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	subscriber := live.NewSubscriber(docs, log)

	blogs := live.Keep(ctx, subscriber,
		store.Query{Collection: models.BlogsCollection, OrderBy: "timestamp", Direction: store.Desc},
		models.DecodeBlog, nil)
	defer blogs.Close()

	courses := live.Keep(ctx, subscriber,
		store.Query{Collection: models.CoursesCollection},
		models.DecodeCourse, nil)
	defer courses.Close()

	sessions := session.NewRegistry(roles, cfg.SessionIdleTTL, log)

	deps := router.Dependencies{
		Users:           users,
		Sessions:        sessions,
		Subscriber:      subscriber,
		Aggregator:      engagement.New(docs, log, cfg.AtomicCounters),
		Gateway:         content.New(docs, log),
		Catalog:         cat,
		Blogs:           blogs,
		Courses:         courses,
		BlogPageSize:    cfg.BlogPageSize,
		CoursePageSize:  cfg.CoursePageSize,
		CommentPageSize: cfg.CommentPageSize,
		Log:             log,
	}

	issuer := middleware.NewJWTAuthenticator(cfg.Secret())
	switch cfg.AuthMode {
	case config.AuthFirebase:
		deps.Authenticator = middleware.NewFirebaseAuthenticator(firebaseApp.AuthClient)
	default:
		deps.Authenticator = issuer
		if firebaseApp != nil {
			deps.FirebaseAuth = firebaseApp.AuthClient
			deps.TokenIssuer = issuer
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, log)

	// Setup routes and dependencies
	router.SetupRoutes(e, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx, cfg.SessionSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, db *config.DB, app *firebase.App) (store.DocumentStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, err
		}
		st := fsstore.New(client)
		return st, func() { _ = st.Close() }, nil
	case config.BackendMongo:
		return mongostore.New(db.Mongo.Database(cfg.MongoDatabase)), func() {}, nil
	default:
		return memory.New(), func() {}, nil
	}
}
