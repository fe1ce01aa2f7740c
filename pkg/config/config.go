package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
)

// Role sources.
const (
	RoleSourceStore    = "store"
	RoleSourcePostgres = "postgres"
)

// Auth modes.
const (
	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreBackend string
	RoleSource   string
	AuthMode     string

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	MongoURI                string
	MongoDatabase           string
	PostgresConnStr         string
	JWTSecret               string

	CatalogPath     string
	BlogPageSize    int
	CoursePageSize  int
	CommentPageSize int
	AtomicCounters  bool

	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
}

// Load reads .env when present, then the environment.
func Load() *Config {
	envLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		StoreBackend:            strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		RoleSource:              strings.ToLower(getEnv("ROLE_SOURCE", RoleSourceStore)),
		AuthMode:                strings.ToLower(getEnv("AUTH_MODE", AuthJWT)),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "careerhub"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		CatalogPath:             getEnv("CATALOG_PATH", "data/services.json"),
		BlogPageSize:            getEnvInt("BLOG_PAGE_SIZE", 5),
		CoursePageSize:          getEnvInt("COURSE_PAGE_SIZE", 6),
		CommentPageSize:         getEnvInt("COMMENT_PAGE_SIZE", 10),
		AtomicCounters:          getEnvBool("ATOMIC_COUNTERS", false),
		SessionIdleTTL:          getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval:    getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
	}
	if !envLoaded && cfg.Env == "development" {
		fmt.Fprintln(os.Stderr, "No .env file found, assuming environment variables are set.")
	}
	return cfg
}

// NeedsFirebase reports whether a Firebase app has to be initialized.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.AuthMode == AuthFirebase
}

// Validate checks that the chosen backends have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFirestore:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.RoleSource {
	case RoleSourceStore:
	case RoleSourcePostgres:
		if c.PostgresConnStr == "" {
			return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
		}
	default:
		return fmt.Errorf("unknown ROLE_SOURCE %q", c.RoleSource)
	}

	switch c.AuthMode {
	case AuthFirebase:
	case AuthJWT:
		if c.JWTSecret == "" && c.Env != "development" {
			return fmt.Errorf("JWT_SECRET environment variable not set")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.NeedsFirebase() && c.FirebaseCredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH environment variable not set")
	}
	return nil
}

// Secret returns the JWT signing secret, with a fixed fallback in
// development only.
func (c *Config) Secret() string {
	if c.JWTSecret == "" && c.Env == "development" {
		return "supersecretjwtkey"
	}
	return c.JWTSecret
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n < 1 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
