package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Store      StoreConfig
	JWT        JWTConfig
	Email      EmailConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	App        AppConfig
	Log        LogConfig
	Scheduler  SchedulerConfig
	Assignment AssignmentConfig
	Events     EventsConfig
	Metrics    MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host            string
	Port            string
	TimeoutRead     time.Duration
	TimeoutWrite    time.Duration
	TimeoutIdle     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool // apply pending migrations on startup
}

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string
}

// JWTConfig holds JWT-related configuration.
// Tokens are issued by the magic-link sign-in service with the same secret.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AppURL       string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
	Burst    int
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env     string
	Name    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled         bool
	ReclaimCron     string // e.g. "*/15 * * * *" (every 15 minutes)
	ReconcileCron   string // e.g. "0 3 * * *" (daily 3 AM)
	EnableReclaim   bool
	EnableReconcile bool
}

// AssignmentConfig holds the engine tunables
type AssignmentConfig struct {
	ReviewTarget     int           // reviews wanted per proposal
	PeerReviewTarget int           // peer reviews wanted per review
	RetryBudget      int           // reservation attempts per request
	ExpiryWindow     time.Duration // inactivity before a pending assignment is reclaimed
	BalanceCacheTTL  time.Duration // staleness window for reputation balances
	LeaderboardLimit int
}

// Event drivers
const (
	EventsDriverLog  = "log"
	EventsDriverNATS = "nats"
)

// EventsConfig controls outbound domain events
type EventsConfig struct {
	Driver        string
	NATSURL       string
	SubjectPrefix string
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "localhost"),
			Port:            getEnv("SERVER_PORT", "8080"),
			TimeoutRead:     getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite:    getDurationEnv("SERVER_TIMEOUT_WRITE", 15*time.Second),
			TimeoutIdle:     getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "review"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "proposal_review"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "proposal-review"),
		},
		Email: EmailConfig{
			Enabled:      getBoolEnv("EMAIL_ENABLED", false),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
			AppURL:       getEnv("APP_URL", "http://localhost:3000"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"Link"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
			Burst:    getIntEnv("RATE_LIMIT_BURST", 20),
		},
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Name:    getEnv("APP_NAME", "ProposalReview"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getBoolEnv("SCHEDULER_ENABLED", true),
			ReclaimCron:     getEnv("SCHEDULER_RECLAIM_CRON", "*/15 * * * *"),
			ReconcileCron:   getEnv("SCHEDULER_RECONCILE_CRON", "0 3 * * *"),
			EnableReclaim:   getBoolEnv("SCHEDULER_ENABLE_RECLAIM", true),
			EnableReconcile: getBoolEnv("SCHEDULER_ENABLE_RECONCILE", true),
		},
		Assignment: AssignmentConfig{
			ReviewTarget:     getIntEnv("ASSIGNMENT_REVIEW_TARGET", 3),
			PeerReviewTarget: getIntEnv("ASSIGNMENT_PEER_REVIEW_TARGET", 2),
			RetryBudget:      getIntEnv("ASSIGNMENT_RETRY_BUDGET", 3),
			ExpiryWindow:     getDurationEnv("ASSIGNMENT_EXPIRY_WINDOW", 14*24*time.Hour),
			BalanceCacheTTL:  getDurationEnv("REPUTATION_CACHE_TTL", 30*time.Second),
			LeaderboardLimit: getIntEnv("REPUTATION_LEADERBOARD_LIMIT", 20),
		},
		Events: EventsConfig{
			Driver:        strings.ToLower(getEnv("EVENTS_DRIVER", EventsDriverLog)),
			NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("EVENTS_SUBJECT_PREFIX", "review"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.Password == "" && c.App.Env == "production" && c.Store.Driver == StoreDriverPostgres {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Events.Driver {
	case EventsDriverLog, EventsDriverNATS:
	default:
		return fmt.Errorf("unsupported EVENTS_DRIVER %q", c.Events.Driver)
	}
	if c.Assignment.ReviewTarget < 1 {
		return fmt.Errorf("ASSIGNMENT_REVIEW_TARGET must be at least 1")
	}
	if c.Assignment.PeerReviewTarget < 0 {
		return fmt.Errorf("ASSIGNMENT_PEER_REVIEW_TARGET must not be negative")
	}
	if c.Assignment.RetryBudget < 1 {
		return fmt.Errorf("ASSIGNMENT_RETRY_BUDGET must be at least 1")
	}
	if c.Assignment.ExpiryWindow <= 0 {
		return fmt.Errorf("ASSIGNMENT_EXPIRY_WINDOW must be positive")
	}
	if c.Email.Enabled && c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED is set")
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
