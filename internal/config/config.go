// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends selectable through BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence
	Backend     string
	DatabaseURL string
	SQLitePath  string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	SupabaseBucket     string

	// Local blobs (postgres and sqlite backends)
	BlobDir       string
	PublicBaseURL string

	// JWT / Auth (postgres and sqlite backends)
	JWTSecret    string
	JWTAccessTTL time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience for reads
	MaxRetries     int
	InitialBackoff time.Duration

	// Remote sync
	SyncMaxRetries     int
	SyncMaxConcurrency int
	SyncTimeout        time.Duration

	// Session & cache
	SessionTimeout time.Duration
	TokenCacheTTL  time.Duration

	// Observability
	OTLPEndpoint string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("BACKEND", BackendSQLite)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "data/invoicing.db")

	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_ANON_KEY", "")
	v.SetDefault("SUPABASE_SERVICE_ROLE_KEY", "")
	v.SetDefault("SUPABASE_JWT_SECRET", "")
	v.SetDefault("SUPABASE_STORAGE_BUCKET", "logos")

	v.SetDefault("BLOB_DIR", "data/files")
	v.SetDefault("PUBLIC_BASE_URL", "")

	v.SetDefault("JWT_SECRET", "invoicing-dev-secret-change-me")
	v.SetDefault("JWT_ACCESS_TTL", 24*time.Hour)

	v.SetDefault("HTTP_TIMEOUT", 10*time.Second)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("INITIAL_BACKOFF", 100*time.Millisecond)

	v.SetDefault("SYNC_MAX_RETRIES", 0)
	v.SetDefault("SYNC_MAX_CONCURRENCY", 8)
	v.SetDefault("SYNC_TIMEOUT", 15*time.Second)

	v.SetDefault("SESSION_TIMEOUT", 5*time.Second)
	v.SetDefault("TOKEN_CACHE_TTL", 5*time.Minute)

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// Load reads configuration from environment variables with defaults.
// A .env file is expected to be loaded into the environment beforehand.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		Backend:     strings.ToLower(v.GetString("BACKEND")),
		DatabaseURL: v.GetString("DATABASE_URL"),
		SQLitePath:  v.GetString("SQLITE_PATH"),

		SupabaseURL:        strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
		SupabaseAnonKey:    v.GetString("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:  v.GetString("SUPABASE_JWT_SECRET"),
		SupabaseBucket:     v.GetString("SUPABASE_STORAGE_BUCKET"),

		BlobDir:       v.GetString("BLOB_DIR"),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),

		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTAccessTTL: v.GetDuration("JWT_ACCESS_TTL"),

		HTTPTimeout:    v.GetDuration("HTTP_TIMEOUT"),
		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),

		SyncMaxRetries:     v.GetInt("SYNC_MAX_RETRIES"),
		SyncMaxConcurrency: v.GetInt("SYNC_MAX_CONCURRENCY"),
		SyncTimeout:        v.GetDuration("SYNC_TIMEOUT"),

		SessionTimeout: v.GetDuration("SESSION_TIMEOUT"),
		TokenCacheTTL:  v.GetDuration("TOKEN_CACHE_TTL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("config: BACKEND=supabase requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
		if c.SupabaseAnonKey == "" {
			c.SupabaseAnonKey = c.SupabaseServiceKey
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: BACKEND=postgres requires DATABASE_URL")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: BACKEND=sqlite requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("config: unknown BACKEND %q (want supabase, postgres or sqlite)", c.Backend)
	}
	if c.SyncMaxConcurrency <= 0 {
		return fmt.Errorf("config: SYNC_MAX_CONCURRENCY must be positive")
	}
	return nil
}

// LocalAuth reports whether sessions are issued by the service itself.
func (c *Config) LocalAuth() bool {
	return c.Backend != BackendSupabase
}
