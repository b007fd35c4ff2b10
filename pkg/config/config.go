package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
		BaseURL  string
	}

	// Backend is the companion REST API this service fronts
	Backend struct {
		URL                  string
		Timeout              time.Duration
		APIKey               string
		BreakerFailures      int
		BreakerRetryTimeout  time.Duration
		HealthCheckPath      string
		HealthCheckInterval  time.Duration
		AvatarCandidateCount int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Issuer string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
		File   string
	}

	// Store selects where wizard drafts live
	Store struct {
		Driver   string
		DraftTTL time.Duration
		// PurgeInterval is how often the postgres driver deletes expired drafts
		PurgeInterval time.Duration
		RedisURL      string
		Database      struct {
			Host     string
			Port     string
			User     string
			Password string
			Name     string
			SSLMode  string
			MaxConns int
		}
	}

	// Wizard behaviour
	Wizard struct {
		DemoFallback  bool
		RedirectAfter time.Duration
	}

	// Session controller behaviour
	Session struct {
		FallbackDelay   time.Duration
		HistoryPageSize int
		DemoFallback    bool
		IdleTTL         time.Duration
		SweepInterval   time.Duration
	}

	// Observability settings
	Observability struct {
		ServiceName    string
		TracingEnabled bool
		MetricsEnabled bool
	}

	// OpenAPI request validation
	OpenAPI struct {
		Validate bool
	}

	// Vault holds where secrets are read from. Env vars are used when disabled.
	Vault struct {
		Enabled   bool
		Address   string
		Token     string
		Namespace string
		Mount     string
		Path      string
		CacheTTL  time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9091")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	cfg.Backend.URL = getEnvString("BACKEND_URL", "http://localhost:8000")
	cfg.Backend.Timeout = getEnvDuration("BACKEND_TIMEOUT", 15*time.Second)
	cfg.Backend.APIKey = getEnvString("BACKEND_API_KEY", "")
	cfg.Backend.BreakerFailures = getEnvInt("BACKEND_BREAKER_FAILURES", 5)
	cfg.Backend.BreakerRetryTimeout = getEnvDuration("BACKEND_BREAKER_RETRY", 30*time.Second)
	cfg.Backend.HealthCheckPath = getEnvString("BACKEND_HEALTH_PATH", "/health")
	cfg.Backend.HealthCheckInterval = getEnvDuration("BACKEND_HEALTH_INTERVAL", 30*time.Second)
	cfg.Backend.AvatarCandidateCount = getEnvInt("AVATAR_CANDIDATES", 4)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.JWT.Issuer = getEnvString("JWT_ISSUER", "")

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")
	cfg.Logging.File = getEnvString("LOG_FILE", "")

	cfg.Store.Driver = getEnvString("STORE_DRIVER", "memory")
	cfg.Store.DraftTTL = getEnvDuration("DRAFT_TTL", 24*time.Hour)
	cfg.Store.PurgeInterval = getEnvDuration("DRAFT_PURGE_INTERVAL", 10*time.Minute)
	cfg.Store.RedisURL = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Store.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Store.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Store.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Store.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Store.Database.Name = getEnvString("DB_NAME", "companion")
	cfg.Store.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Store.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)

	cfg.Wizard.DemoFallback = getEnvBool("WIZARD_DEMO_FALLBACK", true)
	cfg.Wizard.RedirectAfter = getEnvDuration("WIZARD_REDIRECT_AFTER", 2500*time.Millisecond)

	cfg.Session.FallbackDelay = getEnvDuration("CHAT_FALLBACK_DELAY", 1500*time.Millisecond)
	cfg.Session.HistoryPageSize = getEnvInt("CHAT_HISTORY_PAGE_SIZE", 50)
	cfg.Session.DemoFallback = getEnvBool("SESSION_DEMO_FALLBACK", true)
	cfg.Session.IdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.Session.SweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute)

	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "companion-bff")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	cfg.OpenAPI.Validate = getEnvBool("OPENAPI_VALIDATION", true)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.Path = getEnvString("VAULT_SECRETS_PATH", "companion")
	cfg.Vault.CacheTTL = getEnvDuration("VAULT_CACHE_TTL", 5*time.Minute)

	return cfg
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
