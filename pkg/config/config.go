package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/weavy/weavy/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Google        GoogleConfig
	Observability ObservabilityConfig
	Plugins       PluginsConfig
	RateLimit     RateLimitConfig
	Maintenance   MaintenanceConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// BasePath is the path the application is mounted under, e.g. "/" or "/weavy/"
	BasePath string

	// AllowedOrigins lists origins permitted to call the API from the client widget
	AllowedOrigins []string

	// SecureCookies marks session and state cookies Secure
	SecureCookies bool
	SessionTTL    time.Duration

	// TrustProxyHeaders honours X-Forwarded-* from the fronting reverse proxy
	TrustProxyHeaders bool
}

// DatabaseConfig selects the SQL driver and connection string
type DatabaseConfig struct {
	Driver       string // postgres or sqlite3
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the optional Redis session store
type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL was configured
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// GoogleConfig holds the external sign-in settings. All three values must be
// present for the authentication gate to be active.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	Domain       string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// PluginsConfig points at the optional plugin defaults overrides file
type PluginsConfig struct {
	DefaultsFile string
}

// RateLimitConfig throttles the sign-in routes per client address
type RateLimitConfig struct {
	Enabled bool
	Rate    float64 // requests per second
	Burst   int
}

// MaintenanceConfig schedules the periodic cleanup of expired sessions,
// tokens and idle rate limiter entries. Schedule takes standard cron syntax
// or a descriptor such as "@hourly"; an empty schedule disables the job.
type MaintenanceConfig struct {
	Schedule string
}

// LoadConfig loads an optional .env file and then reads configuration from
// environment variables. Variables already set in the process win over .env.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         RedisConfig{URL: getEnv("WEAVY_REDIS_URL", "")},
		Google:        loadGoogleConfig(),
		Observability: loadObservabilityConfig(),
		Plugins:       PluginsConfig{DefaultsFile: getEnv("WEAVY_PLUGIN_DEFAULTS", "")},
		RateLimit:     loadRateLimitConfig(),
		Maintenance:   MaintenanceConfig{Schedule: getEnv("WEAVY_CLEANUP_SCHEDULE", "@hourly")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads the given files, or ./.env when none are given. A missing
// default .env is not an error; an explicitly named file must exist.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WEAVY_HOST", "0.0.0.0"),
		Port:            getEnv("WEAVY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WEAVY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WEAVY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WEAVY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WEAVY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("WEAVY_HEALTH_PORT", "9090"),
		BasePath:        getEnv("WEAVY_BASE_PATH", "/"),
		AllowedOrigins:  getEnvList("WEAVY_ALLOWED_ORIGINS"),
		SecureCookies:   getEnvBool("WEAVY_SECURE_COOKIES", true),
		SessionTTL:      getEnvDuration("WEAVY_SESSION_TTL", 24*time.Hour),

		TrustProxyHeaders: getEnvBool("WEAVY_TRUST_PROXY_HEADERS", false),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:       getEnv("WEAVY_DB_DRIVER", "sqlite3"),
		DSN:          getEnv("WEAVY_DB_DSN", "file:weavy.db?_foreign_keys=on"),
		MaxOpenConns: getEnvInt("WEAVY_DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getEnvInt("WEAVY_DB_MAX_IDLE_CONNS", 5),
	}
}

func loadGoogleConfig() GoogleConfig {
	return GoogleConfig{
		ClientID:     getEnv("WEAVY_GOOGLE_CLIENT_ID", ""),
		ClientSecret: getEnv("WEAVY_GOOGLE_CLIENT_SECRET", ""),
		Domain:       getEnv("WEAVY_GOOGLE_DOMAIN", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("WEAVY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("WEAVY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("WEAVY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("WEAVY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("WEAVY_OTEL_SERVICE_NAME", "weavy"),
		OTelServiceVersion: getEnv("WEAVY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("WEAVY_OTEL_INSECURE", true),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: getEnvBool("WEAVY_RATE_LIMIT_ENABLED", true),
		Rate:    getEnvFloat("WEAVY_RATE_LIMIT_RPS", 5),
		Burst:   getEnvInt("WEAVY_RATE_LIMIT_BURST", 10),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rate and burst must be positive when rate limiting is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
