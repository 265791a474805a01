package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavy/weavy/pkg/observability"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("WEAVY_TEST_VAR", "custom")
	assert.Equal(t, "custom", getEnv("WEAVY_TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("WEAVY_TEST_VAR_NOT_SET", "default"))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"yes", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("WEAVY_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, getEnvBool("WEAVY_TEST_BOOL", !tt.want))
		})
	}

	assert.True(t, getEnvBool("WEAVY_TEST_BOOL_NOT_SET", true))
}

func TestGetEnvNumbers(t *testing.T) {
	t.Setenv("WEAVY_TEST_INT", "42")
	t.Setenv("WEAVY_TEST_BAD_INT", "forty")
	t.Setenv("WEAVY_TEST_FLOAT", "2.5")
	t.Setenv("WEAVY_TEST_DURATION", "90s")

	assert.Equal(t, 42, getEnvInt("WEAVY_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("WEAVY_TEST_BAD_INT", 1))
	assert.Equal(t, 2.5, getEnvFloat("WEAVY_TEST_FLOAT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("WEAVY_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("WEAVY_TEST_DURATION_NOT_SET", time.Second))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("WEAVY_TEST_LIST", " https://a.example, ,https://b.example ")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("WEAVY_TEST_LIST"))
	assert.Empty(t, getEnvList("WEAVY_TEST_LIST_NOT_SET"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "/", cfg.Server.BasePath)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionTTL)
	assert.False(t, cfg.Server.TrustProxyHeaders, "forwarded headers are ignored unless enabled")
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "weavy", cfg.Observability.OTelServiceName)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Empty(t, cfg.Google.ClientID)
	assert.Equal(t, "@hourly", cfg.Maintenance.Schedule)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WEAVY_PORT", "5000")
	t.Setenv("WEAVY_DB_DRIVER", "postgres")
	t.Setenv("WEAVY_DB_DSN", "postgres://weavy@localhost/weavy?sslmode=disable")
	t.Setenv("WEAVY_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("WEAVY_GOOGLE_CLIENT_ID", "client")
	t.Setenv("WEAVY_GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("WEAVY_GOOGLE_DOMAIN", "acme.com")
	t.Setenv("WEAVY_LOG_LEVEL", "debug")
	t.Setenv("WEAVY_TRUST_PROXY_HEADERS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, GoogleConfig{ClientID: "client", ClientSecret: "secret", Domain: "acme.com"}, cfg.Google)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weavy.env")
	require.NoError(t, os.WriteFile(path, []byte("WEAVY_GOOGLE_DOMAIN=dotenv.example\nWEAVY_PORT=7000\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("WEAVY_GOOGLE_DOMAIN")
		os.Unsetenv("WEAVY_PORT")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv.example", cfg.Google.Domain)
	assert.Equal(t, "7000", cfg.Server.Port)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080", HealthPort: "9090"},
			Database:  DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"},
			RateLimit: RateLimitConfig{Enabled: true, Rate: 1, Burst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "missing health port", mutate: func(c *Config) { c.Server.HealthPort = "" }, wantErr: "health port is required"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "invalid database driver"},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: "database DSN is required"},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: "must be positive"},
		{name: "rate limit off ignores values", mutate: func(c *Config) { c.RateLimit = RateLimitConfig{} }},
		{
			name:    "otel without endpoint",
			mutate:  func(c *Config) { c.Observability.OTelEnabled = true; c.Observability.OTelServiceName = "weavy" },
			wantErr: "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
