// Package config provides application configuration management from environment variables.
//
// # Overview
//
// LoadConfig reads an optional .env file with godotenv and then the process
// environment. Variables already set in the environment take precedence.
//
// # Configuration Structure
//
// Server settings:
//
//	WEAVY_HOST="0.0.0.0"
//	WEAVY_PORT="8080"
//	WEAVY_HEALTH_PORT="9090"
//	WEAVY_BASE_PATH="/"
//	WEAVY_ALLOWED_ORIGINS="https://intranet.acme.com"
//	WEAVY_SESSION_TTL="24h"
//
// Database and sessions:
//
//	WEAVY_DB_DRIVER="postgres"   # postgres or sqlite3
//	WEAVY_DB_DSN="postgres://weavy@localhost/weavy?sslmode=disable"
//	WEAVY_REDIS_URL="redis://localhost:6379/0"   # optional session store
//
// Google sign-in (all three or the gate stays off):
//
//	WEAVY_GOOGLE_CLIENT_ID="..."
//	WEAVY_GOOGLE_CLIENT_SECRET="..."
//	WEAVY_GOOGLE_DOMAIN="acme.com"
//
// Observability:
//
//	WEAVY_LOG_LEVEL="info"
//	WEAVY_METRICS_ENABLED="true"
//	WEAVY_OTEL_ENABLED="false"
//	WEAVY_OTEL_ENDPOINT="localhost:4317"
//
// Plugins and rate limiting:
//
//	WEAVY_PLUGIN_DEFAULTS="/etc/weavy/plugins.yaml"
//	WEAVY_RATE_LIMIT_RPS="5"
//	WEAVY_RATE_LIMIT_BURST="10"
package config
