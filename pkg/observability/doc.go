// Package observability provides structured logging, Prometheus metrics,
// health probes, and OpenTelemetry tracing for the weavy server.
//
// # Structured Logging
//
// Logging is JSON through logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("role_id", id).Info("role trashed")
//
// Request-scoped loggers pick up the request id and the authenticated user:
//
//	observability.FromContext(r.Context()).Warn("membership rejected")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(serveMux, registry)
//
// HTTP metrics are labelled by the mux route template rather than the raw path.
//
// # Health Checks
//
// /healthz is a liveness probe. /readyz pings the database and Redis; a Redis
// failure reports degraded, a database failure reports unhealthy with a 503.
//
// # Tracing
//
// InitOTel installs OTLP/gRPC trace and metric exporters when enabled.
// TracingMiddleware wraps routed requests in otelhttp server spans, and
// StartSpan opens child spans for service operations.
package observability
