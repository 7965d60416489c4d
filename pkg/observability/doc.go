// Package observability provides structured logging, Prometheus metrics,
// panic recovery, and graceful shutdown for the gateway.
//
// Logging uses stdlib slog with a JSON handler. Loggers are passed by handle
// into services (no package-level globals) so tests can capture output.
//
// Metrics are registered on an explicit *prometheus.Registry owned by the
// application root, exposed via promhttp on the health server.
package observability
