// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for the API server.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("email", email).Info("user registered")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LoginsTotal.WithLabelValues("local", "success").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
// Traces are exported over OTLP/gRPC when enabled; metrics stay on the
// Prometheus endpoint.
package observability
