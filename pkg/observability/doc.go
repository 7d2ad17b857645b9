// Package observability provides structured logging, Prometheus metrics, health
// checks, and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("environment", "qa").Info("reference cache populated")
//
// Request-scoped logging picks up the request ID and environment name:
//
//	ctx = observability.WithRequestID(ctx, reqID)
//	observability.FromContext(ctx).Warn("upstream request failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordLookup("datastore", "hit")
//
// A nil *Metrics records nothing, so components take it as an optional option.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(redisClient, envs.Len(), version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// Readiness is unhealthy without configured environments and degraded when the
// optional Redis snapshot store is unreachable.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "pfcatalog",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
