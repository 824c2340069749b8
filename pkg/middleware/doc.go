// Package middleware provides observability for ssrdata applications.
//
// This package includes:
//   - Prometheus metrics (Metrics)
//   - OpenTelemetry tracing (Tracing)
//
// Both are net/http middleware for the router and ssr.Observer
// implementations for page initialization, so every phase (initial props,
// drain, extract) is timed and traced without the ssr package depending on
// either library.
//
// # Prometheus Metrics
//
//	metrics := middleware.NewMetrics(middleware.WithNamespace("shop"))
//	r.Use(metrics.Middleware)
//	r.Handle("/metrics", metrics.Handler())
//
//	orch := &ssr.Orchestrator{Observer: metrics}
//
// Each Metrics owns its registry unless WithRegistry is given, so several
// apps (or tests) in one process never collide.
//
// # OpenTelemetry
//
//	tracing := middleware.NewTracing(middleware.WithIncludeUserID(true))
//	r.Use(tracing.Middleware)
//
//	orch := &ssr.Orchestrator{Observer: ssr.Observers(metrics, tracing)}
//
// The tracer comes from the global provider unless WithTracerProvider is
// given.
package middleware
