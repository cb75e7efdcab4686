// Package middleware provides Sink wrappers that observe frame delivery:
// Prometheus metrics and OpenTelemetry tracing.
//
// Middlewares compose around any Sink:
//
//	sink := middleware.Metrics(
//	    middleware.OpenTelemetry(innerSink),
//	    middleware.WithNamespace("mocap"),
//	)
//
// Each wrapper delivers to the wrapped sink unchanged; frame ownership
// rules are unaffected.
package middleware
