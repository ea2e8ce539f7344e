// Package instrumentation provides OpenTelemetry metrics and tracing for
// the token engine. All components degrade to no-ops when no providers
// are configured, so embedding applications pay nothing unless they opt
// in by supplying their own MeterProvider or TracerProvider.
package instrumentation
