package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used across spans and metrics.
const (
	AttrClientID       = "authcore.client_id"
	AttrGrantType      = "authcore.grant_type"
	AttrTokenKind      = "authcore.token_kind"
	AttrOutcome        = "authcore.outcome"
	AttrErrorCode      = "authcore.error_code"
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// Outcome values for grant processing metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RecordError records an error on the span and marks it as failed. Nil-safe.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanError marks the span as failed with a message. Nil-safe.
func SetSpanError(span trace.Span, message string) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Error, message)
}

// SetSpanSuccess marks the span as successful. Nil-safe.
func SetSpanSuccess(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SetSpanAttributes sets attributes on the span. Nil-safe.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
