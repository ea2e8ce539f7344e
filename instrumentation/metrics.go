package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for the token engine.
type Metrics struct {
	// HTTP layer
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Grant processing
	GrantsProcessed metric.Int64Counter
	TokensIssued    metric.Int64Counter

	// Security
	RateLimitExceeded metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")

	var err error
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"authcore.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"authcore.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.GrantsProcessed, err = serverMeter.Int64Counter(
		"authcore.grants.processed",
		metric.WithDescription("Number of grant requests processed, by grant type and outcome"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grants.processed counter: %w", err)
	}

	m.TokensIssued, err = serverMeter.Int64Counter(
		"authcore.tokens.issued",
		metric.WithDescription("Number of tokens issued, by kind"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.issued counter: %w", err)
	}

	m.RateLimitExceeded, err = serverMeter.Int64Counter(
		"authcore.ratelimit.exceeded",
		metric.WithDescription("Number of requests rejected by rate limiting"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.exceeded counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric (nil-safe)
func (m *Metrics) RecordHTTPRequest(ctx context.Context, endpoint, method string, status int, durationMs float64) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.String(AttrHTTPMethod, method),
		attribute.Int(AttrHTTPStatusCode, status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, durationMs, attrs)
}

// RecordGrant records a processed grant (nil-safe)
func (m *Metrics) RecordGrant(ctx context.Context, grantType, outcome string) {
	if m == nil {
		return
	}

	m.GrantsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrOutcome, outcome),
	))
}

// RecordTokenIssued counts an issued token by kind (nil-safe)
func (m *Metrics) RecordTokenIssued(ctx context.Context, kind string) {
	if m == nil {
		return
	}

	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTokenKind, kind),
	))
}

// RecordRateLimitExceeded counts a rate-limited request (nil-safe)
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context) {
	if m == nil {
		return
	}

	m.RateLimitExceeded.Add(ctx, 1)
}
