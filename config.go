package authcore

import (
	"log/slog"

	"github.com/gatewaylabs/authcore/instrumentation"
)

// Config holds HTTP-layer configuration for the token endpoint handler.
type Config struct {
	// Issuer is the external base URL of this service, used for security
	// headers. HSTS is only emitted for https issuers.
	Issuer string

	// RateLimitPerSecond bounds token-endpoint requests per client IP.
	// Zero disables rate limiting.
	RateLimitPerSecond int

	// RateLimitBurst is the burst size for the per-IP limiter. Defaults to
	// RateLimitPerSecond when zero.
	RateLimitBurst int

	// TrustProxy enables client IP extraction from X-Forwarded-For and
	// X-Real-IP headers. Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of the
	// service, used to pick the right X-Forwarded-For entry.
	TrustedProxyCount int

	// Logger receives handler logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation supplies metrics and tracing. Nil disables both.
	Instrumentation *instrumentation.Instrumentation
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = c.RateLimitPerSecond
	}
}
