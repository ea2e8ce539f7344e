package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatewaylabs/authcore/instrumentation"
	"github.com/gatewaylabs/authcore/security"
	"github.com/gatewaylabs/authcore/server"
	"github.com/gatewaylabs/authcore/storage"
	"github.com/gatewaylabs/authcore/token"
)

// tokenTypeBearer is the token_type value reported on every success response
const tokenTypeBearer = "bearer"

// Handler exposes the grant processor over HTTP. It owns the mapping from
// transport (form bodies, Basic Authorization headers) to the processor's
// request type, and from processor errors to protocol error responses.
type Handler struct {
	server      *server.Server
	config      Config
	logger      *slog.Logger
	rateLimiter *security.RateLimiter
	tracer      trace.Tracer
	metrics     *instrumentation.Metrics
}

// NewHandler creates an HTTP handler around a grant processor.
func NewHandler(srv *server.Server, config Config) (*Handler, error) {
	if srv == nil {
		return nil, errors.New("server is required")
	}
	config.defaults()

	h := &Handler{
		server: srv,
		config: config,
		logger: config.Logger,
	}
	if config.RateLimitPerSecond > 0 {
		h.rateLimiter = security.NewRateLimiter(config.RateLimitPerSecond, config.RateLimitBurst, config.Logger)
	}
	if config.Instrumentation != nil {
		h.tracer = config.Instrumentation.Tracer("http")
		h.metrics = config.Instrumentation.Metrics()
	}
	return h, nil
}

// RegisterRoutes registers the token endpoint on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/oauth/token", h.ServeToken)
}

// Close releases handler resources.
func (h *Handler) Close() {
	if h.rateLimiter != nil {
		h.rateLimiter.Stop()
	}
}

// ServeToken handles POST requests to the token endpoint.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "authcore.http.token")
		defer span.End()
	}

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics(ctx, r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := security.GetClientIP(r, h.config.TrustProxy, h.config.TrustedProxyCount)

	if h.rateLimiter != nil && !h.rateLimiter.Allow(clientIP) {
		h.logger.Warn("Token endpoint rate limit exceeded", "ip", clientIP)
		h.metrics.RecordRateLimitExceeded(ctx)
		h.recordHTTPMetrics(ctx, r.Method, http.StatusTooManyRequests, startTime)
		h.writeError(w, ErrRateLimitExceeded("Rate limit exceeded. Please try again later."))
		return
	}

	if err := r.ParseForm(); err != nil {
		instrumentation.RecordError(span, err)
		h.recordHTTPMetrics(ctx, r.Method, http.StatusBadRequest, startTime)
		h.writeError(w, ErrInvalidRequest("Failed to parse request"))
		return
	}

	req := &server.TokenRequest{
		GrantType:        r.PostFormValue("grant_type"),
		FormClientID:     r.PostFormValue("client_id"),
		FormClientSecret: r.PostFormValue("client_secret"),
		Username:         r.PostFormValue("username"),
		Password:         r.PostFormValue("password"),
		Scope:            r.PostFormValue("scope"),
		RefreshToken:     r.PostFormValue("refresh_token"),
		ClientIP:         clientIP,
	}
	if id, secret, ok := r.BasicAuth(); ok {
		req.BasicClientID = id
		req.BasicClientSecret = secret
		req.HasBasicAuth = true
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrGrantType, req.GrantType))

	result, err := h.server.ProcessToken(ctx, req)
	if err != nil {
		protoErr := h.mapError(err)
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrErrorCode, protoErr.Code))
		h.recordGrant(ctx, req.GrantType, instrumentation.OutcomeFailure)
		h.recordHTTPMetrics(ctx, r.Method, protoErr.Status, startTime)
		h.writeError(w, protoErr)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordGrant(ctx, req.GrantType, instrumentation.OutcomeSuccess)
	h.metrics.RecordTokenIssued(ctx, string(storage.TokenKindAccess))
	if result.RefreshToken != "" {
		h.metrics.RecordTokenIssued(ctx, string(storage.TokenKindRefresh))
	}
	h.recordHTTPMetrics(ctx, r.Method, http.StatusOK, startTime)
	h.writeTokenResponse(w, result)
}

// mapError translates processor and service errors into protocol errors.
// Descriptions stay generic; internals are logged, never returned.
func (h *Handler) mapError(err error) *Error {
	var protoErr *Error
	if errors.As(err, &protoErr) {
		return protoErr
	}

	switch {
	case errors.Is(err, server.ErrInvalidRequest):
		return ErrInvalidRequest(err.Error())
	case errors.Is(err, server.ErrUnsupportedGrant):
		return ErrUnsupportedGrantType(err.Error())
	case errors.Is(err, server.ErrAuthenticationFailed):
		return ErrInvalidClient("Client authentication failed")
	case errors.Is(err, server.ErrUnauthorizedScope):
		return ErrInvalidScope("Requested scope is not authorized for this client")
	case errors.Is(err, token.ErrInvalid):
		return ErrInvalidGrant("Invalid or expired token")
	case errors.Is(err, token.ErrExpired):
		return ErrInvalidGrant("Invalid or expired token")
	default:
		h.logger.Error("Token request failed", "error", err)
		return ErrServerError("An internal error occurred")
	}
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, result *server.GrantResult) {
	security.SetSecurityHeaders(w, h.config.Issuer)
	w.Header().Set("Content-Type", "application/json")

	resp := TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode token response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, protoErr *Error) {
	security.SetSecurityHeaders(w, h.config.Issuer)

	if protoErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(protoErr.Status)

	resp := ErrorResponse{
		Error:            protoErr.Code,
		ErrorDescription: protoErr.Description,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

func (h *Handler) recordHTTPMetrics(ctx context.Context, method string, status int, startTime time.Time) {
	h.metrics.RecordHTTPRequest(ctx, "token", method, status,
		float64(time.Since(startTime).Milliseconds()))
}

func (h *Handler) recordGrant(ctx context.Context, grantType, outcome string) {
	h.metrics.RecordGrant(ctx, grantType, outcome)
}
