// Package security provides security features for the token engine including
// encryption at rest, secret hashing, rate limiting, audit logging, and
// secure header management.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type        string
	PrincipalID string
	ClientID    string
	IPAddress   string
	Details     map[string]any
	Timestamp   time.Time
}

// Audit event types emitted by the grant processor and token service.
const (
	EventTokenIssued    = "token_issued"
	EventTokenRefreshed = "token_refreshed"
	EventAuthFailure    = "auth_failure"
	EventScopeRejected  = "scope_rejected"
)

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"principal_id_hash", hashForLogging(event.PrincipalID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs when a token pair is issued
func (a *Auditor) LogTokenIssued(principalID, clientID, ipAddress, scope string) {
	a.LogEvent(Event{
		Type:        EventTokenIssued,
		PrincipalID: principalID,
		ClientID:    clientID,
		IPAddress:   ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenRefreshed logs when an access token is reissued from a refresh token
func (a *Auditor) LogTokenRefreshed(principalID, clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:        EventTokenRefreshed,
		PrincipalID: principalID,
		ClientID:    clientID,
		IPAddress:   ipAddress,
	})
}

// LogAuthFailure logs a failed client or resource owner authentication.
// The reason identifies the failing check for operators; it is never sent
// to the caller.
func (a *Auditor) LogAuthFailure(principalID, clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:        EventAuthFailure,
		PrincipalID: principalID,
		ClientID:    clientID,
		IPAddress:   ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogScopeRejected logs an all-or-nothing scope negotiation rejection
func (a *Auditor) LogScopeRejected(principalID, clientID, ipAddress, requestedScope string) {
	a.LogEvent(Event{
		Type:        EventScopeRejected,
		PrincipalID: principalID,
		ClientID:    clientID,
		IPAddress:   ipAddress,
		Details: map[string]any{
			"requested_scope": requestedScope,
		},
	})
}

// hashForLogging hashes an identifier for privacy-preserving log correlation.
// Returns the first 16 hex chars of the SHA-256, enough to correlate events
// without exposing the identifier.
func hashForLogging(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}
