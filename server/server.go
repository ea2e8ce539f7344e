// Package server implements the grant processor: the state machine that
// authenticates the calling client, validates the grant, negotiates scopes,
// and drives token issuance. It holds no persistent state between requests;
// every invocation is an independent unit of work that may run concurrently
// with any other.
package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatewaylabs/authcore/credential"
	"github.com/gatewaylabs/authcore/directory"
	"github.com/gatewaylabs/authcore/security"
	"github.com/gatewaylabs/authcore/token"
)

// Errors returned by the grant processor. The HTTP layer maps these onto
// protocol error codes and status codes. Authentication failures are
// deliberately generic: the message never reveals which half of a credential
// pair was wrong.
var (
	// ErrInvalidRequest indicates a malformed request or missing required field
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAuthenticationFailed indicates bad client or resource owner credentials
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUnsupportedGrant indicates an unknown grant_type
	ErrUnsupportedGrant = errors.New("unsupported grant type")

	// ErrUnauthorizedScope indicates a requested scope outside the client's
	// authorized set
	ErrUnauthorizedScope = errors.New("unauthorized scope")
)

// GrantType enumerates the supported grant variants. Dispatch is a closed
// switch with an explicit default arm, so adding a grant type is a
// compile-time-visible change.
type GrantType string

const (
	// GrantTypePassword is the resource owner password credentials grant
	GrantTypePassword GrantType = "password"

	// GrantTypeRefreshToken exchanges a refresh token for a new access token
	GrantTypeRefreshToken GrantType = "refresh_token"
)

// ParseGrantType validates the grant_type request field.
func ParseGrantType(s string) (GrantType, error) {
	switch s {
	case "":
		return "", fmt.Errorf("%w: grant_type is required", ErrInvalidRequest)
	case string(GrantTypePassword):
		return GrantTypePassword, nil
	case string(GrantTypeRefreshToken):
		return GrantTypeRefreshToken, nil
	default:
		return "", fmt.Errorf("grant type %q: %w", s, ErrUnsupportedGrant)
	}
}

// Server is the grant processor. All durable state lives in the credential
// and token services; the processor itself is safe for concurrent use.
type Server struct {
	credentials *credential.Service
	tokens      *token.Service
	directory   directory.Directory

	Auditor *security.Auditor
	Logger  *slog.Logger
}

// New creates a grant processor.
func New(credentials *credential.Service, tokens *token.Service, dir directory.Directory, logger *slog.Logger) (*Server, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential service is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if dir == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		credentials: credentials,
		tokens:      tokens,
		directory:   dir,
		Logger:      logger,
	}, nil
}

// SetAuditor sets the security auditor.
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// Credentials exposes the credential service for provisioning flows.
func (s *Server) Credentials() *credential.Service {
	return s.credentials
}

// Tokens exposes the token service.
func (s *Server) Tokens() *token.Service {
	return s.tokens
}
