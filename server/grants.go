package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatewaylabs/authcore/credential"
	"github.com/gatewaylabs/authcore/storage"
)

// TokenRequest is a normalized token-endpoint request. The HTTP layer decodes
// the form body and the Authorization header into this struct; the processor
// never touches the transport.
type TokenRequest struct {
	GrantType string

	// Client credentials decoded from a Basic Authorization header
	BasicClientID     string
	BasicClientSecret string
	HasBasicAuth      bool

	// Client credentials carried in the request body
	FormClientID     string
	FormClientSecret string

	// Password grant fields
	Username string
	Password string

	// Scope is the space-separated requested scope string, empty for an
	// unscoped request
	Scope string

	// Refresh grant field: the wire value "id|secret"
	RefreshToken string

	// ClientIP is used for audit logging only
	ClientIP string
}

// GrantResult is the successful outcome of a processed grant.
type GrantResult struct {
	// AccessToken is the wire value "id|secret"
	AccessToken string

	// RefreshToken is the wire value of the accompanying refresh token,
	// empty when none was issued
	RefreshToken string

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int64

	// Scope is the space-joined granted scope set, empty for an unscoped token
	Scope string
}

// ProcessToken runs a token request through the grant pipeline: client
// authentication, grant-specific validation, scope negotiation, and issuance.
// Any failure terminates the request; there is no internal retry of a failed
// grant.
func (s *Server) ProcessToken(ctx context.Context, req *TokenRequest) (*GrantResult, error) {
	grantType, err := ParseGrantType(req.GrantType)
	if err != nil {
		return nil, err
	}

	clientID, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	switch grantType {
	case GrantTypePassword:
		return s.passwordGrant(ctx, req, clientID)
	case GrantTypeRefreshToken:
		return s.refreshGrant(ctx, req, clientID)
	default:
		// ParseGrantType already rejected unknown values
		return nil, fmt.Errorf("grant type %q: %w", grantType, ErrUnsupportedGrant)
	}
}

// authenticateClient verifies the calling client against its oauth2-typed
// credential. Credentials arrive either in a Basic Authorization header or as
// body fields; exactly one of the two must be present.
func (s *Server) authenticateClient(ctx context.Context, req *TokenRequest) (string, error) {
	hasForm := req.FormClientID != "" || req.FormClientSecret != ""

	if req.HasBasicAuth && hasForm {
		return "", fmt.Errorf("%w: client credentials supplied in both header and body", ErrInvalidRequest)
	}
	if !req.HasBasicAuth && !hasForm {
		return "", fmt.Errorf("%w: client credentials are required", ErrInvalidRequest)
	}

	clientID, clientSecret := req.FormClientID, req.FormClientSecret
	if req.HasBasicAuth {
		clientID, clientSecret = req.BasicClientID, req.BasicClientSecret
	}

	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("%w: client credentials are required", ErrInvalidRequest)
	}

	ok, err := s.credentials.VerifySecret(ctx, clientID, credential.TypeOAuth2, clientSecret)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.auditAuthFailure("", clientID, req.ClientIP, "unknown_client")
			return "", ErrAuthenticationFailed
		}
		return "", fmt.Errorf("failed to verify client secret: %w", err)
	}
	if !ok {
		s.auditAuthFailure("", clientID, req.ClientIP, "bad_client_secret")
		return "", ErrAuthenticationFailed
	}

	return clientID, nil
}

// passwordGrant validates the resource owner's password, negotiates the
// requested scopes against the client's authorized set, and issues a token
// pair.
func (s *Server) passwordGrant(ctx context.Context, req *TokenRequest, clientID string) (*GrantResult, error) {
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}

	principal, err := s.directory.FindByUsername(ctx, req.Username)
	if err != nil {
		s.auditAuthFailure("", clientID, req.ClientIP, "unknown_user")
		return nil, ErrAuthenticationFailed
	}

	ok, err := s.credentials.VerifySecret(ctx, principal.ID, credential.TypeBasicAuth, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.auditAuthFailure(principal.ID, clientID, req.ClientIP, "no_user_credential")
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("failed to verify user password: %w", err)
	}
	if !ok {
		s.auditAuthFailure(principal.ID, clientID, req.ClientIP, "bad_user_password")
		return nil, ErrAuthenticationFailed
	}

	// The client's credential, not the user's, bounds what may be requested.
	clientCred, err := s.credentials.Get(ctx, clientID, credential.TypeOAuth2)
	if err != nil {
		return nil, fmt.Errorf("failed to load client credential: %w", err)
	}

	granted, err := Negotiate(strings.Fields(req.Scope), clientCred.Scopes)
	if err != nil {
		if s.Auditor != nil {
			s.Auditor.LogScopeRejected(principal.ID, clientID, req.ClientIP, req.Scope)
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, principal.ID, clientID, granted, clientCred.AllowsRefresh)
	if err != nil {
		return nil, err
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(principal.ID, clientID, req.ClientIP, strings.Join(granted, " "))
	}
	s.Logger.Info("Issued token pair",
		"client_id", clientID,
		"grant_type", GrantTypePassword,
		"refresh_issued", pair.Refresh != nil)

	result := &GrantResult{
		AccessToken: pair.Access.Wire(),
		ExpiresIn:   int64(s.tokens.AccessTokenTTL() / time.Second),
		Scope:       strings.Join(granted, " "),
	}
	if pair.Refresh != nil {
		result.RefreshToken = pair.Refresh.Wire()
	}
	return result, nil
}

// refreshGrant exchanges a valid refresh token for a new access token. The
// new token carries the scope set stored on the refresh token; nothing is
// re-negotiated.
func (s *Server) refreshGrant(ctx context.Context, req *TokenRequest, clientID string) (*GrantResult, error) {
	if req.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	access, err := s.tokens.RedeemRefresh(ctx, req.RefreshToken, clientID)
	if err != nil {
		return nil, err
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenRefreshed(access.Token.PrincipalID, clientID, req.ClientIP)
	}
	s.Logger.Info("Redeemed refresh token", "client_id", clientID)

	return &GrantResult{
		AccessToken: access.Wire(),
		ExpiresIn:   int64(s.tokens.AccessTokenTTL() / time.Second),
		Scope:       strings.Join(access.Token.Scopes, " "),
	}, nil
}

func (s *Server) auditAuthFailure(principalID, clientID, ip, reason string) {
	if s.Auditor != nil {
		s.Auditor.LogAuthFailure(principalID, clientID, ip, reason)
	}
}
