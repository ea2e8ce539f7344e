// Package token mints, persists, and verifies opaque bearer tokens.
//
// The externally visible token is the concatenation "id|secret". The id is
// the storage lookup key; the secret is the verifier half, persisted only as
// AES-GCM ciphertext. The plaintext secret exists solely in the Issued value
// returned at mint time so callers can build the wire representation; it is
// never held in any long-lived structure.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatewaylabs/authcore/security"
	"github.com/gatewaylabs/authcore/storage"
)

// WireSeparator joins the token id and secret in the external representation.
const WireSeparator = "|"

// maxIDAttempts bounds id regeneration after insert collisions. The id space
// makes collisions vanishingly rare; exhausting the retries indicates a
// storage fault rather than bad luck.
const maxIDAttempts = 3

// Errors returned by the token service. Wrapped with context; test with
// errors.Is.
var (
	// ErrInvalid indicates a malformed, unknown, tampered, or
	// wrong-client token
	ErrInvalid = errors.New("invalid token")

	// ErrExpired indicates the token exists but is past its expiry
	ErrExpired = errors.New("token expired")

	// ErrStorage indicates a persistence failure, including exhausted id
	// collision retries and partial pair writes
	ErrStorage = errors.New("token storage failure")
)

// Issued is a freshly minted token together with its plaintext secret. The
// secret is exposed only through this value, at issuance time.
type Issued struct {
	Token  *storage.Token
	Secret string
}

// Wire returns the external token representation "id|secret".
func (i *Issued) Wire() string {
	return i.Token.ID + WireSeparator + i.Secret
}

// Pair is the result of password-grant issuance: an access token and, when
// the client is entitled to refresh, an accompanying refresh token.
type Pair struct {
	Access  *Issued
	Refresh *Issued // nil when the client does not allow refresh
}

// Config holds token lifetime configuration.
type Config struct {
	// AccessTokenTTL is how long access tokens are valid.
	// Default: 1 hour.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long refresh tokens are valid.
	// Default: 14 days.
	RefreshTokenTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 14 * 24 * time.Hour
	}
}

// Service mints and verifies tokens. It is stateless across requests; all
// durable state lives in the token store.
type Service struct {
	store     storage.TokenStore
	encryptor *security.Encryptor
	config    Config
	logger    *slog.Logger

	// now is swappable for expiry tests
	now func() time.Time
}

// NewService creates a token service. The encryptor is required: token
// secrets are stored reversibly encrypted because verification must recover
// a comparable plaintext.
func NewService(store storage.TokenStore, encryptor *security.Encryptor, config Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()

	return &Service{
		store:     store,
		encryptor: encryptor,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Issue mints and persists a single token of the given kind. The returned
// Issued value carries the plaintext secret; the stored record carries only
// its ciphertext.
func (s *Service) Issue(ctx context.Context, principalID, clientID string, scopes []string, kind storage.TokenKind, ttl time.Duration) (*Issued, error) {
	return s.issue(ctx, principalID, clientID, scopes, kind, ttl, "")
}

func (s *Service) issue(ctx context.Context, principalID, clientID string, scopes []string, kind storage.TokenKind, ttl time.Duration, accessTokenID string) (*Issued, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	secret := security.GenerateSecret()
	ciphertext, err := s.encryptor.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt token secret: %w", err)
	}

	now := s.now()
	record := &storage.Token{
		SecretCiphertext: ciphertext,
		Kind:             kind,
		PrincipalID:      principalID,
		ClientID:         clientID,
		Scopes:           append([]string(nil), scopes...),
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
		AccessTokenID:    accessTokenID,
	}

	// Collision on insert is retryable: regenerate the id and try again a
	// bounded number of times. No global lock is involved.
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		record.ID = uuid.NewString()

		err := s.store.SaveToken(ctx, record, ttl)
		if err == nil {
			s.logger.Debug("Issued token",
				"token_id", truncateID(record.ID),
				"kind", kind,
				"client_id", clientID)
			return &Issued{Token: record.Clone(), Secret: secret}, nil
		}
		if !errors.Is(err, storage.ErrTokenIDTaken) {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		s.logger.Warn("Token id collision, regenerating", "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: token id collisions exhausted %d attempts", ErrStorage, maxIDAttempts)
}

// Get looks up a token by id and decrypts its stored secret so the caller can
// compare it against a presented secret. Returns storage.ErrNotFound if
// absent and ErrExpired if past its expiry.
func (s *Service) Get(ctx context.Context, id string) (*storage.Token, string, error) {
	record, err := s.store.GetToken(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if security.IsExpired(record.ExpiresAt) {
		return nil, "", fmt.Errorf("token %s: %w", truncateID(id), ErrExpired)
	}

	secret, err := s.encryptor.Decrypt(record.SecretCiphertext)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt token secret: %w", err)
	}

	return record, secret, nil
}

// Verify splits a wire token on the first separator, looks up the id half,
// and compares the secret half against the decrypted stored secret in
// constant time. On success it returns the full stored record.
func (s *Service) Verify(ctx context.Context, wire string) (*storage.Token, error) {
	id, presented, found := strings.Cut(wire, WireSeparator)
	if !found || id == "" || presented == "" {
		return nil, fmt.Errorf("%w: malformed wire token", ErrInvalid)
	}

	record, secret, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown token", ErrInvalid)
		}
		return nil, err
	}

	if !security.ConstantTimeEquals(secret, presented) {
		return nil, fmt.Errorf("token %s: %w", truncateID(id), ErrInvalid)
	}

	return record, nil
}

// IssuePair mints an access token and, when the client allows refresh, an
// accompanying refresh token. The refresh token stores the same scope set as
// the access token; scopes are not re-negotiated at redemption time.
//
// The two records are written as independent puts. If the refresh write
// fails after the access write succeeded, the access token remains valid and
// the error is reported as ErrStorage; there is no cross-key transaction to
// roll back with.
func (s *Service) IssuePair(ctx context.Context, principalID, clientID string, scopes []string, clientAllowsRefresh bool) (*Pair, error) {
	access, err := s.Issue(ctx, principalID, clientID, scopes, storage.TokenKindAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	pair := &Pair{Access: access}
	if !clientAllowsRefresh {
		return pair, nil
	}

	refresh, err := s.issue(ctx, principalID, clientID, scopes, storage.TokenKindRefresh, s.config.RefreshTokenTTL, access.Token.ID)
	if err != nil {
		return nil, fmt.Errorf("access token %s issued but refresh token write failed: %w",
			truncateID(access.Token.ID), err)
	}
	pair.Refresh = refresh

	return pair, nil
}

// RedeemRefresh verifies a refresh token's wire value and mints a new access
// token carrying the refresh token's scope set. The refresh token itself is
// reused rather than rotated. Fails with ErrInvalid if the token is unknown,
// tampered, not a refresh token, or bound to a different client.
func (s *Service) RedeemRefresh(ctx context.Context, wire, clientID string) (*Issued, error) {
	record, err := s.Verify(ctx, wire)
	if err != nil {
		return nil, err
	}

	if record.Kind != storage.TokenKindRefresh {
		return nil, fmt.Errorf("token %s is not a refresh token: %w", truncateID(record.ID), ErrInvalid)
	}
	if record.ClientID != clientID {
		return nil, fmt.Errorf("token %s: client mismatch: %w", truncateID(record.ID), ErrInvalid)
	}

	access, err := s.Issue(ctx, record.PrincipalID, record.ClientID, record.Scopes, storage.TokenKindAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Redeemed refresh token",
		"refresh_token_id", truncateID(record.ID),
		"access_token_id", truncateID(access.Token.ID))

	return access, nil
}

// AccessTokenTTL exposes the configured access token lifetime for response
// building.
func (s *Service) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

func truncateID(id string) string {
	const logLength = 8
	if len(id) <= logLength {
		return id
	}
	return id[:logLength]
}
