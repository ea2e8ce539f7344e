package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by storage backends. Callers should test with
// errors.Is since backends wrap these with operation context.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateCredential indicates a credential for the same
	// (principal, type) pair already exists
	ErrDuplicateCredential = errors.New("credential already exists")

	// ErrTokenIDTaken indicates a token insert collided with an existing id.
	// The token service treats this as retryable and regenerates the id.
	ErrTokenIDTaken = errors.New("token id already exists")
)

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	// TokenKindAccess is a short-lived bearer token
	TokenKindAccess TokenKind = "access"

	// TokenKindRefresh is a long-lived token entitled to mint new access tokens
	TokenKindRefresh TokenKind = "refresh"
)

// Credential holds the stored secret material for a (principal, type) pair.
// Exactly one of SecretHash and SecretCiphertext is set, depending on whether
// the credential type stores its secret as a one-way hash or reversibly
// encrypted. The plaintext secret is never persisted.
type Credential struct {
	PrincipalID string
	Type        string

	// SecretHash is the bcrypt hash of the secret (password-style credentials)
	SecretHash string

	// SecretCiphertext is the AES-GCM ciphertext of the secret
	// (client-style credentials that must be compared via decrypt)
	SecretCiphertext string

	// Scopes is the authorized-scope set attached to this credential
	Scopes []string

	// AllowsRefresh marks a client credential as entitled to refresh tokens
	AllowsRefresh bool

	// Properties holds additional schema-defined properties
	Properties map[string]string

	CreatedAt time.Time
}

// Token is a persisted access or refresh token record. The verifier half is
// stored encrypted in SecretCiphertext; the plaintext secret exists only in
// the value returned at issuance time.
type Token struct {
	ID               string
	SecretCiphertext string
	Kind             TokenKind
	PrincipalID      string
	ClientID         string
	Scopes           []string
	ExpiresAt        time.Time
	CreatedAt        time.Time

	// AccessTokenID links a refresh token to the access token it was
	// issued alongside. Lookup relation only, not ownership.
	AccessTokenID string
}

// Clone returns a deep copy of the token. Stores return copies so callers
// cannot mutate persisted state.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	if t.Scopes != nil {
		c.Scopes = append([]string(nil), t.Scopes...)
	}
	return &c
}

// Clone returns a deep copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Scopes != nil {
		cp.Scopes = append([]string(nil), c.Scopes...)
	}
	if c.Properties != nil {
		cp.Properties = make(map[string]string, len(c.Properties))
		for k, v := range c.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

// CredentialStore persists credentials keyed by (principal id, credential type).
// All methods accept context.Context for tracing and cancellation.
type CredentialStore interface {
	// SaveCredential stores a new credential.
	// Returns ErrDuplicateCredential if one already exists for the pair.
	SaveCredential(ctx context.Context, cred *Credential) error

	// GetCredential retrieves a credential. Returns ErrNotFound if absent.
	GetCredential(ctx context.Context, principalID, credType string) (*Credential, error)

	// DeleteCredential removes a credential. Removing an absent credential
	// is not an error.
	DeleteCredential(ctx context.Context, principalID, credType string) error
}

// TokenStore persists token records keyed by token id.
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// SaveToken stores a new token record with the given time-to-live.
	// The write must be conditional on the id being unused and return
	// ErrTokenIDTaken on collision; the store offers per-key atomicity only.
	SaveToken(ctx context.Context, token *Token, ttl time.Duration) error

	// GetToken retrieves a token by id. Returns ErrNotFound if absent.
	// Expiry is enforced by the token service, not the store, although
	// backends may evict expired records eagerly.
	GetToken(ctx context.Context, id string) (*Token, error)

	// DeleteToken removes a token record.
	DeleteToken(ctx context.Context, id string) error
}

// ScopeStore persists the registry of valid scope names.
// All methods accept context.Context for tracing and cancellation.
type ScopeStore interface {
	// SaveScopes registers scope names. Already-registered names are ignored.
	SaveScopes(ctx context.Context, names []string) error

	// ScopeExists reports whether a scope name is registered.
	ScopeExists(ctx context.Context, name string) (bool, error)

	// ListScopes returns all registered scope names.
	ListScopes(ctx context.Context) ([]string, error)
}

// Store combines all storage interfaces. Backends implement the full set so a
// single connection serves the credential, token, and scope stores.
type Store interface {
	CredentialStore
	TokenStore
	ScopeStore
}
