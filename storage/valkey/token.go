package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatewaylabs/authcore/storage"
)

// tokenJSON is the serialized form of a stored token record. The verifier
// secret is already encrypted by the token service before it reaches the
// store, so this struct never carries plaintext secret material.
type tokenJSON struct {
	ID               string    `json:"id"`
	SecretCiphertext string    `json:"secret_ciphertext"`
	Kind             string    `json:"kind"`
	PrincipalID      string    `json:"principal_id"`
	ClientID         string    `json:"client_id"`
	Scopes           []string  `json:"scopes,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	AccessTokenID    string    `json:"access_token_id,omitempty"`
}

func toTokenJSON(t *storage.Token) *tokenJSON {
	return &tokenJSON{
		ID:               t.ID,
		SecretCiphertext: t.SecretCiphertext,
		Kind:             string(t.Kind),
		PrincipalID:      t.PrincipalID,
		ClientID:         t.ClientID,
		Scopes:           t.Scopes,
		ExpiresAt:        t.ExpiresAt,
		CreatedAt:        t.CreatedAt,
		AccessTokenID:    t.AccessTokenID,
	}
}

func fromTokenJSON(j *tokenJSON) *storage.Token {
	return &storage.Token{
		ID:               j.ID,
		SecretCiphertext: j.SecretCiphertext,
		Kind:             storage.TokenKind(j.Kind),
		PrincipalID:      j.PrincipalID,
		ClientID:         j.ClientID,
		Scopes:           j.Scopes,
		ExpiresAt:        j.ExpiresAt,
		CreatedAt:        j.CreatedAt,
		AccessTokenID:    j.AccessTokenID,
	}
}

// SaveToken stores a token record. The write is conditional (SET NX) so an id
// collision is reported as storage.ErrTokenIDTaken instead of overwriting.
func (s *Store) SaveToken(ctx context.Context, token *storage.Token, ttl time.Duration) error {
	if token == nil || token.ID == "" {
		return fmt.Errorf("invalid token")
	}

	data, err := json.Marshal(toTokenJSON(token))
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	key := s.tokenKey(token.ID)

	var cmd = s.client.B().Set().Key(key).Value(string(data)).Nx()
	var execErr error
	var stored bool
	if ttl > 0 {
		stored, execErr = s.client.Do(ctx, cmd.Ex(ttl).Build()).AsBool()
	} else {
		stored, execErr = s.client.Do(ctx, cmd.Build()).AsBool()
	}

	if execErr != nil {
		if isNilError(execErr) {
			return fmt.Errorf("token %s: %w", truncateID(token.ID), storage.ErrTokenIDTaken)
		}
		return fmt.Errorf("failed to save token: %w", execErr)
	}
	if !stored {
		return fmt.Errorf("token %s: %w", truncateID(token.ID), storage.ErrTokenIDTaken)
	}

	s.logger.Debug("Saved token", "token_id", truncateID(token.ID), "kind", token.Kind)
	return nil
}

// GetToken retrieves a token record by id. Expired records are evicted by the
// server via key TTL, so a missing key covers both absent and expired here;
// the token service still checks ExpiresAt for records within the clock skew
// window.
func (s *Store) GetToken(ctx context.Context, id string) (*storage.Token, error) {
	key := s.tokenKey(id)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var j tokenJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return fromTokenJSON(&j), nil
}

// DeleteToken removes a token record.
func (s *Store) DeleteToken(ctx context.Context, id string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.tokenKey(id)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
