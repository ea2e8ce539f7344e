package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatewaylabs/authcore/storage"
)

// credentialJSON is the serialized form of a stored credential. Only hashed
// or encrypted secret material ever reaches this struct.
type credentialJSON struct {
	PrincipalID      string            `json:"principal_id"`
	Type             string            `json:"type"`
	SecretHash       string            `json:"secret_hash,omitempty"`
	SecretCiphertext string            `json:"secret_ciphertext,omitempty"`
	Scopes           []string          `json:"scopes,omitempty"`
	AllowsRefresh    bool              `json:"allows_refresh,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

func toCredentialJSON(c *storage.Credential) *credentialJSON {
	return &credentialJSON{
		PrincipalID:      c.PrincipalID,
		Type:             c.Type,
		SecretHash:       c.SecretHash,
		SecretCiphertext: c.SecretCiphertext,
		Scopes:           c.Scopes,
		AllowsRefresh:    c.AllowsRefresh,
		Properties:       c.Properties,
		CreatedAt:        c.CreatedAt,
	}
}

func fromCredentialJSON(j *credentialJSON) *storage.Credential {
	return &storage.Credential{
		PrincipalID:      j.PrincipalID,
		Type:             j.Type,
		SecretHash:       j.SecretHash,
		SecretCiphertext: j.SecretCiphertext,
		Scopes:           j.Scopes,
		AllowsRefresh:    j.AllowsRefresh,
		Properties:       j.Properties,
		CreatedAt:        j.CreatedAt,
	}
}

// SaveCredential stores a new credential. The write is conditional (SET NX)
// so concurrent inserts for the same (principal, type) pair cannot both win.
func (s *Store) SaveCredential(ctx context.Context, cred *storage.Credential) error {
	if cred == nil || cred.PrincipalID == "" || cred.Type == "" {
		return fmt.Errorf("invalid credential")
	}

	data, err := json.Marshal(toCredentialJSON(cred))
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	key := s.credentialKey(cred.PrincipalID, cred.Type)

	ok, err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Nx().Build(),
	).AsBool()
	if err != nil {
		if isNilError(err) {
			return fmt.Errorf("credential %s/%s: %w", cred.PrincipalID, cred.Type, storage.ErrDuplicateCredential)
		}
		return fmt.Errorf("failed to save credential: %w", err)
	}
	if !ok {
		return fmt.Errorf("credential %s/%s: %w", cred.PrincipalID, cred.Type, storage.ErrDuplicateCredential)
	}

	s.logger.Debug("Saved credential", "principal_id", cred.PrincipalID, "type", cred.Type)
	return nil
}

// GetCredential retrieves a credential by (principal id, type).
func (s *Store) GetCredential(ctx context.Context, principalID, credType string) (*storage.Credential, error) {
	key := s.credentialKey(principalID, credType)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var j credentialJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return fromCredentialJSON(&j), nil
}

// DeleteCredential removes a credential. Absent credentials are ignored.
func (s *Store) DeleteCredential(ctx context.Context, principalID, credType string) error {
	key := s.credentialKey(principalID, credType)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// SaveScopes registers scope names in the global scope set.
func (s *Store) SaveScopes(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("scope name cannot be empty")
		}
	}

	if err := s.client.Do(ctx,
		s.client.B().Sadd().Key(s.scopeSetKey()).Member(names...).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save scopes: %w", err)
	}
	return nil
}

// ScopeExists reports whether a scope name is registered.
func (s *Store) ScopeExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.Do(ctx,
		s.client.B().Sismember().Key(s.scopeSetKey()).Member(name).Build(),
	).AsBool()
	if err != nil {
		return false, fmt.Errorf("failed to check scope: %w", err)
	}
	return ok, nil
}

// ListScopes returns all registered scope names.
func (s *Store) ListScopes(ctx context.Context) ([]string, error) {
	names, err := s.client.Do(ctx,
		s.client.B().Smembers().Key(s.scopeSetKey()).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	return names, nil
}
