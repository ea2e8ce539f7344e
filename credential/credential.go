// Package credential manages per-principal secret material and the global
// scope registry. Secrets are transformed before storage: password-style
// secrets are bcrypt-hashed, client-style secrets are encrypted with the
// process-wide key. The plaintext secret is never persisted and never logged.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatewaylabs/authcore/security"
	"github.com/gatewaylabs/authcore/storage"
)

// ErrScopeNotRegistered indicates a credential payload referenced a scope
// name that has not been registered.
var ErrScopeNotRegistered = errors.New("scope not registered")

// ValidationError indicates a malformed credential payload. Property names
// the offending payload field.
type ValidationError struct {
	Property string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid credential payload: property %q %s", e.Property, e.Reason)
}

// Service owns credential storage and the scope registry.
//
// The credential type registry is read-only after construction and therefore
// safe for concurrent use without locking.
type Service struct {
	store      storage.CredentialStore
	scopeStore storage.ScopeStore
	encryptor  *security.Encryptor
	types      map[string]Definition
	logger     *slog.Logger
}

// NewService creates a credential service. If types is nil, the built-in
// definitions are used. The encryptor is required because client-style
// credential types store their secrets reversibly encrypted.
func NewService(
	store storage.CredentialStore,
	scopeStore storage.ScopeStore,
	encryptor *security.Encryptor,
	types map[string]Definition,
	logger *slog.Logger,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if scopeStore == nil {
		return nil, fmt.Errorf("scope store is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if types == nil {
		types = DefaultDefinitions()
	}
	registry := make(map[string]Definition, len(types))
	for name, def := range types {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("credential type %q: %w", name, err)
		}
		registry[name] = def
	}

	return &Service{
		store:      store,
		scopeStore: scopeStore,
		encryptor:  encryptor,
		types:      registry,
		logger:     logger,
	}, nil
}

// Insert validates the payload against the credential type definition,
// transforms the secret for storage, and persists the credential.
//
// When the payload omits the secret field and the type allows it, a random
// secret is generated and returned in plaintext exactly once, for out-of-band
// delivery; it is not retrievable afterwards. The returned string is empty
// when the caller supplied the secret.
func (s *Service) Insert(ctx context.Context, principalID, credType string, payload map[string]any) (*storage.Credential, string, error) {
	if principalID == "" {
		return nil, "", &ValidationError{Property: "principalId", Reason: "is required"}
	}

	def, ok := s.types[credType]
	if !ok {
		return nil, "", fmt.Errorf("unknown credential type %q", credType)
	}

	secret, generated, err := resolveSecret(def, payload)
	if err != nil {
		return nil, "", err
	}

	cred := &storage.Credential{
		PrincipalID: principalID,
		Type:        credType,
		CreatedAt:   time.Now(),
	}

	if err := s.applyProperties(ctx, def, payload, cred); err != nil {
		return nil, "", err
	}

	// The slow hash runs before any store round-trip and outside any lock.
	if def.EncryptSecret {
		ciphertext, err := s.encryptor.Encrypt(secret)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encrypt secret: %w", err)
		}
		cred.SecretCiphertext = ciphertext
	} else {
		hash, err := security.HashSecret(secret)
		if err != nil {
			return nil, "", err
		}
		cred.SecretHash = hash
	}

	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return nil, "", err
	}

	s.logger.Info("Inserted credential",
		"principal_id", principalID,
		"type", credType,
		"auto_generated_secret", generated)

	plaintext := ""
	if generated {
		plaintext = secret
	}
	return cred.Clone(), plaintext, nil
}

// resolveSecret extracts the secret from the payload, generating one when the
// definition allows it and the field is absent.
func resolveSecret(def Definition, payload map[string]any) (secret string, generated bool, err error) {
	raw, present := payload[def.PasswordKey]
	if !present {
		if !def.AutoGeneratePassword {
			return "", false, &ValidationError{Property: def.PasswordKey, Reason: "is required"}
		}
		return security.GenerateSecret(), true, nil
	}

	str, ok := raw.(string)
	if !ok || str == "" {
		return "", false, &ValidationError{Property: def.PasswordKey, Reason: "must be a non-empty string"}
	}
	return str, false, nil
}

// applyProperties validates the payload's additional properties against the
// definition schema and copies them onto the credential.
func (s *Service) applyProperties(ctx context.Context, def Definition, payload map[string]any, cred *storage.Credential) error {
	for name, prop := range def.Properties {
		if _, present := payload[name]; !present && prop.IsRequired {
			return &ValidationError{Property: name, Reason: "is required"}
		}
	}

	for name, raw := range payload {
		if name == def.PasswordKey {
			continue
		}
		if _, declared := def.Properties[name]; !declared {
			return &ValidationError{Property: name, Reason: "is not declared for this credential type"}
		}

		switch name {
		case propertyScopes:
			scopes, err := toStringSlice(raw)
			if err != nil {
				return &ValidationError{Property: name, Reason: "must be a list of scope names"}
			}
			for _, scope := range scopes {
				registered, err := s.scopeStore.ScopeExists(ctx, scope)
				if err != nil {
					return fmt.Errorf("failed to check scope %q: %w", scope, err)
				}
				if !registered {
					return fmt.Errorf("scope %q: %w", scope, ErrScopeNotRegistered)
				}
			}
			cred.Scopes = scopes
		case propertyAllowsRefresh:
			allows, ok := raw.(bool)
			if !ok {
				return &ValidationError{Property: name, Reason: "must be a boolean"}
			}
			cred.AllowsRefresh = allows
		default:
			str, ok := raw.(string)
			if !ok {
				return &ValidationError{Property: name, Reason: "must be a string"}
			}
			if cred.Properties == nil {
				cred.Properties = make(map[string]string)
			}
			cred.Properties[name] = str
		}
	}

	return nil
}

// toStringSlice accepts []string directly or []any of strings, which is what
// YAML and JSON decoding produce.
func toStringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string element")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}

// Get retrieves a stored credential by (principal id, type).
func (s *Service) Get(ctx context.Context, principalID, credType string) (*storage.Credential, error) {
	return s.store.GetCredential(ctx, principalID, credType)
}

// VerifySecret compares a presented secret against the stored credential in
// constant time. The stored value is never returned or logged.
func (s *Service) VerifySecret(ctx context.Context, principalID, credType, presented string) (bool, error) {
	cred, err := s.store.GetCredential(ctx, principalID, credType)
	if err != nil {
		return false, err
	}

	if cred.SecretCiphertext != "" {
		stored, err := s.encryptor.Decrypt(cred.SecretCiphertext)
		if err != nil {
			return false, fmt.Errorf("failed to decrypt stored secret: %w", err)
		}
		return security.ConstantTimeEquals(stored, presented), nil
	}

	return security.VerifySecretHash(cred.SecretHash, presented), nil
}

// InsertScopes registers scope names in the global registry. Registering an
// already-registered name is a no-op.
func (s *Service) InsertScopes(ctx context.Context, names ...string) error {
	return s.scopeStore.SaveScopes(ctx, names)
}

// GetAuthorizedScopes returns the credential's authorized-scope set, empty if
// none is configured.
func (s *Service) GetAuthorizedScopes(ctx context.Context, principalID, credType string) ([]string, error) {
	cred, err := s.store.GetCredential(ctx, principalID, credType)
	if err != nil {
		return nil, err
	}
	if cred.Scopes == nil {
		return []string{}, nil
	}
	return cred.Scopes, nil
}
