// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gatewaylabs/authcore/storage"
)

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu sync.RWMutex

	// credentials keyed by "principalID/type"
	credentials map[string]*storage.Credential

	// tokens keyed by token id, with per-record expiry
	tokens        map[string]*storage.Token
	tokenExpiries map[string]time.Time

	// scopes is the global scope name registry
	scopes map[string]struct{}

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time check that Store implements the full storage contract
var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store with the default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval
func NewWithInterval(cleanupInterval time.Duration) *Store {
	s := &Store{
		credentials:     make(map[string]*storage.Credential),
		tokens:          make(map[string]*storage.Token),
		tokenExpiries:   make(map[string]time.Time),
		scopes:          make(map[string]struct{}),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger for the store
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func credentialKey(principalID, credType string) string {
	return principalID + "/" + credType
}

// SaveCredential stores a new credential.
func (s *Store) SaveCredential(ctx context.Context, cred *storage.Credential) error {
	if cred == nil || cred.PrincipalID == "" || cred.Type == "" {
		return fmt.Errorf("invalid credential")
	}

	key := credentialKey(cred.PrincipalID, cred.Type)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[key]; exists {
		return fmt.Errorf("credential %s: %w", key, storage.ErrDuplicateCredential)
	}

	s.credentials[key] = cred.Clone()
	return nil
}

// GetCredential retrieves a credential by (principal id, type).
func (s *Store) GetCredential(ctx context.Context, principalID, credType string) (*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[credentialKey(principalID, credType)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cred.Clone(), nil
}

// DeleteCredential removes a credential. Absent credentials are ignored.
func (s *Store) DeleteCredential(ctx context.Context, principalID, credType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, credentialKey(principalID, credType))
	return nil
}

// SaveToken stores a token record if its id is unused.
func (s *Store) SaveToken(ctx context.Context, token *storage.Token, ttl time.Duration) error {
	if token == nil || token.ID == "" {
		return fmt.Errorf("invalid token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.ID]; exists {
		return fmt.Errorf("token %s: %w", truncateID(token.ID), storage.ErrTokenIDTaken)
	}

	s.tokens[token.ID] = token.Clone()
	if ttl > 0 {
		s.tokenExpiries[token.ID] = time.Now().Add(ttl)
	}
	return nil
}

// GetToken retrieves a token record by id.
func (s *Store) GetToken(ctx context.Context, id string) (*storage.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return token.Clone(), nil
}

// DeleteToken removes a token record.
func (s *Store) DeleteToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, id)
	delete(s.tokenExpiries, id)
	return nil
}

// SaveScopes registers scope names. Registration is idempotent.
func (s *Store) SaveScopes(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if name == "" {
			return fmt.Errorf("scope name cannot be empty")
		}
		s.scopes[name] = struct{}{}
	}
	return nil
}

// ScopeExists reports whether a scope name is registered.
func (s *Store) ScopeExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.scopes[name]
	return ok, nil
}

// ListScopes returns all registered scope names, sorted.
func (s *Store) ListScopes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.scopes))
	for name := range s.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FlushAll removes all stored records. Test use only.
func (s *Store) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials = make(map[string]*storage.Credential)
	s.tokens = make(map[string]*storage.Token)
	s.tokenExpiries = make(map[string]time.Time)
	s.scopes = make(map[string]struct{})
	return nil
}

// cleanupLoop periodically removes expired token records
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *Store) cleanupExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, expiry := range s.tokenExpiries {
		if now.After(expiry) {
			delete(s.tokens, id)
			delete(s.tokenExpiries, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Cleaned up expired tokens", "removed", removed)
	}
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// truncateID shortens a token id for logging
func truncateID(id string) string {
	const logLength = 8
	if len(id) <= logLength {
		return id
	}
	return id[:logLength]
}
