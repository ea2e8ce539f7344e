// Package testutil provides testing utilities and fixtures for the authcore
// library: a controllable time source, random value helpers, and a fully
// wired in-memory engine for end-to-end tests.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"testing"
	"time"

	"github.com/gatewaylabs/authcore/credential"
	"github.com/gatewaylabs/authcore/directory"
	"github.com/gatewaylabs/authcore/security"
	"github.com/gatewaylabs/authcore/server"
	"github.com/gatewaylabs/authcore/storage/memory"
	"github.com/gatewaylabs/authcore/token"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// GenerateRandomString returns a URL-safe random string for test ids and
// secrets.
func GenerateRandomString(t *testing.T, n int) string {
	t.Helper()
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("failed to generate random bytes: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n]
}

// Engine bundles a fully wired in-memory engine for tests.
type Engine struct {
	Store       *memory.Store
	Encryptor   *security.Encryptor
	Credentials *credential.Service
	Tokens      *token.Service
	Directory   *directory.Memory
	Server      *server.Server
}

// NewEngine builds an engine backed by the in-memory store. Resources are
// released via t.Cleanup.
func NewEngine(t *testing.T) *Engine {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Stop)

	key, err := security.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate encryption key: %v", err)
	}
	enc, err := security.NewEncryptor(key)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)

	creds, err := credential.NewService(store, store, enc, nil, logger)
	if err != nil {
		t.Fatalf("failed to create credential service: %v", err)
	}
	tokens, err := token.NewService(store, enc, token.Config{}, logger)
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}

	dir := directory.NewMemory()

	srv, err := server.New(creds, tokens, dir, logger)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	return &Engine{
		Store:       store,
		Encryptor:   enc,
		Credentials: creds,
		Tokens:      tokens,
		Directory:   dir,
		Server:      srv,
	}
}

// SeedClient registers the given scopes and inserts an oauth2 client
// credential authorized for them.
func (e *Engine) SeedClient(t *testing.T, clientID, secret string, scopes []string, allowsRefresh bool) {
	t.Helper()
	ctx := context.Background()

	if len(scopes) > 0 {
		if err := e.Credentials.InsertScopes(ctx, scopes...); err != nil {
			t.Fatalf("failed to register scopes: %v", err)
		}
	}

	payload := map[string]any{
		"secret":        secret,
		"allowsRefresh": allowsRefresh,
	}
	if len(scopes) > 0 {
		payload["scopes"] = scopes
	}
	if _, _, err := e.Credentials.Insert(ctx, clientID, credential.TypeOAuth2, payload); err != nil {
		t.Fatalf("failed to insert client credential: %v", err)
	}
}

// SeedUser adds a directory entry and a basic-auth credential for a user.
func (e *Engine) SeedUser(t *testing.T, id, username, password string) {
	t.Helper()

	e.Directory.Add(&directory.Principal{ID: id, Username: username})

	payload := map[string]any{"password": password}
	if _, _, err := e.Credentials.Insert(context.Background(), id, credential.TypeBasicAuth, payload); err != nil {
		t.Fatalf("failed to insert user credential: %v", err)
	}
}
