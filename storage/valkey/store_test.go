package valkey

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/gatewaylabs/authcore/storage"
)

// newTestStore connects to a real Valkey instance for integration testing.
// Tests are skipped if VALKEY_TEST_ADDR is not set or the connection fails.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping test: VALKEY_TEST_ADDR not set")
	}

	s, err := New(Config{
		Address:   addr,
		KeyPrefix: "authcore-test:",
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Skipf("Skipping test: could not connect to Valkey at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		_ = s.FlushAll(context.Background())
		s.Close()
	})
	if err := s.FlushAll(context.Background()); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	return s
}

func TestCredentialRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cred := &storage.Credential{
		PrincipalID:      "user-1",
		Type:             "oauth2",
		SecretCiphertext: "cipher",
		Scopes:           []string{"read"},
		AllowsRefresh:    true,
		CreatedAt:        time.Now().Truncate(time.Second),
	}
	if err := s.SaveCredential(ctx, cred); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	if err := s.SaveCredential(ctx, cred); !errors.Is(err, storage.ErrDuplicateCredential) {
		t.Errorf("SaveCredential(duplicate) = %v, want ErrDuplicateCredential", err)
	}

	got, err := s.GetCredential(ctx, "user-1", "oauth2")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got.SecretCiphertext != "cipher" || !got.AllowsRefresh {
		t.Errorf("GetCredential = %+v", got)
	}
	if len(got.Scopes) != 1 || got.Scopes[0] != "read" {
		t.Errorf("Scopes = %v, want [read]", got.Scopes)
	}

	if err := s.DeleteCredential(ctx, "user-1", "oauth2"); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}
	if _, err := s.GetCredential(ctx, "user-1", "oauth2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCredential after delete = %v, want ErrNotFound", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := &storage.Token{
		ID:               "tok-1",
		SecretCiphertext: "cipher",
		Kind:             storage.TokenKindAccess,
		PrincipalID:      "user-1",
		ClientID:         "app1",
		Scopes:           []string{"read"},
		ExpiresAt:        time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.SaveToken(ctx, tok, time.Hour); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if err := s.SaveToken(ctx, tok, time.Hour); !errors.Is(err, storage.ErrTokenIDTaken) {
		t.Errorf("SaveToken(taken id) = %v, want ErrTokenIDTaken", err)
	}

	got, err := s.GetToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Kind != storage.TokenKindAccess || got.ClientID != "app1" {
		t.Errorf("GetToken = %+v", got)
	}

	if err := s.DeleteToken(ctx, "tok-1"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if _, err := s.GetToken(ctx, "tok-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetToken after delete = %v, want ErrNotFound", err)
	}
}

func TestTokenTTLExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := &storage.Token{ID: "short", Kind: storage.TokenKindAccess}
	if err := s.SaveToken(ctx, tok, time.Second); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := s.GetToken(ctx, "short"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetToken after TTL = %v, want ErrNotFound", err)
	}
}

func TestScopeRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveScopes(ctx, []string{"read", "write"}); err != nil {
		t.Fatalf("SaveScopes: %v", err)
	}

	ok, err := s.ScopeExists(ctx, "read")
	if err != nil || !ok {
		t.Errorf("ScopeExists(read) = %v, %v; want true", ok, err)
	}
	ok, err = s.ScopeExists(ctx, "ghost")
	if err != nil || ok {
		t.Errorf("ScopeExists(ghost) = %v, %v; want false", ok, err)
	}

	names, err := s.ListScopes(ctx)
	if err != nil {
		t.Fatalf("ListScopes: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("ListScopes = %v, want two entries", names)
	}
}
