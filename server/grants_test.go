package server_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gatewaylabs/authcore/internal/testutil"
	"github.com/gatewaylabs/authcore/server"
)

func seedScenario(t *testing.T) *testutil.Engine {
	t.Helper()
	e := testutil.NewEngine(t)
	e.SeedClient(t, "app1", "app-secret", []string{"someScope"}, true)
	e.SeedUser(t, "user-1", "irfanbaqui", "user-secret")
	return e
}

func passwordRequest(scope string) *server.TokenRequest {
	return &server.TokenRequest{
		GrantType:        "password",
		FormClientID:     "app1",
		FormClientSecret: "app-secret",
		Username:         "irfanbaqui",
		Password:         "user-secret",
		Scope:            scope,
	}
}

func TestPasswordGrantUnscoped(t *testing.T) {
	e := seedScenario(t)

	result, err := e.Server.ProcessToken(context.Background(), passwordRequest(""))
	if err != nil {
		t.Fatalf("ProcessToken: %v", err)
	}
	if result.AccessToken == "" {
		t.Error("expected an access token")
	}
	if result.Scope != "" {
		t.Errorf("Scope = %q, want empty for an unscoped grant", result.Scope)
	}
	if result.ExpiresIn <= 0 {
		t.Errorf("ExpiresIn = %d, want positive", result.ExpiresIn)
	}
}

func TestPasswordGrantWithScope(t *testing.T) {
	e := seedScenario(t)
	ctx := context.Background()

	result, err := e.Server.ProcessToken(ctx, passwordRequest("someScope"))
	if err != nil {
		t.Fatalf("ProcessToken: %v", err)
	}
	if result.Scope != "someScope" {
		t.Errorf("Scope = %q, want someScope", result.Scope)
	}
	if result.RefreshToken == "" {
		t.Fatal("expected a refresh token for a refresh-entitled client")
	}

	record, err := e.Tokens.Verify(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Verify(access): %v", err)
	}
	if len(record.Scopes) != 1 || record.Scopes[0] != "someScope" {
		t.Errorf("stored scopes = %v, want [someScope]", record.Scopes)
	}
}

func TestPasswordGrantBasicAuthClient(t *testing.T) {
	e := seedScenario(t)

	req := &server.TokenRequest{
		GrantType:         "password",
		BasicClientID:     "app1",
		BasicClientSecret: "app-secret",
		HasBasicAuth:      true,
		Username:          "irfanbaqui",
		Password:          "user-secret",
	}
	if _, err := e.Server.ProcessToken(context.Background(), req); err != nil {
		t.Fatalf("ProcessToken with Basic client auth: %v", err)
	}
}

func TestPasswordGrantUnauthorizedScope(t *testing.T) {
	e := seedScenario(t)
	ctx := context.Background()

	_, err := e.Server.ProcessToken(ctx, passwordRequest("someScope unauthorizedScope"))
	if !errors.Is(err, server.ErrUnauthorizedScope) {
		t.Fatalf("ProcessToken = %v, want ErrUnauthorizedScope", err)
	}
}

func TestRefreshGrantRoundTrip(t *testing.T) {
	e := seedScenario(t)
	ctx := context.Background()

	first, err := e.Server.ProcessToken(ctx, passwordRequest("someScope"))
	if err != nil {
		t.Fatalf("password grant: %v", err)
	}

	result, err := e.Server.ProcessToken(ctx, &server.TokenRequest{
		GrantType:        "refresh_token",
		FormClientID:     "app1",
		FormClientSecret: "app-secret",
		RefreshToken:     first.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh grant: %v", err)
	}
	if result.AccessToken == "" || result.AccessToken == first.AccessToken {
		t.Error("expected a fresh access token")
	}
	if result.Scope != "someScope" {
		t.Errorf("Scope = %q, want someScope carried over", result.Scope)
	}

	record, err := e.Tokens.Verify(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Verify(new access): %v", err)
	}
	if len(record.Scopes) != 1 || record.Scopes[0] != "someScope" {
		t.Errorf("stored scopes = %v, want [someScope]", record.Scopes)
	}
}

func TestRefreshGrantNotIssuedWithoutEntitlement(t *testing.T) {
	e := testutil.NewEngine(t)
	e.SeedClient(t, "app2", "other-secret", nil, false)
	e.SeedUser(t, "user-1", "irfanbaqui", "user-secret")

	result, err := e.Server.ProcessToken(context.Background(), &server.TokenRequest{
		GrantType:        "password",
		FormClientID:     "app2",
		FormClientSecret: "other-secret",
		Username:         "irfanbaqui",
		Password:         "user-secret",
	})
	if err != nil {
		t.Fatalf("ProcessToken: %v", err)
	}
	if result.RefreshToken != "" {
		t.Error("client without refresh entitlement must not receive a refresh token")
	}
}

func TestRefreshGrantRejectsTamperedToken(t *testing.T) {
	e := seedScenario(t)
	ctx := context.Background()

	first, err := e.Server.ProcessToken(ctx, passwordRequest("someScope"))
	if err != nil {
		t.Fatalf("password grant: %v", err)
	}

	_, err = e.Server.ProcessToken(ctx, &server.TokenRequest{
		GrantType:        "refresh_token",
		FormClientID:     "app1",
		FormClientSecret: "app-secret",
		RefreshToken:     first.RefreshToken + "tampered",
	})
	if err == nil {
		t.Fatal("expected tampered refresh token to be rejected")
	}
}

func TestClientAuthenticationFailures(t *testing.T) {
	e := seedScenario(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *server.TokenRequest
		want error
	}{
		{
			name: "wrong client secret",
			req: &server.TokenRequest{
				GrantType:        "password",
				FormClientID:     "app1",
				FormClientSecret: "wrong",
				Username:         "irfanbaqui",
				Password:         "user-secret",
			},
			want: server.ErrAuthenticationFailed,
		},
		{
			name: "unknown client",
			req: &server.TokenRequest{
				GrantType:        "password",
				FormClientID:     "ghost",
				FormClientSecret: "app-secret",
				Username:         "irfanbaqui",
				Password:         "user-secret",
			},
			want: server.ErrAuthenticationFailed,
		},
		{
			name: "no client credentials",
			req: &server.TokenRequest{
				GrantType: "password",
				Username:  "irfanbaqui",
				Password:  "user-secret",
			},
			want: server.ErrInvalidRequest,
		},
		{
			name: "credentials in both header and body",
			req: &server.TokenRequest{
				GrantType:         "password",
				BasicClientID:     "app1",
				BasicClientSecret: "app-secret",
				HasBasicAuth:      true,
				FormClientID:      "app1",
				FormClientSecret:  "app-secret",
			},
			want: server.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Server.ProcessToken(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("ProcessToken = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResourceOwnerAuthenticationFailures(t *testing.T) {
	e := seedScenario(t)
	ctx := context.Background()

	tests := []struct {
		name               string
		username, password string
		want               error
	}{
		{"unknown user", "ghost", "user-secret", server.ErrAuthenticationFailed},
		{"wrong password", "irfanbaqui", "wrong", server.ErrAuthenticationFailed},
		{"missing username", "", "user-secret", server.ErrInvalidRequest},
		{"missing password", "irfanbaqui", "", server.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := passwordRequest("")
			req.Username = tt.username
			req.Password = tt.password
			if _, err := e.Server.ProcessToken(ctx, req); !errors.Is(err, tt.want) {
				t.Errorf("ProcessToken = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnsupportedGrantType(t *testing.T) {
	e := seedScenario(t)

	_, err := e.Server.ProcessToken(context.Background(), &server.TokenRequest{
		GrantType:        "client_credentials",
		FormClientID:     "app1",
		FormClientSecret: "app-secret",
	})
	if !errors.Is(err, server.ErrUnsupportedGrant) {
		t.Errorf("ProcessToken = %v, want ErrUnsupportedGrant", err)
	}
}

func TestRefreshGrantRequiresToken(t *testing.T) {
	e := seedScenario(t)

	_, err := e.Server.ProcessToken(context.Background(), &server.TokenRequest{
		GrantType:        "refresh_token",
		FormClientID:     "app1",
		FormClientSecret: "app-secret",
	})
	if !errors.Is(err, server.ErrInvalidRequest) {
		t.Errorf("ProcessToken = %v, want ErrInvalidRequest", err)
	}
}
