package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestAuditorLogsHashedPrincipal(t *testing.T) {
	var buf bytes.Buffer
	aud := NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), true)

	aud.LogTokenIssued("user-1", "app1", "203.0.113.7", "someScope")

	out := buf.String()
	if !strings.Contains(out, EventTokenIssued) {
		t.Errorf("output missing event type: %s", out)
	}
	if strings.Contains(out, `"user-1"`) {
		t.Error("principal id must be hashed, not logged verbatim")
	}
	if !strings.Contains(out, "app1") {
		t.Error("client id should be logged")
	}
}

func TestAuditorDisabled(t *testing.T) {
	var buf bytes.Buffer
	aud := NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), false)

	aud.LogAuthFailure("user-1", "app1", "203.0.113.7", "bad_user_password")

	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote output: %s", buf.String())
	}
}

func TestHashForLogging(t *testing.T) {
	if hashForLogging("") != "" {
		t.Error("empty id should hash to empty string")
	}

	a := hashForLogging("user-1")
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
	if a == "user-1" {
		t.Error("hash equals input")
	}
	if a != hashForLogging("user-1") {
		t.Error("hash is not deterministic")
	}
	if a == hashForLogging("user-2") {
		t.Error("distinct ids collided")
	}
}
