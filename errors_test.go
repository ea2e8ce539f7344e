package authcore

import (
	"net/http"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantCode   string
		wantStatus int
	}{
		{"invalid request", ErrInvalidRequest("bad"), ErrorCodeInvalidRequest, http.StatusBadRequest},
		{"invalid client", ErrInvalidClient("bad"), ErrorCodeInvalidClient, http.StatusUnauthorized},
		{"invalid grant", ErrInvalidGrant("bad"), ErrorCodeInvalidGrant, http.StatusUnauthorized},
		{"invalid scope", ErrInvalidScope("bad"), ErrorCodeInvalidScope, http.StatusUnauthorized},
		{"unsupported grant type", ErrUnsupportedGrantType("bad"), ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{"server error", ErrServerError("bad"), ErrorCodeServerError, http.StatusInternalServerError},
		{"rate limit", ErrRateLimitExceeded("bad"), ErrorCodeRateLimitExceeded, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.wantStatus)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := NewError(ErrorCodeInvalidGrant, "token expired", http.StatusUnauthorized)
	if got, want := err.Error(), "invalid_grant: token expired"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
