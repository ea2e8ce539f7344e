package server

import (
	"errors"
	"reflect"
	"testing"
)

func TestNegotiate(t *testing.T) {
	authorized := []string{"read", "write"}

	tests := []struct {
		name      string
		requested []string
		want      []string
		wantErr   bool
	}{
		{
			name:      "empty request yields unscoped grant",
			requested: nil,
			want:      nil,
		},
		{
			name:      "subset is granted",
			requested: []string{"read"},
			want:      []string{"read"},
		},
		{
			name:      "full set is granted",
			requested: []string{"write", "read"},
			want:      []string{"read", "write"},
		},
		{
			name:      "duplicates are collapsed",
			requested: []string{"read", "read"},
			want:      []string{"read"},
		},
		{
			name:      "any unauthorized scope rejects the whole request",
			requested: []string{"read", "admin"},
			wantErr:   true,
		},
		{
			name:      "single unauthorized scope",
			requested: []string{"admin"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.requested, authorized)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthorizedScope) {
					t.Fatalf("Negotiate() error = %v, want ErrUnauthorizedScope", err)
				}
				if got != nil {
					t.Errorf("Negotiate() = %v, want nil on rejection", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Negotiate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNegotiateAgainstEmptyAuthorization(t *testing.T) {
	got, err := Negotiate(nil, nil)
	if err != nil || got != nil {
		t.Errorf("Negotiate(nil, nil) = %v, %v; want nil, nil", got, err)
	}

	if _, err := Negotiate([]string{"read"}, nil); !errors.Is(err, ErrUnauthorizedScope) {
		t.Errorf("Negotiate with no authorized scopes = %v, want ErrUnauthorizedScope", err)
	}
}

func TestParseGrantType(t *testing.T) {
	if _, err := ParseGrantType(""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("ParseGrantType(empty) = %v, want ErrInvalidRequest", err)
	}
	if _, err := ParseGrantType("client_credentials"); !errors.Is(err, ErrUnsupportedGrant) {
		t.Errorf("ParseGrantType(unknown) = %v, want ErrUnsupportedGrant", err)
	}
	if gt, err := ParseGrantType("password"); err != nil || gt != GrantTypePassword {
		t.Errorf("ParseGrantType(password) = %v, %v", gt, err)
	}
	if gt, err := ParseGrantType("refresh_token"); err != nil || gt != GrantTypeRefreshToken {
		t.Errorf("ParseGrantType(refresh_token) = %v, %v", gt, err)
	}
}
