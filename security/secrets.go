package security

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// HashSecret hashes a password-style secret with bcrypt at the default cost.
// bcrypt is deliberately slow; callers must not invoke it while holding any
// shared lock.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecretHash compares a presented secret against a stored bcrypt hash.
// bcrypt's comparison is constant-time with respect to the secret.
func VerifySecretHash(hash, presented string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)) == nil
}

// ConstantTimeEquals compares two strings in constant time.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateSecret generates a cryptographically secure random secret.
// This is an alias for oauth2.GenerateVerifier() which produces a URL-safe,
// base64-encoded random string suitable for secrets, token ids, etc.
func GenerateSecret() string {
	return oauth2.GenerateVerifier()
}
