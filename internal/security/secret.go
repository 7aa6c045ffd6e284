package security

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Secret guards operator actions such as broadcasts. A bcrypt hash takes
// precedence over a plain value. With neither set every caller passes.
type Secret struct {
	Plain string
	Hash  string
}

func (s Secret) Configured() bool {
	return s.Plain != "" || s.Hash != ""
}

func (s Secret) Verify(given string) bool {
	if !s.Configured() {
		return true
	}
	if s.Hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.Hash), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(s.Plain), []byte(given)) == 1
}

// HashSecret produces a value for BROADCAST_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 8 {
		return "", fmt.Errorf("secret must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}
