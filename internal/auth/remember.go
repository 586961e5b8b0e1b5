package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NewRememberToken returns a random remember-me token and the hash to persist for it.
func NewRememberToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate remember token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashRememberToken(token), nil
}

// HashRememberToken is the lookup key stored for a remember-me token.
func HashRememberToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
