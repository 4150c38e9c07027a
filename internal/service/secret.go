package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const secretBytes = 32

// NewListingSecret returns a fresh guest token and the digest stored in its place.
func NewListingSecret() (token, digest string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate listing secret: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, DigestSecret(token), nil
}

// DigestSecret hashes a guest token for storage and lookup.
func DigestSecret(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
