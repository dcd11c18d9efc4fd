package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "CHORD_TOKEN_HMAC_KEY"
)

// NewOpaqueToken generates a random session token and its storage hash.
// The plain token is returned to the client and never persisted.
func NewOpaqueToken(nBytes int) (plain string, hashHex string, err error) {
	if nBytes <= 0 {
		nBytes = 32
	}

	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)
	hashHex = HashTokenHex(plain)
	return plain, hashHex, nil
}

// HashTokenHex hashes session tokens for server-side storage.
// Behavior:
// - If CHORD_TOKEN_HMAC_KEY is set (non-empty), uses HMAC-SHA256(token, key).
// - Otherwise falls back to SHA-256(token) for dev/back-compat.
func HashTokenHex(token string) string {
	key := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if key == "" {
		sum := sha256.Sum256([]byte(token))
		return hex.EncodeToString(sum[:])
	}

	m := hmac.New(sha256.New, []byte(key))
	_, _ = m.Write([]byte(token))
	return hex.EncodeToString(m.Sum(nil))
}
