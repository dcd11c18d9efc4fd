package app

import (
	"errors"
	"os"
	"strings"

	"chord/cmd/internal/auth/session"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail-fast is intentional: silently falling back to weaker token hashing in
// production is unacceptable. Minimum 32 bytes for an HMAC-SHA256 secret; we
// measure bytes (not runes) because the key is used as raw bytes.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	key := strings.TrimSpace(os.Getenv(session.HMACEnvKey))
	if key == "" {
		return errors.New("security policy: CHORD_REQUIRE_TOKEN_HMAC=true but " + session.HMACEnvKey + " is missing")
	}
	if len(key) < 32 {
		return errors.New("security policy: CHORD_REQUIRE_TOKEN_HMAC=true but " + session.HMACEnvKey + " is too short (min 32 bytes)")
	}

	return nil
}
