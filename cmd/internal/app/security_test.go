package app

import (
	"strings"
	"testing"

	"chord/cmd/internal/auth/session"
)

func TestValidateSecurityConfig(t *testing.T) {
	t.Run("disabled policy passes without key", func(t *testing.T) {
		t.Setenv(session.HMACEnvKey, "")
		if err := ValidateSecurityConfig(Config{RequireTokenHMAC: false}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing key fails", func(t *testing.T) {
		t.Setenv(session.HMACEnvKey, "")
		err := ValidateSecurityConfig(Config{RequireTokenHMAC: true})
		if err == nil {
			t.Fatalf("expected error when key is missing")
		}
		if !strings.Contains(err.Error(), "missing") {
			t.Fatalf("err = %v, want mention of missing key", err)
		}
	})

	t.Run("short key fails", func(t *testing.T) {
		t.Setenv(session.HMACEnvKey, "too-short")
		err := ValidateSecurityConfig(Config{RequireTokenHMAC: true})
		if err == nil {
			t.Fatalf("expected error for short key")
		}
		if !strings.Contains(err.Error(), "too short") {
			t.Fatalf("err = %v, want mention of length", err)
		}
	})

	t.Run("strong key passes", func(t *testing.T) {
		t.Setenv(session.HMACEnvKey, strings.Repeat("k", 32))
		if err := ValidateSecurityConfig(Config{RequireTokenHMAC: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
