package session

import (
	"encoding/base64"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	plain, hashHex, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(plain)
	if err != nil {
		t.Fatalf("token is not raw-url base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("token entropy = %d bytes, want 32", len(raw))
	}
	if hashHex != HashTokenHex(plain) {
		t.Fatalf("stored hash does not match HashTokenHex(plain)")
	}
}

func TestNewOpaqueToken_DefaultsOnInvalidSize(t *testing.T) {
	plain, _, err := NewOpaqueToken(0)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(plain)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("default entropy = %d bytes, want 32", len(raw))
	}
}

func TestHashTokenHex_ShaFallbackIsDeterministic(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	a := HashTokenHex("token-1")
	b := HashTokenHex("token-1")
	c := HashTokenHex("token-2")

	if a != b {
		t.Fatalf("same token must hash identically")
	}
	if a == c {
		t.Fatalf("distinct tokens must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestHashTokenHex_HMACChangesDigest(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	plain := HashTokenHex("token-1")

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	keyed := HashTokenHex("token-1")

	if plain == keyed {
		t.Fatalf("HMAC mode must produce a different digest than plain SHA-256")
	}

	t.Setenv(HMACEnvKey, "another-secret-key-also-32-bytes")
	otherKey := HashTokenHex("token-1")
	if keyed == otherKey {
		t.Fatalf("different keys must produce different digests")
	}
}
