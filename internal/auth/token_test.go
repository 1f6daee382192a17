package auth

import (
	"testing"
	"time"
)

func TestMintAndVerify(t *testing.T) {
	m := NewMinter("test-secret", 5*time.Minute)

	token, err := m.Mint("user-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if token == "" {
		t.Fatal("Mint returned empty token")
	}

	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := NewMinter("secret-a", time.Minute)
	other := NewMinter("secret-b", time.Minute)

	token, err := m.Mint("user-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Error("Verify with wrong secret should fail")
	}
}

func TestVerify_Expired(t *testing.T) {
	m := NewMinter("test-secret", -2*time.Minute)
	// Negative TTL falls back to the default, so set a negative TTL
	// directly to mint an already-expired token.
	m.ttl = -time.Minute

	token, err := m.Mint("user-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := m.Verify(token); err == nil {
		t.Error("Verify of expired token should fail")
	}
}

func TestDefaultTTL(t *testing.T) {
	m := NewMinter("s", 0)
	if m.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", m.ttl, DefaultTokenTTL)
	}
}
