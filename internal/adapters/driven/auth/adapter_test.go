package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

func TestHashAndVerifyPassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4) // Low cost for faster tests

	hash, err := adapter.HashPassword("mypassword")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == "" || hash == "mypassword" {
		t.Errorf("unexpected hash %q", hash)
	}

	if !adapter.VerifyPassword("mypassword", hash) {
		t.Error("expected verification to succeed")
	}
	if adapter.VerifyPassword("wrongpassword", hash) {
		t.Error("expected verification to fail for wrong password")
	}
	if adapter.VerifyPassword("mypassword", "not-a-valid-hash") {
		t.Error("expected verification to fail for invalid hash")
	}
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)

	hash1, _ := adapter.HashPassword("password123")
	hash2, _ := adapter.HashPassword("password123")

	if hash1 == hash2 {
		t.Error("expected different hashes for same password (due to salt)")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	now := time.Now()
	claims := &domain.TokenClaims{
		UserID:    "user-123",
		Email:     "holder@example.com",
		Address:   "addr-1",
		Role:      domain.RoleHolder,
		SessionID: "session-789",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
	}

	token, err := adapter.GenerateToken(claims)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected a three-part JWT, got %q", token)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if parsed.UserID != claims.UserID || parsed.Address != claims.Address {
		t.Errorf("claims lost in round trip: %+v", parsed)
	}
	if parsed.Role != domain.RoleHolder || parsed.SessionID != claims.SessionID {
		t.Errorf("claims lost in round trip: %+v", parsed)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	adapter := NewAdapter("secret-one")
	other := NewAdapter("secret-two")

	now := time.Now()
	token, _ := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		SessionID: "session-1",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	})

	if _, err := other.ParseToken(token); err == nil {
		t.Error("expected parse failure with a different secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	adapter := NewAdapter("secret")

	past := time.Now().Add(-2 * time.Hour)
	token, _ := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		SessionID: "session-1",
		IssuedAt:  past.Unix(),
		ExpiresAt: past.Add(time.Hour).Unix(),
	})

	if _, err := adapter.ParseToken(token); err == nil {
		t.Error("expected parse failure for expired token")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	adapter := NewAdapter("secret")
	if _, err := adapter.ParseToken("not.a.token"); err == nil {
		t.Error("expected parse failure for garbage input")
	}
}
