package auth

import (
	"strings"
	"testing"
	"time"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "rconbridge"}
}

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := testTokenConfig()

	token, err := CreateToken(42, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(token, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.OwnerID != 42 {
		t.Fatalf("expected owner 42, got %d", claims.OwnerID)
	}
	if claims.Subject != "42" {
		t.Fatalf("expected subject 42, got %q", claims.Subject)
	}
	if claims.Issuer != "rconbridge" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti")
	}
}

func TestCreateToken_Validation(t *testing.T) {
	cfg := testTokenConfig()

	if _, err := CreateToken(0, cfg); err == nil {
		t.Fatalf("expected error for ownerID 0")
	}
	if _, err := CreateToken(-5, cfg); err == nil {
		t.Fatalf("expected error for negative ownerID")
	}

	noSecret := cfg
	noSecret.Secret = ""
	if _, err := CreateToken(42, noSecret); err == nil {
		t.Fatalf("expected error for missing secret")
	}

	noExpiry := cfg
	noExpiry.Expiry = 0
	if _, err := CreateToken(42, noExpiry); err == nil {
		t.Fatalf("expected error for zero expiry")
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := CreateToken(42, testTokenConfig())
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	other := testTokenConfig()
	other.Secret = "different-secret"
	if _, err := VerifyToken(token, other); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	cfg := testTokenConfig()
	cfg.Expiry = time.Nanosecond

	token, err := CreateToken(42, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := VerifyToken(token, cfg); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	cfg := testTokenConfig()
	for _, token := range []string{"", "not.a.token", "a.b"} {
		if _, err := VerifyToken(token, cfg); err == nil {
			t.Fatalf("expected failure for %q", token)
		}
	}
}

func TestTokensCarryUniqueIDs(t *testing.T) {
	cfg := testTokenConfig()

	a, err := CreateToken(42, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	b, err := CreateToken(42, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if strings.Split(a, ".")[2] == strings.Split(b, ".")[2] {
		t.Fatalf("expected distinct signatures for distinct jtis")
	}

	ca, _ := VerifyToken(a, cfg)
	cb, _ := VerifyToken(b, cfg)
	if ca.ID == cb.ID {
		t.Fatalf("expected distinct jtis")
	}
}
