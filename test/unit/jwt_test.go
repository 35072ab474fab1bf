package unit

import (
	"testing"
	"time"

	"github.com/gigcredit/backend/internal/auth"
)

func TestJWTMintAndParse(t *testing.T) {
	m := auth.NewJWTManager("issuer", "aud", "secret")
	tok, err := m.Mint("u1", auth.RoleLender, "Asha", "Acme Capital", 5*time.Minute)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != auth.RoleLender || claims.Type != "access" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Organization != "Acme Capital" {
		t.Fatalf("expected organization claim, got %q", claims.Organization)
	}
}

func TestJWTRejectsWrongIssuer(t *testing.T) {
	minter := auth.NewJWTManager("other-issuer", "aud", "secret")
	tok, err := minter.Mint("u1", auth.RoleBorrower, "", "", 5*time.Minute)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	verifier := auth.NewJWTManager("issuer", "aud", "secret")
	if _, err := verifier.Parse(tok); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestJWTRejectsUnknownRole(t *testing.T) {
	m := auth.NewJWTManager("issuer", "aud", "secret")
	tok, err := m.Mint("u1", "admin", "", "", 5*time.Minute)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	if _, err := m.Parse(tok); err == nil {
		t.Fatalf("expected role rejection")
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	m := auth.NewJWTManager("issuer", "aud", "secret")
	tok, err := m.Mint("u1", auth.RoleBorrower, "", "", -1*time.Minute)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	if _, err := m.Parse(tok); err == nil {
		t.Fatalf("expected expiry error")
	}
}
