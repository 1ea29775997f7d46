package auth

import (
	"testing"
	"time"
)

func TestJWTManager_GenerateAndParse(t *testing.T) {
	manager := NewJWTManager("secret", "", time.Hour)
	token, err := manager.GenerateToken("user-1", "user@example.com", RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "user@example.com" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := manager.ParseToken(token + "tampered"); err == nil {
		t.Fatalf("expected parse error for tampered token")
	}
}

func TestJWTManager_EmptySecret(t *testing.T) {
	manager := NewJWTManager("", "", time.Hour)
	if _, err := manager.GenerateToken("user", "user@example.com", RoleMember); err == nil {
		t.Fatalf("expected error when secret is empty")
	}
}

func TestJWTManager_IssuerCheck(t *testing.T) {
	portal := NewJWTManager("secret", "https://portal.example.com", time.Hour)
	other := NewJWTManager("secret", "https://other.example.com", time.Hour)

	token, err := other.GenerateToken("user-1", "user@example.com", RoleMember)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := portal.ParseToken(token); err == nil {
		t.Fatalf("expected issuer mismatch to be rejected")
	}

	own, err := portal.GenerateToken("user-1", "user@example.com", RoleMember)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := portal.ParseToken(own); err != nil {
		t.Fatalf("expected matching issuer to pass: %v", err)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	manager := NewJWTManager("secret", "", time.Nanosecond)
	token, err := manager.GenerateToken("user-1", "user@example.com", RoleMember)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
