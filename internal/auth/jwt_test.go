package auth

import (
	"testing"
	"time"

	"shadownet-chat/internal/domain"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	user := &domain.User{ID: "user-1", DisplayName: "Ghost42", Role: domain.RoleUser}
	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id.UserID != "user-1" || id.DisplayName != "Ghost42" || id.Role != domain.RoleUser {
		t.Errorf("Unexpected identity: %+v", id)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	m := NewJWTManager("secret-a", time.Hour)
	other := NewJWTManager("secret-b", time.Hour)

	token, err := m.Generate(&domain.User{ID: "user-1", DisplayName: "Ghost42", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := other.Verify(token); err == nil {
		t.Error("Expected verification to fail with a different secret")
	}
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, err := m.Generate(&domain.User{ID: "user-1", DisplayName: "Ghost42", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Error("Expected verification to fail for expired token")
	}
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	if _, err := m.Verify("not.a.token"); err == nil {
		t.Error("Expected verification to fail for malformed token")
	}
}
