package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shadownet-chat/internal/auth"
	"shadownet-chat/internal/domain"
)

func issueToken(t *testing.T, manager *auth.JWTManager, role string) string {
	t.Helper()
	token, err := manager.Generate(&domain.User{ID: "user-1", DisplayName: "SilentGhost42", Role: role})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return token
}

func TestAuth_ValidBearerToken(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	token := issueToken(t, manager, domain.RoleUser)

	var got *domain.Identity
	handler := Auth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetIdentity(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got == nil || got.UserID != "user-1" || got.DisplayName != "SilentGhost42" {
		t.Errorf("Unexpected identity: %+v", got)
	}
}

func TestAuth_QueryTokenFallback(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	token := issueToken(t, manager, domain.RoleUser)

	handler := Auth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 via query token, got %d", rec.Code)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	handler := Auth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	handler := Auth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/shadow/stats", nil)
	req = req.WithContext(WithIdentity(req.Context(), &domain.Identity{UserID: "user-1", Role: domain.RoleUser}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for USER role, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/shadow/stats", nil)
	req = req.WithContext(WithIdentity(req.Context(), &domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for ADMIN role, got %d", rec.Code)
	}
}

func TestRequireAdmin_NoIdentity(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/shadow/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without identity, got %d", rec.Code)
	}
}
