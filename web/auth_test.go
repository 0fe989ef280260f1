package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bet-manager/config"
)

func testServer() *Server {
	return &Server{
		config: &config.Config{
			JWTSecret:      "test-secret",
			TokenExpiresIn: time.Hour,
		},
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := testServer()

	token, err := s.createToken(42, "alice")
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}

	userID, err := s.parseToken(token)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if userID != 42 {
		t.Errorf("Expected user id 42, got %d", userID)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	s := testServer()
	token, err := s.createToken(42, "alice")
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}

	other := &Server{config: &config.Config{JWTSecret: "another-secret"}}
	if _, err := other.parseToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	s := testServer()
	s.config.TokenExpiresIn = -time.Minute

	token, err := s.createToken(42, "alice")
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}
	if _, err := s.parseToken(token); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}

func TestRequireAuth(t *testing.T) {
	s := testServer()

	var gotUserID int64
	handler := s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = authenticatedUserID(r)
		w.WriteHeader(http.StatusOK)
	})

	// 无令牌
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/api/users/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}

	// 有效令牌
	token, err := s.createToken(7, "bob")
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}
	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d", rec.Code)
	}
	if gotUserID != 7 {
		t.Errorf("Expected user id 7 in context, got %d", gotUserID)
	}
}
