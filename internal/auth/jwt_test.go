package auth

import (
	"errors"
	"testing"
	"time"

	"showtracker/models"
)

func newTestIssuer(t *testing.T, expiry time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("test-signing-key", "showtracker", "showtracker", expiry)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	return issuer
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	user := &models.User{ID: 7, Username: "walter", Email: "walter@example.com", IsAdmin: true}
	token, err := issuer.Generate(user)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Username != "walter" || claims.Email != "walter@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected admin role, got %q", claims.Role)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("user id parse failed: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected user id 7, got %d", id)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t, -time.Minute)

	token, err := issuer.Generate(&models.User{ID: 1, Username: "u"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	other, err := NewTokenIssuer("other-key", "showtracker", "showtracker", time.Hour)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	token, err := other.Generate(&models.User{ID: 1, Username: "u"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong key, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	if _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenIssuerRequiresKey(t *testing.T) {
	if _, err := NewTokenIssuer("", "i", "a", time.Hour); err == nil {
		t.Fatal("expected error for empty key")
	}
}
