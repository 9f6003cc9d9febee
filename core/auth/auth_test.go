package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword("hunter2", hash) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword("hunter3", hash) {
		t.Fatal("wrong password must not verify")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Generate(42, "mix@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "mix@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return issued }
	token, err := m.Generate(1, "a@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}

	other := NewTokenManager("other-secret", time.Hour)
	other.now = func() time.Time { return issued }
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to be invalid, got %v", err)
	}
}
