package services_test

import (
	"testing"
	"time"

	"minigames-backend/internal/config"
	"minigames-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := jwtService.GenerateToken(42, time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("Expected user id 42, got %d", claims.UserID)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := services.NewJWTService(&config.Config{JWTSecret: "secret-a"})
	verifier := services.NewJWTService(&config.Config{JWTSecret: "secret-b"})

	token, err := issuer.GenerateToken(42, time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("Token signed with a different secret should be rejected")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := jwtService.GenerateToken(42, -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := jwtService.ValidateToken(token); err == nil {
		t.Error("Expired token should be rejected")
	}
}
