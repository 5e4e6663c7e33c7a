package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesTokens(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "mealog-test",
		Audience:      "mealog-test-api",
		TokenTTL:      30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	issued, err := issuer.IssueToken(context.Background(), "owner")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !issued.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %v", issued.ExpiresAt)
	}

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}

	_, err = parser.ParseWithClaims(issued.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "owner" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "mealog-test" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "mealog-test-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerRejectsMissingSecret(t *testing.T) {
	_, err := NewTokenIssuer(TokenIssuerConfig{TokenTTL: 30 * time.Minute})
	if err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("another-secret"),
		TokenTTL:      15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	issued, err := issuer.IssueToken(context.Background(), "owner")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	subject, err := issuer.ValidateToken(issued.Token)
	if err != nil {
		t.Fatalf("expected token to validate: %v", err)
	}
	if subject != "owner" {
		t.Fatalf("unexpected subject %s", subject)
	}

	other, err := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("wrong-secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := other.ValidateToken(issued.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected validation to fail with the wrong secret, got %v", err)
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	issued, err := issuer.IssueToken(context.Background(), "owner")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	later, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Clock:         func() time.Time { return now.Add(2 * time.Minute) },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := later.ValidateToken(issued.Token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestValidateRequestReadsBearerHeader(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	issued, err := issuer.IssueToken(context.Background(), "owner")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	request := httptest.NewRequest("GET", "/meals", nil)
	if _, err := issuer.ValidateRequest(request); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}

	request.Header.Set("Authorization", "Bearer "+issued.Token)
	subject, err := issuer.ValidateRequest(request)
	if err != nil || subject != "owner" {
		t.Fatalf("expected bearer token to validate, got %q %v", subject, err)
	}

	if _, err := issuer.IssueToken(context.Background(), " "); err == nil {
		t.Fatalf("expected an empty subject to be rejected")
	}
}
