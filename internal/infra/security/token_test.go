package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func sampleClaims(now time.Time) domain.SessionClaims {
	return domain.SessionClaims{
		SessionID:     "jti-1",
		PrincipalID:   "42",
		PrincipalKind: domain.PrincipalVendorUser,
		Role:          domain.CustomRef(9),
		IssuedAt:      now,
		ExpiresAt:     now.Add(24 * time.Hour),
		StartedAt:     now,
	}
}

func TestHMACSignerRoundTrip(t *testing.T) {
	signer, err := NewHMACSigner(testSecret, "backoffice")
	if err != nil {
		t.Fatalf("NewHMACSigner: %v", err)
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	token, err := signer.Sign(sampleClaims(now))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.SessionID != "jti-1" || claims.PrincipalID != "42" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if claims.PrincipalKind != domain.PrincipalVendorUser {
		t.Fatalf("unexpected kind %s", claims.PrincipalKind)
	}
	if id, ok := claims.Role.Custom(); !ok || id != 9 {
		t.Fatalf("expected custom role 9, got %s", claims.Role)
	}
	if !claims.ExpiresAt.Equal(now.Add(24*time.Hour)) || !claims.StartedAt.Equal(now) {
		t.Fatalf("unexpected times: %+v", claims)
	}
}

func TestHMACSignerParseIgnoresExpiry(t *testing.T) {
	signer, _ := NewHMACSigner(testSecret, "backoffice")
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	token, err := signer.Sign(sampleClaims(past))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("expected expired token to parse, got %v", err)
	}
	if !claims.ExpiresAt.Before(time.Now()) {
		t.Fatalf("expected expiry in the past")
	}
}

func TestHMACSignerRejectsTamperedToken(t *testing.T) {
	signer, _ := NewHMACSigner(testSecret, "backoffice")
	token, err := signer.Sign(sampleClaims(time.Now()))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := signer.Parse(tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestHMACSignerRejectsForeignSecret(t *testing.T) {
	signer, _ := NewHMACSigner(testSecret, "backoffice")
	other, _ := NewHMACSigner([]byte("ffffffffffffffffffffffffffffffff"), "backoffice")

	token, err := other.Sign(sampleClaims(time.Now()))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := signer.Parse(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestHMACSignerRejectsNoneAlgorithm(t *testing.T) {
	signer, _ := NewHMACSigner(testSecret, "backoffice")
	body := SessionTokenClaims{
		Kind:         "admin",
		Role:         domain.SystemRef(domain.SystemAdmin).Claim(),
		SessionStart: time.Now().Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Subject:   "1",
			Issuer:    "backoffice",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, body).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := signer.Parse(unsigned); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestHMACSignerRejectsWrongIssuer(t *testing.T) {
	signer, _ := NewHMACSigner(testSecret, "backoffice")
	other, _ := NewHMACSigner(testSecret, "someone-else")

	token, err := other.Sign(sampleClaims(time.Now()))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := signer.Parse(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestNewHMACSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewHMACSigner([]byte("short"), "backoffice"); err != ErrSecretTooShort {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
}
