package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

type assertionInput struct {
	issuer   string
	audience string
	email    string
	name     string
	expires  time.Time
}

func signAssertion(t *testing.T, key ed25519.PrivateKey, input assertionInput) string {
	t.Helper()
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    input.issuer,
			Audience:  jwt.ClaimStrings{input.audience},
			ExpiresAt: jwt.NewNumericDate(input.expires),
		},
		Email: input.email,
		Name:  input.name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}
	return signed
}

func newVerifier(t *testing.T, key ed25519.PublicKey, now time.Time) *JWTVerifier {
	t.Helper()
	verifier, err := NewJWTVerifier(Config{
		Issuer:   "idp.example.com",
		Audience: "gatehouse",
		Key:      key,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return verifier
}

func TestVerifyAssertion(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	verifier := newVerifier(t, publicKey, now)

	signed := signAssertion(t, privateKey, assertionInput{
		issuer:   "idp.example.com",
		audience: "gatehouse",
		email:    " Casey@Example.COM ",
		name:     " Casey Doe ",
		expires:  now.Add(time.Minute),
	})

	got, err := verifier.VerifyAssertion(context.Background(), signed)
	if err != nil {
		t.Fatalf("verify assertion: %v", err)
	}
	if got.Email != "casey@example.com" {
		t.Fatalf("expected normalized email, got %q", got.Email)
	}
	if got.Name != "Casey Doe" {
		t.Fatalf("expected trimmed name, got %q", got.Name)
	}
}

func TestVerifyAssertionRejections(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, foreignKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	verifier := newVerifier(t, publicKey, now)

	valid := assertionInput{
		issuer:   "idp.example.com",
		audience: "gatehouse",
		email:    "casey@example.com",
		expires:  now.Add(time.Minute),
	}

	tests := []struct {
		name      string
		assertion string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong key", signAssertion(t, foreignKey, valid)},
		{"wrong issuer", signAssertion(t, privateKey, assertionInput{
			issuer: "other.example.com", audience: valid.audience, email: valid.email, expires: valid.expires,
		})},
		{"wrong audience", signAssertion(t, privateKey, assertionInput{
			issuer: valid.issuer, audience: "other-service", email: valid.email, expires: valid.expires,
		})},
		{"expired", signAssertion(t, privateKey, assertionInput{
			issuer: valid.issuer, audience: valid.audience, email: valid.email, expires: now.Add(-time.Minute),
		})},
		{"missing email", signAssertion(t, privateKey, assertionInput{
			issuer: valid.issuer, audience: valid.audience, expires: valid.expires,
		})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.VerifyAssertion(context.Background(), tc.assertion)
			if apperrors.GetCode(err) != apperrors.CodeIdentityAssertionInvalid {
				t.Fatalf("expected identity assertion error, got %v", err)
			}
		})
	}
}

func TestNewJWTVerifierRequiresConfig(t *testing.T) {
	if _, err := NewJWTVerifier(Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}
