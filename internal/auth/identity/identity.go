// Package identity verifies signed assertions from the upstream identity
// provider that performs first-factor authentication.
package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// assertionEnv holds raw env values before post-parse validation.
type assertionEnv struct {
	Issuer    string `env:"GATEHOUSE_IDP_ISSUER"`
	Audience  string `env:"GATEHOUSE_IDP_AUDIENCE"`
	PublicKey string `env:"GATEHOUSE_IDP_PUBLIC_KEY"`
}

// Config defines how identity assertions are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Identity is the verified account identity carried by an assertion.
type Identity struct {
	Email string
	Name  string
}

// Verifier checks identity assertions from the upstream provider.
//
// The abstraction exists so deployments can swap providers without touching
// login orchestration.
type Verifier interface {
	VerifyAssertion(ctx context.Context, assertion string) (Identity, error)
}

// assertionClaims is the internal claims type used for JWT parsing.
type assertionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoadConfigFromEnv reads assertion verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw assertionEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse identity provider env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("GATEHOUSE_IDP_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("GATEHOUSE_IDP_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("GATEHOUSE_IDP_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode identity provider public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("identity provider public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// JWTVerifier verifies EdDSA-signed identity assertions.
type JWTVerifier struct {
	config Config
}

// NewJWTVerifier builds a verifier from config.
func NewJWTVerifier(config Config) (*JWTVerifier, error) {
	if config.Issuer == "" || config.Audience == "" || len(config.Key) != ed25519.PublicKeySize {
		return nil, errors.New("identity verifier is not configured")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &JWTVerifier{config: config}, nil
}

// VerifyAssertion checks signature, issuer, audience, expiry, and the email
// claim, and returns the asserted identity.
func (v *JWTVerifier) VerifyAssertion(_ context.Context, assertion string) (Identity, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return Identity{}, apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion is required")
	}

	var parsed assertionClaims
	_, err := jwt.ParseWithClaims(assertion, &parsed, func(token *jwt.Token) (any, error) {
		return v.config.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.config.Issuer {
		return Identity{}, apperrors.WithMetadata(
			apperrors.CodeIdentityAssertionInvalid,
			"identity assertion issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, v.config.Audience) {
		return Identity{}, apperrors.WithMetadata(
			apperrors.CodeIdentityAssertionInvalid,
			"identity assertion audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return Identity{}, apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion exp is required")
	}

	now := v.config.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return Identity{}, apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Identity{}, apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion not active yet")
	}

	email := strings.TrimSpace(strings.ToLower(parsed.Email))
	if email == "" {
		return Identity{}, apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion email is required")
	}

	return Identity{Email: email, Name: strings.TrimSpace(parsed.Name)}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion alg is invalid")
	}
	return apperrors.New(apperrors.CodeIdentityAssertionInvalid, "identity assertion is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
