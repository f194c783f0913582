// Package token issues and verifies signed session tokens.
//
// Tokens are EdDSA-signed JWTs. Full tokens grant authenticated access;
// temporary tokens exist only to carry an account identity between a
// first-factor login and the passkey second factor, and are marked so the
// two can never be confused.
package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// Config holds token signing settings sourced from the environment.
//
// Seed is the base64 (raw url, unpadded) ed25519 private key seed. When
// unset a fresh key is generated at startup, which invalidates outstanding
// tokens on restart.
type Config struct {
	Issuer  string        `env:"GATEHOUSE_TOKEN_ISSUER" envDefault:"gatehouse"`
	Seed    string        `env:"GATEHOUSE_TOKEN_SEED"`
	FullTTL time.Duration `env:"GATEHOUSE_TOKEN_TTL" envDefault:"24h"`
	TempTTL time.Duration `env:"GATEHOUSE_TOKEN_TEMP_TTL" envDefault:"5m"`
}

var (
	// ErrExpired indicates a token past its expiry.
	ErrExpired = apperrors.New(apperrors.CodeTokenExpired, "session token expired")
	// ErrInvalid indicates a token that failed parsing or signature checks.
	ErrInvalid = apperrors.New(apperrors.CodeTokenInvalid, "session token invalid")
)

// Claims is the session token payload. Subject carries the account email.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Temp bool   `json:"temp,omitempty"`
}

// Session is the verified identity carried by a token.
type Session struct {
	Email     string
	Name      string
	Temporary bool
	ExpiresAt time.Time
}

// Issuer signs and verifies session tokens with a single ed25519 key pair.
type Issuer struct {
	config     Config
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	clock      func() time.Time
}

// NewIssuer builds an Issuer from config, deriving the key pair from the
// configured seed or generating an ephemeral one when no seed is set.
func NewIssuer(config Config) (*Issuer, error) {
	var privateKey ed25519.PrivateKey
	if config.Seed == "" {
		var err error
		_, privateKey, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	} else {
		seed, err := base64.RawURLEncoding.DecodeString(config.Seed)
		if err != nil {
			return nil, fmt.Errorf("decode signing seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		privateKey = ed25519.NewKeyFromSeed(seed)
	}
	return &Issuer{
		config:     config,
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
		clock:      time.Now,
	}, nil
}

// WithClock overrides the time source. Test hook.
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	i.clock = clock
	return i
}

// PublicKey returns the verification key for the issuer's signatures.
func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// IssueFull signs a full session token for an authenticated account.
func (i *Issuer) IssueFull(email, name string) (string, error) {
	return i.sign(email, name, false, i.config.FullTTL)
}

// IssueTemporary signs a short-lived token that identifies an account which
// still owes its passkey second factor. It never grants session access.
func (i *Issuer) IssueTemporary(email, name string) (string, error) {
	return i.sign(email, name, true, i.config.TempTTL)
}

func (i *Issuer) sign(email, name string, temporary bool, ttl time.Duration) (string, error) {
	now := i.clock().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
		Temp: temporary,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a token, checks its signature and expiry, and returns the
// session it carries. Expiry maps to ErrExpired, anything else to ErrInvalid.
func (i *Issuer) Verify(tokenString string) (Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return i.publicKey, nil },
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(func() time.Time { return i.clock().UTC() }),
	)
	if err != nil {
		return Session{}, mapJWTError(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Session{}, ErrInvalid
	}
	session := Session{
		Email:     claims.Subject,
		Name:      claims.Name,
		Temporary: claims.Temp,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.Wrap(apperrors.CodeTokenExpired, "session token expired", err)
	}
	return apperrors.Wrap(apperrors.CodeTokenInvalid, "session token invalid", err)
}
