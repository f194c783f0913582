package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() Config {
	return Config{Issuer: "gatehouse-test", FullTTL: 24 * time.Hour, TempTTL: 5 * time.Minute}
}

func TestIssueAndVerifyFull(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return now })

	signed, err := issuer.IssueFull("casey@example.com", "Casey Doe")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	session, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.Email != "casey@example.com" {
		t.Fatalf("unexpected email %q", session.Email)
	}
	if session.Name != "Casey Doe" {
		t.Fatalf("unexpected name %q", session.Name)
	}
	if session.Temporary {
		t.Fatal("expected full token")
	}
	if !session.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}
}

func TestIssueTemporaryIsMarked(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return now })

	signed, err := issuer.IssueTemporary("casey@example.com", "Casey Doe")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	session, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !session.Temporary {
		t.Fatal("expected temporary marker")
	}
	if !session.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}
}

// Full and temporary tokens share one claim shape: the temp marker is the
// only key that distinguishes them.
func TestFullAndTemporaryTokensShareClaimShape(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return now })

	full, err := issuer.IssueFull("casey@example.com", "Casey Doe")
	if err != nil {
		t.Fatalf("issue full: %v", err)
	}
	temp, err := issuer.IssueTemporary("casey@example.com", "Casey Doe")
	if err != nil {
		t.Fatalf("issue temporary: %v", err)
	}

	fullKeys := claimKeys(t, full)
	tempKeys := claimKeys(t, temp)

	if _, ok := fullKeys["temp"]; ok {
		t.Fatal("full token must not carry the temp marker")
	}
	if _, ok := tempKeys["temp"]; !ok {
		t.Fatal("temporary token must carry the temp marker")
	}
	delete(tempKeys, "temp")

	if len(fullKeys) != len(tempKeys) {
		t.Fatalf("claim key sets differ: full %v, temp %v", fullKeys, tempKeys)
	}
	for key := range fullKeys {
		if _, ok := tempKeys[key]; !ok {
			t.Fatalf("claim %q present only in the full token", key)
		}
	}
}

func claimKeys(t *testing.T, signed string) map[string]struct{} {
	t.Helper()
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("expected a three-part JWT, got %d parts", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	keys := make(map[string]struct{}, len(claims))
	for key := range claims {
		keys[key] = struct{}{}
	}
	return keys
}

func TestVerifyExpired(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return now })

	signed, err := issuer.IssueTemporary("casey@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(6 * time.Minute)
	if _, err := issuer.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	other, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	signed, err := other.IssueFull("casey@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	signed, err := issuer.IssueFull("casey@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token parts, got %d", len(parts))
	}
	payload := []byte(`{"iss":"gatehouse-test","sub":"mallory@example.com"}`)
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)
	tampered := strings.Join(parts, ".")

	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	claims := jwt.RegisteredClaims{Issuer: "gatehouse-test", Subject: "casey@example.com"}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSeedDerivesStableKey(t *testing.T) {
	seed := base64.RawURLEncoding.EncodeToString(make([]byte, ed25519.SeedSize))
	config := testConfig()
	config.Seed = seed

	first, err := NewIssuer(config)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	second, err := NewIssuer(config)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	signed, err := first.IssueFull("casey@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := second.Verify(signed); err != nil {
		t.Fatalf("expected seed-derived issuers to share a key: %v", err)
	}
}

func TestNewIssuerRejectsBadSeed(t *testing.T) {
	config := testConfig()
	config.Seed = "not base64!!"
	if _, err := NewIssuer(config); err == nil {
		t.Fatal("expected error for malformed seed")
	}

	config.Seed = base64.RawURLEncoding.EncodeToString([]byte("short"))
	if _, err := NewIssuer(config); err == nil {
		t.Fatal("expected error for short seed")
	}
}
