// Package challenge manages single-use, time-boxed ceremony challenges.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// Purpose describes which ceremony a challenge belongs to.
type Purpose string

const (
	// PurposeRegistration marks challenges minted for attestation ceremonies.
	PurposeRegistration Purpose = "registration"
	// PurposeAuthentication marks challenges minted for assertion ceremonies.
	PurposeAuthentication Purpose = "authentication"
)

// TTL is the fixed challenge validity window.
const TTL = 5 * time.Minute

// entropyBytes sizes generated challenge material.
const entropyBytes = 32

// ErrNotFound indicates a challenge that is absent, already consumed, or
// past expiry; the three cases are indistinguishable by design.
var ErrNotFound = apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found or expired")

// Store issues and consumes single-use challenges backed by durable storage.
type Store struct {
	challenges storage.ChallengeStore
	clock      func() time.Time
}

// NewStore builds a challenge store over durable storage.
func NewStore(challenges storage.ChallengeStore) *Store {
	return &Store{challenges: challenges, clock: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// Issue persists a fresh challenge with expiry now+TTL and returns it.
//
// An empty value generates new random material; callers that already hold
// ceremony-option material (minted by the WebAuthn engine) pass it through
// so the stored value matches what the client will echo back. An empty
// boundUserID produces an unbound challenge any enrolled credential may
// answer.
func (s *Store) Issue(ctx context.Context, purpose Purpose, boundUserID, value string) (storage.Challenge, error) {
	if value == "" {
		raw := make([]byte, entropyBytes)
		if _, err := rand.Read(raw); err != nil {
			return storage.Challenge{}, fmt.Errorf("generate challenge material: %w", err)
		}
		value = base64.RawURLEncoding.EncodeToString(raw)
	}

	record := storage.Challenge{
		Value:     value,
		Purpose:   string(purpose),
		UserID:    boundUserID,
		ExpiresAt: s.clock().UTC().Add(TTL),
	}
	if err := s.challenges.PutChallenge(ctx, record); err != nil {
		return storage.Challenge{}, err
	}
	return record, nil
}

// Consume removes and returns the live challenge for value. Once consumed a
// value never compares valid again; expired values behave as absent.
func (s *Store) Consume(ctx context.Context, value string) (storage.Challenge, error) {
	if value == "" {
		return storage.Challenge{}, ErrNotFound
	}
	record, err := s.challenges.ConsumeChallenge(ctx, value, s.clock().UTC())
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return storage.Challenge{}, ErrNotFound
		}
		return storage.Challenge{}, err
	}
	return record, nil
}

// Invalidate deletes the challenge regardless of ceremony outcome. Deleting
// an already-consumed value is a no-op.
func (s *Store) Invalidate(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	return s.challenges.DeleteChallenge(ctx, value)
}

// SweepExpired deletes challenges past expiry and returns the count removed.
// Storage hygiene only: Consume enforces expiry on its own.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	return s.challenges.DeleteExpiredChallenges(ctx, s.clock().UTC())
}
