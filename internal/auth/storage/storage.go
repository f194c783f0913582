// Package storage defines the durable store contract for the auth service.
//
// All cross-request state (challenges, credentials, the two-factor flag)
// lives behind these interfaces; request handlers hold no shared mutable
// state of their own.
package storage

import (
	"context"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/credential"
	"github.com/gatehouse-auth/gatehouse/internal/auth/user"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrConflict indicates a unique-constraint violation on insert.
var ErrConflict = apperrors.New(apperrors.CodeCredentialConflict, "credential already enrolled")

// ErrStaleCounter indicates a guarded counter update lost to a concurrent
// authentication that already persisted an equal or higher counter.
var ErrStaleCounter = apperrors.New(apperrors.CodeCounterNotIncrementing, "credential counter did not increase")

// Challenge stores one single-use ceremony nonce.
//
// Value is the base64url challenge material echoed back in client data;
// UserID is empty for unbound (standalone) challenges.
type Challenge struct {
	Value     string
	Purpose   string
	UserID    string
	ExpiresAt time.Time
}

// UserStore persists account identity records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	SetTwoFactor(ctx context.Context, userID string, enabled bool, at time.Time) error
	SetLastLogin(ctx context.Context, userID string, at time.Time) error
}

// CredentialStore persists enrolled passkey credentials.
type CredentialStore interface {
	// CreateCredential inserts a new credential; a duplicate credential
	// identifier fails with ErrConflict and leaves the first record intact.
	CreateCredential(ctx context.Context, c credential.Credential) error
	GetCredential(ctx context.Context, credentialID string) (credential.Credential, error)
	ListCredentials(ctx context.Context, userID string) ([]credential.Credential, error)
	// UpdateCounter persists a post-verification counter and last-used
	// timestamp. The update is guarded: it applies only while the stored
	// counter is still below the new value (or both are zero), so two
	// concurrent authentications cannot both commit stale counters.
	UpdateCounter(ctx context.Context, credentialID string, newCount uint32, usedAt time.Time) error
	RenameCredential(ctx context.Context, credentialID, userID, name string, at time.Time) error
	// DeleteCredential removes a credential owned by userID. Deleting the
	// user's last credential force-disables their two-factor flag within
	// the same transaction; the second return reports that side effect.
	DeleteCredential(ctx context.Context, credentialID, userID string, at time.Time) (credential.Credential, bool, error)
}

// ChallengeStore persists single-use ceremony challenges.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, c Challenge) error
	// ConsumeChallenge atomically removes and returns a live challenge.
	// Expired rows behave exactly like absent rows even before a sweep
	// physically removes them. At most one concurrent caller observes a
	// given value.
	ConsumeChallenge(ctx context.Context, value string, now time.Time) (Challenge, error)
	DeleteChallenge(ctx context.Context, value string) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}
