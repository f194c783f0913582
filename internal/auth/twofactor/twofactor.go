// Package twofactor gates account logins behind passkey possession.
package twofactor

import (
	"context"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// ErrRequiresCredential indicates an enable attempt with no enrolled
// passkeys, which would lock the account out of its own second factor.
var ErrRequiresCredential = apperrors.New(apperrors.CodeTwoFactorRequiresCredential, "two-factor requires at least one enrolled passkey")

// Service manages the per-account two-factor requirement flag.
type Service struct {
	users       storage.UserStore
	credentials storage.CredentialStore
	clock       func() time.Time
}

// NewService builds a two-factor service over durable storage.
func NewService(users storage.UserStore, credentials storage.CredentialStore) *Service {
	return &Service{users: users, credentials: credentials, clock: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Status reports whether two-factor is currently required for the account.
func (s *Service) Status(ctx context.Context, userID string) (bool, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.TwoFactorEnabled, nil
}

// Enable turns the two-factor requirement on. At least one passkey must be
// enrolled first; enabling when already enabled is a no-op.
func (s *Service) Enable(ctx context.Context, userID string) error {
	credentials, err := s.credentials.ListCredentials(ctx, userID)
	if err != nil {
		return err
	}
	if len(credentials) == 0 {
		return ErrRequiresCredential
	}
	return s.users.SetTwoFactor(ctx, userID, true, s.clock().UTC())
}

// Disable turns the two-factor requirement off. Always permitted, including
// when already disabled.
func (s *Service) Disable(ctx context.Context, userID string) error {
	return s.users.SetTwoFactor(ctx, userID, false, s.clock().UTC())
}
