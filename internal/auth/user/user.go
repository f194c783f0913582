// Package user provides account identity records for the auth service.
package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
	"github.com/gatehouse-auth/gatehouse/internal/platform/id"
)

var (
	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = apperrors.New(apperrors.CodeUserEmptyEmail, "email is required")
	// ErrInvalidEmail indicates an email that does not match the required format.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserInvalidEmail, "email must be a valid address")

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// User represents an authenticated identity record.
//
// TwoFactorEnabled is co-terminous with the account: it is the durable flag
// the gating state machine reads after a primary login.
type User struct {
	ID               string
	Email            string
	DisplayName      string
	Approved         bool
	TwoFactorEnabled bool
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateUserInput describes the metadata needed to create a user.
type CreateUserInput struct {
	Email       string
	DisplayName string
}

// ValidateEmail enforces the canonical address format used as the stable
// account key across federated and passkey logins.
func ValidateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// CreateUser creates a durable user identity from validated input.
//
// New accounts start unapproved; an operator flips the flag before the
// account can complete any login.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateUserInput(input)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:          userID,
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateUserInput trims and normalizes input before validation.
func NormalizeCreateUserInput(input CreateUserInput) (CreateUserInput, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" {
		return CreateUserInput{}, ErrEmptyEmail
	}
	if err := ValidateEmail(input.Email); err != nil {
		return CreateUserInput{}, err
	}
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		input.DisplayName = input.Email
	}
	return input, nil
}
