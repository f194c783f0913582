// Package credential models enrolled passkey authenticators.
package credential

import (
	"encoding/base64"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// MaxNameLength bounds user-assigned friendly labels.
const MaxNameLength = 100

var (
	// ErrEmptyName indicates a friendly label with no visible characters.
	ErrEmptyName = apperrors.New(apperrors.CodeNameValidationFailed, "credential name is required")
	// ErrNameTooLong indicates a friendly label over the length bound.
	ErrNameTooLong = apperrors.New(apperrors.CodeNameValidationFailed, "credential name must be at most 100 characters")
	// ErrNameControlCharacters indicates a friendly label containing control characters.
	ErrNameControlCharacters = apperrors.New(apperrors.CodeNameValidationFailed, "credential name must not contain control characters")
)

// Category is the closed set of authenticator attachment categories.
type Category string

const (
	// CategoryPlatform is an authenticator embedded in the client device.
	CategoryPlatform Category = "platform"
	// CategoryCrossPlatform is a roaming authenticator such as a security key.
	CategoryCrossPlatform Category = "cross-platform"
)

// ParseCategory normalizes a category string, defaulting to cross-platform.
func ParseCategory(s string) Category {
	if strings.TrimSpace(strings.ToLower(s)) == string(CategoryPlatform) {
		return CategoryPlatform
	}
	return CategoryCrossPlatform
}

// DefaultName returns the label assigned when the user does not provide one.
func (c Category) DefaultName() string {
	if c == CategoryPlatform {
		return "Platform passkey"
	}
	return "Security key"
}

// Credential is one enrolled authenticator for one user.
//
// ID is the base64url encoding of the raw credential identifier; SignCount
// must never decrease across successful authentications.
type Credential struct {
	ID             string
	UserID         string
	PublicKey      []byte
	SignCount      uint32
	Category       Category
	Transports     []string
	AAGUID         []byte
	BackupEligible bool
	BackupState    bool
	Name           string
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

// EncodeID converts a raw credential identifier to its transport encoding.
func EncodeID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeID converts a transport-encoded credential identifier back to bytes.
func DecodeID(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}

// NormalizeName validates and canonicalizes a friendly label: surrounding
// whitespace is trimmed, internal runs collapse to a single space.
func NormalizeName(name string) (string, error) {
	collapsed := strings.Join(strings.Fields(name), " ")
	if collapsed == "" {
		return "", ErrEmptyName
	}
	for _, r := range collapsed {
		if unicode.IsControl(r) {
			return "", ErrNameControlCharacters
		}
	}
	if utf8.RuneCountInString(collapsed) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return collapsed, nil
}
