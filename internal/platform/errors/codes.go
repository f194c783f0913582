// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Challenge errors
	CodeChallengeNotFound        Code = "CHALLENGE_NOT_FOUND"
	CodeChallengeSessionMismatch Code = "CHALLENGE_SESSION_MISMATCH"
	CodeChallengeTypeMismatch    Code = "CHALLENGE_TYPE_MISMATCH"

	// Ceremony verification errors
	CodeOriginMismatch          Code = "ORIGIN_MISMATCH"
	CodeSignatureInvalid        Code = "SIGNATURE_INVALID"
	CodeCounterNotIncrementing  Code = "COUNTER_NOT_INCREMENTING"
	CodeCredentialNotRecognized Code = "CREDENTIAL_NOT_RECOGNIZED"

	// Credential management errors
	CodeCredentialConflict   Code = "CREDENTIAL_CONFLICT"
	CodeNameValidationFailed Code = "NAME_VALIDATION_FAILED"

	// Account errors
	CodeAccountNotApproved          Code = "ACCOUNT_NOT_APPROVED"
	CodeTwoFactorRequiresCredential Code = "TWO_FACTOR_REQUIRES_CREDENTIAL"
	CodeUserEmptyEmail              Code = "USER_EMPTY_EMAIL"
	CodeUserInvalidEmail            Code = "USER_INVALID_EMAIL"

	// Session token errors
	CodeTokenExpired Code = "TOKEN_EXPIRED"
	CodeTokenInvalid Code = "TOKEN_INVALID"

	// Federated identity errors
	CodeIdentityAssertionInvalid Code = "IDENTITY_ASSERTION_INVALID"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Unauthorized - rejected ceremonies and bad tokens
	case CodeChallengeNotFound,
		CodeChallengeSessionMismatch,
		CodeChallengeTypeMismatch,
		CodeOriginMismatch,
		CodeSignatureInvalid,
		CodeCounterNotIncrementing,
		CodeCredentialNotRecognized,
		CodeTokenExpired,
		CodeTokenInvalid,
		CodeIdentityAssertionInvalid:
		return http.StatusUnauthorized

	// Forbidden - account state disallows access
	case CodeAccountNotApproved:
		return http.StatusForbidden

	// Not found
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - unique constraints and state preconditions
	case CodeCredentialConflict,
		CodeTwoFactorRequiresCredential:
		return http.StatusConflict

	// Bad request - validation failures
	case CodeNameValidationFailed,
		CodeUserEmptyEmail,
		CodeUserInvalidEmail,
		CodeInvalidRequest:
		return http.StatusBadRequest

	// Transient storage failures
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
