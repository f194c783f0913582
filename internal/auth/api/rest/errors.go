package rest

import (
	"log"
	"net/http"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError converts a domain error to its wire shape. Codes travel to the
// client; cause detail stays in the server log.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    string(code),
		Message: userSafeMessage(code, err),
	}})
}

// userSafeMessage keeps wire messages free of internal detail. Validation
// codes carry their own safe messages through.
func userSafeMessage(code apperrors.Code, err error) string {
	switch code {
	case apperrors.CodeChallengeNotFound,
		apperrors.CodeChallengeSessionMismatch,
		apperrors.CodeChallengeTypeMismatch:
		return "invalid or expired challenge"
	case apperrors.CodeOriginMismatch:
		return "response origin is not accepted"
	case apperrors.CodeSignatureInvalid,
		apperrors.CodeCredentialNotRecognized:
		return "passkey could not be verified"
	case apperrors.CodeCounterNotIncrementing:
		return "passkey may be cloned, contact support"
	case apperrors.CodeTokenExpired,
		apperrors.CodeTokenInvalid:
		return "authentication required"
	case apperrors.CodeIdentityAssertionInvalid:
		return "login failed"
	case apperrors.CodeAccountNotApproved:
		return "account is not approved"
	case apperrors.CodeCredentialConflict:
		return "passkey is already enrolled"
	case apperrors.CodeTwoFactorRequiresCredential:
		return "enroll a passkey before enabling two-factor"
	case apperrors.CodeNotFound:
		return "not found"
	case apperrors.CodeStoreUnavailable:
		return "storage temporarily unavailable, retry shortly"
	case apperrors.CodeNameValidationFailed,
		apperrors.CodeInvalidRequest,
		apperrors.CodeUserEmptyEmail,
		apperrors.CodeUserInvalidEmail:
		if appErr, ok := err.(*apperrors.Error); ok {
			return appErr.Message
		}
		return "invalid request"
	default:
		return "internal error"
	}
}
