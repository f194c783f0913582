package rest

import (
	"net/http"

	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

type federatedLoginRequest struct {
	Assertion string `json:"assertion"`
}

type federatedLoginResponse struct {
	TwoFactorRequired bool         `json:"twoFactorRequired"`
	AccessToken       string       `json:"accessToken"`
	User              *userSummary `json:"user,omitempty"`
}

// handleFederatedLogin exchanges an identity provider assertion for a
// session token. Accounts with two-factor enabled receive a temporary token
// that only unlocks the passkey login ceremony; everyone else gets a full
// session immediately.
func (s *Service) handleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req federatedLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	asserted, err := s.identity.VerifyAssertion(ctx, req.Assertion)
	if err != nil {
		writeError(w, err)
		return
	}

	u, err := s.users.GetUserByEmail(ctx, asserted.Email)
	if err != nil {
		// No account bootstrap on login: unknown identities are rejected
		// with the same response as a bad assertion.
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			writeError(w, apperrors.New(apperrors.CodeIdentityAssertionInvalid, "login failed"))
			return
		}
		writeError(w, err)
		return
	}
	if !u.Approved {
		writeError(w, apperrors.New(apperrors.CodeAccountNotApproved, "account is not approved"))
		return
	}

	// Display-name changes at the provider flow onto the account.
	if asserted.Name != "" && asserted.Name != u.DisplayName {
		u.DisplayName = asserted.Name
		u.UpdatedAt = s.clock().UTC()
		if err := s.users.PutUser(ctx, u); err != nil {
			writeError(w, err)
			return
		}
	}

	if u.TwoFactorEnabled {
		temp, err := s.tokens.IssueTemporary(u.Email, u.DisplayName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, federatedLoginResponse{
			TwoFactorRequired: true,
			AccessToken:       temp,
		})
		return
	}

	full, err := s.tokens.IssueFull(u.Email, u.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.users.SetLastLogin(ctx, u.ID, s.clock().UTC()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, federatedLoginResponse{
		AccessToken: full,
		User:        &userSummary{Email: u.Email, DisplayName: u.DisplayName},
	})
}
