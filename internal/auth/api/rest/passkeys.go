package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gatehouse-auth/gatehouse/internal/auth/challenge"
	"github.com/gatehouse-auth/gatehouse/internal/auth/credential"
	"github.com/gatehouse-auth/gatehouse/internal/auth/passkey"
	"github.com/gatehouse-auth/gatehouse/internal/auth/user"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

type registrationVerifyRequest struct {
	Response json.RawMessage `json:"response"`
	Name     string          `json:"name"`
}

type credentialSummary struct {
	ID           string     `json:"id"`
	Category     string     `json:"category"`
	FriendlyName string     `json:"friendlyName"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}

func summarizeCredential(c credential.Credential) credentialSummary {
	return credentialSummary{
		ID:           c.ID,
		Category:     string(c.Category),
		FriendlyName: c.Name,
		CreatedAt:    c.CreatedAt,
		LastUsedAt:   c.LastUsedAt,
	}
}

// handleRegistrationOptions mints attestation options for the signed-in
// account and persists the ceremony challenge bound to it.
func (s *Service) handleRegistrationOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.sessionUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	enrolled, err := s.credentials.ListCredentials(ctx, u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	creation, session, err := s.verifier.RegistrationOptions(u, enrolled)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.challenges.Issue(ctx, challenge.PurposeRegistration, u.ID, session.Challenge); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, creation.Response)
}

// handleRegistrationVerify consumes the ceremony challenge, verifies the
// attestation response, and enrolls the credential.
func (s *Service) handleRegistrationVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.sessionUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var req registrationVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Response) == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "credential response is required"))
		return
	}

	parsed, err := passkey.ParseRegistrationResponse(req.Response)
	if err != nil {
		writeError(w, err)
		return
	}

	chal, err := s.challenges.Consume(ctx, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		writeError(w, err)
		return
	}
	if chal.Purpose != string(challenge.PurposeRegistration) {
		writeError(w, apperrors.New(apperrors.CodeChallengeTypeMismatch, "challenge was not issued for registration"))
		return
	}
	if chal.UserID != u.ID {
		writeError(w, apperrors.New(apperrors.CodeChallengeSessionMismatch, "challenge is bound to a different account"))
		return
	}

	enrolled, err := s.credentials.ListCredentials(ctx, u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	enrolledCred, err := s.verifier.VerifyRegistration(u, enrolled, chal, parsed)
	if err != nil {
		writeError(w, err)
		return
	}

	name := enrolledCred.Category.DefaultName()
	if req.Name != "" {
		name, err = credential.NormalizeName(req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	enrolledCred.Name = name
	enrolledCred.CreatedAt = s.clock().UTC()

	if err := s.credentials.CreateCredential(ctx, enrolledCred); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, summarizeCredential(enrolledCred))
}

type loginOptionsRequest struct {
	Email string `json:"email"`
}

// handleLoginOptions mints assertion options. The challenge binds to an
// account when one is identified by the session or the request; otherwise an
// unbound challenge with no allow-list is issued, and unknown emails are
// indistinguishable from accounts without passkeys.
func (s *Service) handleLoginOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginOptionsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	bound, enrolled := s.resolveLoginAccount(r, req.Email)

	if bound != nil && len(enrolled) > 0 {
		assertion, session, err := s.verifier.LoginOptions(*bound, enrolled)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := s.challenges.Issue(ctx, challenge.PurposeAuthentication, bound.ID, session.Challenge); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assertion.Response)
		return
	}

	assertion, session, err := s.verifier.DiscoverableLoginOptions()
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.challenges.Issue(ctx, challenge.PurposeAuthentication, "", session.Challenge); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assertion.Response)
}

// resolveLoginAccount identifies the account a login ceremony should bind
// to: the verified session wins over a request-supplied email. Lookup
// failures fall back to an unbound ceremony rather than revealing whether
// the email is enrolled.
func (s *Service) resolveLoginAccount(r *http.Request, email string) (*user.User, []credential.Credential) {
	ctx := r.Context()

	lookup := email
	if session, ok := sessionFromContext(ctx); ok {
		lookup = session.Email
	}
	if lookup == "" {
		return nil, nil
	}

	u, err := s.users.GetUserByEmail(ctx, lookup)
	if err != nil {
		return nil, nil
	}
	enrolled, err := s.credentials.ListCredentials(ctx, u.ID)
	if err != nil {
		return nil, nil
	}
	return &u, enrolled
}

type loginVerifyRequest struct {
	Response json.RawMessage `json:"response"`
}

type loginVerifyResponse struct {
	AccessToken  string      `json:"accessToken"`
	User         userSummary `json:"user"`
	CredentialID string      `json:"credentialId"`
}

type userSummary struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// handleLoginVerify completes an assertion ceremony and issues a full
// session token. The challenge is consumed before verification, so a failed
// ceremony still closes the replay window.
func (s *Service) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Response) == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "credential response is required"))
		return
	}

	parsed, err := passkey.ParseAuthenticationResponse(req.Response)
	if err != nil {
		writeError(w, err)
		return
	}

	chal, err := s.challenges.Consume(ctx, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		writeError(w, err)
		return
	}
	if chal.Purpose != string(challenge.PurposeAuthentication) {
		writeError(w, apperrors.New(apperrors.CodeChallengeTypeMismatch, "challenge was not issued for authentication"))
		return
	}

	credentialID := credential.EncodeID(parsed.RawID)
	stored, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			writeError(w, apperrors.New(apperrors.CodeCredentialNotRecognized, "credential is not enrolled"))
			return
		}
		writeError(w, err)
		return
	}

	// Session binding runs before any cryptography: a challenge bound to
	// one account must never complete with another account's credential.
	if chal.UserID != "" && chal.UserID != stored.UserID {
		writeError(w, apperrors.New(apperrors.CodeChallengeSessionMismatch, "challenge is bound to a different account"))
		return
	}

	owner, err := s.users.GetUser(ctx, stored.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	enrolled, err := s.credentials.ListCredentials(ctx, owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	matched, newCount, err := s.verifier.VerifyAuthentication(owner, enrolled, chal, parsed)
	if err != nil {
		writeError(w, err)
		return
	}

	if !owner.Approved {
		writeError(w, apperrors.New(apperrors.CodeAccountNotApproved, "account is not approved"))
		return
	}

	now := s.clock().UTC()
	if err := s.credentials.UpdateCounter(ctx, matched.ID, newCount, now); err != nil {
		writeError(w, err)
		return
	}
	if err := s.users.SetLastLogin(ctx, owner.ID, now); err != nil {
		writeError(w, err)
		return
	}

	accessToken, err := s.tokens.IssueFull(owner.Email, owner.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginVerifyResponse{
		AccessToken:  accessToken,
		User:         userSummary{Email: owner.Email, DisplayName: owner.DisplayName},
		CredentialID: matched.ID,
	})
}
