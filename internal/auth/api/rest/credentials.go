package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-auth/gatehouse/internal/auth/credential"
)

type credentialListResponse struct {
	Credentials []credentialSummary `json:"credentials"`
}

// handleListCredentials returns the account's enrolled passkeys. Key
// material, counters, and authenticator identifiers never leave storage.
func (s *Service) handleListCredentials(w http.ResponseWriter, r *http.Request) {
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

	summaries := make([]credentialSummary, 0, len(enrolled))
	for _, c := range enrolled {
		summaries = append(summaries, summarizeCredential(c))
	}
	writeJSON(w, http.StatusOK, credentialListResponse{Credentials: summaries})
}

type deleteCredentialResponse struct {
	Message          string `json:"message"`
	TwoFactorChanged bool   `json:"twoFactorDisabled"`
}

// handleDeleteCredential removes one of the account's passkeys. A foreign
// or unknown id reads as absent, never as forbidden.
func (s *Service) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.sessionUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	credentialID := chi.URLParam(r, "credentialID")
	_, disabled, err := s.credentials.DeleteCredential(ctx, credentialID, u.ID, s.clock().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	message := "passkey removed"
	if disabled {
		message = "passkey removed; two-factor was disabled because no passkeys remain"
	}
	writeJSON(w, http.StatusOK, deleteCredentialResponse{
		Message:          message,
		TwoFactorChanged: disabled,
	})
}

type renameCredentialRequest struct {
	Name string `json:"name"`
}

// handleRenameCredential updates a passkey's friendly label. The label is
// validated before any storage call.
func (s *Service) handleRenameCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.sessionUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var req renameCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name, err := credential.NormalizeName(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	credentialID := chi.URLParam(r, "credentialID")
	if err := s.credentials.RenameCredential(ctx, credentialID, u.ID, name, s.clock().UTC()); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeCredential(updated))
}
