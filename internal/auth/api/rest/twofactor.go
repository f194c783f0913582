package rest

import (
	"net/http"
)

type twoFactorResponse struct {
	Enabled bool `json:"enabled"`
}

type twoFactorUpdateRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Service) handleTwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.sessionUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	enabled, err := s.twofactor.Status(ctx, u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorResponse{Enabled: enabled})
}

func (s *Service) handleTwoFactorUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.sessionUser(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var req twoFactorUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Enabled {
		err = s.twofactor.Enable(ctx, u.ID)
	} else {
		err = s.twofactor.Disable(ctx, u.ID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorResponse{Enabled: req.Enabled})
}
