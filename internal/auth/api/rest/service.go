// Package rest exposes the authentication service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-auth/gatehouse/internal/auth/challenge"
	"github.com/gatehouse-auth/gatehouse/internal/auth/identity"
	"github.com/gatehouse-auth/gatehouse/internal/auth/passkey"
	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
	"github.com/gatehouse-auth/gatehouse/internal/auth/token"
	"github.com/gatehouse-auth/gatehouse/internal/auth/twofactor"
	"github.com/gatehouse-auth/gatehouse/internal/auth/user"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

// Params collects the collaborators the HTTP service needs.
type Params struct {
	Users       storage.UserStore
	Credentials storage.CredentialStore
	Challenges  *challenge.Store
	Verifier    *passkey.Verifier
	Tokens      *token.Issuer
	Identity    identity.Verifier
	TwoFactor   *twofactor.Service
	Clock       func() time.Time
}

// Service handles authentication HTTP requests.
type Service struct {
	users       storage.UserStore
	credentials storage.CredentialStore
	challenges  *challenge.Store
	verifier    *passkey.Verifier
	tokens      *token.Issuer
	identity    identity.Verifier
	twofactor   *twofactor.Service
	clock       func() time.Time
}

// New builds the HTTP service. All collaborators are required.
func New(p Params) (*Service, error) {
	if p.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if p.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if p.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if p.Verifier == nil {
		return nil, fmt.Errorf("credential verifier is required")
	}
	if p.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if p.Identity == nil {
		return nil, fmt.Errorf("identity verifier is required")
	}
	if p.TwoFactor == nil {
		return nil, fmt.Errorf("two-factor service is required")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		users:       p.Users,
		credentials: p.Credentials,
		challenges:  p.Challenges,
		verifier:    p.Verifier,
		tokens:      p.Tokens,
		identity:    p.Identity,
		twofactor:   p.TwoFactor,
		clock:       clock,
	}, nil
}

// Routes mounts the authentication API.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login/federated", s.handleFederatedLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)
			r.Post("/passkeys/login/options", s.handleLoginOptions)
			r.Post("/passkeys/login/verify", s.handleLoginVerify)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.withSession, s.requireFullSession)
			r.Post("/passkeys/registration/options", s.handleRegistrationOptions)
			r.Post("/passkeys/registration/verify", s.handleRegistrationVerify)
			r.Get("/passkeys", s.handleListCredentials)
			r.Delete("/passkeys/{credentialID}", s.handleDeleteCredential)
			r.Patch("/passkeys/{credentialID}", s.handleRenameCredential)
			r.Get("/two-factor", s.handleTwoFactorStatus)
			r.Put("/two-factor", s.handleTwoFactorUpdate)
		})
	})
	return r
}

// sessionUser resolves the account behind the request's verified session.
func (s *Service) sessionUser(ctx context.Context) (user.User, error) {
	session, ok := sessionFromContext(ctx)
	if !ok {
		return user.User{}, apperrors.New(apperrors.CodeTokenInvalid, "authentication required")
	}
	u, err := s.users.GetUserByEmail(ctx, session.Email)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeNotFound {
			return user.User{}, apperrors.New(apperrors.CodeTokenInvalid, "authentication required")
		}
		return user.User{}, err
	}
	return u, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.New(apperrors.CodeInvalidRequest, "request body is required")
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidRequest, "request body is not valid JSON", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
