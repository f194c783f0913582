package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/gatehouse-auth/gatehouse/internal/auth/token"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
)

type contextKey string

const sessionContextKey contextKey = "gatehouse.session"

func sessionFromContext(ctx context.Context) (token.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(token.Session)
	return session, ok
}

// withSession verifies a bearer token when one is presented and attaches the
// session to the request context. Requests without a token pass through
// anonymously; a token that fails verification is rejected here.
func (s *Service) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		bearer := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if bearer == "" || bearer == header {
			writeError(w, apperrors.New(apperrors.CodeTokenInvalid, "authorization header is malformed"))
			return
		}
		session, err := s.tokens.Verify(bearer)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, session)))
	})
}

// requireFullSession rejects anonymous requests and temporary tokens, which
// identify an account that still owes its passkey second factor.
func (s *Service) requireFullSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromContext(r.Context())
		if !ok {
			writeError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
			return
		}
		if session.Temporary {
			writeError(w, apperrors.New(apperrors.CodeTokenInvalid, "session requires a passkey second factor"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
