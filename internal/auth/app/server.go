// Package server assembles and runs the authentication HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse-auth/gatehouse/internal/auth/api/rest"
	"github.com/gatehouse-auth/gatehouse/internal/auth/challenge"
	"github.com/gatehouse-auth/gatehouse/internal/auth/identity"
	"github.com/gatehouse-auth/gatehouse/internal/auth/passkey"
	"github.com/gatehouse-auth/gatehouse/internal/auth/storage/sqlite"
	"github.com/gatehouse-auth/gatehouse/internal/auth/token"
	"github.com/gatehouse-auth/gatehouse/internal/auth/twofactor"
	"github.com/gatehouse-auth/gatehouse/internal/auth/user"
	platformconfig "github.com/gatehouse-auth/gatehouse/internal/platform/config"
)

// maintenanceConfig controls the background challenge sweeper.
type maintenanceConfig struct {
	SweepInterval time.Duration `env:"GATEHOUSE_SWEEP_INTERVAL" envDefault:"1m"`
}

// Server hosts the authentication service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	challenges *challenge.Store
	sweepEvery time.Duration
}

// New creates a configured server listening on addr.
func New(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openStore()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	handler, challenges, sweepEvery, err := buildHandler(store)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: handler},
		store:      store,
		challenges: challenges,
		sweepEvery: sweepEvery,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, addr string) error {
	srv, err := New(addr)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = s.store.Close() }()

	go s.sweepLoop(serverCtx)

	log.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// sweepLoop periodically deletes expired challenges. Consume enforces
// expiry on its own; this only keeps the table small.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.challenges.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("sweep expired challenges: %v", err)
				}
				continue
			}
			if removed > 0 {
				log.Printf("swept %d expired challenges", removed)
			}
		}
	}
}

func buildHandler(store *sqlite.Store) (http.Handler, *challenge.Store, time.Duration, error) {
	verifier, err := passkey.NewVerifier(passkey.LoadConfigFromEnv())
	if err != nil {
		return nil, nil, 0, fmt.Errorf("configure passkey verifier: %w", err)
	}

	var tokenConfig token.Config
	if err := platformconfig.ParseEnv(&tokenConfig); err != nil {
		return nil, nil, 0, fmt.Errorf("parse token config: %w", err)
	}
	tokens, err := token.NewIssuer(tokenConfig)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("configure token issuer: %w", err)
	}
	if tokenConfig.Seed == "" {
		log.Printf("no signing seed configured; session tokens will not survive restarts")
	}

	identityConfig, err := identity.LoadConfigFromEnv(nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("configure identity provider: %w", err)
	}
	idp, err := identity.NewJWTVerifier(identityConfig)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("configure identity verifier: %w", err)
	}

	var maintenance maintenanceConfig
	if err := platformconfig.ParseEnv(&maintenance); err != nil {
		return nil, nil, 0, fmt.Errorf("parse maintenance config: %w", err)
	}

	challenges := challenge.NewStore(store)
	svc, err := rest.New(rest.Params{
		Users:       store,
		Credentials: store,
		Challenges:  challenges,
		Verifier:    verifier,
		Tokens:      tokens,
		Identity:    idp,
		TwoFactor:   twofactor.NewService(store, store),
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("build rest service: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/", svc.Routes())

	return r, challenges, maintenance.SweepInterval, nil
}

// CreateApprovedUser provisions a pre-approved account in the configured
// store. Federated login never creates accounts, so operators seed them
// through this path.
func CreateApprovedUser(ctx context.Context, email, displayName string) (user.User, error) {
	store, err := openStore()
	if err != nil {
		return user.User{}, err
	}
	defer func() { _ = store.Close() }()

	u, err := user.CreateUser(user.CreateUserInput{Email: email, DisplayName: displayName}, nil, nil)
	if err != nil {
		return user.User{}, err
	}
	u.Approved = true

	if existing, err := store.GetUserByEmail(ctx, u.Email); err == nil {
		return user.User{}, fmt.Errorf("account %s already exists (id %s)", existing.Email, existing.ID)
	}

	if err := store.PutUser(ctx, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func openStore() (*sqlite.Store, error) {
	path := strings.TrimSpace(os.Getenv("GATEHOUSE_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "gatehouse.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
