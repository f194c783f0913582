// Package gatehouse wires flags and environment into the auth server.
package gatehouse

import (
	"context"
	"flag"
	"log"
	"strings"

	server "github.com/gatehouse-auth/gatehouse/internal/auth/app"
)

// Config holds gatehouse command configuration.
type Config struct {
	HTTPAddr string

	// CreateUserEmail switches the command into a one-shot account
	// bootstrap instead of serving.
	CreateUserEmail string
	CreateUserName  string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr: envOrDefault(lookup, []string{"GATEHOUSE_HTTP_ADDR"}, "localhost:8080"),
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The auth HTTP server address")
	fs.StringVar(&cfg.CreateUserEmail, "create-user", "", "Create an approved account with this email and exit")
	fs.StringVar(&cfg.CreateUserName, "display-name", "", "Display name for -create-user")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the auth server, or performs a one-shot account bootstrap
// when -create-user was given.
func Run(ctx context.Context, cfg Config) error {
	if cfg.CreateUserEmail != "" {
		u, err := server.CreateApprovedUser(ctx, cfg.CreateUserEmail, cfg.CreateUserName)
		if err != nil {
			return err
		}
		log.Printf("created approved account %s (id %s)", u.Email, u.ID)
		return nil
	}
	return server.Run(ctx, cfg.HTTPAddr)
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
