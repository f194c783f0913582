package gatehouse

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("gatehouse", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "localhost:8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.CreateUserEmail != "" {
		t.Fatalf("expected no bootstrap email by default, got %q", cfg.CreateUserEmail)
	}
}

func TestParseConfigEnvFallback(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "GATEHOUSE_HTTP_ADDR" {
			return "env-host:9090", true
		}
		return "", false
	}

	fs := flag.NewFlagSet("gatehouse", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "env-host:9090" {
		t.Fatalf("expected env http addr, got %q", cfg.HTTPAddr)
	}
}

func TestParseConfigFlagsWinOverEnv(t *testing.T) {
	lookup := func(string) (string, bool) { return "env-host:9090", true }

	fs := flag.NewFlagSet("gatehouse", flag.ContinueOnError)
	args := []string{"-http-addr", "flag-host:7070", "-create-user", "casey@example.com", "-display-name", "Casey"}
	cfg, err := ParseConfig(fs, args, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-host:7070" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.CreateUserEmail != "casey@example.com" {
		t.Fatalf("expected bootstrap email, got %q", cfg.CreateUserEmail)
	}
	if cfg.CreateUserName != "Casey" {
		t.Fatalf("expected bootstrap display name, got %q", cfg.CreateUserName)
	}
}
