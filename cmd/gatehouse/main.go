package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	gatehousecmd "github.com/gatehouse-auth/gatehouse/internal/cmd/gatehouse"
	"github.com/gatehouse-auth/gatehouse/internal/platform/config"
)

func main() {
	// Local development keeps secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := gatehousecmd.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[GATEHOUSE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gatehousecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
