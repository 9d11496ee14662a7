package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/infodancer/everify/internal/config"
	"github.com/infodancer/everify/internal/logging"
	"github.com/infodancer/everify/internal/mx"
	"github.com/infodancer/everify/internal/probe"
	"github.com/infodancer/everify/internal/verifier"
)

// runCheck verifies a single address and prints the verdict as JSON.
// No Redis connection is made; the probe always runs.
func runCheck() {
	var email string
	flag.StringVar(&email, "email", "", "Address to verify")
	flags := config.ParseFlags()

	if email == "" {
		fmt.Fprintln(os.Stderr, "usage: everify check -email <address> [flags]")
		os.Exit(1)
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	lists, err := loadLists(cfg.Lists, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading domain lists: %v\n", err)
		os.Exit(1)
	}

	resolver := mx.New(cfg.DNS.Server, cfg.DNS.DNSTimeout())
	runner := probe.NewRunner(cfg.SMTP.SMTPTimeout(), cfg.HeloName, cfg.MailFrom, logger, nil)
	v := verifier.New(resolver, runner, lists, cfg.SMTP.Ports, logger, nil)

	verdict := v.Categorize(context.Background(), email)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdict); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding verdict: %v\n", err)
		os.Exit(1)
	}
}
