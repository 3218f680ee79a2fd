package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	chatgenius "github.com/gauntletai/chatgenius-go"
)

// getClient builds a client from the stored configuration.
func getClient(verbose bool) *chatgenius.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "No server configured. Run 'chatgenius config set server.base_url <url>' first.")
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "No token. Run 'chatgenius config set auth.token <token>' first.")
		os.Exit(1)
	}

	opts := []chatgenius.Option{}
	if verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
		opts = append(opts, chatgenius.WithLogger(logger))
	}
	return chatgenius.New(cfg.Server.BaseURL, chatgenius.StaticToken(cfg.Auth.Token), opts...)
}
