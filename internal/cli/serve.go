// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/provider"
	"github.com/jeranaias/twin/internal/server"
	"github.com/jeranaias/twin/internal/twin"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat proxy server",
		Long: `Run the HTTP proxy that the portfolio site's chat widget calls.

The provider key is read from $OPENAI_API_KEY, or from OPENAI_API_KEY in
../.env when the variable is unset. Without a key the server still starts
and /health reports the credential as missing.`,
		Example: `  twin serve
  twin serve --addr 0.0.0.0:8080
  TWIN_MODEL=gpt-4o twin serve --config ./twin.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			cfg := config.Global()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := newLogger(cfg, os.Stderr)
			return runServer(ctx, cfg, config.NewCredential(cfg.Provider), logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// buildServer wires the provider client, proxy and HTTP server.
func buildServer(cfg *config.Config, cred *config.Credential, logger zerolog.Logger) *server.Server {
	client := provider.NewClient(cfg.Provider).WithLogger(logger)
	proxy := twin.New(client, cred).
		WithMaxMessages(cfg.Provider.MaxMessages).
		WithLogger(logger)
	return server.New(cfg.Server, proxy).WithLogger(logger)
}

func runServer(ctx context.Context, cfg *config.Config, cred *config.Credential, logger zerolog.Logger) error {
	srv := buildServer(cfg, cred, logger)

	ev := logger.Info()
	if !cred.Configured() {
		ev = logger.Warn()
	}
	ev.Str("addr", cfg.Server.Addr).
		Str("model", cfg.Provider.Model).
		Str("provider", cfg.Provider.BaseURL).
		Str("key_source", cred.Source()).
		Str("key_fingerprint", cred.Fingerprint()).
		Msg("SERVER_CONFIG")

	return srv.Run(ctx)
}
