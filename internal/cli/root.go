// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/logging"
	"github.com/jeranaias/twin/internal/server"
)

// Build information, set with -ldflags at release time.
var (
	Version   = server.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd builds the twin command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "twin",
		Short: "Career Q&A assistant: proxy server and terminal clients",
		Long: `twin answers questions about its owner's career.

"twin serve" runs the HTTP proxy the portfolio site calls. It validates the
conversation, adds the persona, and forwards it to an OpenAI-compatible
provider. "twin chat" and "twin ask" are terminal clients for that proxy.

Quick Start:
  twin serve                          # start the proxy on 127.0.0.1:8787
  twin chat                           # interactive chat in the terminal
  twin ask "What are you best at?"    # one question, one answer`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.twin/config.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newServeCmd(), newChatCmd(), newAskCmd(), newConfigCmd(), newVersionCmd())
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig loads the config named by --config, applies --log-level and
// publishes the result as config.Global for the command being run.
func loadConfig() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	config.SetGlobal(cfg)
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	return logging.New(cfg.Log, w)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "twin %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)
		},
	}
}
