// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/twin/internal/client"
	"github.com/jeranaias/twin/internal/ui/chat"
)

func newAskCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long: `Send one question to the twin proxy and print the answer.

The answer is rendered as Markdown when stdout is a terminal and printed
as-is otherwise, so it can be piped.`,
		Example: `  twin ask "What are your strongest skills?"
  twin ask what stack do you use --url http://127.0.0.1:8787/api/chat`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			return ask(cmd.Context(), newSender(url), strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "proxy chat endpoint (overrides client.proxy_url)")
	return cmd
}

// ask runs one submit/reply cycle of the state machine.
func ask(ctx context.Context, sender client.Sender, question string, out io.Writer) error {
	machine := chat.NewMachine()
	req, ok := machine.Submit(question)
	if !ok {
		return errors.New("question is empty")
	}

	reply, err := sender.Send(ctx, req)
	if err != nil {
		machine.Fail(err.Error())
		return err
	}
	if !machine.Succeed(reply) {
		return errors.New(machine.Err())
	}

	if render := newMarkdownRenderer(out); render != nil {
		reply = render(reply)
	}
	fmt.Fprintln(out, reply)
	return nil
}

// newMarkdownRenderer returns a glamour renderer when out is a terminal,
// or nil when output should stay raw.
func newMarkdownRenderer(out io.Writer) func(string) string {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}

	width := 80
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 && w < width {
		width = w
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return nil
	}
	return func(s string) string {
		rendered, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.TrimSpace(rendered)
	}
}
