// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/twin/internal/client"
	"github.com/jeranaias/twin/internal/config"
	"github.com/jeranaias/twin/internal/model"
	"github.com/jeranaias/twin/internal/ui/chat"
)

func newChatCmd() *cobra.Command {
	var (
		url   string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the twin in the terminal",
		Long: `Open an interactive chat against a running twin proxy.

The default is a full-screen view. --plain uses a line-based prompt with
history instead, which suits dumb terminals and screen readers.`,
		Example: `  twin chat
  twin chat --plain
  twin chat --url https://example.com/api/chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			sender := newSender(url)
			if plain {
				return runREPL(cmd.Context(), sender, cmd.OutOrStdout())
			}
			return runTUI(sender)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "proxy chat endpoint (overrides client.proxy_url)")
	cmd.Flags().BoolVar(&plain, "plain", false, "line-based prompt instead of the full-screen view")
	return cmd
}

// newSender builds the proxy client from config.Global, with url taking
// precedence over client.proxy_url when set.
func newSender(url string) *client.Client {
	c := client.New(config.Global().Client)
	if url != "" {
		c.WithURL(url)
	}
	return c
}

// runTUI runs the full-screen chat until the user quits.
func runTUI(sender client.Sender) error {
	m := chat.New(sender, nil)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(chat.Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return err
}

// =============================================================================
// LINE EDITOR
// =============================================================================

// lineEditor provides history and line editing for the plain prompt.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor() *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(e.historyFile); err == nil {
		e.line.ReadHistory(f)
		f.Close()
	}
	return e
}

// ReadLine prompts for one line and records non-blank input in history.
func (e *lineEditor) ReadLine(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close writes history (mode 0600) and restores the terminal.
func (e *lineEditor) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// =============================================================================
// PLAIN REPL
// =============================================================================

// replSession drives a chat.Machine from line input. Each turn blocks until
// the proxy answers, so at most one request is ever in flight.
type replSession struct {
	machine *chat.Machine
	sender  client.Sender
	out     io.Writer
	render  func(string) string
}

func newREPLSession(sender client.Sender, out io.Writer) *replSession {
	return &replSession{
		machine: chat.NewMachine(),
		sender:  sender,
		out:     out,
		render:  func(s string) string { return s },
	}
}

// greet prints the opening assistant message.
func (s *replSession) greet() {
	msgs := s.machine.Messages()
	fmt.Fprintf(s.out, "%s %s\n\n", TwinStyle.Render(model.RoleAssistant.DisplayName()+":"), s.render(msgs[0].Content))
}

// turn submits one line and prints the reply or the error.
func (s *replSession) turn(ctx context.Context, input string) {
	req, ok := s.machine.Submit(input)
	if !ok {
		return
	}

	reply, err := s.sender.Send(ctx, req)
	if err != nil {
		s.machine.Fail(err.Error())
	} else {
		s.machine.Succeed(reply)
	}
	if s.machine.Status() == chat.StatusError {
		fmt.Fprintf(s.out, "%s %s\n\n", ErrorStyle.Render("[Error]"), s.machine.Err())
		return
	}
	fmt.Fprintf(s.out, "%s %s\n\n", TwinStyle.Render(model.RoleAssistant.DisplayName()+":"), s.render(reply))
}

// isExit reports whether input ends the session.
func isExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "/quit", "/q":
		return true
	}
	return false
}

func runREPL(ctx context.Context, sender client.Sender, out io.Writer) error {
	editor := newLineEditor()
	defer editor.Close()

	session := newREPLSession(sender, out)
	if r := newMarkdownRenderer(out); r != nil {
		session.render = r
	}

	session.greet()
	fmt.Fprintln(out, DimStyle.Render("Type a question, or 'exit' to quit."))

	for {
		input, err := editor.ReadLine(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if isExit(input) {
			return nil
		}
		session.turn(ctx, input)
	}
}
