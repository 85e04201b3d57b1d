// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/twin/internal/client"
	"github.com/jeranaias/twin/internal/model"
	"github.com/jeranaias/twin/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ReplyMsg carries the outcome of request Seq back into the update loop.
type ReplyMsg struct {
	Seq   uint64
	Reply string
	Err   error
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	machine *Machine
	sender  client.Sender
	tracker *requestTracker

	theme *styles.Theme
	keys  KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	markdown *markdownCache

	width  int
	height int
	ready  bool
}

// New creates a chat model sending through sender.
func New(sender client.Sender, theme *styles.Theme) Model {
	if theme == nil {
		theme = styles.NewTheme()
	}

	input := textinput.New()
	input.Placeholder = "Ask about my career..."
	input.CharLimit = 2000
	input.Prompt = "> "
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.StatusSending

	return Model{
		machine:  NewMachine(),
		sender:   sender,
		tracker:  newRequestTracker(),
		theme:    theme,
		keys:     DefaultKeyMap(),
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
		markdown: newMarkdownCache(theme.MarkdownStyle()),
		width:    80,
		height:   24,
	}
}

// Machine exposes the state machine, mainly for tests and the REPL.
func (m Model) Machine() *Machine {
	return m.machine
}

// Close tears the view down. A reply still in flight is discarded and its
// request context cancelled.
func (m Model) Close() {
	m.tracker.close()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m, m.submit()
		case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case ReplyMsg:
		m.applyReply(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit hands the input to the state machine and, when accepted, returns
// the command that performs the single proxy call.
func (m *Model) submit() tea.Cmd {
	req, ok := m.machine.Submit(m.input.Value())
	if !ok {
		return nil
	}
	m.input.Reset()
	m.refresh()
	return m.send(req)
}

func (m *Model) send(req model.ChatRequest) tea.Cmd {
	ctx, seq, ok := m.tracker.begin()
	if !ok {
		return nil
	}
	sender := m.sender
	return func() tea.Msg {
		reply, err := sender.Send(ctx, req)
		return ReplyMsg{Seq: seq, Reply: reply, Err: err}
	}
}

// applyReply commits a result unless the view was closed or the result is
// stale.
func (m *Model) applyReply(msg ReplyMsg) {
	if !m.tracker.finish(msg.Seq) {
		return
	}
	if msg.Err != nil {
		m.machine.Fail(msg.Err.Error())
	} else {
		m.machine.Succeed(msg.Reply)
	}
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true

	chrome := lipgloss.Height(m.headerView()) + lipgloss.Height(m.statusView()) +
		lipgloss.Height(m.inputView()) + lipgloss.Height(m.footerView())
	vh := height - chrome
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.input.Width = width - 6
	m.markdown.setWidth(width - 4)
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.transcriptView())
	m.viewport.GotoBottom()
}
