// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/twin/internal/model"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
		m.inputView(),
		m.footerView(),
	)
}

func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render("twin")
	return m.theme.Header.Width(m.width).Render(title + "  ask me about my work")
}

func (m Model) statusView() string {
	switch m.machine.Status() {
	case StatusSending:
		return " " + m.spinner.View() + m.theme.StatusSending.Render(" Thinking...")
	case StatusError:
		return " " + m.theme.StatusError.Render("Error: "+m.machine.Err())
	default:
		return " " + m.theme.StatusIdle.Render("Ready")
	}
}

func (m Model) inputView() string {
	return m.theme.Input.Width(m.width - 2).Render(m.input.View())
}

func (m Model) footerView() string {
	return m.theme.Footer.Render(m.help.View(m.keys))
}

// transcriptView renders every message, oldest first.
func (m Model) transcriptView() string {
	var b strings.Builder
	for i, msg := range m.machine.Messages() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.messageView(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) messageView(msg model.Message) string {
	if msg.Role == model.RoleAssistant {
		return m.theme.AssistantLabel.Render(msg.Role.DisplayName()) + "\n" + m.markdown.render(msg)
	}
	return m.theme.UserLabel.Render(msg.Role.DisplayName()) + "\n" + m.theme.MessageBody.Render(msg.Content)
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownCache renders assistant replies with glamour. Messages are
// immutable, so output is cached by message ID until the width changes.
type markdownCache struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	rendered map[string]string
}

func newMarkdownCache(style string) *markdownCache {
	return &markdownCache{style: style, width: 76, rendered: make(map[string]string)}
}

func (c *markdownCache) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == c.width && c.renderer != nil {
		return
	}
	c.width = width
	c.renderer = nil
	c.rendered = make(map[string]string)
}

func (c *markdownCache) render(msg model.Message) string {
	if out, ok := c.rendered[msg.ID]; ok {
		return out
	}

	if c.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(c.style),
			glamour.WithWordWrap(c.width),
		)
		if err != nil {
			return "  " + msg.Content
		}
		c.renderer = r
	}

	out, err := c.renderer.Render(msg.Content)
	if err != nil {
		return "  " + msg.Content
	}
	out = strings.TrimRight(out, "\n")
	c.rendered[msg.ID] = out
	return out
}
