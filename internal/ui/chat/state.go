// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/jeranaias/twin/internal/model"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the send state of the conversation.
type Status int

const (
	StatusIdle    Status = iota // Ready for input
	StatusSending               // One request in flight
	StatusError                 // Last request failed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSending:
		return "sending"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultFailure replaces an empty failure reason.
const DefaultFailure = "Something went wrong. Please try again."

// =============================================================================
// STATE MACHINE
// =============================================================================

// Machine is the conversation send/receive state machine. It does no I/O:
// Submit hands back the request to send and the caller reports the outcome
// with Succeed or Fail. At most one request is outstanding.
//
// Machine is not safe for concurrent use; drive it from one goroutine (the
// Bubble Tea update loop or a REPL).
type Machine struct {
	conv   *model.Conversation
	status Status
	errMsg string
}

// NewMachine returns an idle machine holding only the greeting.
func NewMachine() *Machine {
	return &Machine{conv: model.NewConversation(), status: StatusIdle}
}

// Submit appends a user message and returns the request to send. It is a
// no-op returning false when the trimmed input is empty or a request is
// already in flight.
func (m *Machine) Submit(raw string) (model.ChatRequest, bool) {
	text := strings.TrimSpace(raw)
	if text == "" || m.status == StatusSending {
		return model.ChatRequest{}, false
	}

	m.conv.Append(model.NewMessage(model.RoleUser, text))
	m.errMsg = ""
	m.status = StatusSending
	return m.conv.Request(), true
}

// Succeed appends the assistant reply and returns to idle. A blank reply is
// recorded as a failure with DefaultFailure and Succeed returns false. It is
// ignored unless a request is in flight.
func (m *Machine) Succeed(reply string) bool {
	if m.status != StatusSending {
		return false
	}
	if strings.TrimSpace(reply) == "" {
		m.Fail(DefaultFailure)
		return false
	}
	m.conv.Append(model.NewMessage(model.RoleAssistant, reply))
	m.status = StatusIdle
	return true
}

// Fail records reason and leaves the conversation unchanged. It is ignored
// unless a request is in flight.
func (m *Machine) Fail(reason string) bool {
	if m.status != StatusSending {
		return false
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultFailure
	}
	m.errMsg = reason
	m.status = StatusError
	return true
}

// Status returns the current status.
func (m *Machine) Status() Status {
	return m.status
}

// Sending reports whether a request is in flight.
func (m *Machine) Sending() bool {
	return m.status == StatusSending
}

// Err returns the last failure reason, or "" unless Status is StatusError.
func (m *Machine) Err() string {
	return m.errMsg
}

// Messages returns a copy of the conversation.
func (m *Machine) Messages() []model.Message {
	return m.conv.Messages()
}
