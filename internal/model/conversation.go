// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// GreetingID is the fixed identifier of the opening assistant message.
// It is a constant so two independently created conversations render the
// same initial state.
const GreetingID = "greeting"

// GreetingText is the opening assistant message.
const GreetingText = "Hi, I'm the digital twin on this site. Ask me anything about my career, projects, or the way I work."

// Greeting returns the synthetic opening message.
func Greeting() Message {
	return Message{ID: GreetingID, Role: RoleAssistant, Content: GreetingText}
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a chronological message log. The first entry is always
// the greeting. Turn-taking is not enforced.
type Conversation struct {
	messages []Message
}

// NewConversation creates a conversation holding only the greeting.
func NewConversation() *Conversation {
	return &Conversation{messages: []Message{Greeting()}}
}

// Append adds a message to the end of the log.
func (c *Conversation) Append(msg Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages, greeting included.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() Message {
	return c.messages[len(c.messages)-1]
}

// Request projects the whole log, greeting included, onto the proxy request.
func (c *Conversation) Request() ChatRequest {
	wire := make([]ChatMessage, len(c.messages))
	for i, m := range c.messages {
		wire[i] = m.Wire()
	}
	return ChatRequest{Messages: wire}
}
