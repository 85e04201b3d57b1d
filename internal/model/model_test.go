// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation_StartsWithFixedGreeting(t *testing.T) {
	a := NewConversation()
	b := NewConversation()

	require.Equal(t, 1, a.Len())
	assert.Equal(t, GreetingID, a.Last().ID)
	assert.Equal(t, RoleAssistant, a.Last().Role)
	assert.Equal(t, a.Messages(), b.Messages(), "independent conversations must render identically")
}

func TestConversation_MessagesIsACopy(t *testing.T) {
	c := NewConversation()
	msgs := c.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, GreetingText, c.Messages()[0].Content)
}

func TestConversation_RequestProjectsAllMessages(t *testing.T) {
	c := NewConversation()
	c.Append(NewMessage(RoleUser, "hello"))
	c.Append(NewMessage(RoleAssistant, "hi there"))

	req := c.Request()
	assert.Equal(t, []ChatMessage{
		{Role: "assistant", Content: GreetingText},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}, req.Messages)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMessage(RoleUser, "x").ID
		require.False(t, seen[id], "duplicate id %s", id)
		require.NotEqual(t, GreetingID, id)
		seen[id] = true
	}
}

func TestRole_IsConversational(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{RoleSystem, false},
		{Role("tool"), false},
		{Role(""), false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.role.IsConversational(), "role %q", tc.role)
	}
}
