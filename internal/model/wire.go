// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// PROXY WIRE TYPES
// =============================================================================

// ChatMessage is one entry of a proxy request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatReply is the success body of POST /api/chat.
type ChatReply struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

// ErrorReply is the failure body of POST /api/chat.
type ErrorReply struct {
	Error string `json:"error"`
}
