// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the twin client and proxy.
//
// # Key Types
//
//   - Role: Message role (user, assistant; system is provider-only)
//   - Message: Immutable conversation entry with a client-assigned ID
//   - Conversation: Chronological message log opened by a fixed greeting
//   - ChatMessage, ChatRequest: Wire shape of the proxy request
//   - ChatReply, ErrorReply: Wire shapes of the proxy response
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Append(model.NewMessage(model.RoleUser, "What do you work on?"))
//	req := conv.Request()
package model
