// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation state machine and the Bubble Tea
// chat view built on it.
//
// # State machine
//
// Machine holds the message log (greeting first) and a Status:
//
//	idle --Submit--> sending --Succeed--> idle
//	                    |
//	                    +----Fail-----> error --Submit--> sending
//
// Submit is refused while sending, so exactly one request is ever in
// flight and replies apply in submission order. Fail never touches the
// log.
//
// # View
//
// Model wraps a Machine. Enter submits; the proxy call runs as a tea.Cmd
// and its ReplyMsg is applied only if the view is still open. Close
// discards a pending reply. Assistant replies render as Markdown.
package chat
