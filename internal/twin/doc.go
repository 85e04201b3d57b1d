// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package twin implements the assistant proxy.
//
// A request moves through three stages, stopping at the first error:
//
//	received -> Validate -> Dispatch -> NormalizeReply -> ChatReply
//
// Validate is lenient: entries with an unknown role or blank content are
// dropped rather than rejected, and only the most recent messages are
// kept. Every failure is an *Error whose Kind maps to an HTTP status.
// There are no retries.
package twin
