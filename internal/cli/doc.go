// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the twin command tree: serve runs the chat proxy,
// chat and ask are terminal clients for it.
package cli
