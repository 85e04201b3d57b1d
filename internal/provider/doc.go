// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider is the client for an OpenAI-compatible chat completions API.
//
// The proxy uses it to forward a sanitized conversation and read back one
// completion. Requests are single-shot: no streaming, no retries.
//
// # Key Types
//
//   - Client: HTTP client bound to one base URL, model and sampling settings
//   - Message: Outbound chat message (role + string content)
//   - Content: Reply content, either a plain string or a sequence of typed chunks
//   - TransportError, StatusError: Failure classes surfaced to the proxy
//
// # Usage
//
//	client := provider.NewClient(cfg.Provider)
//	resp, err := client.Complete(ctx, apiKey, []provider.Message{
//	    provider.SystemMessage("You are..."),
//	    {Role: "user", Content: "Hello"},
//	})
//	text := resp.Text()
//
// # Security
//
// API keys are sent only in the Authorization header and never logged.
package provider
