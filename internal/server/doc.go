// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the assistant proxy over HTTP.
//
// # Endpoints
//
//   - POST /api/chat - {messages:[{role,content}]} -> {reply,model} | {error}
//   - GET  /health   - liveness plus credential and model status
//
// Error statuses: 400 for a malformed body or no usable messages, 413 for
// an oversized body, 429 when rate limited, 500 when the provider key is
// missing, 502 for provider failures and empty replies.
//
// # Middleware
//
// Applied in this order: panic recovery, security headers, request
// logging, CORS, per-IP rate limiting.
//
// # Usage
//
//	proxy := twin.New(provider.NewClient(cfg.Provider), config.NewCredential(cfg.Provider))
//	srv := server.New(cfg.Server, proxy).WithLogger(logger)
//	if err := srv.Run(ctx); err != nil {
//		logger.Fatal().Err(err).Msg("SERVER_FAILED")
//	}
package server
